package app

import (
	"fmt"

	"ecommerce-platform/config"
	"ecommerce-platform/internal/models"
)

// ServiceSpec is one row of the wiring table: the topic a service publishes to
// and the topics it consumes
type ServiceSpec struct {
	Name          string
	OwnTopic      string
	Subscriptions []string
}

// Services is the wiring table. No service consumes its own topic.
var Services = map[string]ServiceSpec{
	config.ServiceUser: {
		Name:          config.ServiceUser,
		OwnTopic:      models.TopicUserEvents,
		Subscriptions: []string{models.TopicOrderEvents, models.TopicProductEvents},
	},
	config.ServiceProduct: {
		Name:          config.ServiceProduct,
		OwnTopic:      models.TopicProductEvents,
		Subscriptions: []string{models.TopicOrderEvents, models.TopicUserEvents},
	},
	config.ServiceOrder: {
		Name:          config.ServiceOrder,
		OwnTopic:      models.TopicOrderEvents,
		Subscriptions: []string{models.TopicProductEvents, models.TopicUserEvents},
	},
}

// Lookup returns the wiring for a service name
func Lookup(name string) (ServiceSpec, error) {
	spec, ok := Services[name]
	if !ok {
		return ServiceSpec{}, fmt.Errorf("unknown service %q", name)
	}
	return spec, nil
}

// GroupID is the default consumer group of the service
func (s ServiceSpec) GroupID() string {
	return s.Name + "-service-group"
}
