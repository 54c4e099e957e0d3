package service

import (
	"context"
	"encoding/json"
	"sync"

	"ecommerce-platform/internal/broker"
	"ecommerce-platform/internal/models"

	"github.com/stretchr/testify/mock"
)

// recordingPublisher accepts every event and remembers it
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []models.Event
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, ev models.Event) broker.PublishResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, ev)
	return resultFor(topic, ev, nil)
}

func (p *recordingPublisher) kinds() []models.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.EventKind, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Kind())
	}
	return out
}

func (p *recordingPublisher) last() models.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics, p.events = nil, nil
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, ev models.Event) broker.PublishResult {
	args := m.Called(ctx, topic, ev)
	return args.Get(0).(broker.PublishResult)
}

func resultFor(topic string, ev models.Event, err error) broker.PublishResult {
	env, _ := models.NewEnvelope(ev)
	value, _ := json.Marshal(env)
	return broker.PublishResult{Topic: topic, Kind: ev.Kind(), Key: env.Key(), Value: value, Err: err}
}

func ptr[T any](v T) *T {
	return &v
}
