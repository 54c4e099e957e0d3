package service

import (
	"context"

	"ecommerce-platform/internal/broker"
	"ecommerce-platform/internal/models"
	"ecommerce-platform/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Delivery statuses, reported to HTTP clients in X-Event-Delivery
const (
	DeliveryPublished = "published"
	DeliveryQueued    = "queued"
	DeliveryFailed    = "failed"
)

// Delivery is what happened to the event emitted after a state change.
// A failed delivery never rolls the state change back.
type Delivery struct {
	Result broker.PublishResult
	Queued bool
}

// Status summarises the delivery as one of the Delivery* constants
func (d Delivery) Status() string {
	switch {
	case d.Result.OK():
		return DeliveryPublished
	case d.Queued:
		return DeliveryQueued
	default:
		return DeliveryFailed
	}
}

// Emitter publishes the event that follows a state change. With an outbox
// configured, failed publishes are stored for the relay; otherwise they are
// only logged.
type Emitter struct {
	publisher Publisher
	outbox    OutboxStore
	logger    *zap.Logger
}

// NewEmitter creates an emitter. outbox may be nil for the log policy.
func NewEmitter(publisher Publisher, outbox OutboxStore) *Emitter {
	return &Emitter{
		publisher: publisher,
		outbox:    outbox,
		logger:    util.GetLogger(),
	}
}

// Emit publishes ev to the topic owned by its kind
func (e *Emitter) Emit(ctx context.Context, ev models.Event) Delivery {
	res := e.publisher.Publish(ctx, ev.Kind().Topic(), ev)
	d := Delivery{Result: res}
	if res.OK() {
		return d
	}

	logger := util.LoggerWithTrace(ctx, e.logger)
	if e.outbox == nil || len(res.Value) == 0 {
		logger.Warn("Event not delivered, state change kept",
			zap.String("event_type", string(res.Kind)),
			zap.String("key", res.Key),
			zap.Error(res.Err))
		return d
	}

	row := &models.OutboxEvent{
		ID:         uuid.New().String(),
		Topic:      res.Topic,
		EventType:  res.Kind,
		MessageKey: res.Key,
		Payload:    res.Value,
		LastError:  res.Err.Error(),
	}
	if err := e.outbox.EnqueueOutbox(ctx, row); err != nil {
		logger.Error("Failed to enqueue event in outbox",
			zap.String("event_type", string(res.Kind)),
			zap.String("key", res.Key),
			zap.NamedError("publish_error", res.Err),
			zap.Error(err))
		return d
	}

	util.OutboxEnqueuedTotal.WithLabelValues(res.Topic).Inc()
	logger.Warn("Event queued in outbox after publish failure",
		zap.String("outbox_id", row.ID),
		zap.String("event_type", string(res.Kind)),
		zap.Error(res.Err))
	d.Queued = true
	return d
}
