package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ecommerce-platform/internal/models"
	"ecommerce-platform/internal/util"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// PublishResult reports the outcome of a publish. Publishing never panics or
// returns a bare error; callers decide what a failure means for them.
type PublishResult struct {
	Topic string
	Kind  models.EventKind
	Key   string
	Value []byte
	Err   error
}

// OK reports whether the message was accepted by the broker
func (r PublishResult) OK() bool {
	return r.Err == nil
}

// EventPublisher serializes events into envelopes and writes them keyed by orderId
type EventPublisher struct {
	source WriterSource
	logger *zap.Logger
}

// NewEventPublisher creates a publisher backed by source, usually a *Client
func NewEventPublisher(source WriterSource) *EventPublisher {
	return &EventPublisher{
		source: source,
		logger: util.GetLogger(),
	}
}

// Publish wraps ev in an envelope and writes it to topic
func (p *EventPublisher) Publish(ctx context.Context, topic string, ev models.Event) (res PublishResult) {
	res = PublishResult{Topic: topic}
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("publish %s panicked: %v", res.Kind, r)
			p.logger.Error("Publish panicked", zap.String("topic", topic), zap.Any("panic", r))
		}
	}()

	res.Kind = ev.Kind()
	env, err := models.NewEnvelope(ev)
	if err != nil {
		res.Err = err
		util.EventsPublishedTotal.WithLabelValues(topic, string(res.Kind), "encode_error").Inc()
		return res
	}
	return p.PublishEnvelope(ctx, topic, env)
}

// PublishEnvelope writes an already-built envelope
func (p *EventPublisher) PublishEnvelope(ctx context.Context, topic string, env models.Envelope) PublishResult {
	value, err := json.Marshal(env)
	if err != nil {
		util.EventsPublishedTotal.WithLabelValues(topic, string(env.Type), "encode_error").Inc()
		return PublishResult{Topic: topic, Kind: env.Type, Key: env.Key(), Err: fmt.Errorf("failed to marshal envelope: %w", err)}
	}
	return p.PublishRaw(ctx, topic, env.Type, env.Key(), value)
}

// PublishRaw writes pre-serialized envelope bytes. The outbox relay uses it to
// replay stored messages without re-encoding them.
func (p *EventPublisher) PublishRaw(ctx context.Context, topic string, kind models.EventKind, key string, value []byte) (res PublishResult) {
	res = PublishResult{Topic: topic, Kind: kind, Key: key, Value: value}
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("publish %s panicked: %v", kind, r)
			p.logger.Error("Publish panicked", zap.String("topic", topic), zap.Any("panic", r))
		}
	}()

	ctx, span := util.StartSpan(ctx, "broker.Publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination", topic),
			attribute.String("messaging.event_type", string(kind)),
			attribute.String("messaging.kafka.message_key", key),
		))
	defer span.End()

	start := time.Now()
	defer func() {
		util.EventPublishLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	}()

	writer, err := p.source.Writer(ctx)
	if err != nil {
		res.Err = err
		p.fail(span, res)
		return res
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}
	injectTraceHeaders(ctx, &msg.Headers)

	if err := writer.WriteMessages(ctx, msg); err != nil {
		res.Err = fmt.Errorf("failed to write message to kafka: %w", err)
		p.fail(span, res)
		return res
	}

	util.EventsPublishedTotal.WithLabelValues(topic, string(kind), "ok").Inc()
	p.logger.Debug("Published event",
		zap.String("topic", topic),
		zap.String("event_type", string(kind)),
		zap.String("key", key))
	return res
}

func (p *EventPublisher) fail(span trace.Span, res PublishResult) {
	span.RecordError(res.Err)
	span.SetStatus(codes.Error, res.Err.Error())
	util.EventsPublishedTotal.WithLabelValues(res.Topic, string(res.Kind), "error").Inc()
	p.logger.Error("Failed to publish event",
		zap.String("topic", res.Topic),
		zap.String("event_type", string(res.Kind)),
		zap.String("key", res.Key),
		zap.Error(res.Err))
}
