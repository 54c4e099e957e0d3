package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"ecommerce-platform/internal/models"
	"ecommerce-platform/internal/util"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DeadLetterSink receives messages whose handling failed
type DeadLetterSink interface {
	Send(ctx context.Context, msg kafka.Message, kind models.EventKind, cause error) error
}

// DispatcherConfig describes one service's subscription
type DispatcherConfig struct {
	GroupID string
	Topics  []string
	// OwnTopic is the topic the service publishes to. Subscribing to it is rejected.
	OwnTopic       string
	HandlerTimeout time.Duration
	FetchBackoff   time.Duration
}

// Dispatcher runs the per-service receive loop. Each message is decoded,
// routed, and committed whether or not its handler succeeded.
type Dispatcher struct {
	cfg        DispatcherConfig
	reader     MessageReader
	router     *Router
	deadLetter DeadLetterSink
	logger     *zap.Logger
}

// NewDispatcher validates the subscription and handler table
func NewDispatcher(cfg DispatcherConfig, reader MessageReader, router *Router, logger *zap.Logger) (*Dispatcher, error) {
	if cfg.GroupID == "" {
		return nil, errors.New("dispatcher: group id is required")
	}
	if len(cfg.Topics) == 0 {
		return nil, errors.New("dispatcher: at least one topic is required")
	}
	for _, t := range cfg.Topics {
		if cfg.OwnTopic != "" && t == cfg.OwnTopic {
			return nil, fmt.Errorf("dispatcher: %s must not subscribe to its own topic %s", cfg.GroupID, t)
		}
	}
	if err := router.Validate(); err != nil {
		return nil, fmt.Errorf("dispatcher %s: %w", cfg.GroupID, err)
	}
	if cfg.FetchBackoff <= 0 {
		cfg.FetchBackoff = time.Second
	}
	if logger == nil {
		logger = util.GetLogger()
	}

	return &Dispatcher{
		cfg:    cfg,
		reader: reader,
		router: router,
		logger: logger.With(zap.String("group_id", cfg.GroupID)),
	}, nil
}

// WithDeadLetter forwards failed messages to sink
func (d *Dispatcher) WithDeadLetter(sink DeadLetterSink) *Dispatcher {
	d.deadLetter = sink
	return d
}

// Run consumes until ctx is cancelled or the reader is closed. A message that
// is already being handled when ctx is cancelled is finished and committed.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("Starting dispatcher",
		zap.Strings("topics", d.cfg.Topics),
		zap.Strings("handles", d.router.Kinds()))

	for {
		msg, err := d.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				d.logger.Info("Dispatcher stopped")
				return nil
			}
			d.logger.Error("Error fetching message", zap.Error(err))
			select {
			case <-ctx.Done():
				d.logger.Info("Dispatcher stopped")
				return nil
			case <-time.After(d.cfg.FetchBackoff):
			}
			continue
		}

		drainCtx := context.WithoutCancel(ctx)
		_ = d.HandleMessage(drainCtx, msg)
		d.commit(drainCtx, msg)
	}
}

func (d *Dispatcher) commit(ctx context.Context, msg kafka.Message) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := d.reader.CommitMessages(ctx, msg); err != nil {
		d.logger.Error("Error committing message",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
	}
}

// HandleMessage decodes and routes a single message. The returned error is
// informational; the message counts as consumed either way.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg kafka.Message) error {
	ctx = extractTraceContext(ctx, msg.Headers)
	ctx, span := util.StartSpan(ctx, "broker.Dispatch",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.source", msg.Topic),
			attribute.String("messaging.consumer_group", d.cfg.GroupID),
		))
	defer span.End()

	if d.cfg.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.HandlerTimeout)
		defer cancel()
	}

	log := util.LoggerWithTrace(ctx, d.logger).With(
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset))

	env, err := models.ParseEnvelope(msg.Value)
	if err != nil {
		return d.fail(ctx, span, log, msg, "", err)
	}
	span.SetAttributes(attribute.String("messaging.event_type", string(env.Type)))

	ev, err := models.DecodeEvent(env)
	if err != nil {
		return d.fail(ctx, span, log, msg, env.Type, err)
	}
	util.EventsConsumedTotal.WithLabelValues(d.cfg.GroupID, string(env.Type)).Inc()

	handled, err := d.router.Route(ctx, ev)
	if err != nil {
		return d.fail(ctx, span, log, msg, env.Type, err)
	}
	if !handled {
		log.Debug("No handler for event", zap.String("event_type", string(env.Type)))
		return nil
	}

	log.Debug("Handled event", zap.String("event_type", string(env.Type)))
	return nil
}

func (d *Dispatcher) fail(ctx context.Context, span trace.Span, log *zap.Logger, msg kafka.Message, kind models.EventKind, err error) error {
	label := string(kind)
	if label == "" {
		label = "malformed"
	}
	util.EventHandlerFailures.WithLabelValues(d.cfg.GroupID, label).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	log.Error("Error handling message",
		zap.String("event_type", label),
		zap.Error(err))

	if d.deadLetter != nil {
		dlqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if dlqErr := d.deadLetter.Send(dlqCtx, msg, kind, err); dlqErr != nil {
			log.Error("Failed to forward message to dead-letter topic", zap.Error(dlqErr))
		} else {
			util.EventsDeadLettered.WithLabelValues(d.cfg.GroupID).Inc()
		}
	}
	return err
}

// Close closes the underlying reader, which also unblocks Run
func (d *Dispatcher) Close() error {
	return d.reader.Close()
}
