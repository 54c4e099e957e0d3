package worker

import (
	"context"
	"fmt"
	"time"

	"ecommerce-platform/internal/broker"
	"ecommerce-platform/internal/models"
	"ecommerce-platform/internal/service"
	"ecommerce-platform/internal/util"

	"go.uber.org/zap"
)

const relayLockKey = "outbox-relay"

// RawPublisher republishes stored envelope bytes
type RawPublisher interface {
	PublishRaw(ctx context.Context, topic string, kind models.EventKind, key string, value []byte) broker.PublishResult
}

// Locker keeps relays in different replicas from sending the same rows
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

type RelayConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// OutboxRelay periodically republishes events whose first publish failed
type OutboxRelay struct {
	cfg       RelayConfig
	store     service.OutboxStore
	publisher RawPublisher
	locker    Locker
	logger    *zap.Logger
}

// NewOutboxRelay creates a relay. locker may be nil when only one replica runs.
func NewOutboxRelay(cfg RelayConfig, store service.OutboxStore, publisher RawPublisher, locker Locker) *OutboxRelay {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	return &OutboxRelay{
		cfg:       cfg,
		store:     store,
		publisher: publisher,
		locker:    locker,
		logger:    util.GetLogger().With(zap.String("worker", "outbox-relay")),
	}
}

// Start relays a batch immediately and then on every tick until ctx is cancelled
func (r *OutboxRelay) Start(ctx context.Context) error {
	r.logger.Info("Starting outbox relay",
		zap.Duration("interval", r.cfg.Interval),
		zap.Int("batch_size", r.cfg.BatchSize),
		zap.Int("max_attempts", r.cfg.MaxAttempts))

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.RelayOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("Outbox relay batch failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RelayOnce sends one batch and returns how many rows were published
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	if r.locker != nil {
		ok, err := r.locker.AcquireLock(ctx, relayLockKey, 2*r.cfg.Interval)
		if err != nil {
			return 0, fmt.Errorf("failed to acquire relay lock: %w", err)
		}
		if !ok {
			r.logger.Debug("Another replica holds the relay lock")
			return 0, nil
		}
		defer func() {
			if err := r.locker.ReleaseLock(context.WithoutCancel(ctx), relayLockKey); err != nil {
				r.logger.Warn("Failed to release relay lock", zap.Error(err))
			}
		}()
	}

	events, err := r.store.PendingOutbox(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending outbox events: %w", err)
	}

	sent := 0
	for _, ev := range events {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if r.relay(ctx, ev) {
			sent++
		}
	}
	if len(events) > 0 {
		r.logger.Info("Outbox batch relayed", zap.Int("pending", len(events)), zap.Int("sent", sent))
	}
	return sent, nil
}

func (r *OutboxRelay) relay(ctx context.Context, ev models.OutboxEvent) bool {
	res := r.publisher.PublishRaw(ctx, ev.Topic, ev.EventType, ev.MessageKey, ev.Payload)
	if res.OK() {
		if err := r.store.MarkOutboxSent(ctx, ev.ID); err != nil {
			r.logger.Error("Failed to mark outbox event sent",
				zap.String("outbox_id", ev.ID),
				zap.Error(err))
		}
		util.OutboxRelayedTotal.WithLabelValues("sent").Inc()
		return true
	}

	result := "retry"
	if ev.Attempts+1 >= r.cfg.MaxAttempts {
		result = "failed"
	}
	util.OutboxRelayedTotal.WithLabelValues(result).Inc()

	if err := r.store.MarkOutboxAttempt(ctx, ev.ID, res.Err.Error(), r.cfg.MaxAttempts); err != nil {
		r.logger.Error("Failed to record outbox attempt",
			zap.String("outbox_id", ev.ID),
			zap.Error(err))
	}
	r.logger.Warn("Outbox event still undeliverable",
		zap.String("outbox_id", ev.ID),
		zap.String("event_type", string(ev.EventType)),
		zap.Int("attempt", ev.Attempts+1),
		zap.String("result", result),
		zap.Error(res.Err))
	return false
}
