package store

import (
	"context"
	"fmt"

	"ecommerce-platform/internal/models"
)

// EnqueueOutbox stores an envelope whose publish failed
func (s *Store) EnqueueOutbox(ctx context.Context, ev *models.OutboxEvent) error {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO outbox_events (id, topic, event_type, message_key, payload, status, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		ev.ID, ev.Topic, ev.EventType, ev.MessageKey, ev.Payload, models.OutboxStatusPending, ev.LastError,
	).Scan(&ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue outbox event: %w", err)
	}
	ev.Status = models.OutboxStatusPending
	return nil
}

// PendingOutbox returns up to limit pending rows, oldest first
func (s *Store) PendingOutbox(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	var events []models.OutboxEvent
	err := s.db.SelectContext(ctx, &events, `
		SELECT id, topic, event_type, message_key, payload, status, attempts, last_error, created_at, published_at
		FROM outbox_events
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2`,
		models.OutboxStatusPending, limit)
	return events, err
}

// MarkOutboxSent records a successful relay
func (s *Store) MarkOutboxSent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox_events SET status = $1, attempts = attempts + 1, published_at = NOW()
		WHERE id = $2`,
		models.OutboxStatusSent, id)
	return err
}

// MarkOutboxAttempt records a failed relay. The row stops being retried once
// it has been attempted maxAttempts times.
func (s *Store) MarkOutboxAttempt(ctx context.Context, id, lastError string, maxAttempts int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox_events
		SET attempts = attempts + 1,
		    last_error = $2,
		    status = CASE WHEN attempts + 1 >= $3 THEN $4 ELSE status END
		WHERE id = $1`,
		id, lastError, maxAttempts, models.OutboxStatusFailed)
	return err
}
