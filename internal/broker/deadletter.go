package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ecommerce-platform/internal/models"

	"github.com/segmentio/kafka-go"
)

// DeadLetterMessage wraps a message the dispatcher could not handle
type DeadLetterMessage struct {
	OriginalTopic     string           `json:"originalTopic"`
	OriginalPartition int              `json:"originalPartition"`
	OriginalOffset    int64            `json:"originalOffset"`
	OriginalKey       string           `json:"originalKey"`
	OriginalValue     json.RawMessage  `json:"originalValue,omitempty"`
	RawValue          string           `json:"rawValue,omitempty"`
	EventType         models.EventKind `json:"eventType,omitempty"`
	ConsumerGroup     string           `json:"consumerGroup"`
	Error             string           `json:"error"`
	FailedAt          time.Time        `json:"failedAt"`
}

// DeadLetterPublisher writes failed messages to a single topic through the shared client
type DeadLetterPublisher struct {
	source WriterSource
	topic  string
	group  string
}

// NewDeadLetterPublisher creates a sink writing to topic
func NewDeadLetterPublisher(source WriterSource, topic, group string) *DeadLetterPublisher {
	return &DeadLetterPublisher{source: source, topic: topic, group: group}
}

// Send implements DeadLetterSink
func (p *DeadLetterPublisher) Send(ctx context.Context, msg kafka.Message, kind models.EventKind, cause error) error {
	errMsg := "unknown error"
	if cause != nil {
		errMsg = cause.Error()
	}

	dl := DeadLetterMessage{
		OriginalTopic:     msg.Topic,
		OriginalPartition: msg.Partition,
		OriginalOffset:    msg.Offset,
		OriginalKey:       string(msg.Key),
		EventType:         kind,
		ConsumerGroup:     p.group,
		Error:             errMsg,
		FailedAt:          time.Now().UTC(),
	}
	if json.Valid(msg.Value) {
		dl.OriginalValue = msg.Value
	} else {
		dl.RawValue = string(msg.Value)
	}

	value, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("failed to marshal dead-letter message: %w", err)
	}

	writer, err := p.source.Writer(ctx)
	if err != nil {
		return err
	}

	return writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   msg.Key,
		Value: value,
		Time:  time.Now(),
	})
}
