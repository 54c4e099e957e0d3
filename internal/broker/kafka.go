package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ecommerce-platform/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrClientClosed is returned when a closed Client is asked for a connection
var ErrClientClosed = errors.New("kafka client closed")

// MessageWriter is the subset of *kafka.Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageReader is the subset of *kafka.Reader the dispatcher needs
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// WriterSource hands out a connected writer, connecting on first use
type WriterSource interface {
	Writer(ctx context.Context) (MessageWriter, error)
}

// ClientConfig holds broker connection settings
type ClientConfig struct {
	Brokers          []string
	ClientID         string
	AutoCreateTopics bool
}

// Client owns the process's broker connection. It is created once, passed to
// the publisher and dispatchers, and closed explicitly on shutdown.
type Client struct {
	cfg    ClientConfig
	dialer *kafka.Dialer
	logger *zap.Logger

	probe     func(ctx context.Context) error
	newWriter func() MessageWriter

	mu     sync.Mutex
	writer MessageWriter
	closed bool
}

// ClientOption customizes a Client
type ClientOption func(*Client)

// WithWriterFactory replaces the kafka.Writer constructor
func WithWriterFactory(fn func() MessageWriter) ClientOption {
	return func(c *Client) { c.newWriter = fn }
}

// WithProbe replaces the reachability check run by Connect
func WithProbe(fn func(ctx context.Context) error) ClientOption {
	return func(c *Client) { c.probe = fn }
}

// NewClient creates a Client. No network activity happens until Connect or Writer is called.
func NewClient(cfg ClientConfig, opts ...ClientOption) *Client {
	c := &Client{
		cfg: cfg,
		dialer: &kafka.Dialer{
			ClientID:  cfg.ClientID,
			Timeout:   10 * time.Second,
			DualStack: true,
		},
		logger: util.GetLogger(),
	}
	c.probe = c.dialAny
	c.newWriter = c.defaultWriter

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) defaultWriter() MessageWriter {
	return &kafka.Writer{
		Addr:                   kafka.TCP(c.cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		AllowAutoTopicCreation: c.cfg.AutoCreateTopics,
		Transport: &kafka.Transport{
			ClientID:    c.cfg.ClientID,
			DialTimeout: c.dialer.Timeout,
		},
	}
}

// dialAny succeeds when at least one broker accepts a connection
func (c *Client) dialAny(ctx context.Context) error {
	var lastErr error
	for _, addr := range c.cfg.Brokers {
		conn, err := c.dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("no brokers configured")
	}
	return lastErr
}

// Connect verifies a broker is reachable and prepares the shared writer.
// Calling it again after a successful connect is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	if c.writer != nil {
		return nil
	}

	if err := c.probe(ctx); err != nil {
		return fmt.Errorf("failed to connect to kafka %v: %w", c.cfg.Brokers, err)
	}

	c.writer = c.newWriter()
	c.logger.Info("Kafka client connected",
		zap.Strings("brokers", c.cfg.Brokers),
		zap.String("client_id", c.cfg.ClientID))
	return nil
}

// Writer returns the shared writer, connecting first if needed
func (c *Client) Writer(ctx context.Context) (MessageWriter, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writer == nil {
		return nil, ErrClientClosed
	}
	return c.writer, nil
}

// Connected reports whether Connect has succeeded and Close has not been called
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writer != nil
}

// NewReader creates a consumer-group reader subscribed to topics.
// Offsets are committed explicitly by the caller.
func (c *Client) NewReader(groupID string, topics []string) MessageReader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.cfg.Brokers,
		GroupID:        groupID,
		GroupTopics:    topics,
		Dialer:         c.dialer,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0,
	})
}

// Close flushes and closes the shared writer
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.writer == nil {
		return nil
	}

	err := c.writer.Close()
	c.writer = nil
	c.logger.Info("Kafka client closed")
	return err
}
