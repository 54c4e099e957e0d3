package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ShutdownManager runs registered cleanup functions in reverse registration
// order, each with its own timeout
type ShutdownManager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	funcs []shutdownFunc
	done  bool
}

type shutdownFunc struct {
	name string
	fn   func(context.Context) error
}

func NewShutdownManager(timeout time.Duration, logger *zap.Logger) *ShutdownManager {
	return &ShutdownManager{timeout: timeout, logger: logger}
}

// Add registers fn. Resources should be added in the order they were opened.
func (m *ShutdownManager) Add(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, shutdownFunc{name: name, fn: fn})
}

// Shutdown runs every registered function once. Later calls do nothing.
func (m *ShutdownManager) Shutdown() {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return
	}
	m.done = true
	funcs := append([]shutdownFunc(nil), m.funcs...)
	m.mu.Unlock()

	for i := len(funcs) - 1; i >= 0; i-- {
		f := funcs[i]

		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		start := time.Now()
		err := f.fn(ctx)
		cancel()

		if err != nil {
			m.logger.Error("Shutdown step failed",
				zap.String("name", f.name),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err))
			continue
		}
		m.logger.Info("Shutdown step completed",
			zap.String("name", f.name),
			zap.Duration("duration", time.Since(start)))
	}
}

func closer(c interface{ Close() error }) func(context.Context) error {
	return func(context.Context) error { return c.Close() }
}
