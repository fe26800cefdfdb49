package observability

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownFunc is a function to call during shutdown
type ShutdownFunc func(context.Context) error

type namedShutdown struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager runs registered shutdown steps in registration order once a
// termination signal arrives. Order matters: stop accepting requests first,
// then drain background work, then close stores.
type ShutdownManager struct {
	logger  *Logger
	timeout time.Duration

	mu    sync.Mutex
	steps []namedShutdown
	once  sync.Once
	err   error
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(logger *Logger, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		logger:  logger.OrDefault(),
		timeout: timeout,
	}
}

// Register adds a named shutdown step
func (sm *ShutdownManager) Register(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.steps = append(sm.steps, namedShutdown{name: name, fn: fn})
}

// WaitForSignal blocks until SIGINT/SIGTERM or ctx is done, then shuts down
func (sm *ShutdownManager) WaitForSignal(ctx context.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()
	sm.logger.Info("shutdown signal received")
	return sm.Shutdown()
}

// Shutdown runs every step once, each bounded by the shared timeout. Failures
// are logged and joined; later steps still run.
func (sm *ShutdownManager) Shutdown() error {
	sm.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
		defer cancel()

		sm.mu.Lock()
		steps := make([]namedShutdown, len(sm.steps))
		copy(steps, sm.steps)
		sm.mu.Unlock()

		var errs []error
		for _, step := range steps {
			log := sm.logger.WithField("step", step.name)
			if err := step.fn(ctx); err != nil {
				log.WithError(err).Error("shutdown step failed")
				errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
				continue
			}
			log.Debug("shutdown step complete")
		}

		sm.err = errors.Join(errs...)
		if sm.err == nil {
			sm.logger.Info("graceful shutdown complete")
		}
	})
	return sm.err
}
