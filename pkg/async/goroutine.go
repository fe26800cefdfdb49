package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/platinummonkey/quill/pkg/observability"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrPoolShutDown is returned when submitting to a pool that is shutting down
	ErrPoolShutDown = errors.New("worker pool shut down")
	// ErrQueueFull is returned by TrySubmit when every queue slot is taken
	ErrQueueFull = errors.New("worker pool queue full")
)

// Task is a unit of background work
type Task func(ctx context.Context) error

// SafeGo executes fn in a goroutine with panic recovery, a timeout and error
// logging. Use it instead of a bare `go func()` for fire-and-forget work.
//
//	SafeGo(ctx, logger, 5*time.Second, "record click", func(ctx context.Context) error {
//	    return recorder.RecordClick(ctx, id)
//	})
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn Task) {
	log := logger.OrDefault().WithField("task", taskName)
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()
		defer observability.RecoverPanic(log, taskName)

		if err := fn(ctx); err != nil {
			log.WithError(err).Warn("background task failed")
		}
	}()
}

// WorkerPool manages a fixed set of workers consuming a bounded queue.
// Task errors and panics are logged; they never stop a worker.
type WorkerPool struct {
	name    string
	timeout time.Duration
	logger  *observability.Logger

	workCh chan Task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewWorkerPool starts workers goroutines sharing a queue of queueSize tasks.
// Each task runs with its own timeout derived from ctx.
//
//	pool := NewWorkerPool(ctx, 8, 1024, "view recorder", 10*time.Second, logger)
//	defer pool.Shutdown(5 * time.Second)
func NewWorkerPool(ctx context.Context, workers, queueSize int, name string, timeout time.Duration, logger *observability.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < workers {
		queueSize = workers * 2
	}
	ctx, cancel := context.WithCancel(ctx)

	p := &WorkerPool{
		name:    name,
		timeout: timeout,
		logger:  logger.OrDefault().WithField("pool", name),
		workCh:  make(chan Task, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	return p
}

// Submit queues fn, blocking while the queue is full
func (p *WorkerPool) Submit(fn Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolShutDown
	}

	select {
	case p.workCh <- fn:
		return nil
	case <-p.ctx.Done():
		return ErrPoolShutDown
	}
}

// TrySubmit queues fn without blocking
func (p *WorkerPool) TrySubmit(fn Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolShutDown
	}

	select {
	case p.workCh <- fn:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued tasks not yet picked up
func (p *WorkerPool) Pending() int {
	return len(p.workCh)
}

// Shutdown stops accepting work and waits up to timeout for queued tasks to
// drain. On timeout the remaining tasks are cancelled.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.workCh)
		p.mu.Unlock()

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(timeout):
			p.shutdownErr = fmt.Errorf("worker pool %s shutdown timed out after %v", p.name, timeout)
		}
		p.cancel()
	})
	return p.shutdownErr
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case fn, ok := <-p.workCh:
			if !ok {
				return
			}
			p.run(id, fn)
		}
	}
}

func (p *WorkerPool) run(id int, fn Task) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	defer observability.RecoverPanic(p.logger.WithField("worker", id), p.name)

	if err := fn(ctx); err != nil {
		p.logger.WithField("worker", id).WithError(err).Warn("task failed")
	}
}

// Batch processes items concurrently with at most workers in flight and returns
// every error encountered. One failing item never stops the others.
//
//	errs := Batch(ctx, ids, 4, 5*time.Second, func(ctx context.Context, id uuid.UUID) error {
//	    return reconcileOne(ctx, id)
//	})
func Batch[T any](ctx context.Context, items []T, workers int, timeout time.Duration,
	fn func(context.Context, T) error) []error {

	if workers < 1 {
		workers = 1
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(workers)

	for _, item := range items {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic: %v", r)
				}
				if err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}()

			itemCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return fn(itemCtx, item)
		})
	}

	_ = g.Wait()
	return errs
}
