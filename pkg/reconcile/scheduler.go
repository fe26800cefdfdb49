package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/quill/pkg/async"
	"github.com/platinummonkey/quill/pkg/observability"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule is the reconcile cadence when none is configured
const DefaultSchedule = "@every 5m"

// Scheduler triggers jobs on cron schedules. A trigger only enqueues the job
// on the worker pool, so a run that overruns its period may overlap the next.
type Scheduler struct {
	cron   *cron.Cron
	pool   *async.WorkerPool
	logger *observability.Logger
}

// NewScheduler creates a scheduler that runs jobs on pool. cronLogger may be
// nil to discard cron's own logging.
func NewScheduler(pool *async.WorkerPool, logger *observability.Logger, cronLogger cron.Logger) *Scheduler {
	if cronLogger == nil {
		cronLogger = cron.DiscardLogger
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.Recover(cronLogger))),
		pool:   pool,
		logger: logger.OrDefault().WithField("component", "scheduler"),
	}
}

// Add registers a named job on a cron spec
func (s *Scheduler) Add(spec, name string, job async.Task) error {
	log := s.logger.WithField("job", name)
	_, err := s.cron.AddFunc(spec, func() {
		if err := s.pool.TrySubmit(job); err != nil {
			if errors.Is(err, async.ErrQueueFull) {
				log.Warn("job queue full, skipping trigger")
				return
			}
			log.WithError(err).Warn("failed to enqueue job")
			return
		}
		log.Debug("job enqueued")
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	return nil
}

// AddReconcile registers a reconcile pass on spec
func (s *Scheduler) AddReconcile(spec string, r *Reconciler) error {
	if spec == "" {
		spec = DefaultSchedule
	}
	return s.Add(spec, "reconcile", func(ctx context.Context) error {
		_, err := r.Run(ctx)
		return err
	})
}

// Start begins triggering jobs
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.WithField("jobs", len(s.cron.Entries())).Info("scheduler started")
}

// Stop stops triggering and waits up to timeout for queued jobs to finish
func (s *Scheduler) Stop(timeout time.Duration) error {
	<-s.cron.Stop().Done()
	return s.pool.Shutdown(timeout)
}
