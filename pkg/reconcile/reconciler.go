package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/quill/pkg/analytics"
	"github.com/platinummonkey/quill/pkg/async"
	"github.com/platinummonkey/quill/pkg/counter"
	"github.com/platinummonkey/quill/pkg/observability"
)

// PostChecker reports whether a post still exists in primary storage
type PostChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// ImpressionWriter adds drained impressions to the durable record,
// creating it when absent
type ImpressionWriter interface {
	AddImpressions(ctx context.Context, postID uuid.UUID, delta int64) (*analytics.PostAnalytics, error)
}

// Options tunes a Reconciler
type Options struct {
	// Workers is the number of posts reconciled concurrently
	Workers int
	// BatchSize is how many pending posts are collected before a batch runs
	BatchSize int
	// KeyTimeout bounds the work done for a single post
	KeyTimeout time.Duration
}

// DefaultOptions returns the options used when none are given
func DefaultOptions() Options {
	return Options{Workers: 4, BatchSize: 256, KeyTimeout: 5 * time.Second}
}

// Result summarizes one pass
type Result struct {
	Scanned     int   `json:"scanned"`
	Merged      int   `json:"merged"`
	Impressions int64 `json:"impressions"`
	Stale       int   `json:"stale"`
	Empty       int   `json:"empty"`
	Failed      int   `json:"failed"`
}

func (r *Result) add(o outcome) {
	r.Scanned++
	switch o.kind {
	case observability.OutcomeMerged:
		r.Merged++
		r.Impressions += o.delta
	case observability.OutcomeStale:
		r.Stale++
	case observability.OutcomeEmpty:
		r.Empty++
	default:
		r.Failed++
	}
}

type outcome struct {
	kind  string
	delta int64
}

// Reconciler runs reconciliation passes
type Reconciler struct {
	counters  counter.Store
	posts     PostChecker
	analytics ImpressionWriter
	opts      Options
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewReconciler creates a reconciler. metrics may be nil.
func NewReconciler(counters counter.Store, posts PostChecker, store ImpressionWriter, opts Options,
	logger *observability.Logger, metrics *observability.Metrics) *Reconciler {
	def := DefaultOptions()
	if opts.Workers < 1 {
		opts.Workers = def.Workers
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = def.BatchSize
	}
	if opts.KeyTimeout <= 0 {
		opts.KeyTimeout = def.KeyTimeout
	}
	return &Reconciler{
		counters:  counters,
		posts:     posts,
		analytics: store,
		opts:      opts,
		logger:    logger.OrDefault().WithField("component", "reconciler"),
		metrics:   metrics,
	}
}

// Run performs one pass over every pending post
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	var (
		res   Result
		mu    sync.Mutex
		batch = make([]uuid.UUID, 0, r.opts.BatchSize)
	)

	flush := func() {
		_ = async.Batch(ctx, batch, r.opts.Workers, r.opts.KeyTimeout, func(ctx context.Context, id uuid.UUID) error {
			o := r.reconcileOne(ctx, id)
			r.metrics.ReconcileKey(o.kind)
			mu.Lock()
			res.add(o)
			mu.Unlock()
			return nil
		})
		batch = batch[:0]
	}

	it := r.counters.Pending(ctx)
	for it.Next(ctx) {
		batch = append(batch, it.Val())
		if len(batch) >= r.opts.BatchSize {
			flush()
		}
	}
	if len(batch) > 0 {
		flush()
	}

	var err error
	if iterErr := it.Err(); iterErr != nil {
		err = fmt.Errorf("failed to enumerate pending counters: %w", iterErr)
	}
	r.metrics.ReconcileRun(time.Since(start), err)

	log := r.logger.WithFields(map[string]interface{}{
		"scanned":     res.Scanned,
		"merged":      res.Merged,
		"impressions": res.Impressions,
		"stale":       res.Stale,
		"empty":       res.Empty,
		"failed":      res.Failed,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		log.WithError(err).Error("reconcile pass aborted")
		return res, err
	}
	log.Info("reconcile pass complete")
	return res, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, id uuid.UUID) outcome {
	log := r.logger.WithField("post_id", id.String())

	exists, err := r.posts.Exists(ctx, id)
	if err != nil {
		log.WithError(err).Warn("failed to check post existence")
		return outcome{kind: observability.OutcomeFailed}
	}
	if !exists {
		if err := r.counters.Discard(ctx, id); err != nil {
			log.WithError(err).Warn("failed to discard counter of deleted post")
			return outcome{kind: observability.OutcomeFailed}
		}
		log.Debug("discarded counter of deleted post")
		return outcome{kind: observability.OutcomeStale}
	}

	delta, err := r.counters.ReadAndClear(ctx, id)
	if err != nil {
		log.WithError(err).Warn("failed to drain counter")
		return outcome{kind: observability.OutcomeFailed}
	}
	if delta == 0 {
		return outcome{kind: observability.OutcomeEmpty}
	}

	rec, err := r.analytics.AddImpressions(ctx, id, delta)
	if err != nil {
		// the counter is already drained; this delta is lost
		log.WithError(err).WithField("lost_impressions", delta).Error("failed to persist impressions")
		return outcome{kind: observability.OutcomeFailed}
	}
	r.metrics.ReconcileMerged(delta)
	log.WithFields(map[string]interface{}{
		"delta":       delta,
		"impressions": rec.Impressions,
	}).Debug("merged impressions")
	return outcome{kind: observability.OutcomeMerged, delta: delta}
}
