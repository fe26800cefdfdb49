package recorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/quill/pkg/analytics"
	"github.com/platinummonkey/quill/pkg/blog"
	"github.com/platinummonkey/quill/pkg/observability"
)

// PostResolver resolves a published post by slug
type PostResolver interface {
	GetBySlug(ctx context.Context, slug string) (*blog.Post, error)
}

// Store is the part of the analytics store the recorder writes to
type Store interface {
	IncrementClicks(ctx context.Context, postID uuid.UUID) (*analytics.PostAnalytics, error)
	RecordView(ctx context.Context, postID uuid.UUID, ip string, window time.Duration) (bool, *analytics.PostAnalytics, error)
}

// Recorder applies views and clicks to durable analytics
type Recorder struct {
	posts   PostResolver
	store   Store
	window  time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRecorder creates a recorder. A zero dedupWindow counts one view per
// client IP per post, ever.
func NewRecorder(posts PostResolver, store Store, dedupWindow time.Duration,
	logger *observability.Logger, metrics *observability.Metrics) *Recorder {
	return &Recorder{
		posts:   posts,
		store:   store,
		window:  dedupWindow,
		logger:  logger.OrDefault().WithField("component", "recorder"),
		metrics: metrics,
	}
}

// RecordView counts a view of slug from clientIP unless the same IP already
// viewed the post within the dedup window. An unknown slug is logged and
// dropped.
func (r *Recorder) RecordView(ctx context.Context, slug, clientIP string) error {
	log := r.logger.WithFields(map[string]interface{}{"slug": slug, "client_ip": clientIP})

	post, err := r.posts.GetBySlug(ctx, slug)
	if errors.Is(err, blog.ErrNotFound) {
		r.metrics.ViewTask(observability.OutcomeDropped)
		log.Warn("dropping view of unknown post")
		return nil
	}
	if err != nil {
		r.metrics.ViewTask(observability.OutcomeFailed)
		return fmt.Errorf("failed to resolve post %q: %w", slug, err)
	}

	counted, rec, err := r.store.RecordView(ctx, post.ID, clientIP, r.window)
	if err != nil {
		r.metrics.ViewTask(observability.OutcomeFailed)
		return err
	}
	if !counted {
		r.metrics.ViewTask(observability.OutcomeDuplicate)
		log.Debug("repeat view not counted")
		return nil
	}
	r.metrics.ViewTask(observability.OutcomeCounted)
	log.WithField("views", rec.Views).Debug("view recorded")
	return nil
}

// RecordClick adds a click to a post and returns its click total
func (r *Recorder) RecordClick(ctx context.Context, postID uuid.UUID) (int64, error) {
	rec, err := r.store.IncrementClicks(ctx, postID)
	if err != nil {
		return 0, err
	}
	r.metrics.ClickRecorded()
	return rec.Clicks, nil
}
