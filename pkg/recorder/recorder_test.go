package recorder

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/platinummonkey/quill/pkg/analytics"
	"github.com/platinummonkey/quill/pkg/blog"
	"github.com/platinummonkey/quill/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePosts map[string]uuid.UUID

func (f fakePosts) GetBySlug(ctx context.Context, slug string) (*blog.Post, error) {
	if slug == "explode" {
		return nil, errors.New("connection refused")
	}
	id, ok := f[slug]
	if !ok {
		return nil, blog.ErrNotFound
	}
	return &blog.Post{ID: id, Slug: slug, Status: blog.StatusPublished}, nil
}

func newTestRecorder(posts fakePosts) (*Recorder, *analytics.MemoryStore, *observability.Metrics) {
	store := analytics.NewMemoryStore()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return NewRecorder(posts, store, 0, observability.NopLogger(), metrics), store, metrics
}

func TestRecordView_SameIPCountedOnce(t *testing.T) {
	id := uuid.New()
	rec, store, metrics := newTestRecorder(fakePosts{"post-1": id})
	ctx := context.Background()

	require.NoError(t, rec.RecordView(ctx, "post-1", "203.0.113.5"))
	require.NoError(t, rec.RecordView(ctx, "post-1", "203.0.113.5"))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Views)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ViewTasksTotal.WithLabelValues(observability.OutcomeDuplicate)))
}

func TestRecordView_DistinctIPsCountedTwice(t *testing.T) {
	id := uuid.New()
	rec, store, _ := newTestRecorder(fakePosts{"post-1": id})
	ctx := context.Background()

	require.NoError(t, rec.RecordView(ctx, "post-1", "203.0.113.5"))
	require.NoError(t, rec.RecordView(ctx, "post-1", "203.0.113.6"))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Views)
}

func TestRecordView_UnknownSlugDropped(t *testing.T) {
	rec, _, metrics := newTestRecorder(fakePosts{})

	assert.NoError(t, rec.RecordView(context.Background(), "ghost", "203.0.113.5"))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ViewTasksTotal.WithLabelValues(observability.OutcomeDropped)))
}

func TestRecordView_ResolveError(t *testing.T) {
	rec, _, _ := newTestRecorder(fakePosts{})
	assert.Error(t, rec.RecordView(context.Background(), "explode", "203.0.113.5"))
}

func TestRecordClick_CreatesRecord(t *testing.T) {
	rec, store, metrics := newTestRecorder(fakePosts{})
	ctx := context.Background()
	id := uuid.New()

	clicks, err := rec.RecordClick(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), clicks)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Clicks)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ClicksTotal))
}

func TestRecordClick_RecomputesCTR(t *testing.T) {
	rec, store, _ := newTestRecorder(fakePosts{})
	ctx := context.Background()
	id := uuid.New()

	_, err := store.AddImpressions(ctx, id, 4)
	require.NoError(t, err)
	_, err = rec.RecordClick(ctx, id)
	require.NoError(t, err)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, got.ClickThroughRate, 1e-9)
}
