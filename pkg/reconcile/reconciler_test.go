package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/platinummonkey/quill/pkg/analytics"
	"github.com/platinummonkey/quill/pkg/counter"
	"github.com/platinummonkey/quill/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePosts struct {
	mu      sync.Mutex
	exists  map[uuid.UUID]bool
	failFor map[uuid.UUID]error
}

func newFakePosts(ids ...uuid.UUID) *fakePosts {
	p := &fakePosts{exists: map[uuid.UUID]bool{}, failFor: map[uuid.UUID]error{}}
	for _, id := range ids {
		p.exists[id] = true
	}
	return p
}

func (p *fakePosts) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failFor[id]; err != nil {
		return false, err
	}
	return p.exists[id], nil
}

// failingWriter fails AddImpressions for selected posts
type failingWriter struct {
	*analytics.MemoryStore
	fail uuid.UUID
}

func (w *failingWriter) AddImpressions(ctx context.Context, id uuid.UUID, delta int64) (*analytics.PostAnalytics, error) {
	if id == w.fail {
		return nil, errors.New("connection reset by peer")
	}
	return w.MemoryStore.AddImpressions(ctx, id, delta)
}

func newTestReconciler(c counter.Store, posts PostChecker, w ImpressionWriter) *Reconciler {
	return NewReconciler(c, posts, w, Options{Workers: 4, BatchSize: 2}, observability.NopLogger(), nil)
}

func TestRun_ConcurrentIncrementsMergeExactly(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	counters := counter.NewRedisStore(client, 10)
	store := analytics.NewMemoryStore()
	a, b := uuid.New(), uuid.New()

	const n = 150
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids := []uuid.UUID{a}
			if i%3 == 0 {
				ids = append(ids, b)
			}
			assert.NoError(t, counters.Increment(ctx, ids...))
		}(i)
	}
	wg.Wait()

	res, err := newTestReconciler(counters, newFakePosts(a, b), store).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Merged)
	assert.Equal(t, int64(n+n/3), res.Impressions)

	recA, err := store.Get(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(n), recA.Impressions)
	recB, err := store.Get(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, int64(n/3), recB.Impressions)

	assert.False(t, mr.Exists(counter.Key(a)))
	assert.False(t, mr.Exists(counter.PendingSetKey))
}

func TestRun_TwiceAppliesOnce(t *testing.T) {
	ctx := context.Background()
	counters := counter.NewMemoryStore()
	store := analytics.NewMemoryStore()
	id := uuid.New()
	require.NoError(t, counters.Increment(ctx, id, id, id))

	r := newTestReconciler(counters, newFakePosts(id), store)
	first, err := r.Run(ctx)
	require.NoError(t, err)
	second, err := r.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(3), first.Impressions)
	assert.Zero(t, second.Impressions)
	rec, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.Impressions)
}

func TestRun_OverlappingPassesNeverDoubleApply(t *testing.T) {
	ctx := context.Background()
	counters := counter.NewMemoryStore()
	store := analytics.NewMemoryStore()

	ids := make([]uuid.UUID, 20)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, counters.Increment(ctx, ids[i], ids[i]))
	}
	r := newTestReconciler(counters, newFakePosts(ids...), store)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Run(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, id := range ids {
		rec, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(2), rec.Impressions)
	}
}

func TestRun_StalePostDiscardedWithoutRecord(t *testing.T) {
	ctx := context.Background()
	counters := counter.NewMemoryStore()
	store := analytics.NewMemoryStore()
	gone := uuid.New()
	require.NoError(t, counters.Increment(ctx, gone))

	res, err := newTestReconciler(counters, newFakePosts(), store).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stale)
	assert.Zero(t, counters.Len())

	_, err = store.Get(ctx, gone)
	assert.ErrorIs(t, err, analytics.ErrNoRecord)
}

func TestRun_PerPostFailuresIsolated(t *testing.T) {
	ctx := context.Background()
	counters := counter.NewMemoryStore()
	store := analytics.NewMemoryStore()
	bad, unknown, good := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, counters.Increment(ctx, bad, unknown, good))

	posts := newFakePosts(bad, good)
	posts.failFor[unknown] = errors.New("primary unavailable")

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	r := NewReconciler(counters, posts, &failingWriter{MemoryStore: store, fail: bad},
		Options{Workers: 1, BatchSize: 1}, observability.NopLogger(), metrics)

	res, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 1, res.Merged)

	rec, err := store.Get(ctx, good)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Impressions)

	// an existence failure leaves the counter for the next pass
	assert.Equal(t, int64(1), counters.Peek(unknown))

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ReconcileKeysTotal.WithLabelValues(observability.OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ReconcileRunsTotal.WithLabelValues("ok")))
}

func TestRun_EnumerationFailureReturned(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	_, err := newTestReconciler(counter.NewRedisStore(client, 10), newFakePosts(), analytics.NewMemoryStore()).
		Run(context.Background())
	assert.Error(t, err)
}

func TestRun_NothingPending(t *testing.T) {
	res, err := newTestReconciler(counter.NewMemoryStore(), newFakePosts(), analytics.NewMemoryStore()).
		Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}
