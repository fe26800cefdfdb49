package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetMissing(t *testing.T) {
	_, err := NewMemoryStore().Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNoRecord)
}

func TestMemoryStore_ClickOnNewRecord(t *testing.T) {
	store := NewMemoryStore()
	id := uuid.New()

	rec, err := store.IncrementClicks(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Clicks)
	assert.Zero(t, rec.ClickThroughRate)
}

func TestMemoryStore_CTRFollowsCounters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id := uuid.New()

	_, err := store.AddImpressions(ctx, id, 4)
	require.NoError(t, err)
	rec, err := store.IncrementClicks(ctx, id)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, rec.ClickThroughRate, 1e-9)

	rec, err = store.AddImpressions(ctx, id, 4)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, rec.ClickThroughRate, 1e-9)
}

func TestMemoryStore_ConcurrentClicks(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.IncrementClicks(ctx, id)
		}()
	}
	wg.Wait()

	rec, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(50), rec.Clicks)
}

func TestMemoryStore_RecordViewDedup(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id := uuid.New()

	counted, _, err := store.RecordView(ctx, id, "10.0.0.1", 0)
	require.NoError(t, err)
	assert.True(t, counted)

	counted, rec, err := store.RecordView(ctx, id, "10.0.0.1", 0)
	require.NoError(t, err)
	assert.False(t, counted)
	assert.Equal(t, int64(1), rec.Views)

	counted, rec, err = store.RecordView(ctx, id, "10.0.0.2", 0)
	require.NoError(t, err)
	assert.True(t, counted)
	assert.Equal(t, int64(2), rec.Views)
}

func TestMemoryStore_RecordViewWindow(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id := uuid.New()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	counted, _, _ := store.RecordView(ctx, id, "10.0.0.1", time.Hour)
	assert.True(t, counted)

	now = now.Add(30 * time.Minute)
	counted, _, _ = store.RecordView(ctx, id, "10.0.0.1", time.Hour)
	assert.False(t, counted)

	now = now.Add(31 * time.Minute)
	counted, rec, _ := store.RecordView(ctx, id, "10.0.0.1", time.Hour)
	assert.True(t, counted)
	assert.Equal(t, int64(2), rec.Views)
}

func TestMemoryStore_Reset(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id := uuid.New()

	_, _ = store.AddImpressions(ctx, id, 10)
	_, _, _ = store.RecordView(ctx, id, "10.0.0.1", 0)
	require.NoError(t, store.Reset(ctx, id))

	rec, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, rec.Impressions)
	assert.Zero(t, rec.Views)

	counted, _, _ := store.RecordView(ctx, id, "10.0.0.1", 0)
	assert.True(t, counted)
}
