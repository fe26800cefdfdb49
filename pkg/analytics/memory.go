package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type viewKey struct {
	postID uuid.UUID
	ip     string
}

// MemoryStore is an in-process Store used by tests and single-node setups
type MemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*PostAnalytics
	views   map[viewKey]time.Time
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory analytics store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[uuid.UUID]*PostAnalytics),
		views:   make(map[viewKey]time.Time),
		now:     time.Now,
	}
}

func (m *MemoryStore) getOrCreateLocked(postID uuid.UUID) *PostAnalytics {
	rec, ok := m.records[postID]
	if !ok {
		rec = &PostAnalytics{PostID: postID, UpdatedAt: m.now().UTC()}
		m.records[postID] = rec
	}
	return rec
}

func (m *MemoryStore) touchLocked(rec *PostAnalytics) *PostAnalytics {
	rec.ClickThroughRate = ClickThroughRate(rec.Impressions, rec.Clicks)
	rec.UpdatedAt = m.now().UTC()
	out := *rec
	return &out
}

func (m *MemoryStore) Get(ctx context.Context, postID uuid.UUID) (*PostAnalytics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[postID]
	if !ok {
		return nil, ErrNoRecord
	}
	out := *rec
	return &out, nil
}

func (m *MemoryStore) GetOrCreate(ctx context.Context, postID uuid.UUID) (*PostAnalytics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := *m.getOrCreateLocked(postID)
	return &out, nil
}

func (m *MemoryStore) AddImpressions(ctx context.Context, postID uuid.UUID, delta int64) (*PostAnalytics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.getOrCreateLocked(postID)
	rec.Impressions += delta
	return m.touchLocked(rec), nil
}

func (m *MemoryStore) IncrementClicks(ctx context.Context, postID uuid.UUID) (*PostAnalytics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.getOrCreateLocked(postID)
	rec.Clicks++
	return m.touchLocked(rec), nil
}

func (m *MemoryStore) RecordView(ctx context.Context, postID uuid.UUID, ip string, window time.Duration) (bool, *PostAnalytics, error) {
	if err := ctx.Err(); err != nil {
		return false, nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	key := viewKey{postID: postID, ip: ip}
	last, seen := m.views[key]
	counted := !seen || (window > 0 && !last.After(now.Add(-window)))

	rec := m.getOrCreateLocked(postID)
	if !counted {
		out := *rec
		return false, &out, nil
	}
	m.views[key] = now
	rec.Views++
	return true, m.touchLocked(rec), nil
}

func (m *MemoryStore) Reset(ctx context.Context, postID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[postID]; ok {
		*rec = PostAnalytics{PostID: postID, UpdatedAt: m.now().UTC()}
	}
	for k := range m.views {
		if k.postID == postID {
			delete(m.views, k)
		}
	}
	return nil
}
