package counter

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for development and tests
type MemoryStore struct {
	mu     sync.Mutex
	counts map[uuid.UUID]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[uuid.UUID]int64)}
}

func (s *MemoryStore) Increment(ctx context.Context, ids ...uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.counts[id]++
	}
	return nil
}

func (s *MemoryStore) ReadAndClear(ctx context.Context, id uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.counts[id]
	delete(s.counts, id)
	return n, nil
}

func (s *MemoryStore) Discard(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, id)
	return nil
}

// Pending snapshots the current ids; counters drained after the snapshot are
// still yielded and read back as 0.
func (s *MemoryStore) Pending(ctx context.Context) PendingIterator {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.counts))
	for id, n := range s.counts {
		if n > 0 {
			ids = append(ids, id)
		}
	}
	return &sliceIterator{ids: ids, pos: -1}
}

// Peek returns the pending count without clearing it
func (s *MemoryStore) Peek(id uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[id]
}

// Len returns the number of pending counters
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counts)
}

type sliceIterator struct {
	ids []uuid.UUID
	pos int
	err error
}

func (i *sliceIterator) Next(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		i.err = err
		return false
	}
	i.pos++
	return i.pos < len(i.ids)
}

func (i *sliceIterator) Val() uuid.UUID { return i.ids[i.pos] }

func (i *sliceIterator) Err() error { return i.err }
