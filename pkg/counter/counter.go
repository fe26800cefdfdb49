// Package counter implements the fast, volatile store of pending impression
// counts. Counts accumulate here on the request path and are drained into
// durable analytics by the reconciler.
package counter

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

const (
	// KeyPrefix namespaces pending counters away from every other cached object
	KeyPrefix = "post:impressions:"
	// PendingSetKey indexes the posts that currently have a pending counter
	PendingSetKey = "post:impressions:pending"
)

// ErrUnavailable wraps failures talking to the backing store
var ErrUnavailable = errors.New("counter store unavailable")

// Store holds per-post pending impression counts.
//
// Increment and ReadAndClear are each atomic with respect to every other
// operation on the same post, which is the only synchronisation the
// reconciler relies on.
type Store interface {
	// Increment adds one pending impression for each id
	Increment(ctx context.Context, ids ...uuid.UUID) error
	// Pending enumerates posts with a non-zero pending counter. The enumeration
	// is lazy and approximate; calling Pending again restarts it.
	Pending(ctx context.Context) PendingIterator
	// ReadAndClear atomically returns the pending count and removes it.
	// An absent counter yields 0 and leaves nothing behind.
	ReadAndClear(ctx context.Context, id uuid.UUID) (int64, error)
	// Discard drops a pending counter without reading it
	Discard(ctx context.Context, id uuid.UUID) error
}

// PendingIterator walks pending post ids in the style of a Redis scan iterator
type PendingIterator interface {
	Next(ctx context.Context) bool
	Val() uuid.UUID
	Err() error
}

// Key returns the pending counter key for a post
func Key(id uuid.UUID) string {
	return KeyPrefix + id.String()
}

// ParseKey extracts the post id from a pending counter key
func ParseKey(key string) (uuid.UUID, error) {
	if !strings.HasPrefix(key, KeyPrefix) {
		return uuid.Nil, errors.New("not a pending impression key: " + key)
	}
	return uuid.Parse(strings.TrimPrefix(key, KeyPrefix))
}
