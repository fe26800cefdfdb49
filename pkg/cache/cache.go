// Package cache is the read cache in front of primary post storage. Entries are
// opaque serialized bytes with a TTL; nothing is invalidated on write.
package cache

import (
	"context"
	"time"
)

const (
	// ListKey holds the serialized list of every published post
	ListKey = "post_list"
	// DetailKeyPrefix prefixes the per-slug detail entries
	DetailKeyPrefix = "post_detail:"
	// DefaultTTL applies to both read paths
	DefaultTTL = 5 * time.Minute
)

// DetailKey returns the cache key of a post's detail entry
func DetailKey(slug string) string {
	return DetailKeyPrefix + slug
}

// Cache stores serialized responses
type Cache interface {
	// Get returns the entry and whether it was present
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
