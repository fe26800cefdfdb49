package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type localEntry struct {
	value     []byte
	expiresAt time.Time
}

// LocalCache is an in-process LRU. The LRU evicts after maxTTL; shorter
// per-entry TTLs are checked on read.
type LocalCache struct {
	lru *expirable.LRU[string, localEntry]
	now func() time.Time
}

// NewLocalCache creates an in-process cache holding up to size entries
func NewLocalCache(size int, maxTTL time.Duration) *LocalCache {
	if size <= 0 {
		size = 1024
	}
	if maxTTL <= 0 {
		maxTTL = DefaultTTL
	}
	return &LocalCache{
		lru: expirable.NewLRU[string, localEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (c *LocalCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *LocalCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := localEntry{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.lru.Add(key, e)
	return nil
}

func (c *LocalCache) Delete(ctx context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Len returns the number of entries held
func (c *LocalCache) Len() int {
	return c.lru.Len()
}
