package cache

import (
	"context"
	"time"
)

// Tiered reads through a local L1 to a shared L2. L1 entries live for at most
// l1TTL so instances converge on the shared copy quickly.
type Tiered struct {
	l1    *LocalCache
	l2    Cache
	l1TTL time.Duration
}

// NewTiered layers a local cache over a shared one
func NewTiered(l1 *LocalCache, l2 Cache, l1TTL time.Duration) *Tiered {
	return &Tiered{l1: l1, l2: l2, l1TTL: l1TTL}
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, _ := t.l1.Get(ctx, key); ok {
		return v, true, nil
	}
	v, ok, err := t.l2.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = t.l1.Set(ctx, key, v, t.l1TTL)
	return v, true, nil
}

func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	l1TTL := t.l1TTL
	if ttl > 0 && ttl < l1TTL {
		l1TTL = ttl
	}
	_ = t.l1.Set(ctx, key, value, l1TTL)
	return t.l2.Set(ctx, key, value, ttl)
}

func (t *Tiered) Delete(ctx context.Context, key string) error {
	_ = t.l1.Delete(ctx, key)
	return t.l2.Delete(ctx, key)
}
