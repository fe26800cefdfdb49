package counter

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// readAndClearScript returns the pending count for KEYS[1], deletes it and
// removes ARGV[1] from the pending index KEYS[2], all in one atomic step.
var readAndClearScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[1])
if v then
	return tonumber(v) or 0
end
return 0
`)

// RedisStore keeps pending counters as plain Redis integers and tracks which
// posts have one in a set, so the reconciler never scans the keyspace.
type RedisStore struct {
	client    *redis.Client
	scanCount int64
}

// NewRedisStore wraps an existing client. scanCount is the SSCAN page size hint.
func NewRedisStore(client *redis.Client, scanCount int64) *RedisStore {
	if scanCount <= 0 {
		scanCount = 100
	}
	return &RedisStore{client: client, scanCount: scanCount}
}

// Increment bumps every counter and marks the posts pending in one MULTI/EXEC
func (s *RedisStore) Increment(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Incr(ctx, Key(id))
			pipe.SAdd(ctx, PendingSetKey, id.String())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: increment: %v", ErrUnavailable, err)
	}
	return nil
}

// ReadAndClear drains one counter atomically
func (s *RedisStore) ReadAndClear(ctx context.Context, id uuid.UUID) (int64, error) {
	n, err := readAndClearScript.Run(ctx, s.client, []string{Key(id), PendingSetKey}, id.String()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: read and clear %s: %v", ErrUnavailable, id, err)
	}
	return n, nil
}

// Discard removes a counter and its pending marker
func (s *RedisStore) Discard(ctx context.Context, id uuid.UUID) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, Key(id))
		pipe.SRem(ctx, PendingSetKey, id.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: discard %s: %v", ErrUnavailable, id, err)
	}
	return nil
}

// Pending walks the pending index with SSCAN
func (s *RedisStore) Pending(ctx context.Context) PendingIterator {
	return &redisPendingIterator{
		it: s.client.SScan(ctx, PendingSetKey, 0, "", s.scanCount).Iterator(),
	}
}

// Reindex adds every counter key found by a keyspace SCAN to the pending index.
// It recovers counters written without the index (for example by an older
// deployment that relied on prefix scans) and returns how many it indexed.
func (s *RedisStore) Reindex(ctx context.Context) (int, error) {
	indexed := 0
	iter := s.client.Scan(ctx, 0, KeyPrefix+"*", s.scanCount).Iterator()
	for iter.Next(ctx) {
		id, err := ParseKey(iter.Val())
		if err != nil {
			continue
		}
		if err := s.client.SAdd(ctx, PendingSetKey, id.String()).Err(); err != nil {
			return indexed, fmt.Errorf("%w: reindex %s: %v", ErrUnavailable, id, err)
		}
		indexed++
	}
	if err := iter.Err(); err != nil {
		return indexed, fmt.Errorf("%w: scan: %v", ErrUnavailable, err)
	}
	return indexed, nil
}

type redisPendingIterator struct {
	it  *redis.ScanIterator
	val uuid.UUID
	err error
}

func (i *redisPendingIterator) Next(ctx context.Context) bool {
	if i.err != nil {
		return false
	}
	for i.it.Next(ctx) {
		// members that are not ids can only come from manual writes; skip them
		id, err := uuid.Parse(i.it.Val())
		if err != nil {
			continue
		}
		i.val = id
		return true
	}
	if err := i.it.Err(); err != nil {
		i.err = fmt.Errorf("%w: sscan: %v", ErrUnavailable, err)
	}
	return false
}

func (i *redisPendingIterator) Val() uuid.UUID { return i.val }

func (i *redisPendingIterator) Err() error { return i.err }
