package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/platinummonkey/quill/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeGo_Success(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), observability.NopLogger(), time.Second, "test task", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SafeGo did not execute function")
	}
}

func TestSafeGo_PanicRecovery(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), observability.NopLogger(), time.Second, "panicky", func(ctx context.Context) error {
		defer close(done)
		panic("test panic")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestSafeGo_Timeout(t *testing.T) {
	result := make(chan error, 1)

	SafeGo(context.Background(), observability.NopLogger(), 20*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		result <- ctx.Err()
		return ctx.Err()
	})

	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("timeout was not enforced")
	}
}

func TestWorkerPool_ProcessesAllTasks(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 4, 100, "test", time.Second, observability.NopLogger())

	var processed atomic.Int64
	for i := 0; i < 50; i++ {
		require.NoError(t, pool.Submit(func(ctx context.Context) error {
			processed.Add(1)
			return nil
		}))
	}

	require.NoError(t, pool.Shutdown(5*time.Second))
	assert.Equal(t, int64(50), processed.Load())
}

func TestWorkerPool_ErrorsAndPanicsDoNotStopWorkers(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, 10, "test", time.Second, observability.NopLogger())

	var processed atomic.Int64
	require.NoError(t, pool.Submit(func(ctx context.Context) error { panic("boom") }))
	require.NoError(t, pool.Submit(func(ctx context.Context) error { return errors.New("failed") }))
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		processed.Add(1)
		return nil
	}))

	require.NoError(t, pool.Shutdown(5*time.Second))
	assert.Equal(t, int64(1), processed.Load())
}

func TestWorkerPool_TrySubmitQueueFull(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, 1, "test", time.Second, observability.NopLogger())

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	require.NoError(t, pool.TrySubmit(func(ctx context.Context) error { return nil }))
	assert.ErrorIs(t, pool.TrySubmit(func(ctx context.Context) error { return nil }), ErrQueueFull)

	close(release)
	require.NoError(t, pool.Shutdown(5*time.Second))
}

func TestWorkerPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 2, 4, "test", time.Second, observability.NopLogger())
	require.NoError(t, pool.Shutdown(time.Second))

	assert.ErrorIs(t, pool.Submit(func(ctx context.Context) error { return nil }), ErrPoolShutDown)
	assert.ErrorIs(t, pool.TrySubmit(func(ctx context.Context) error { return nil }), ErrPoolShutDown)
	assert.NoError(t, pool.Shutdown(time.Second))
}

func TestWorkerPool_ShutdownTimeout(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, 2, "test", time.Minute, observability.NopLogger())

	started := make(chan struct{})
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	<-started

	assert.Error(t, pool.Shutdown(20*time.Millisecond))
}

func TestBatch(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}
	var sum atomic.Int64

	errs := Batch(context.Background(), items, 3, time.Second, func(ctx context.Context, n int) error {
		if n == 4 {
			return errors.New("bad item")
		}
		if n == 5 {
			panic("worse item")
		}
		sum.Add(int64(n))
		return nil
	})

	assert.Len(t, errs, 2)
	assert.Equal(t, int64(1+2+3+6), sum.Load())
}
