package main

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/quill/pkg/analytics"
	"github.com/platinummonkey/quill/pkg/async"
	"github.com/platinummonkey/quill/pkg/cache"
	"github.com/platinummonkey/quill/pkg/config"
	"github.com/platinummonkey/quill/pkg/counter"
	"github.com/platinummonkey/quill/pkg/middleware"
	"github.com/platinummonkey/quill/pkg/observability"
	"github.com/platinummonkey/quill/pkg/reconcile"
)

func buildCounter(cfg *config.Config, client *redis.Client) counter.Store {
	if cfg.Counter.Backend == config.BackendMemory || client == nil {
		return counter.NewMemoryStore()
	}
	return counter.NewRedisStore(client, 0)
}

func buildCache(cfg *config.Config, client *redis.Client) cache.Cache {
	switch {
	case cfg.Cache.Backend == config.BackendMemory || client == nil:
		return cache.NewLocalCache(cfg.Cache.L1Size, cfg.Cache.TTL)
	case cfg.Cache.Backend == config.BackendTiered:
		return cache.NewTiered(cache.NewLocalCache(cfg.Cache.L1Size, cfg.Cache.L1TTL), cache.NewRedisCache(client), cfg.Cache.L1TTL)
	default:
		return cache.NewRedisCache(client)
	}
}

// buildClickLimiter shares click budgets across instances through Redis when
// it is available
func buildClickLimiter(ctx context.Context, cfg *config.Config, client *redis.Client) middleware.Limiter {
	if cfg.Auth.ClickRateLimit <= 0 {
		return nil
	}
	limits := middleware.RateLimitConfig{
		RequestsPerWindow: cfg.Auth.ClickRateLimit,
		WindowDuration:    time.Minute,
	}
	if client != nil {
		return middleware.NewRedisLimiter(client, limits, "quill:ratelimit:click")
	}

	limiter := middleware.NewMemoryLimiter(limits)
	go func() {
		ticker := time.NewTicker(limits.WindowDuration)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				limiter.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
	return limiter
}

func newReconcileScheduler(ctx context.Context, cfg *config.Config, counters counter.Store,
	posts reconcile.PostChecker, store analytics.Store,
	logger *observability.Logger, metrics *observability.Metrics) (*reconcile.Scheduler, *reconcile.Reconciler, error) {
	reconciler := reconcile.NewReconciler(counters, posts, store, reconcile.Options{
		Workers:    cfg.Reconcile.Workers,
		BatchSize:  cfg.Reconcile.BatchSize,
		KeyTimeout: cfg.Reconcile.KeyTimeout,
	}, logger, metrics)

	// one worker, a short queue: a pass that overruns queues at most one more
	pool := async.NewWorkerPool(ctx, 1, 2, "reconcile", cfg.Reconcile.RunTimeout, logger)
	scheduler := reconcile.NewScheduler(pool, logger, nil)
	if err := scheduler.AddReconcile(cfg.Reconcile.Schedule, reconciler); err != nil {
		pool.Shutdown(time.Second)
		return nil, nil, err
	}
	return scheduler, reconciler, nil
}
