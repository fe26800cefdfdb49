package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/platinummonkey/quill/pkg/analytics"
	"github.com/platinummonkey/quill/pkg/api"
	"github.com/platinummonkey/quill/pkg/async"
	"github.com/platinummonkey/quill/pkg/blog"
	"github.com/platinummonkey/quill/pkg/config"
	"github.com/platinummonkey/quill/pkg/observability"
	"github.com/platinummonkey/quill/pkg/reconcile"
	"github.com/platinummonkey/quill/pkg/recorder"
	"github.com/platinummonkey/quill/pkg/storage/postgres"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	_ = godotenv.Load(".env", ".env.local")

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "quill: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", "quill")

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("quill exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	conns, err := postgres.NewConnectionManager(ctx, postgres.ConnectionConfigFrom(cfg.Storage), logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	conns.StartHealthCheckRoutine(ctx, 30*time.Second)

	if cfg.Server.AutoMigrate {
		if _, err := postgres.Migrate(ctx, conns.Primary(), logger); err != nil {
			conns.Close()
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient, err = postgres.NewRedisClient(ctx, cfg.Storage)
		if err != nil {
			conns.Close()
			return err
		}
	}

	counters := buildCounter(cfg, redisClient)
	readCache := buildCache(cfg, redisClient)
	posts := postgres.NewPostgresStorage(conns)
	store := analytics.NewPostgresStore(conns.Primary())

	// views: request path -> pub/sub -> consumer -> worker pool -> analytics
	rec := recorder.NewRecorder(posts.OnPrimary(), store, cfg.Recorder.DedupWindow, logger, metrics)
	pubsub := recorder.NewPubSub(cfg.Recorder.Buffer, logger)
	viewPool := async.NewWorkerPool(ctx, cfg.Recorder.Workers, cfg.Recorder.QueueSize,
		"view-recorder", cfg.Recorder.TaskTimeout, logger)
	consumer := recorder.NewConsumer(pubsub, recorder.ViewTopic, viewPool, rec, logger, metrics)
	consumerDone, err := consumer.Start(ctx)
	if err != nil {
		return fmt.Errorf("view consumer: %w", err)
	}

	blogService := blog.NewService(blog.Options{
		Posts:    posts,
		Cache:    readCache,
		Counter:  counters,
		Views:    recorder.NewDispatcher(pubsub, recorder.ViewTopic, logger, metrics),
		Clicks:   rec,
		CacheTTL: cfg.Cache.TTL,
		Logger:   logger,
		Metrics:  metrics,
	})

	health := observability.NewHealthChecker(cfg.Observability.Version).
		AddCheck("postgres", true, conns.HealthCheck)
	if redisClient != nil {
		health.AddCheck("redis", false, postgres.RedisHealth{Client: redisClient}.HealthCheck)
	}

	limiter := buildClickLimiter(ctx, cfg, redisClient)

	server := api.NewServer(api.Options{
		Posts:        blogService,
		Analytics:    analytics.NewService(conns.Replica(), store),
		APIKeys:      cfg.Auth.APIKeys,
		ClickLimiter: limiter,
		CORSOrigins:  cfg.Server.CORSOrigins,
		PageSize:     cfg.Server.PageSize,
		MaxPageSize:  cfg.Server.MaxPageSize,
		Logger:       logger,
		Metrics:      metrics,
		Registry:     registry,
		Health:       health,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var scheduler *reconcile.Scheduler
	if cfg.Reconcile.InProcess {
		var reconciler *reconcile.Reconciler
		scheduler, reconciler, err = newReconcileScheduler(ctx, cfg, counters, posts, store, logger, metrics)
		if err != nil {
			return err
		}
		scheduler.Start()

		// drain whatever a previous process left pending
		async.SafeGo(ctx, logger, cfg.Reconcile.RunTimeout, "startup reconcile", func(ctx context.Context) error {
			_, err := reconciler.Run(ctx)
			return err
		})
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	shutdown.Register("http", httpServer.Shutdown)
	if scheduler != nil {
		shutdown.Register("reconcile-scheduler", func(ctx context.Context) error {
			return scheduler.Stop(remaining(ctx))
		})
	}
	shutdown.Register("view-pubsub", func(ctx context.Context) error {
		err := pubsub.Close()
		select {
		case <-consumerDone:
		case <-ctx.Done():
		}
		return err
	})
	shutdown.Register("view-pool", func(ctx context.Context) error {
		return viewPool.Shutdown(remaining(ctx))
	})
	if redisClient != nil {
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}
	shutdown.Register("postgres", func(context.Context) error { return conns.Close() })

	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", httpServer.Addr).Info("quill API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	waitCtx, stopWaiting := context.WithCancel(ctx)
	defer stopWaiting()
	go func() {
		if err, ok := <-serveErr; ok && err != nil {
			logger.WithError(err).Error("http server failed")
			stopWaiting()
		}
	}()

	return shutdown.WaitForSignal(waitCtx)
}

// remaining is the time left before ctx's deadline
func remaining(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		return time.Until(deadline)
	}
	return 5 * time.Second
}
