package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/platinummonkey/quill/pkg/analytics"
	"github.com/platinummonkey/quill/pkg/async"
	"github.com/platinummonkey/quill/pkg/config"
	"github.com/platinummonkey/quill/pkg/counter"
	"github.com/platinummonkey/quill/pkg/observability"
	"github.com/platinummonkey/quill/pkg/reconcile"
	"github.com/platinummonkey/quill/pkg/storage/postgres"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var (
	runOnce      = flag.Bool("run-once", false, "Run one reconcile pass and one snapshot, then exit")
	snapshotDate = flag.String("date", "", "Date to snapshot (YYYY-MM-DD). If empty, snapshots yesterday. Only used with --run-once")
	migrate      = flag.Bool("migrate", false, "Apply pending schema migrations before starting")
	logLevel     = flag.String("log-level", "", "Log level (debug, info, warn, error); overrides QUILL_LOG_LEVEL")
	reindex      = flag.Bool("reindex", false, "Add counter keys missing from the pending set before the first pass")
)

// Reconciler service: drains buffered impressions into post analytics on a
// schedule and takes the daily analytics snapshot
func main() {
	_ = godotenv.Load(".env", ".env.local")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "quill-reconciler: %v\n", err)
		os.Exit(1)
	}

	level := cfg.Observability.LogLevel.String()
	if *logLevel != "" {
		level = *logLevel
	}
	log := setupLogger(level)
	logger := observability.NewLogger(observability.ParseLogLevel(level), os.Stdout).
		WithField("service", "quill-reconciler")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conns, err := postgres.NewConnectionManager(ctx, postgres.ConnectionConfigFrom(cfg.Storage), logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conns.Close()

	if *migrate {
		applied, err := postgres.Migrate(ctx, conns.Primary(), logger)
		if err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Infof("Applied %d migrations", applied)
	}

	var counters counter.Store
	if cfg.Counter.Backend == config.BackendMemory {
		log.Warn("Counter backend is memory: impressions are reconciled inside quill, this process only takes snapshots")
		if *reindex {
			log.Warn("--reindex ignored for the memory counter backend")
		}
		counters = counter.NewMemoryStore()
	} else {
		client, err := postgres.NewRedisClient(ctx, cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer client.Close()
		store := counter.NewRedisStore(client, 0)
		if *reindex {
			if err := reindexCounters(ctx, log, store); err != nil {
				log.Fatalf("Reindex failed: %v", err)
			}
		}
		counters = store
	}

	reconciler := reconcile.NewReconciler(counters, postgres.NewPostgresStorage(conns),
		analytics.NewPostgresStore(conns.Primary()), reconcile.Options{
			Workers:    cfg.Reconcile.Workers,
			BatchSize:  cfg.Reconcile.BatchSize,
			KeyTimeout: cfg.Reconcile.KeyTimeout,
		}, logger, nil)
	aggregator := analytics.NewAggregator(conns.Primary())

	// Run once mode (for testing or backfilling)
	if *runOnce {
		date, err := parseDate(*snapshotDate, time.Now().UTC())
		if err != nil {
			log.Fatalf("Invalid date format: %v", err)
		}
		if err := runOnceJobs(ctx, log, reconciler, aggregator, date, cfg.Snapshot.RetentionDays); err != nil {
			log.Fatalf("Run failed: %v", err)
		}
		log.Info("Run completed successfully")
		return
	}

	// Scheduled mode
	pool := async.NewWorkerPool(ctx, 2, 4, "reconciler-jobs", cfg.Reconcile.RunTimeout, logger)
	scheduler := reconcile.NewScheduler(pool, logger, cron.VerbosePrintfLogger(log))

	if err := scheduler.AddReconcile(cfg.Reconcile.Schedule, reconciler); err != nil {
		log.Fatalf("Failed to schedule reconcile: %v", err)
	}
	err = scheduler.Add(cfg.Snapshot.Schedule, "daily-snapshot", func(ctx context.Context) error {
		yesterday := time.Now().UTC().AddDate(0, 0, -1)
		log.Infof("Starting daily snapshot for %s", yesterday.Format(dateLayout))
		if err := aggregator.Snapshot(ctx, yesterday, cfg.Snapshot.RetentionDays); err != nil {
			log.Errorf("Daily snapshot failed: %v", err)
			return err
		}
		log.Info("Daily snapshot completed successfully")
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to schedule daily snapshot: %v", err)
	}

	scheduler.Start()
	log.Info("Quill reconciler started")
	log.Infof("Reconcile schedule: %s", cfg.Reconcile.Schedule)
	log.Infof("Snapshot schedule: %s", cfg.Snapshot.Schedule)

	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	if err := scheduler.Stop(cfg.Server.ShutdownTimeout); err != nil {
		log.Warnf("Scheduler stop: %v", err)
	}
	log.Info("Reconciler stopped")
}

const dateLayout = "2006-01-02"

// parseDate parses a YYYY-MM-DD date, defaulting to the day before now
func parseDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now.AddDate(0, 0, -1), nil
	}
	return time.Parse(dateLayout, s)
}

type passRunner interface {
	Run(ctx context.Context) (reconcile.Result, error)
}

type snapshotter interface {
	Snapshot(ctx context.Context, date time.Time, retentionDays int) error
}

type reindexer interface {
	Reindex(ctx context.Context) (int, error)
}

// reindexCounters puts counter keys written without the pending index back in
// it so the next pass drains them
func reindexCounters(ctx context.Context, log *logrus.Logger, r reindexer) error {
	n, err := r.Reindex(ctx)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	log.Infof("Indexed %d counter keys", n)
	return nil
}

func runOnceJobs(ctx context.Context, log *logrus.Logger, r passRunner, s snapshotter, date time.Time, retentionDays int) error {
	res, err := r.Run(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	log.WithFields(logrus.Fields{
		"scanned":     res.Scanned,
		"merged":      res.Merged,
		"impressions": res.Impressions,
		"stale":       res.Stale,
		"failed":      res.Failed,
	}).Info("Reconcile pass complete")

	log.Infof("Running snapshot for date: %s", date.Format(dateLayout))
	if err := s.Snapshot(ctx, date, retentionDays); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return nil
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}
