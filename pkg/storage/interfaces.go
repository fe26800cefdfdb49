package storage

import (
	"context"
	"time"
)

// HealthChecker is implemented by every backend connection the API depends on
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config for the storage backends
type Config struct {
	// PostgreSQL config
	PostgresURL         string
	PostgresReplicaURLs string // comma separated
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int // -1 keeps the database from the URL
	RedisMaxRetries int
	RedisPoolSize   int
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		PostgresURL:      "postgres://localhost:5432/quill?sslmode=disable",
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		RedisURL:         "redis://localhost:6379/0",
		RedisDB:          -1,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
	}
}
