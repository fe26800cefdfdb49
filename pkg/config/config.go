package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/quill/pkg/observability"
	"github.com/platinummonkey/quill/pkg/storage"
	"github.com/robfig/cron/v3"
)

// Backend names accepted by QUILL_CACHE_BACKEND and QUILL_COUNTER_BACKEND
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
	// BackendTiered layers a process-local cache over Redis (cache only)
	BackendTiered = "tiered"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Storage       storage.Config
	Cache         CacheConfig
	Counter       CounterConfig
	Reconcile     ReconcileConfig
	Snapshot      SnapshotConfig
	Recorder      RecorderConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	PageSize        int
	MaxPageSize     int
	CORSOrigins     []string
	// AutoMigrate applies pending schema migrations on startup
	AutoMigrate bool
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// CacheConfig selects and sizes the read cache
type CacheConfig struct {
	Backend string
	TTL     time.Duration
	// L1Size bounds the process-local cache in entries
	L1Size int
	L1TTL  time.Duration
}

// CounterConfig selects the fast counter store
type CounterConfig struct {
	Backend string
}

// ReconcileConfig drives the impression reconciler
type ReconcileConfig struct {
	Schedule   string
	Workers    int
	BatchSize  int
	KeyTimeout time.Duration
	RunTimeout time.Duration
	// InProcess runs the scheduler inside the API server
	InProcess bool
}

// SnapshotConfig drives the daily analytics snapshot
type SnapshotConfig struct {
	Schedule      string
	RetentionDays int
}

// RecorderConfig sizes the asynchronous view recorder
type RecorderConfig struct {
	Workers     int
	QueueSize   int
	Buffer      int64
	TaskTimeout time.Duration
	// DedupWindow is how long a client IP counts once per post; 0 means forever
	DedupWindow time.Duration
}

// AuthConfig holds API key and rate limit settings
type AuthConfig struct {
	APIKeys []string
	// ClickRateLimit is the click increments allowed per client IP per minute; 0 disables it
	ClickRateLimit int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
	Version        string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Cache:         loadCacheConfig(),
		Counter:       CounterConfig{Backend: strings.ToLower(getEnv("QUILL_COUNTER_BACKEND", BackendRedis))},
		Reconcile:     loadReconcileConfig(),
		Snapshot:      loadSnapshotConfig(),
		Recorder:      loadRecorderConfig(),
		Auth:          loadAuthConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("QUILL_HOST", "0.0.0.0"),
		Port:            getEnv("QUILL_PORT", "8000"),
		ReadTimeout:     getEnvDuration("QUILL_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("QUILL_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("QUILL_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("QUILL_SHUTDOWN_TIMEOUT", 30*time.Second),
		PageSize:        getEnvInt("QUILL_PAGE_SIZE", 10),
		MaxPageSize:     getEnvInt("QUILL_MAX_PAGE_SIZE", 100),
		CORSOrigins:     getEnvList("QUILL_CORS_ORIGINS"),
		AutoMigrate:     getEnvBool("QUILL_AUTO_MIGRATE", false),
	}
}

func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	// PostgreSQL config
	if pgURL := getEnv("QUILL_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if replicaURLs := getEnv("QUILL_POSTGRES_REPLICA_URLS", ""); replicaURLs != "" {
		cfg.PostgresReplicaURLs = replicaURLs
	}
	if maxConns := getEnvInt("QUILL_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("QUILL_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("QUILL_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	// Redis config
	if redisURL := getEnv("QUILL_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("QUILL_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("QUILL_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("QUILL_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("QUILL_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	return cfg
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Backend: strings.ToLower(getEnv("QUILL_CACHE_BACKEND", BackendRedis)),
		TTL:     getEnvDuration("QUILL_CACHE_TTL", 5*time.Minute),
		L1Size:  getEnvInt("QUILL_L1_CACHE_SIZE", 1024),
		L1TTL:   getEnvDuration("QUILL_L1_CACHE_TTL", 30*time.Second),
	}
}

func loadReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		Schedule:   getEnv("QUILL_RECONCILE_SCHEDULE", "@every 5m"),
		Workers:    getEnvInt("QUILL_RECONCILE_WORKERS", 4),
		BatchSize:  getEnvInt("QUILL_RECONCILE_BATCH_SIZE", 256),
		KeyTimeout: getEnvDuration("QUILL_RECONCILE_KEY_TIMEOUT", 5*time.Second),
		RunTimeout: getEnvDuration("QUILL_RECONCILE_RUN_TIMEOUT", 4*time.Minute),
		InProcess:  getEnvBool("QUILL_RECONCILE_IN_PROCESS", false),
	}
}

func loadSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		Schedule:      getEnv("QUILL_SNAPSHOT_SCHEDULE", "5 0 * * *"),
		RetentionDays: getEnvInt("QUILL_SNAPSHOT_RETENTION_DAYS", 365),
	}
}

func loadRecorderConfig() RecorderConfig {
	return RecorderConfig{
		Workers:     getEnvInt("QUILL_RECORDER_WORKERS", 8),
		QueueSize:   getEnvInt("QUILL_RECORDER_QUEUE_SIZE", 1024),
		Buffer:      getEnvInt64("QUILL_RECORDER_BUFFER", 1024),
		TaskTimeout: getEnvDuration("QUILL_RECORDER_TASK_TIMEOUT", 10*time.Second),
		DedupWindow: getEnvDuration("QUILL_VIEW_DEDUP_WINDOW", 0),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		APIKeys:        getEnvList("QUILL_API_KEYS"),
		ClickRateLimit: getEnvInt("QUILL_CLICK_RATE_LIMIT", 30),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("QUILL_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("QUILL_METRICS_ENABLED", true),
		Version:        getEnv("QUILL_VERSION", "dev"),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.PageSize <= 0 || c.Server.MaxPageSize < c.Server.PageSize {
		return fmt.Errorf("invalid page sizes: page size %d, max %d", c.Server.PageSize, c.Server.MaxPageSize)
	}

	switch c.Cache.Backend {
	case BackendRedis, BackendMemory, BackendTiered:
	default:
		return fmt.Errorf("invalid cache backend: %s (must be redis, memory, or tiered)", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if c.Cache.Backend != BackendRedis && c.Cache.L1Size <= 0 {
		return fmt.Errorf("L1 cache size must be positive for the %s cache backend", c.Cache.Backend)
	}

	switch c.Counter.Backend {
	case BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("invalid counter backend: %s (must be redis or memory)", c.Counter.Backend)
	}
	if c.Counter.Backend == BackendMemory && !c.Reconcile.InProcess {
		return fmt.Errorf("memory counter backend requires QUILL_RECONCILE_IN_PROCESS=true: no other process can drain it")
	}

	if c.NeedsRedis() && c.Storage.RedisURL == "" {
		return fmt.Errorf("redis URL is required for the redis backends")
	}
	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if _, err := cron.ParseStandard(c.Reconcile.Schedule); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", c.Reconcile.Schedule, err)
	}
	if c.Reconcile.Workers <= 0 || c.Reconcile.BatchSize <= 0 {
		return fmt.Errorf("reconcile workers and batch size must be positive")
	}
	if _, err := cron.ParseStandard(c.Snapshot.Schedule); err != nil {
		return fmt.Errorf("invalid snapshot schedule %q: %w", c.Snapshot.Schedule, err)
	}
	if c.Snapshot.RetentionDays <= 0 {
		return fmt.Errorf("snapshot retention must be positive")
	}

	if c.Recorder.Workers <= 0 || c.Recorder.QueueSize <= 0 {
		return fmt.Errorf("recorder workers and queue size must be positive")
	}
	if c.Recorder.DedupWindow < 0 {
		return fmt.Errorf("view dedup window cannot be negative")
	}
	if c.Auth.ClickRateLimit < 0 {
		return fmt.Errorf("click rate limit cannot be negative")
	}

	return nil
}

// NeedsRedis reports whether any selected backend talks to Redis
func (c *Config) NeedsRedis() bool {
	return c.Cache.Backend != BackendMemory || c.Counter.Backend == BackendRedis
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blank entries
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
