// Package config loads quill's configuration from QUILL_* environment variables.
//
// Binaries preload a .env file (github.com/joho/godotenv) before calling
// LoadConfig, so the same names work in development and production.
//
// # Configuration Structure
//
// Server settings:
//
//	QUILL_HOST="0.0.0.0"
//	QUILL_PORT="8000"
//	QUILL_PAGE_SIZE="10"
//	QUILL_CORS_ORIGINS="https://blog.example.com"
//	QUILL_AUTO_MIGRATE="false"
//
// Storage settings:
//
//	QUILL_POSTGRES_URL="postgres://localhost:5432/quill?sslmode=disable"
//	QUILL_POSTGRES_REPLICA_URLS="postgres://replica-1/quill,postgres://replica-2/quill"
//	QUILL_POSTGRES_MAX_CONNS="20"
//	QUILL_REDIS_URL="redis://localhost:6379/0"
//	QUILL_REDIS_POOL_SIZE="10"
//
// Cache and counter settings:
//
//	QUILL_CACHE_BACKEND="redis"    # redis, memory, tiered
//	QUILL_CACHE_TTL="5m"
//	QUILL_L1_CACHE_SIZE="1024"     # entries, memory and tiered only
//	QUILL_COUNTER_BACKEND="redis"  # redis, memory
//
// Pipeline settings:
//
//	QUILL_RECONCILE_SCHEDULE="@every 5m"
//	QUILL_RECONCILE_WORKERS="4"
//	QUILL_RECONCILE_IN_PROCESS="false"
//	QUILL_SNAPSHOT_SCHEDULE="5 0 * * *"
//	QUILL_RECORDER_WORKERS="8"
//	QUILL_VIEW_DEDUP_WINDOW="0"    # 0 counts each client IP once per post forever
//
// Access settings:
//
//	QUILL_API_KEYS="key-one,key-two"
//	QUILL_CLICK_RATE_LIMIT="30"    # per client IP per minute, 0 disables
//
// Observability settings:
//
//	QUILL_LOG_LEVEL="info"  # debug, info, warn, error
//	QUILL_METRICS_ENABLED="true"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("listening on %s\n", cfg.Server.Addr())
package config
