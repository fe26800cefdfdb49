// Package storage holds the connection settings shared by quill's backends.
//
// Primary post storage and the analytics tables live in PostgreSQL
// (subpackage postgres). Redis carries the impression counters and the shared
// read cache; its client is built by postgres.NewRedisClient so both the API
// and the reconciler dial it the same way.
//
// # Configuration
//
//	cfg := storage.DefaultConfig()
//	cfg.PostgresURL = "postgres://quill@db:5432/quill?sslmode=disable"
//	cfg.PostgresReplicaURLs = "postgres://quill@replica-1:5432/quill"
//	cfg.RedisURL = "redis://cache:6379/0"
//
// Post reads are routed to read replicas when any are configured; analytics
// writes always go to the primary.
package storage
