// Package observability provides structured logging, Prometheus metrics, health
// probes and graceful shutdown for quill binaries.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("post_id", id).WithError(err).Error("reconcile failed")
//
// Handlers retrieve the request-scoped logger (with request_id attached):
//
//	log := observability.FromContext(r.Context(), fallback)
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ImpressionsAdded(len(ids))
//
// A nil *Metrics is accepted everywhere and records nothing.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version).
//		AddCheck("postgres", true, conns.HealthCheck).
//		AddCheck("redis", false, postgres.RedisHealth{Client: rdb}.HealthCheck)
//
// Redis is optional for readiness: when it is down, impressions are dropped but
// reads are still served, so the service reports degraded rather than unhealthy.
package observability
