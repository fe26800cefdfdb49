package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can be constructed without a registry in tests.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Fast counter metrics
	ImpressionsIncremented prometheus.Counter
	ImpressionsDropped     prometheus.Counter

	// Read cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	CacheErrorsTotal *prometheus.CounterVec

	// Reconciliation metrics
	ReconcileRunsTotal     *prometheus.CounterVec
	ReconcileKeysTotal     *prometheus.CounterVec
	ReconcileImpressions   prometheus.Counter
	ReconcileRunDuration   prometheus.Histogram
	ReconcileLastSuccessTS prometheus.Gauge

	// Recorder metrics
	ViewTasksTotal *prometheus.CounterVec
	ClicksTotal    prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quill_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ImpressionsIncremented: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quill_impressions_incremented_total",
				Help: "Impressions added to the fast counter store",
			},
		),
		ImpressionsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quill_impressions_dropped_total",
				Help: "Impressions lost because the fast counter store was unavailable",
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_cache_hits_total",
				Help: "Read cache hits by path",
			},
			[]string{"path"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_cache_misses_total",
				Help: "Read cache misses by path",
			},
			[]string{"path"},
		),
		CacheErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_cache_errors_total",
				Help: "Read cache backend errors by operation",
			},
			[]string{"op"},
		),
		ReconcileRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_reconcile_runs_total",
				Help: "Reconciliation passes by result",
			},
			[]string{"result"},
		),
		ReconcileKeysTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_reconcile_keys_total",
				Help: "Pending keys processed by outcome",
			},
			[]string{"outcome"},
		),
		ReconcileImpressions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quill_reconcile_impressions_total",
				Help: "Impressions merged into durable storage",
			},
		),
		ReconcileRunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quill_reconcile_run_duration_seconds",
				Help:    "Duration of a reconciliation pass",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
		ReconcileLastSuccessTS: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "quill_reconcile_last_success_timestamp_seconds",
				Help: "Unix time of the last reconciliation pass that enumerated all keys",
			},
		),
		ViewTasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_view_tasks_total",
				Help: "View recording tasks by outcome",
			},
			[]string{"outcome"},
		),
		ClicksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quill_clicks_recorded_total",
				Help: "Clicks recorded against durable analytics",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ImpressionsIncremented,
		m.ImpressionsDropped,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheErrorsTotal,
		m.ReconcileRunsTotal,
		m.ReconcileKeysTotal,
		m.ReconcileImpressions,
		m.ReconcileRunDuration,
		m.ReconcileLastSuccessTS,
		m.ViewTasksTotal,
		m.ClicksTotal,
	)

	return m
}

// Outcome labels shared by recorder and reconciler metrics
const (
	OutcomeMerged     = "merged"
	OutcomeStale      = "stale"
	OutcomeEmpty      = "empty"
	OutcomeFailed     = "failed"
	OutcomeDispatched = "dispatched"
	OutcomeDropped    = "dropped"
	OutcomeCounted    = "counted"
	OutcomeDuplicate  = "duplicate"
)

// ImpressionsAdded records n impressions buffered in the fast counter store
func (m *Metrics) ImpressionsAdded(n int) {
	if m != nil {
		m.ImpressionsIncremented.Add(float64(n))
	}
}

// ImpressionsLost records n impressions dropped on a store failure
func (m *Metrics) ImpressionsLost(n int) {
	if m != nil {
		m.ImpressionsDropped.Add(float64(n))
	}
}

// CacheLookup records a hit or miss for the given read path
func (m *Metrics) CacheLookup(path string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(path).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(path).Inc()
	}
}

func (m *Metrics) CacheError(op string) {
	if m != nil {
		m.CacheErrorsTotal.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) ReconcileKey(outcome string) {
	if m != nil {
		m.ReconcileKeysTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ReconcileMerged(delta int64) {
	if m != nil {
		m.ReconcileImpressions.Add(float64(delta))
	}
}

// ReconcileRun records the end of a pass
func (m *Metrics) ReconcileRun(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.ReconcileRunDuration.Observe(duration.Seconds())
	if err != nil {
		m.ReconcileRunsTotal.WithLabelValues("error").Inc()
		return
	}
	m.ReconcileRunsTotal.WithLabelValues("ok").Inc()
	m.ReconcileLastSuccessTS.SetToCurrentTime()
}

func (m *Metrics) ViewTask(outcome string) {
	if m != nil {
		m.ViewTasksTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ClickRecorded() {
	if m != nil {
		m.ClicksTotal.Inc()
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// routeName maps a request to a low-cardinality label (for example the mux route
// template); when nil the raw URL path is used.
func HTTPMetricsMiddleware(metrics *Metrics, routeName func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := r.URL.Path
			if routeName != nil {
				route = routeName(r)
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
