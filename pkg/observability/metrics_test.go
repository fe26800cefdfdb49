package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ImpressionsAdded(1)
	m.ImpressionsLost(1)
	m.CacheLookup("list", true)
	m.CacheError("get")
	m.ReconcileKey(OutcomeMerged)
	m.ReconcileMerged(3)
	m.ReconcileRun(time.Second, nil)
	m.ViewTask(OutcomeDispatched)
	m.ClickRecorded()
}

func TestMetricsRecording(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.ImpressionsAdded(1)
	m.ImpressionsAdded(1)
	m.CacheLookup("list", true)
	m.CacheLookup("list", false)
	m.ReconcileMerged(5)
	m.ReconcileKey(OutcomeStale)
	m.ReconcileRun(10*time.Millisecond, nil)
	m.ReconcileRun(10*time.Millisecond, errors.New("scan failed"))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ImpressionsIncremented))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("list")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues("list")))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.ReconcileImpressions))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReconcileKeysTotal.WithLabelValues(OutcomeStale)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReconcileRunsTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReconcileRunsTotal.WithLabelValues("error")))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	handler := HTTPMetricsMiddleware(m, func(*http.Request) string { return "/posts" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/blog/posts/", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/posts", "404")))

	out := httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(out, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(out.Body.String(), "quill_http_requests_total"))
}
