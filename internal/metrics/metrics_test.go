package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func getTestMetrics() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry(), nil)
}

func TestRecordExternalAPICall(t *testing.T) {
	m := getTestMetrics()

	m.RecordExternalAPICall("/boards/abc123/cards", http.MethodGet, 200, 50*time.Millisecond, nil)
	m.RecordExternalAPICall("/boards/def456/cards", http.MethodGet, 429, 10*time.Millisecond, nil)
	m.RecordExternalAPICall("/boards/def456/lists", http.MethodGet, 0, time.Second, context.DeadlineExceeded)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExternalAPIRequestsTotal.WithLabelValues("/boards/:id/cards", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExternalAPIErrors.WithLabelValues("/boards/:id/cards", "rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExternalAPIErrors.WithLabelValues("/boards/:id/lists", "timeout")))
}

func TestGetErrorType(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    error
		want   string
	}{
		{"network", 0, errors.New("connection refused"), "network"},
		{"canceled", 0, context.Canceled, "canceled"},
		{"unauthorized", 401, nil, "unauthorized"},
		{"not found", 404, nil, "not_found"},
		{"server", 503, nil, "server_error"},
		{"client", 400, nil, "client_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getErrorType(tt.status, tt.err))
		})
	}
}

func TestRecordPipelineRun(t *testing.T) {
	m := getTestMetrics()

	m.RecordPipelineRun(time.Second, 12, 3, nil)
	m.RecordPipelineRun(time.Second, 0, 0, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineRunsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineRunsTotal.WithLabelValues("error")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.SnapshotDesigns))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SnapshotCities))
}

func TestRecordCacheLookupAndCalendarSync(t *testing.T) {
	m := getTestMetrics()
	m.RecordCacheLookup("hit")
	m.RecordCacheLookup("hit")
	m.RecordCacheLookup("stale")
	m.RecordCalendarSync(2, 5, 1, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("stale")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.CalendarEventsSynced.WithLabelValues("unchanged")))
}

func TestCategorizeStatus(t *testing.T) {
	assert.Equal(t, "2xx", categorizeStatus(204))
	assert.Equal(t, "3xx", categorizeStatus(302))
	assert.Equal(t, "4xx", categorizeStatus(401))
	assert.Equal(t, "5xx", categorizeStatus(502))
	assert.Equal(t, "unknown", categorizeStatus(0))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := getTestMetrics()

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/api/cities/:city", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/api/cities/Madrid", "/api/cities/Lugo", "/api/health"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/cities/:city", "2xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestsTotal))
}
