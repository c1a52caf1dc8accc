package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m := newHTTPMetrics(registry, Config{ServiceName: "eventflow", Environment: "test"})

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/api/public/events/:slug", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/public/events/go-meetup", nil))
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/public/events/:slug", "4xx"))
	if got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var histogram *dto.Histogram
	for _, family := range families {
		if family.GetName() == "eventflow_http_request_duration_seconds" {
			histogram = family.GetMetric()[0].GetHistogram()
		}
	}
	if histogram == nil || histogram.GetSampleCount() != 2 {
		t.Fatalf("expected 2 latency samples, got %v", histogram)
	}
}

func TestStatusClass(t *testing.T) {
	if got := statusClass(201); got != "2xx" {
		t.Fatalf("expected 2xx, got %s", got)
	}
	if got := statusClass(0); got != "unknown" {
		t.Fatalf("expected unknown, got %s", got)
	}
}
