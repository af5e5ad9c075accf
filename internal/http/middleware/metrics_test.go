package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsRequestsByRoute(t *testing.T) {
	r := newTestRouter(Metrics())
	r.GET("/metrics-probe/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/metrics-probe/:id", "200"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics-probe/42", nil))

	after := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/metrics-probe/:id", "200"))
	if after != before+1 {
		t.Fatalf("request counter went %v -> %v; want +1", before, after)
	}
}

func TestMetrics_UnmatchedRouteUsesRawPath(t *testing.T) {
	r := newTestRouter(Metrics())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/definitely-not-a-route", nil))

	got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/definitely-not-a-route", "404"))
	if got < 1 {
		t.Fatalf("expected raw-path fallback label, counter = %v", got)
	}
}

func TestMetrics_InflightReturnsToZero(t *testing.T) {
	r := newTestRouter(Metrics())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Fatalf("inflight gauge = %v; want 0 after completion", got)
	}
}
