package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStatusBucket(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "2xx"},
		{100, "1xx"},
		{200, "2xx"},
		{201, "2xx"},
		{301, "3xx"},
		{400, "4xx"},
		{429, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusBucket(tt.code), "code %d", tt.code)
	}
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/audit/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/audit/{id}", "4xx"))
	for _, id := range []string{"a", "b", "c"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/audit/"+id, nil))
	}
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/audit/{id}", "4xx"))
	assert.Equal(t, 3.0, after-before)
}

func TestObserveDecision(t *testing.T) {
	before := testutil.ToFloat64(DecisionsTotal.WithLabelValues("decline", "true"))
	ObserveDecision("decline", 0.01, true)
	assert.Equal(t, 1.0, testutil.ToFloat64(DecisionsTotal.WithLabelValues("decline", "true"))-before)
}

func TestMetricsEndpoint(t *testing.T) {
	ModelInfo.WithLabelValues("test").Set(1)

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	for _, name := range []string{
		"payguard_model_info",
		"payguard_rate_limit_rejections_total",
		"payguard_audit_write_failures_total",
	} {
		assert.True(t, strings.Contains(body, name), "missing %s", name)
	}
}
