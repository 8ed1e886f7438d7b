package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"payguard/risk-api/internal/domain"
	"payguard/risk-api/internal/logging"
	"payguard/risk-api/internal/metrics"
	"payguard/risk-api/internal/ratelimit"
)

// APIKeyHeader carries the caller's key. Any non-empty key is accepted; it
// identifies the caller for rate limiting.
const APIKeyHeader = "X-API-Key"

func apiKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(APIKeyHeader))
}

// requireAPIKey rejects requests without an API key.
func requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiKey(r) == "" {
			unauthorized(w, APIKeyHeader+" header is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdminKey admits only requests carrying the configured admin key.
// An empty admin key rejects everything.
func requireAdminKey(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" {
				unauthorized(w, "admin API is disabled")
				return
			}
			key := apiKey(r)
			if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
				unauthorized(w, "admin API key required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimit applies the fixed-window limiter per API key. Limiter errors
// let the request through.
func rateLimit(l ratelimit.Limiter, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := l.Allow(r.Context(), apiKey(r))
			if err != nil {
				metrics.BackendErrorsTotal.WithLabelValues("ratelimit").Inc()
				logging.L(r.Context()).Warn("rate limiter unavailable, allowing request", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				rle := &domain.RateLimitError{Limit: res.Limit, ResetAt: res.ResetAt}
				metrics.RateLimitRejectionsTotal.Inc()
				h.Set("Retry-After", strconv.Itoa(rle.RetryAfter(now())))
				tooManyRequests(w, rle.Error(), res.ResetAt.UTC().Format(time.RFC3339))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
