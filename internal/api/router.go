package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"payguard/risk-api/internal/health"
	"payguard/risk-api/internal/logging"
	"payguard/risk-api/internal/metrics"
	"payguard/risk-api/internal/ratelimit"
)

// ServiceName is reported by /health.
const ServiceName = "payguard-risk-api"

// NewRouter creates and returns a configured Chi router. adminKey guards the
// audit and list routes; when empty those routes answer 401.
func NewRouter(h *Handler, limiter ratelimit.Limiter, adminKey string, checks *health.Registry, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(logger))
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)

	// ── Operations ────────────────────────────────────────────────────────────
	r.Get("/health", healthHandler(checks))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// ── API v1 ────────────────────────────────────────────────────────────────
	r.Route("/api/v1", func(r chi.Router) {

		// Scoring: authenticated and rate limited per key
		r.Group(func(r chi.Router) {
			r.Use(requireAPIKey)
			r.Use(rateLimit(limiter, h.now))
			r.Post("/score", h.Score)
			r.Post("/score/batch", h.ScoreBatch)
		})

		// Audit log, manual review and list management: admin key only
		r.Group(func(r chi.Router) {
			r.Use(requireAdminKey(adminKey))

			r.Route("/audit", func(r chi.Router) {
				r.Get("/", h.ListAudit)
				r.Get("/{id}", h.GetAudit)
				r.Post("/{id}/review", h.ReviewAudit)
			})

			r.Route("/lists", func(r chi.Router) {
				r.Get("/", h.ListEntries)
				r.Post("/", h.AddEntry)
				r.Delete("/{id}", h.DeleteEntry)
			})
		})

		r.With(requireAPIKey).Get("/model", h.GetModel)
	})

	return r
}

// healthHandler reports 200 when every registered check passes, else 503.
func healthHandler(checks *health.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		healthy, statuses := checks.CheckAll(r.Context())
		body := map[string]any{
			"status":  "ok",
			"service": ServiceName,
			"checks":  statuses,
		}
		if !healthy {
			body["status"] = "degraded"
			writeJSON(w, http.StatusServiceUnavailable, envelope{Data: body})
			return
		}
		ok(w, body)
	}
}
