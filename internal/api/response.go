// Package api contains the HTTP layer: routing, request binding, and response formatting.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Error codes returned in the envelope.
const (
	codeInvalidInput = "INVALID_INPUT"
	codeInvalidJSON  = "INVALID_JSON"
	codeUnauthorized = "UNAUTHORIZED"
	codeRateLimited  = "RATE_LIMIT_EXCEEDED"
	codeNotFound     = "NOT_FOUND"
	codeConflict     = "CONFLICT"
	codeUnavailable  = "SERVICE_UNAVAILABLE"
	codeInternal     = "INTERNAL_ERROR"
)

// ─── Response envelope ────────────────────────────────────────────────────────

// envelope is the standard wrapper for all API responses.
// Success responses set `error` to nil; error responses set `data` to nil.
type envelope struct {
	Data  any       `json:"data,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// ResetAt is set on 429 responses only.
	ResetAt string `json:"reset_at,omitempty"`
}

// ─── Response helpers ─────────────────────────────────────────────────────────

// writeJSON serialises v into the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent.
		slog.Warn("write response failed", "status", status, "error", err)
	}
}

// ok writes a 200 response with the payload wrapped in the standard envelope.
func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

// created writes a 201 response.
func created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Data: data})
}

// noContent writes a 204 response with no body.
func noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func fail(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{Error: &apiError{Code: code, Message: message}})
}

// badRequest writes a 400 error response.
func badRequest(w http.ResponseWriter, code, message string) {
	fail(w, http.StatusBadRequest, code, message)
}

// unauthorized writes a 401 error response.
func unauthorized(w http.ResponseWriter, message string) {
	fail(w, http.StatusUnauthorized, codeUnauthorized, message)
}

// notFound writes a 404 error response.
func notFound(w http.ResponseWriter, message string) {
	fail(w, http.StatusNotFound, codeNotFound, message)
}

// conflict writes a 409 error response.
func conflict(w http.ResponseWriter, message string) {
	fail(w, http.StatusConflict, codeConflict, message)
}

// tooManyRequests writes a 429 error response. The caller sets Retry-After.
func tooManyRequests(w http.ResponseWriter, message, resetAt string) {
	writeJSON(w, http.StatusTooManyRequests, envelope{
		Error: &apiError{Code: codeRateLimited, Message: message, ResetAt: resetAt},
	})
}

// internalError writes a 500 error response. Details stay in the logs.
func internalError(w http.ResponseWriter) {
	fail(w, http.StatusInternalServerError, codeInternal, "an unexpected error occurred")
}
