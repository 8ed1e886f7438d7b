package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"payguard/risk-api/internal/analyzer"
	"payguard/risk-api/internal/domain"
	"payguard/risk-api/internal/logging"
	"payguard/risk-api/internal/scoring"
	"payguard/risk-api/internal/store"
)

// Request body limits.
const (
	maxScoreBody = 1 << 20
	maxBatchBody = 32 << 20
)

// Audit listing bounds.
const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// Handler holds the dependencies shared across all HTTP handlers.
type Handler struct {
	analyzer *analyzer.Analyzer
	audit    store.AuditStore
	lists    store.ListStore
	now      func() time.Time
}

// NewHandler creates a Handler wired to the given dependencies.
func NewHandler(a *analyzer.Analyzer, audit store.AuditStore, lists store.ListStore) *Handler {
	return &Handler{analyzer: a, audit: audit, lists: lists, now: time.Now}
}

// ─── POST /api/v1/score ───────────────────────────────────────────────────────

type modelRef struct {
	Version string `json:"version"`
	Type    string `json:"type"`
	Dataset string `json:"dataset"`
}

type scoreResponse struct {
	TransactionID    string                `json:"transaction_id"`
	AuditID          string                `json:"audit_id"`
	FraudProbability float64               `json:"fraud_probability"`
	RiskScore        int                   `json:"risk_score"`
	RiskLevel        domain.RiskLevel      `json:"risk_level"`
	Decision         domain.Decision       `json:"decision"`
	Override         string                `json:"override,omitempty"`
	FeatureAnalysis  []domain.Contribution `json:"feature_analysis"`
	Model            modelRef              `json:"model"`
	VelocityCount    int                   `json:"velocity_count"`
	ProcessingTimeMS float64               `json:"processing_time_ms"`
	Timestamp        time.Time             `json:"timestamp"`
}

// Score runs one transaction through the full pipeline and returns the
// verdict synchronously.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	var in domain.TransactionInput
	if !decode(w, r, maxScoreBody, &in) {
		return
	}

	out, err := h.analyzer.Analyze(r.Context(), &in)
	if err != nil {
		h.analysisError(w, r, err)
		return
	}

	m := h.analyzer.Model()
	ms := float64(out.ProcessingTime.Microseconds()) / 1000
	w.Header().Set("X-Processing-Time", strconv.FormatFloat(ms, 'f', 2, 64)+"ms")
	w.Header().Set("X-Model-Version", m.Version)
	w.Header().Set("X-Risk-Level", string(out.Verdict.RiskLevel))

	ok(w, scoreResponse{
		TransactionID:    out.TransactionID,
		AuditID:          out.AuditID,
		FraudProbability: round4(out.Probability),
		RiskScore:        out.Verdict.RiskScore,
		RiskLevel:        out.Verdict.RiskLevel,
		Decision:         out.Verdict.Decision,
		Override:         out.Verdict.Override,
		FeatureAnalysis:  out.TopFeatures,
		Model:            modelRef{Version: m.Version, Type: m.Type, Dataset: m.Dataset.Name},
		VelocityCount:    out.Signals.VelocityCount,
		ProcessingTimeMS: ms,
		Timestamp:        out.Timestamp,
	})
}

// ─── POST /api/v1/score/batch ─────────────────────────────────────────────────

type batchRequest struct {
	Transactions []struct {
		domain.TransactionInput
		Class *int `json:"Class"`
	} `json:"transactions"`
}

// ScoreBatch evaluates a set of transactions without recording anything and
// reports accuracy when labels are supplied.
func (h *Handler) ScoreBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decode(w, r, maxBatchBody, &req) {
		return
	}

	items := make([]analyzer.BatchItem, len(req.Transactions))
	for i, t := range req.Transactions {
		items[i] = analyzer.BatchItem{Input: t.TransactionInput, Label: t.Class}
	}

	rep, err := h.analyzer.AnalyzeBatch(r.Context(), items)
	if err != nil {
		h.analysisError(w, r, err)
		return
	}
	for i := range rep.Results {
		rep.Results[i].FraudProbability = round4(rep.Results[i].FraudProbability)
	}
	rep.Statistics.AvgFraudProbability = round4(rep.Statistics.AvgFraudProbability)

	w.Header().Set("X-Model-Version", rep.ModelVersion)
	ok(w, rep)
}

func (h *Handler) analysisError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrInvalidInput) {
		badRequest(w, codeInvalidInput, err.Error())
		return
	}
	logging.L(r.Context()).Error("scoring failed", "error", err)
	internalError(w)
}

// ─── Audit log ────────────────────────────────────────────────────────────────

// ListAudit returns the most recent audited transactions and aggregate stats.
//
// Query params:
//
//	limit: max records (default: 100, max: 1000)
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(w, codeInvalidInput, "limit must be a positive integer")
			return
		}
		limit = min(n, maxAuditLimit)
	}

	txs, err := h.audit.Recent(r.Context(), limit)
	if err != nil {
		logging.L(r.Context()).Error("audit recent failed", "error", err)
		internalError(w)
		return
	}
	stats, err := h.audit.Stats(r.Context())
	if err != nil {
		logging.L(r.Context()).Error("audit stats failed", "error", err)
		internalError(w)
		return
	}
	if txs == nil {
		txs = []domain.AuditedTransaction{}
	}
	ok(w, map[string]any{"transactions": txs, "stats": stats})
}

// GetAudit returns one audited transaction by its audit id.
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tx, err := h.audit.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, fmt.Sprintf("audit record '%s' not found", id))
		return
	}
	if err != nil {
		logging.L(r.Context()).Error("audit get failed", "id", id, "error", err)
		internalError(w)
		return
	}
	ok(w, tx)
}

// ReviewAudit records a reviewer's outcome. A record can be reviewed once.
func (h *Handler) ReviewAudit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReviewedBy     string                `json:"reviewed_by"`
		ReviewDecision domain.ReviewDecision `json:"review_decision"`
	}
	if !decode(w, r, maxScoreBody, &req) {
		return
	}
	if strings.TrimSpace(req.ReviewedBy) == "" {
		badRequest(w, codeInvalidInput, "reviewed_by is required")
		return
	}
	if !req.ReviewDecision.Valid() {
		badRequest(w, codeInvalidInput, "review_decision must be one of: approved, rejected, escalated")
		return
	}

	id := chi.URLParam(r, "id")
	tx, err := h.audit.Review(r.Context(), id, store.Review{
		ReviewedBy: strings.TrimSpace(req.ReviewedBy),
		Decision:   req.ReviewDecision,
		At:         h.now().UTC(),
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		notFound(w, fmt.Sprintf("audit record '%s' not found", id))
	case errors.Is(err, store.ErrAlreadyReviewed):
		conflict(w, fmt.Sprintf("audit record '%s' was already reviewed", id))
	case err != nil:
		logging.L(r.Context()).Error("audit review failed", "id", id, "error", err)
		internalError(w)
	default:
		logging.L(r.Context()).Info("audit reviewed",
			"id", id,
			"reviewed_by", tx.ReviewedBy,
			"review_decision", tx.ReviewDecision,
		)
		ok(w, tx)
	}
}

// ─── Allow / deny lists ───────────────────────────────────────────────────────

var listEntityTypes = map[string]bool{
	domain.EntityEmail:   true,
	domain.EntityIP:      true,
	domain.EntityBIN:     true,
	domain.EntityDevice:  true,
	domain.EntityCountry: true,
}

// ListEntries returns all active list entries.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.lists.List(r.Context())
	if err != nil {
		logging.L(r.Context()).Error("lists failed", "error", err)
		internalError(w)
		return
	}
	if entries == nil {
		entries = []domain.ListEntry{}
	}
	ok(w, entries)
}

// AddEntry adds an entity to the whitelist or blacklist.
func (h *Handler) AddEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type      string          `json:"type"`
		Value     string          `json:"value"`
		ListType  domain.ListType `json:"list_type"`
		Reason    string          `json:"reason"`
		ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	}
	if !decode(w, r, maxScoreBody, &req) {
		return
	}

	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	req.Value = strings.TrimSpace(req.Value)
	now := h.now().UTC()
	switch {
	case !listEntityTypes[req.Type]:
		badRequest(w, codeInvalidInput, "type must be one of: email, ip, bin, device, country")
		return
	case req.Value == "":
		badRequest(w, codeInvalidInput, "value is required")
		return
	case req.ListType != domain.ListWhitelist && req.ListType != domain.ListBlacklist:
		badRequest(w, codeInvalidInput, "list_type must be 'whitelist' or 'blacklist'")
		return
	case req.ExpiresAt != nil && !req.ExpiresAt.After(now):
		badRequest(w, codeInvalidInput, "expires_at must be in the future")
		return
	}

	entry := &domain.ListEntry{
		ID:        uuid.NewString(),
		Type:      req.Type,
		Value:     req.Value,
		ListType:  req.ListType,
		Reason:    req.Reason,
		CreatedAt: now,
		ExpiresAt: req.ExpiresAt,
	}
	if err := h.lists.Add(r.Context(), entry); err != nil {
		logging.L(r.Context()).Error("list add failed", "error", err)
		internalError(w)
		return
	}
	logging.L(r.Context()).Info("list entry added", "id", entry.ID, "type", entry.Type, "list_type", entry.ListType)
	created(w, entry)
}

// DeleteEntry removes a list entry.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.lists.Delete(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, fmt.Sprintf("list entry '%s' not found", id))
		return
	}
	if err != nil {
		logging.L(r.Context()).Error("list delete failed", "id", id, "error", err)
		internalError(w)
		return
	}
	noContent(w)
}

// ─── GET /api/v1/model ────────────────────────────────────────────────────────

// GetModel describes the loaded model and ranks its features by weight.
func (h *Handler) GetModel(w http.ResponseWriter, r *http.Request) {
	m := h.analyzer.Model()
	ok(w, map[string]any{
		"name":          m.Name,
		"version":       m.Version,
		"type":          m.Type,
		"trained_on":    m.TrainedOn,
		"dataset":       m.Dataset,
		"feature_count": len(m.Features),
		"intercept":     m.Intercept,
		"metrics":       m.Metrics,
		"thresholds": map[string]float64{
			"review":  scoring.ReviewFrom,
			"decline": scoring.DeclineFrom,
		},
		"risk_levels": map[string]float64{
			"medium":   scoring.LevelMediumFrom,
			"high":     scoring.LevelHighFrom,
			"critical": scoring.LevelCriticalFrom,
		},
		"feature_importance": m.FeatureImportance(),
	})
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

// decode binds a JSON body and writes a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			badRequest(w, codeInvalidInput, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		badRequest(w, codeInvalidJSON, "request body must be valid JSON")
		return false
	}
	return true
}

func round4(p float64) float64 {
	return math.Round(p*1e4) / 1e4
}
