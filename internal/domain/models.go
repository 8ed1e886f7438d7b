// Package domain contains all core types used across the application.
// Keeping domain types in one place makes the scoring pipeline easy to reason about.
package domain

import "time"

// ─── Constants ───────────────────────────────────────────────────────────────

// FeatureCount is the fixed length of every feature vector: Time, V1..V28, Amount.
const FeatureCount = 30

// OpaqueCount is the number of anonymised components (V1..V28) in the raw form.
const OpaqueCount = 28

// DefaultCurrency is recorded when the caller omits a currency code.
const DefaultCurrency = "USD"

// Decision is the three-way verdict handed to payment capture.
type Decision string

const (
	DecisionApprove Decision = "approve" // capture immediately
	DecisionReview  Decision = "review"  // hold for manual review
	DecisionDecline Decision = "decline" // refuse the payment
)

// RiskLevel is the four-tier presentation bucket of the fraud probability.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"      // p < 0.25
	RiskMedium   RiskLevel = "medium"   // 0.25 <= p < 0.50
	RiskHigh     RiskLevel = "high"     // 0.50 <= p < 0.75
	RiskCritical RiskLevel = "critical" // p >= 0.75
)

// Entity types used in allow/deny list lookups.
const (
	EntityEmail   = "email"
	EntityIP      = "ip"
	EntityBIN     = "bin"
	EntityDevice  = "device"
	EntityCountry = "country"
)

// ListType selects the allow or deny side of the override lists.
type ListType string

const (
	ListWhitelist ListType = "whitelist"
	ListBlacklist ListType = "blacklist"
)

// ListStatus is the result of an override lookup.
type ListStatus string

const (
	ListedNone        ListStatus = "none"
	ListedWhitelisted ListStatus = "whitelisted"
	ListedBlacklisted ListStatus = "blacklisted"
)

// ReviewDecision is the outcome recorded by a human reviewer.
type ReviewDecision string

const (
	ReviewApproved  ReviewDecision = "approved"
	ReviewRejected  ReviewDecision = "rejected"
	ReviewEscalated ReviewDecision = "escalated"
)

// Valid reports whether d is one of the known review outcomes.
func (d ReviewDecision) Valid() bool {
	switch d {
	case ReviewApproved, ReviewRejected, ReviewEscalated:
		return true
	}
	return false
}

// Impact tags attached to each feature contribution.
const (
	ImpactIncreases = "increases_risk"
	ImpactDecreases = "decreases_risk"
	ImpactNeutral   = "neutral"
)

// ─── Scoring input ────────────────────────────────────────────────────────────

// RawFeatureVector is the pre-computed Kaggle-style form: 28 opaque
// components plus Time and Amount. Nil components were not supplied.
type RawFeatureVector struct {
	V1  *float64 `json:"V1,omitempty"`
	V2  *float64 `json:"V2,omitempty"`
	V3  *float64 `json:"V3,omitempty"`
	V4  *float64 `json:"V4,omitempty"`
	V5  *float64 `json:"V5,omitempty"`
	V6  *float64 `json:"V6,omitempty"`
	V7  *float64 `json:"V7,omitempty"`
	V8  *float64 `json:"V8,omitempty"`
	V9  *float64 `json:"V9,omitempty"`
	V10 *float64 `json:"V10,omitempty"`
	V11 *float64 `json:"V11,omitempty"`
	V12 *float64 `json:"V12,omitempty"`
	V13 *float64 `json:"V13,omitempty"`
	V14 *float64 `json:"V14,omitempty"`
	V15 *float64 `json:"V15,omitempty"`
	V16 *float64 `json:"V16,omitempty"`
	V17 *float64 `json:"V17,omitempty"`
	V18 *float64 `json:"V18,omitempty"`
	V19 *float64 `json:"V19,omitempty"`
	V20 *float64 `json:"V20,omitempty"`
	V21 *float64 `json:"V21,omitempty"`
	V22 *float64 `json:"V22,omitempty"`
	V23 *float64 `json:"V23,omitempty"`
	V24 *float64 `json:"V24,omitempty"`
	V25 *float64 `json:"V25,omitempty"`
	V26 *float64 `json:"V26,omitempty"`
	V27 *float64 `json:"V27,omitempty"`
	V28 *float64 `json:"V28,omitempty"`

	RawTime   *float64 `json:"Time,omitempty"`
	RawAmount *float64 `json:"Amount,omitempty"`
}

// Opaque returns V1..V28 in order; missing components are 0.
func (r *RawFeatureVector) Opaque() [OpaqueCount]float64 {
	ptrs := [OpaqueCount]*float64{
		r.V1, r.V2, r.V3, r.V4, r.V5, r.V6, r.V7, r.V8, r.V9, r.V10,
		r.V11, r.V12, r.V13, r.V14, r.V15, r.V16, r.V17, r.V18, r.V19, r.V20,
		r.V21, r.V22, r.V23, r.V24, r.V25, r.V26, r.V27, r.V28,
	}
	var out [OpaqueCount]float64
	for i, p := range ptrs {
		if p != nil {
			out[i] = *p
		}
	}
	return out
}

// TransactionInput is the payload submitted to the scoring endpoint.
// Callers send either the partial attribute form or the raw vector form;
// the presence of V1 selects the raw path.
type TransactionInput struct {
	TransactionID     string   `json:"transaction_id,omitempty"`
	Amount            *float64 `json:"amount,omitempty"`
	Time              *float64 `json:"time,omitempty"` // epoch seconds
	CardBIN           string   `json:"card_bin,omitempty"`
	CustomerIP        string   `json:"customer_ip,omitempty"`
	CustomerEmail     string   `json:"customer_email,omitempty"`
	CustomerCountry   string   `json:"customer_country,omitempty"` // ISO-3166-1 alpha-2
	DeviceFingerprint string   `json:"device_fingerprint,omitempty"`
	Currency          string   `json:"currency,omitempty"`

	RawFeatureVector
}

// IsRaw reports whether the caller supplied the pre-computed vector form.
func (in *TransactionInput) IsRaw() bool {
	return in.V1 != nil
}

// AmountValue returns the amount from either form, preferring "amount".
func (in *TransactionInput) AmountValue() (float64, bool) {
	switch {
	case in.Amount != nil:
		return *in.Amount, true
	case in.RawAmount != nil:
		return *in.RawAmount, true
	}
	return 0, false
}

// TimeValue returns the caller-supplied epoch seconds from either form.
func (in *TransactionInput) TimeValue() (float64, bool) {
	switch {
	case in.RawTime != nil:
		return *in.RawTime, true
	case in.Time != nil:
		return *in.Time, true
	}
	return 0, false
}

// FeatureVector is the fixed-order numeric input of the scorer.
// Position i always matches the model's coefficient i.
type FeatureVector []float64

// Contribution is one feature's share of the logit.
type Contribution struct {
	Feature      string  `json:"feature"`
	Index        int     `json:"-"`
	Value        float64 `json:"value"`
	Coefficient  float64 `json:"coefficient"`
	Contribution float64 `json:"contribution"`
	Impact       string  `json:"impact"`
}

// ─── Audit log ────────────────────────────────────────────────────────────────

// AuditedTransaction is a scored request as kept by the audit log.
// Only the review fields change after creation, and only once.
type AuditedTransaction struct {
	ID                   string         `json:"id"`
	TransactionID        string         `json:"transaction_id"`
	Timestamp            time.Time      `json:"timestamp"`
	Amount               float64        `json:"amount"`
	Currency             string         `json:"currency"`
	CustomerEmail        string         `json:"customer_email,omitempty"`
	CustomerIP           string         `json:"customer_ip,omitempty"`
	CustomerCountry      string         `json:"customer_country,omitempty"`
	CardBIN              string         `json:"card_bin,omitempty"`
	DeviceFingerprint    string         `json:"device_fingerprint,omitempty"`
	FraudProbability     float64        `json:"fraud_probability"`
	RiskScore            int            `json:"risk_score"`
	RiskLevel            RiskLevel      `json:"risk_level"`
	Decision             Decision       `json:"decision"`
	Override             string         `json:"override,omitempty"`
	FeatureContributions []Contribution `json:"feature_contributions"`
	ModelVersion         string         `json:"model_version"`
	ProcessingTimeMS     float64        `json:"processing_time_ms"`

	Reviewed       bool           `json:"reviewed"`
	ReviewedBy     string         `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time     `json:"reviewed_at,omitempty"`
	ReviewDecision ReviewDecision `json:"review_decision,omitempty"`
}

// AuditStats holds the aggregate counters over the retained audit log.
type AuditStats struct {
	TotalAnalyzed int `json:"total_analyzed"`
	TotalFlagged  int `json:"total_flagged"`  // decision != approve
	TotalDeclined int `json:"total_declined"`
	PendingReview int `json:"pending_review"` // review and not yet reviewed
}

// ─── Allow / deny lists ───────────────────────────────────────────────────────

// ListEntry is a manually managed override rule.
// Blacklisted entries force a decline; whitelisted entries force an approve.
type ListEntry struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"` // email | ip | bin | device | country
	Value     string     `json:"value"`
	ListType  ListType   `json:"list_type"`
	Reason    string     `json:"reason,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"` // nil = permanent
}

// ─── Alerts ───────────────────────────────────────────────────────────────────

// AlertPayload is the body POSTed to alert webhooks for declined payments.
type AlertPayload struct {
	Event       string             `json:"event"` // always "high_risk_transaction"
	TriggeredAt time.Time          `json:"triggered_at"`
	Transaction AuditedTransaction `json:"transaction"`
}
