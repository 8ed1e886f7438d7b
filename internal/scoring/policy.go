package scoring

import (
	"math"

	"payguard/risk-api/internal/domain"
)

// Risk-level bucket boundaries; each is the inclusive lower bound of the next bucket.
const (
	LevelMediumFrom   = 0.25
	LevelHighFrom     = 0.50
	LevelCriticalFrom = 0.75
)

// Decision thresholds. A separate axis from the risk levels above.
const (
	ReviewFrom  = 0.30
	DeclineFrom = 0.70
)

// Override is the list-based slot evaluated before the numeric policy.
type Override struct {
	Status domain.ListStatus
	// Source names the matched entity, e.g. "email".
	Source string
}

// NoOverride is the zero override: fall through to the numeric policy.
var NoOverride = Override{Status: domain.ListedNone}

// Verdict is the outcome of the decision policy.
type Verdict struct {
	RiskScore int
	RiskLevel domain.RiskLevel
	Decision  domain.Decision
	// Override is "blacklist:<source>" or "whitelist:<source>" when a list
	// entry forced the decision, otherwise empty.
	Override string
}

// Decide maps a probability to score, level and decision.
// Blacklist forces decline, whitelist forces approve; score and level still
// reflect the model so reviewers can see what was overridden.
func Decide(p float64, o Override) Verdict {
	v := Verdict{
		RiskScore: RiskScore(p),
		RiskLevel: Level(p),
	}
	switch o.Status {
	case domain.ListedBlacklisted:
		v.Decision = domain.DecisionDecline
		v.Override = string(domain.ListBlacklist) + ":" + o.Source
	case domain.ListedWhitelisted:
		v.Decision = domain.DecisionApprove
		v.Override = string(domain.ListWhitelist) + ":" + o.Source
	default:
		v.Decision = NumericDecision(p)
	}
	return v
}

// RiskScore is round(p*100), clamped to [0,100].
func RiskScore(p float64) int {
	s := int(math.Round(p * 100))
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// Level returns the four-tier risk bucket for p.
func Level(p float64) domain.RiskLevel {
	switch {
	case p < LevelMediumFrom:
		return domain.RiskLow
	case p < LevelHighFrom:
		return domain.RiskMedium
	case p < LevelCriticalFrom:
		return domain.RiskHigh
	default:
		return domain.RiskCritical
	}
}

// NumericDecision applies the probability thresholds with no overrides.
func NumericDecision(p float64) domain.Decision {
	switch {
	case p < ReviewFrom:
		return domain.DecisionApprove
	case p < DeclineFrom:
		return domain.DecisionReview
	default:
		return domain.DecisionDecline
	}
}
