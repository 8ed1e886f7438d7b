package scoring_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"payguard/risk-api/internal/domain"
	"payguard/risk-api/internal/scoring"
)

func TestRiskScore_IsRoundedPercentInRange(t *testing.T) {
	for i := 0; i <= 10000; i++ {
		p := float64(i) / 10000
		got := scoring.RiskScore(p)
		assert.Equal(t, int(math.Round(p*100)), got, "p=%v", p)
		assert.GreaterOrEqual(t, got, 0)
		assert.LessOrEqual(t, got, 100)
	}
}

func TestLevel_Boundaries(t *testing.T) {
	tests := []struct {
		p    float64
		want domain.RiskLevel
	}{
		{0, domain.RiskLow},
		{0.2499, domain.RiskLow},
		{0.25, domain.RiskMedium},
		{0.4999, domain.RiskMedium},
		{0.5, domain.RiskHigh},
		{0.7499, domain.RiskHigh},
		{0.75, domain.RiskCritical},
		{1, domain.RiskCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scoring.Level(tt.p), "p=%v", tt.p)
	}
}

func TestNumericDecision_Boundaries(t *testing.T) {
	tests := []struct {
		p    float64
		want domain.Decision
	}{
		{0, domain.DecisionApprove},
		{0.2999, domain.DecisionApprove},
		{0.3, domain.DecisionReview},
		{0.6999, domain.DecisionReview},
		{0.7, domain.DecisionDecline},
		{1, domain.DecisionDecline},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scoring.NumericDecision(tt.p), "p=%v", tt.p)
	}
}

func TestDecide_DecisionAxisIndependentOfLevel(t *testing.T) {
	// 0.27 is already "medium" but still approved; 0.72 is "high" but declined.
	v := scoring.Decide(0.27, scoring.NoOverride)
	assert.Equal(t, domain.RiskMedium, v.RiskLevel)
	assert.Equal(t, domain.DecisionApprove, v.Decision)

	v = scoring.Decide(0.72, scoring.NoOverride)
	assert.Equal(t, domain.RiskHigh, v.RiskLevel)
	assert.Equal(t, domain.DecisionDecline, v.Decision)
	assert.Empty(t, v.Override)
}

func TestDecide_BlacklistForcesDecline(t *testing.T) {
	v := scoring.Decide(0.01, scoring.Override{Status: domain.ListedBlacklisted, Source: domain.EntityEmail})
	assert.Equal(t, domain.DecisionDecline, v.Decision)
	assert.Equal(t, "blacklist:email", v.Override)
	assert.Equal(t, 1, v.RiskScore)
	assert.Equal(t, domain.RiskLow, v.RiskLevel)
}

func TestDecide_WhitelistForcesApprove(t *testing.T) {
	v := scoring.Decide(0.99, scoring.Override{Status: domain.ListedWhitelisted, Source: domain.EntityIP})
	assert.Equal(t, domain.DecisionApprove, v.Decision)
	assert.Equal(t, "whitelist:ip", v.Override)
	assert.Equal(t, 99, v.RiskScore)
	assert.Equal(t, domain.RiskCritical, v.RiskLevel)
}

func TestDecide_ZeroOverrideFallsThrough(t *testing.T) {
	v := scoring.Decide(0.5, scoring.Override{})
	assert.Equal(t, domain.DecisionReview, v.Decision)
	assert.Equal(t, 50, v.RiskScore)
}
