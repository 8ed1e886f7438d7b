// Package scoring implements the explainable linear fraud scorer and the
// probability→decision policy.
//
// Architecture:
//
//	The scorer is a pure function of its input vector and the loaded model
//	table. It holds no state beyond the immutable model, so one Scorer is
//	shared by every request.
//
// Scoring:
//
//	logit        = intercept + Σ coefficient[i] * x[i]   (index order)
//	probability  = 1 / (1 + e^-logit)
//	contribution = coefficient[i] * x[i], ranked by |contribution|
package scoring

import (
	"math"
	"sort"

	"payguard/risk-api/internal/domain"
	"payguard/risk-api/internal/model"
)

// TopFeatures is how many contributions are shown to callers.
const TopFeatures = 10

// Scorer applies a model table to feature vectors.
type Scorer struct {
	model *model.Model
}

// New creates a scorer over the given model.
func New(m *model.Model) *Scorer {
	return &Scorer{model: m}
}

// Model returns the table this scorer runs on.
func (s *Scorer) Model() *model.Model {
	return s.model
}

// Result is the outcome of scoring one vector.
type Result struct {
	Probability float64
	Logit       float64
	// Contributions holds all features, largest |contribution| first,
	// ties in feature order.
	Contributions []domain.Contribution
}

// Top returns at most n leading contributions.
func (r Result) Top(n int) []domain.Contribution {
	if n > len(r.Contributions) {
		n = len(r.Contributions)
	}
	return r.Contributions[:n]
}

// ─── Public API ───────────────────────────────────────────────────────────────

// Score computes the fraud probability and per-feature contributions.
// The vector must have exactly domain.FeatureCount entries.
func (s *Scorer) Score(vec domain.FeatureVector) (Result, error) {
	if len(vec) != domain.FeatureCount {
		return Result{}, domain.InvalidInput("feature vector must have %d values, got %d", domain.FeatureCount, len(vec))
	}

	logit := s.model.Intercept
	contributions := make([]domain.Contribution, len(vec))
	for i, x := range vec {
		c := s.model.Coefficients[i] * x
		logit += c
		contributions[i] = domain.Contribution{
			Feature:      s.model.Features[i],
			Index:        i,
			Value:        x,
			Coefficient:  s.model.Coefficients[i],
			Contribution: c,
			Impact:       impact(c),
		}
	}

	sort.SliceStable(contributions, func(a, b int) bool {
		return math.Abs(contributions[a].Contribution) > math.Abs(contributions[b].Contribution)
	})

	return Result{
		Probability:   clamp01(Sigmoid(logit)),
		Logit:         logit,
		Contributions: contributions,
	}, nil
}

// Sigmoid maps a logit to (0,1), saturating outside ±500.
func Sigmoid(x float64) float64 {
	if x > 500 {
		return 1
	}
	if x < -500 {
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func impact(c float64) string {
	switch {
	case c > 0:
		return domain.ImpactIncreases
	case c < 0:
		return domain.ImpactDecreases
	default:
		return domain.ImpactNeutral
	}
}

func clamp01(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
