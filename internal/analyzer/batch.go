package analyzer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"payguard/risk-api/internal/domain"
	"payguard/risk-api/internal/metrics"
	"payguard/risk-api/internal/traces"
)

// BatchItem is one transaction of a batch with its optional ground truth
// label (1 = fraud, 0 = legitimate).
type BatchItem struct {
	Input domain.TransactionInput
	Label *int
}

// BatchResult is the per-item outcome. Items that failed validation carry
// Error and no verdict.
type BatchResult struct {
	Index            int                   `json:"index"`
	TransactionID    string                `json:"transaction_id,omitempty"`
	FraudProbability float64               `json:"fraud_probability"`
	RiskScore        int                   `json:"risk_score"`
	RiskLevel        domain.RiskLevel      `json:"risk_level,omitempty"`
	Decision         domain.Decision       `json:"decision,omitempty"`
	FeatureAnalysis  []domain.Contribution `json:"feature_analysis,omitempty"`
	ActualLabel      *int                  `json:"actual_label,omitempty"`
	Error            string                `json:"error,omitempty"`
}

// BatchStats summarises the scored items.
type BatchStats struct {
	Total               int     `json:"total"`
	Scored              int     `json:"scored"`
	Invalid             int     `json:"invalid"`
	Approved            int     `json:"approved"`
	Review              int     `json:"review"`
	Declined            int     `json:"declined"`
	AvgFraudProbability float64 `json:"avg_fraud_probability"`
}

// ConfusionMatrix counts labelled outcomes. A fraud label that ends in
// review is in neither FN nor TP.
type ConfusionMatrix struct {
	TruePositives  int `json:"true_positives"`  // label 1, declined
	TrueNegatives  int `json:"true_negatives"`  // label 0, approved
	FalsePositives int `json:"false_positives"` // label 0, not approved
	FalseNegatives int `json:"false_negatives"` // label 1, approved
}

// AccuracyMetrics is computed over the labelled, scored items.
type AccuracyMetrics struct {
	Labeled         int             `json:"labeled"`
	Accuracy        float64         `json:"accuracy"`
	Precision       float64         `json:"precision"`
	Recall          float64         `json:"recall"`
	F1Score         float64         `json:"f1_score"`
	ConfusionMatrix ConfusionMatrix `json:"confusion_matrix"`
}

// BatchReport is the outcome of AnalyzeBatch.
type BatchReport struct {
	BatchID          string           `json:"batch_id"`
	Results          []BatchResult    `json:"results"`
	Statistics       BatchStats       `json:"statistics"`
	AccuracyMetrics  *AccuracyMetrics `json:"accuracy_metrics,omitempty"`
	ModelVersion     string           `json:"model_version"`
	ProcessingTimeMS float64          `json:"processing_time_ms"`
}

// AnalyzeBatch evaluates every item in isolation. It records nothing:
// no velocity, no audit, no list overrides.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, items []BatchItem) (*BatchReport, error) {
	if len(items) == 0 {
		return nil, domain.InvalidInput("transactions must contain at least one item")
	}
	if len(items) > a.batchMax {
		return nil, domain.InvalidInput("transactions must contain at most %d items, got %d", a.batchMax, len(items))
	}

	start := time.Now()
	ctx, span := traces.StartSpan(ctx, "analyzer.AnalyzeBatch", traces.BatchSize(len(items)))
	defer span.End()

	report := &BatchReport{
		BatchID:      uuid.NewString(),
		Results:      make([]BatchResult, len(items)),
		Statistics:   BatchStats{Total: len(items)},
		ModelVersion: a.model.Version,
	}

	var (
		probSum float64
		acc     AccuracyMetrics
	)
	for i := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := &items[i]
		r := BatchResult{Index: i, TransactionID: item.Input.TransactionID, ActualLabel: item.Label}

		if item.Label != nil && *item.Label != 0 && *item.Label != 1 {
			r.Error = "Class must be 0 or 1"
			report.Results[i] = r
			report.Statistics.Invalid++
			metrics.BatchItemsTotal.WithLabelValues("invalid").Inc()
			continue
		}

		ev, err := a.Evaluate(ctx, &item.Input)
		if err != nil {
			r.Error = err.Error()
			report.Results[i] = r
			report.Statistics.Invalid++
			metrics.BatchItemsTotal.WithLabelValues("invalid").Inc()
			continue
		}
		metrics.BatchItemsTotal.WithLabelValues("scored").Inc()

		r.FraudProbability = ev.Probability
		r.RiskScore = ev.Verdict.RiskScore
		r.RiskLevel = ev.Verdict.RiskLevel
		r.Decision = ev.Verdict.Decision
		r.FeatureAnalysis = ev.TopFeatures
		report.Results[i] = r

		st := &report.Statistics
		st.Scored++
		probSum += ev.Probability
		switch ev.Verdict.Decision {
		case domain.DecisionApprove:
			st.Approved++
		case domain.DecisionReview:
			st.Review++
		case domain.DecisionDecline:
			st.Declined++
		}

		if item.Label != nil {
			acc.Labeled++
			tally(&acc.ConfusionMatrix, *item.Label, ev.Verdict.Decision)
		}
	}

	if report.Statistics.Scored > 0 {
		report.Statistics.AvgFraudProbability = probSum / float64(report.Statistics.Scored)
	}
	if acc.Labeled > 0 {
		finish(&acc)
		report.AccuracyMetrics = &acc
	}
	report.ProcessingTimeMS = float64(time.Since(start).Microseconds()) / 1000
	return report, nil
}

func tally(cm *ConfusionMatrix, label int, d domain.Decision) {
	switch {
	case label == 1 && d == domain.DecisionDecline:
		cm.TruePositives++
	case label == 1 && d == domain.DecisionApprove:
		cm.FalseNegatives++
	case label == 0 && d == domain.DecisionApprove:
		cm.TrueNegatives++
	case label == 0:
		cm.FalsePositives++
	}
}

func finish(m *AccuracyMetrics) {
	cm := m.ConfusionMatrix
	m.Accuracy = float64(cm.TruePositives+cm.TrueNegatives) / float64(m.Labeled)
	m.Precision = ratio(cm.TruePositives, cm.TruePositives+cm.FalsePositives)
	m.Recall = ratio(cm.TruePositives, cm.TruePositives+cm.FalseNegatives)
	if m.Precision+m.Recall > 0 {
		m.F1Score = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
