// Package analyzer runs the scoring pipeline for one request:
//
//	extract → score → list override → decide → observe velocity
//
// then hands the verdict to the audit log and, for declines, the alert
// webhooks. Both run in tracked goroutines so the caller's latency never
// includes them; Wait drains them on shutdown.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"payguard/risk-api/internal/domain"
	"payguard/risk-api/internal/features"
	"payguard/risk-api/internal/metrics"
	"payguard/risk-api/internal/model"
	"payguard/risk-api/internal/scoring"
	"payguard/risk-api/internal/store"
	"payguard/risk-api/internal/traces"
	"payguard/risk-api/internal/velocity"
)

// DefaultBatchMax bounds AnalyzeBatch when Deps.BatchMax is unset.
const DefaultBatchMax = 1000

// backgroundTimeout bounds each audit write and alert delivery.
const backgroundTimeout = 10 * time.Second

// Alerter receives declined transactions.
type Alerter interface {
	Notify(ctx context.Context, tx *domain.AuditedTransaction) error
}

// Deps are the collaborators of an Analyzer. Tracker, Lists and Alerts are
// optional.
type Deps struct {
	Model    *model.Model
	Tracker  *velocity.Tracker
	Audit    store.AuditStore
	Lists    store.ListStore
	Alerts   Alerter
	Logger   *slog.Logger
	BatchMax int
	Now      func() time.Time
}

// Analyzer is safe for concurrent use.
type Analyzer struct {
	model    *model.Model
	live     *features.Extractor
	static   *features.Extractor
	scorer   *scoring.Scorer
	tracker  *velocity.Tracker
	audit    store.AuditStore
	lists    store.ListStore
	alerts   Alerter
	logger   *slog.Logger
	batchMax int
	now      func() time.Time

	wg sync.WaitGroup
}

// New wires an Analyzer.
func New(d Deps) (*Analyzer, error) {
	if d.Model == nil {
		return nil, fmt.Errorf("analyzer: model is required: %w", domain.ErrModelUnavailable)
	}
	if d.Audit == nil {
		return nil, fmt.Errorf("analyzer: audit store is required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.BatchMax <= 0 {
		d.BatchMax = DefaultBatchMax
	}

	opts := []features.Option{features.WithClock(d.Now), features.WithLogger(d.Logger)}
	var reader features.VelocityReader
	if d.Tracker != nil {
		reader = d.Tracker
	}
	live, err := features.New(d.Model, reader, opts...)
	if err != nil {
		return nil, err
	}
	static, err := features.New(d.Model, nil, opts...)
	if err != nil {
		return nil, err
	}

	return &Analyzer{
		model:    d.Model,
		live:     live,
		static:   static,
		scorer:   scoring.New(d.Model),
		tracker:  d.Tracker,
		audit:    d.Audit,
		lists:    d.Lists,
		alerts:   d.Alerts,
		logger:   d.Logger,
		batchMax: d.BatchMax,
		now:      d.Now,
	}, nil
}

// Model returns the table every verdict is computed with.
func (a *Analyzer) Model() *model.Model {
	return a.model
}

// Analysis is the verdict for one request plus its explanation.
type Analysis struct {
	TransactionID  string
	AuditID        string
	Probability    float64
	Logit          float64
	Verdict        scoring.Verdict
	TopFeatures    []domain.Contribution
	Signals        features.Signals
	ModelVersion   string
	ProcessingTime time.Duration
	Timestamp      time.Time
}

// Analyze scores one live request. Invalid input returns an error wrapping
// domain.ErrInvalidInput and has no side effects.
func (a *Analyzer) Analyze(ctx context.Context, in *domain.TransactionInput) (*Analysis, error) {
	start := time.Now()
	txID := in.TransactionID
	if txID == "" {
		txID = "txn_" + uuid.NewString()
	}
	ctx, span := traces.StartSpan(ctx, "analyzer.Analyze", traces.TransactionID(txID), traces.ModelVersion(a.model.Version))
	defer span.End()

	vec, sig, err := a.live.Extract(ctx, in)
	if err != nil {
		traces.Fail(span, err)
		return nil, err
	}

	res, err := a.scorer.Score(vec)
	if err != nil {
		traces.Fail(span, err)
		return nil, err
	}

	verdict := scoring.Decide(res.Probability, a.override(ctx, in))

	if a.tracker != nil {
		if err := a.tracker.Observe(ctx, velocity.KeysFrom(in)); err != nil {
			metrics.BackendErrorsTotal.WithLabelValues("velocity").Inc()
			a.logger.Warn("velocity observe failed", "transaction_id", txID, "error", err)
		}
	}

	elapsed := time.Since(start)
	out := &Analysis{
		TransactionID:  txID,
		AuditID:        uuid.NewString(),
		Probability:    res.Probability,
		Logit:          res.Logit,
		Verdict:        verdict,
		TopFeatures:    res.Top(scoring.TopFeatures),
		Signals:        sig,
		ModelVersion:   a.model.Version,
		ProcessingTime: elapsed,
		Timestamp:      a.now().UTC(),
	}

	span.SetAttributes(traces.Verdict(string(verdict.Decision), string(verdict.RiskLevel), res.Probability, verdict.Override)...)
	metrics.ObserveDecision(string(verdict.Decision), res.Probability, verdict.Override != "")
	metrics.ScoringDuration.Observe(elapsed.Seconds())

	a.record(ctx, a.audited(in, out))
	return out, nil
}

// override checks the lists for every attribute present. The first
// blacklist hit wins; otherwise the first whitelist hit applies.
func (a *Analyzer) override(ctx context.Context, in *domain.TransactionInput) scoring.Override {
	if a.lists == nil {
		return scoring.NoOverride
	}
	candidates := []struct{ kind, value string }{
		{domain.EntityEmail, in.CustomerEmail},
		{domain.EntityIP, in.CustomerIP},
		{domain.EntityBIN, in.CardBIN},
		{domain.EntityDevice, in.DeviceFingerprint},
		{domain.EntityCountry, in.CustomerCountry},
	}
	result := scoring.NoOverride
	for _, c := range candidates {
		if c.value == "" {
			continue
		}
		st, err := a.lists.Lookup(ctx, c.kind, c.value)
		if err != nil {
			metrics.BackendErrorsTotal.WithLabelValues("lists").Inc()
			a.logger.Warn("list lookup failed", "type", c.kind, "error", err)
			continue
		}
		switch st {
		case domain.ListedBlacklisted:
			return scoring.Override{Status: st, Source: c.kind}
		case domain.ListedWhitelisted:
			if result.Status == domain.ListedNone {
				result = scoring.Override{Status: st, Source: c.kind}
			}
		}
	}
	return result
}

func (a *Analyzer) audited(in *domain.TransactionInput, out *Analysis) *domain.AuditedTransaction {
	amount, _ := in.AmountValue()
	currency := in.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	return &domain.AuditedTransaction{
		ID:                   out.AuditID,
		TransactionID:        out.TransactionID,
		Timestamp:            out.Timestamp,
		Amount:               amount,
		Currency:             currency,
		CustomerEmail:        in.CustomerEmail,
		CustomerIP:           in.CustomerIP,
		CustomerCountry:      in.CustomerCountry,
		CardBIN:              in.CardBIN,
		DeviceFingerprint:    in.DeviceFingerprint,
		FraudProbability:     out.Probability,
		RiskScore:            out.Verdict.RiskScore,
		RiskLevel:            out.Verdict.RiskLevel,
		Decision:             out.Verdict.Decision,
		Override:             out.Verdict.Override,
		FeatureContributions: out.TopFeatures,
		ModelVersion:         out.ModelVersion,
		ProcessingTimeMS:     float64(out.ProcessingTime.Microseconds()) / 1000,
	}
}

// record appends to the audit log and alerts on declines, off the request
// path. Failures are logged and counted, never returned.
func (a *Analyzer) record(ctx context.Context, tx *domain.AuditedTransaction) {
	bg := context.WithoutCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		actx, cancel := context.WithTimeout(bg, backgroundTimeout)
		defer cancel()
		if err := a.audit.Append(actx, tx); err != nil {
			metrics.AuditWriteFailuresTotal.Inc()
			a.logger.Error("audit append failed", "transaction_id", tx.TransactionID, "error", err)
		}
	}()

	if a.alerts == nil || tx.Decision != domain.DecisionDecline {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		nctx, cancel := context.WithTimeout(bg, backgroundTimeout)
		defer cancel()
		// Notify logs and counts its own failures.
		_ = a.alerts.Notify(nctx, tx)
	}()
}

// Wait blocks until every pending audit write and alert has finished.
func (a *Analyzer) Wait() {
	a.wg.Wait()
}

// Evaluation is a side-effect-free verdict: no velocity, no lists, no audit.
type Evaluation struct {
	Probability float64
	Verdict     scoring.Verdict
	TopFeatures []domain.Contribution
}

// Evaluate scores a request in isolation.
func (a *Analyzer) Evaluate(ctx context.Context, in *domain.TransactionInput) (*Evaluation, error) {
	vec, _, err := a.static.Extract(ctx, in)
	if err != nil {
		return nil, err
	}
	res, err := a.scorer.Score(vec)
	if err != nil {
		return nil, err
	}
	return &Evaluation{
		Probability: res.Probability,
		Verdict:     scoring.Decide(res.Probability, scoring.NoOverride),
		TopFeatures: res.Top(scoring.TopFeatures),
	}, nil
}
