// Package features turns a scoring request into the model's fixed-order
// feature vector.
//
// Two input forms are accepted. The raw form carries the anonymised
// components directly and is copied verbatim. The partial form carries
// customer attributes; each attribute becomes a bounded risk signal in
// [0,1] that is scaled into a dedicated model slot, so the logit
// contribution of any single heuristic has a known ceiling.
package features

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"payguard/risk-api/internal/domain"
	"payguard/risk-api/internal/model"
	"payguard/risk-api/internal/velocity"
)

// Slot scales. A signal of 1 puts scale × coefficient on the logit.
const (
	ScaleEmail    = 20.0
	ScaleCountry  = 25.0
	ScaleBIN      = 20.0
	ScaleVelocity = 40.0
	ScaleIdentity = 10.0
	ScaleAmount   = 30.0
	ScaleOffHours = 20.0
	ScaleDevice   = 5.0
)

// Slots assigns each derived signal to a model feature.
var Slots = map[string]string{
	"email":     "V4",
	"country":   "V11",
	"bin":       "V2",
	"velocity":  "V20",
	"identity":  "V8",
	"amount":    "V19",
	"off_hours": "V27",
	"device":    "V17",
}

// VelocityReader is the read side of the velocity tracker.
type VelocityReader interface {
	Count(ctx context.Context, keys velocity.Keys) (int, error)
	Normalize(count int) float64
}

// Signals is the intermediate per-heuristic breakdown of a partial request.
type Signals struct {
	Raw             bool    `json:"raw"`
	Hour            int     `json:"hour"`
	EmailRisk       float64 `json:"email_risk"`
	CountryRisk     float64 `json:"country_risk"`
	BINRisk         float64 `json:"bin_risk"`
	Velocity        float64 `json:"velocity"`
	VelocityCount   int     `json:"velocity_count"`
	UnknownIdentity float64 `json:"unknown_identity"`
	AmountBucket    float64 `json:"amount_bucket"`
	OffHours        float64 `json:"off_hours"`
	DeviceTrust     float64 `json:"device_trust"`
}

// Extractor builds feature vectors against one model's feature layout.
type Extractor struct {
	model    *model.Model
	velocity VelocityReader
	logger   *slog.Logger
	now      func() time.Time

	timeIdx, amountIdx int
	opaqueIdx          [domain.OpaqueCount]int
	slot               map[string]int
}

// Option customises an Extractor.
type Option func(*Extractor)

// WithClock replaces the time source used when a request has no time.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithLogger sets the logger used for velocity read failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New resolves the slot layout against m. v may be nil, in which case the
// velocity signal is always 0.
func New(m *model.Model, v VelocityReader, opts ...Option) (*Extractor, error) {
	e := &Extractor{
		model:    m,
		velocity: v,
		logger:   slog.Default(),
		now:      time.Now,
		slot:     make(map[string]int, len(Slots)),
	}
	for _, o := range opts {
		o(e)
	}

	var ok bool
	if e.timeIdx, ok = m.Index("Time"); !ok {
		return nil, fmt.Errorf("features: model has no Time feature")
	}
	if e.amountIdx, ok = m.Index("Amount"); !ok {
		return nil, fmt.Errorf("features: model has no Amount feature")
	}
	for i := 0; i < domain.OpaqueCount; i++ {
		name := fmt.Sprintf("V%d", i+1)
		if e.opaqueIdx[i], ok = m.Index(name); !ok {
			return nil, fmt.Errorf("features: model has no %s feature", name)
		}
	}
	for signal, name := range Slots {
		e.slot[signal], _ = m.Index(name)
	}
	return e, nil
}

// Extract validates the request and returns its feature vector.
func (e *Extractor) Extract(ctx context.Context, in *domain.TransactionInput) (domain.FeatureVector, Signals, error) {
	amount, ok := in.AmountValue()
	if !ok || math.IsNaN(amount) || amount <= 0 {
		return nil, Signals{}, domain.InvalidInput("amount must be a positive number")
	}
	if math.IsInf(amount, 0) {
		return nil, Signals{}, domain.InvalidInput("amount must be finite")
	}

	vec := make(domain.FeatureVector, domain.FeatureCount)
	vec[e.amountIdx] = amount

	ts, hasTime := in.TimeValue()
	if !hasTime {
		ts = float64(e.now().Unix())
	}

	if in.IsRaw() {
		opaque := in.Opaque()
		for i, v := range opaque {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, Signals{}, domain.InvalidInput("V%d must be finite", i+1)
			}
			vec[e.opaqueIdx[i]] = v
		}
		vec[e.timeIdx] = ts
		return vec, Signals{Raw: true}, nil
	}

	hour := HourOfDay(ts)
	s := Signals{
		Hour:         hour,
		EmailRisk:    EmailRisk(in.CustomerEmail),
		CountryRisk:  CountryRisk(in.CustomerCountry),
		BINRisk:      BINRisk(in.CardBIN),
		AmountBucket: AmountBucket(amount),
		OffHours:     OffHours(hour),
	}
	if in.CustomerEmail == "" {
		s.UnknownIdentity = 1
	}
	if len(in.DeviceFingerprint) >= MinFingerprintLen {
		s.DeviceTrust = 1
	}
	if e.velocity != nil {
		n, err := e.velocity.Count(ctx, velocity.KeysFrom(in))
		if err != nil {
			e.logger.Warn("velocity read failed, scoring without it", "error", err)
		} else {
			s.VelocityCount = n
			s.Velocity = e.velocity.Normalize(n)
		}
	}

	vec[e.timeIdx] = e.model.TimeScaler.Apply(float64(hour * 3600))
	e.put(vec, "email", s.EmailRisk, ScaleEmail)
	e.put(vec, "country", s.CountryRisk, ScaleCountry)
	e.put(vec, "bin", s.BINRisk, ScaleBIN)
	e.put(vec, "velocity", s.Velocity, ScaleVelocity)
	e.put(vec, "identity", s.UnknownIdentity, ScaleIdentity)
	e.put(vec, "amount", s.AmountBucket, ScaleAmount)
	e.put(vec, "off_hours", s.OffHours, ScaleOffHours)
	e.put(vec, "device", s.DeviceTrust, ScaleDevice)
	return vec, s, nil
}

func (e *Extractor) put(vec domain.FeatureVector, signal string, v, scale float64) {
	vec[e.slot[signal]] = clamp01(v) * scale
}

// HourOfDay is the UTC hour of an epoch-seconds timestamp.
func HourOfDay(epoch float64) int {
	secs := math.Mod(epoch, 86400)
	if secs < 0 {
		secs += 86400
	}
	return int(secs/3600) % 24
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
