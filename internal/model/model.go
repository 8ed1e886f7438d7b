// Package model loads the versioned coefficient table the scorer runs on.
//
// The table is configuration data, not code: a JSON document embedded in
// the binary that can be replaced at startup with MODEL_PATH. A table that
// fails validation is reported as domain.ErrModelUnavailable and the
// service refuses to start.
package model

import (
	"embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"payguard/risk-api/internal/domain"
)

//go:embed models/*.json
var embedded embed.FS

// DefaultFile is the embedded table used when no override path is configured.
const DefaultFile = "models/payguard-lr-2.1.0.json"

// Dataset describes the data the coefficients were fitted on.
type Dataset struct {
	Name         string `json:"name"`
	URL          string `json:"url,omitempty"`
	TotalSamples int    `json:"total_samples,omitempty"`
	FraudCases   int    `json:"fraud_cases,omitempty"`
}

// Scaler holds standardisation parameters for a single feature.
type Scaler struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Apply standardises v; a zero std maps everything to 0.
func (s Scaler) Apply(v float64) float64 {
	if s.Std == 0 {
		return 0
	}
	return (v - s.Mean) / s.Std
}

// Model is an immutable linear model: one coefficient per feature plus an intercept.
type Model struct {
	Name         string             `json:"name"`
	Version      string             `json:"version"`
	Type         string             `json:"type"`
	TrainedOn    string             `json:"trained_on,omitempty"`
	Dataset      Dataset            `json:"dataset"`
	Features     []string           `json:"features"`
	Coefficients []float64          `json:"coefficients"`
	Intercept    float64            `json:"intercept"`
	TimeScaler   Scaler             `json:"time_scaler"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`

	index map[string]int
}

// Load reads the table at path, or the embedded default when path is empty.
func Load(path string) (*Model, error) {
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = embedded.ReadFile(DefaultFile)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %v", domain.ErrModelUnavailable, path, err)
	}
	return Parse(data)
}

// Default returns the embedded table. It panics if the embedded file is
// broken, which only a bad build can cause.
func Default() *Model {
	m, err := Load("")
	if err != nil {
		panic(err)
	}
	return m
}

// Parse decodes and validates a JSON model table.
func Parse(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrModelUnavailable, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	return &m, nil
}

func (m *Model) validate() error {
	if m.Version == "" {
		return fmt.Errorf("version is required")
	}
	if len(m.Features) != domain.FeatureCount {
		return fmt.Errorf("expected %d features, got %d", domain.FeatureCount, len(m.Features))
	}
	if len(m.Coefficients) != len(m.Features) {
		return fmt.Errorf("expected %d coefficients, got %d", len(m.Features), len(m.Coefficients))
	}
	if !finite(m.Intercept) {
		return fmt.Errorf("intercept is not finite")
	}
	m.index = make(map[string]int, len(m.Features))
	for i, name := range m.Features {
		if _, dup := m.index[name]; dup {
			return fmt.Errorf("duplicate feature %q", name)
		}
		if !finite(m.Coefficients[i]) {
			return fmt.Errorf("coefficient for %q is not finite", name)
		}
		m.index[name] = i
	}
	for _, name := range []string{"Time", "Amount"} {
		if _, ok := m.index[name]; !ok {
			return fmt.Errorf("feature %q is required", name)
		}
	}
	return nil
}

// Index returns the vector position of the named feature.
func (m *Model) Index(name string) (int, bool) {
	i, ok := m.index[name]
	return i, ok
}

// Coefficient returns the weight of the named feature, 0 if unknown.
func (m *Model) Coefficient(name string) float64 {
	if i, ok := m.index[name]; ok {
		return m.Coefficients[i]
	}
	return 0
}

// Importance is a feature's absolute weight in the model.
type Importance struct {
	Feature     string  `json:"feature"`
	Importance  float64 `json:"importance"`
	Coefficient float64 `json:"coefficient"`
	Direction   string  `json:"direction"` // positive | negative
}

// FeatureImportance ranks features by absolute coefficient, largest first.
func (m *Model) FeatureImportance() []Importance {
	out := make([]Importance, len(m.Features))
	for i, name := range m.Features {
		c := m.Coefficients[i]
		dir := "positive"
		if c < 0 {
			dir = "negative"
		}
		out[i] = Importance{Feature: name, Importance: math.Abs(c), Coefficient: c, Direction: dir}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
