// Package velocity counts recent events per identifying attribute (IP, card
// BIN, email, device) inside a sliding window.
//
// A Tracker reads the count before a request is scored and records the
// request afterwards, so a request never inflates its own signal. The
// counting itself lives behind Counter, with an in-process implementation
// for single-instance deployments and a Redis one for shared state.
package velocity

import (
	"context"
	"strings"
	"time"

	"payguard/risk-api/internal/domain"
)

// Defaults applied when the configuration leaves them unset.
const (
	DefaultWindow     = 10 * time.Minute
	DefaultSaturation = 10
)

// Key prefixes keep the attribute namespaces apart.
const (
	PrefixIP     = "ip:"
	PrefixBIN    = "bin:"
	PrefixEmail  = "email:"
	PrefixDevice = "device:"
)

// Keys are the identifying attributes of one transaction. Empty fields are
// not tracked.
type Keys struct {
	IP     string
	BIN    string
	Email  string
	Device string
}

// KeysFrom picks the tracked attributes out of a scoring request.
func KeysFrom(in *domain.TransactionInput) Keys {
	return Keys{
		IP:     in.CustomerIP,
		BIN:    in.CardBIN,
		Email:  in.CustomerEmail,
		Device: in.DeviceFingerprint,
	}
}

// Names returns the prefixed counter names for every present attribute.
// Emails are compared case-insensitively.
func (k Keys) Names() []string {
	names := make([]string, 0, 4)
	add := func(prefix, v string) {
		if v = strings.TrimSpace(v); v != "" {
			names = append(names, prefix+v)
		}
	}
	add(PrefixIP, k.IP)
	add(PrefixBIN, k.BIN)
	add(PrefixEmail, strings.ToLower(k.Email))
	add(PrefixDevice, k.Device)
	return names
}

// Counter stores event timestamps per counter name.
type Counter interface {
	// Add records one event now under every name and prunes that name's
	// expired events.
	Add(ctx context.Context, names []string) error
	// Max returns the largest in-window event count over names.
	Max(ctx context.Context, names []string) (int, error)
}

// Tracker turns raw counts into a bounded risk signal.
type Tracker struct {
	counter    Counter
	saturation int
}

// NewTracker wraps a counter. A count of saturation or more maps to a
// score of 1.
func NewTracker(c Counter, saturation int) *Tracker {
	if saturation <= 0 {
		saturation = DefaultSaturation
	}
	return &Tracker{counter: c, saturation: saturation}
}

// Count returns the max over keys of in-window events.
func (t *Tracker) Count(ctx context.Context, keys Keys) (int, error) {
	names := keys.Names()
	if len(names) == 0 {
		return 0, nil
	}
	return t.counter.Max(ctx, names)
}

// Score is Count normalised into [0,1].
func (t *Tracker) Score(ctx context.Context, keys Keys) (float64, error) {
	n, err := t.Count(ctx, keys)
	if err != nil {
		return 0, err
	}
	return t.Normalize(n), nil
}

// Normalize maps an event count onto [0,1].
func (t *Tracker) Normalize(count int) float64 {
	if count <= 0 {
		return 0
	}
	if count >= t.saturation {
		return 1
	}
	return float64(count) / float64(t.saturation)
}

// Observe records the current request under every present key.
func (t *Tracker) Observe(ctx context.Context, keys Keys) error {
	names := keys.Names()
	if len(names) == 0 {
		return nil
	}
	return t.counter.Add(ctx, names)
}
