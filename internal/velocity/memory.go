package velocity

import (
	"context"
	"log/slog"
	"time"

	"payguard/risk-api/internal/syncutil"
)

// Memory is the in-process Counter. Each name holds its event times in
// ascending order; expired events are dropped lazily on access and by Sweep.
type Memory struct {
	window time.Duration
	now    func() time.Time
	events syncutil.ShardedMap[[]time.Time]
}

// NewMemory creates a counter over the given window.
func NewMemory(window time.Duration) *Memory {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Memory{window: window, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

// Add implements Counter.
func (m *Memory) Add(_ context.Context, names []string) error {
	now := m.now()
	cutoff := now.Add(-m.window)
	for _, name := range names {
		m.events.With(name, func(s map[string][]time.Time) {
			s[name] = insert(prune(s[name], cutoff), now)
		})
	}
	return nil
}

// Max implements Counter.
func (m *Memory) Max(_ context.Context, names []string) (int, error) {
	cutoff := m.now().Add(-m.window)
	best := 0
	for _, name := range names {
		m.events.With(name, func(s map[string][]time.Time) {
			ts, ok := s[name]
			if !ok {
				return
			}
			ts = prune(ts, cutoff)
			if len(ts) == 0 {
				delete(s, name)
				return
			}
			s[name] = ts
			if len(ts) > best {
				best = len(ts)
			}
		})
	}
	return best, nil
}

// Sweep drops expired events everywhere and forgets empty names.
// Returns how many names were removed.
func (m *Memory) Sweep() int {
	cutoff := m.now().Add(-m.window)
	removed := 0
	m.events.Range(func(s map[string][]time.Time) {
		for name, ts := range s {
			ts = prune(ts, cutoff)
			if len(ts) == 0 {
				delete(s, name)
				removed++
				continue
			}
			s[name] = ts
		}
	})
	return removed
}

// Len reports how many names currently hold events.
func (m *Memory) Len() int {
	return m.events.Len()
}

// Run sweeps every interval until ctx is cancelled.
func (m *Memory) Run(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				logger.Debug("velocity sweep", "removed_keys", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// insert adds t keeping ts sorted. Callers race between reading the clock
// and taking the shard lock, so t may be older than the tail.
func insert(ts []time.Time, t time.Time) []time.Time {
	i := len(ts)
	for i > 0 && ts[i-1].After(t) {
		i--
	}
	ts = append(ts, time.Time{})
	copy(ts[i+1:], ts[i:])
	ts[i] = t
	return ts
}

// prune drops the leading timestamps at or before cutoff. The slice is
// sorted, so the survivors are a suffix.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	out := make([]time.Time, len(ts)-i, len(ts)-i+1)
	copy(out, ts[i:])
	return out
}
