// Package ratelimit provides fixed-window request limiting per API key.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"payguard/risk-api/internal/syncutil"
)

// Config configures rate limiting
type Config struct {
	// Limit is the max requests per key per window
	Limit int
	// Window is the length of one counting window
	Window time.Duration
	// CleanupInterval is how often to drop expired windows (memory only)
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Limit:           100,
		Window:          time.Minute,
		CleanupInterval: time.Minute,
	}
}

// Result describes the state of a key's window after a request.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter decides whether one more request is allowed for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Memory tracks windows in-process.
type Memory struct {
	cfg     Config
	now     func() time.Time
	windows syncutil.ShardedMap[*window]
	stop    chan struct{}
}

type window struct {
	count   int
	resetAt time.Time
}

// NewMemory creates an in-process limiter. When cfg.CleanupInterval is
// positive a sweeper runs until Stop.
func NewMemory(cfg Config) *Memory {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultConfig().Limit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	m := &Memory{cfg: cfg, now: time.Now, stop: make(chan struct{})}
	if cfg.CleanupInterval > 0 {
		go m.cleanup()
	}
	return m
}

// WithClock replaces the time source. Intended for tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

// cleanup removes expired windows periodically
func (m *Memory) cleanup() {
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				slog.Debug("ratelimit sweep", "removed_keys", n)
			}
		case <-m.stop:
			return
		}
	}
}

// Sweep drops every window that has already reset.
func (m *Memory) Sweep() int {
	now := m.now()
	removed := 0
	m.windows.Range(func(s map[string]*window) {
		for key, w := range s {
			if now.After(w.resetAt) {
				delete(s, key)
				removed++
			}
		}
	})
	return removed
}

// Stop stops the cleanup goroutine
func (m *Memory) Stop() {
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
}

// Allow implements Limiter. A window starts on first use and is replaced
// wholesale once now passes its reset time.
func (m *Memory) Allow(_ context.Context, key string) (Result, error) {
	now := m.now()
	var res Result
	m.windows.With(key, func(s map[string]*window) {
		w, ok := s[key]
		if !ok || now.After(w.resetAt) {
			w = &window{resetAt: now.Add(m.cfg.Window)}
			s[key] = w
		}
		w.count++
		res = newResult(m.cfg.Limit, w.count, w.resetAt)
	})
	return res, nil
}

func newResult(limit, count int, resetAt time.Time) Result {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
