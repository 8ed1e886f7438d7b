package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"payguard/risk-api/internal/domain"
)

// Memory is a thread-safe, fixed-capacity audit log. When full, the oldest
// record is evicted.
type Memory struct {
	mu sync.RWMutex

	capacity int
	// records is oldest first.
	records []*domain.AuditedTransaction
	byID    map[string]*domain.AuditedTransaction
}

// NewMemory creates an empty audit log holding at most capacity records.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{
		capacity: capacity,
		records:  make([]*domain.AuditedTransaction, 0, capacity),
		byID:     make(map[string]*domain.AuditedTransaction, capacity),
	}
}

// ─── Audit log ────────────────────────────────────────────────────────────────

// Append stores a copy of tx, evicting the oldest record when full.
func (s *Memory) Append(_ context.Context, tx *domain.AuditedTransaction) error {
	rec := clone(tx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) == s.capacity {
		delete(s.byID, s.records[0].ID)
		copy(s.records, s.records[1:])
		s.records = s.records[:len(s.records)-1]
	}
	s.records = append(s.records, rec)
	s.byID[rec.ID] = rec
	return nil
}

// Recent returns up to limit records, most recent first.
func (s *Memory) Recent(_ context.Context, limit int) ([]domain.AuditedTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	out := make([]domain.AuditedTransaction, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *clone(s.records[i]))
	}
	return out, nil
}

// Get retrieves a single record by ID.
func (s *Memory) Get(_ context.Context, id string) (*domain.AuditedTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(rec), nil
}

// Review applies the one-time reviewer decision.
func (s *Memory) Review(_ context.Context, id string, r Review) (*domain.AuditedTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Reviewed {
		return nil, ErrAlreadyReviewed
	}
	at := r.At.UTC()
	rec.Reviewed = true
	rec.ReviewedBy = r.ReviewedBy
	rec.ReviewedAt = &at
	rec.ReviewDecision = r.Decision
	return clone(rec), nil
}

// Stats aggregates over the retained records.
func (s *Memory) Stats(_ context.Context) (domain.AuditStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st domain.AuditStats
	for _, rec := range s.records {
		accumulate(&st, rec)
	}
	return st, nil
}

func accumulate(st *domain.AuditStats, rec *domain.AuditedTransaction) {
	st.TotalAnalyzed++
	if rec.Decision != domain.DecisionApprove {
		st.TotalFlagged++
	}
	if rec.Decision == domain.DecisionDecline {
		st.TotalDeclined++
	}
	if rec.Decision == domain.DecisionReview && !rec.Reviewed {
		st.PendingReview++
	}
}

func clone(tx *domain.AuditedTransaction) *domain.AuditedTransaction {
	c := *tx
	c.FeatureContributions = append([]domain.Contribution(nil), tx.FeatureContributions...)
	if tx.ReviewedAt != nil {
		at := *tx.ReviewedAt
		c.ReviewedAt = &at
	}
	return &c
}

// ─── Allow / deny lists ───────────────────────────────────────────────────────

// Lists is a thread-safe in-memory ListStore.
type Lists struct {
	mu      sync.RWMutex
	entries map[string]*domain.ListEntry
	now     func() time.Time
}

// NewLists creates an empty list store.
func NewLists() *Lists {
	return &Lists{entries: make(map[string]*domain.ListEntry), now: time.Now}
}

// Add upserts an entry by ID.
func (l *Lists) Add(_ context.Context, e *domain.ListEntry) error {
	c := *e
	c.Value = normalizeValue(c.Type, c.Value)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[c.ID] = &c
	return nil
}

// Delete removes an entry by ID.
func (l *Lists) Delete(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[id]; !ok {
		return ErrNotFound
	}
	delete(l.entries, id)
	return nil
}

// List returns all non-expired entries, oldest first.
func (l *Lists) List(_ context.Context) ([]domain.ListEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := l.now()
	out := make([]domain.ListEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if active(e, now) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Lookup implements ListStore. Expired entries are silently skipped.
func (l *Lists) Lookup(_ context.Context, entityType, value string) (domain.ListStatus, error) {
	value = normalizeValue(entityType, value)
	if value == "" {
		return domain.ListedNone, nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	now := l.now()
	status := domain.ListedNone
	for _, e := range l.entries {
		if e.Type != entityType || e.Value != value || !active(e, now) {
			continue
		}
		if e.ListType == domain.ListBlacklist {
			return domain.ListedBlacklisted, nil
		}
		status = domain.ListedWhitelisted
	}
	return status, nil
}

func active(e *domain.ListEntry, now time.Time) bool {
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}

// normalizeValue makes emails and countries case-insensitive.
func normalizeValue(entityType, v string) string {
	v = strings.TrimSpace(v)
	switch entityType {
	case domain.EntityEmail:
		return strings.ToLower(v)
	case domain.EntityCountry:
		return strings.ToUpper(v)
	}
	return v
}
