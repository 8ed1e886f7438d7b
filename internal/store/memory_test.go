package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payguard/risk-api/internal/domain"
	"payguard/risk-api/internal/store"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

var (
	ctx = context.Background()
	now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func newRecord(id string, d domain.Decision, ts time.Time) *domain.AuditedTransaction {
	return &domain.AuditedTransaction{
		ID:               id,
		TransactionID:    "txn_" + id,
		Timestamp:        ts,
		Amount:           50,
		Currency:         domain.DefaultCurrency,
		FraudProbability: 0.1,
		RiskScore:        10,
		RiskLevel:        domain.RiskLow,
		Decision:         d,
		ModelVersion:     "2.1.0",
		FeatureContributions: []domain.Contribution{
			{Feature: "V14", Value: 1, Coefficient: -0.2789, Contribution: -0.2789, Impact: domain.ImpactDecreases},
		},
	}
}

// ─── Audit log ────────────────────────────────────────────────────────────────

func TestMemory_AppendAndGet(t *testing.T) {
	s := store.NewMemory(10)
	require.NoError(t, s.Append(ctx, newRecord("a1", domain.DecisionApprove, now)))

	got, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "txn_a1", got.TransactionID)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemory_RecentIsMostRecentFirst(t *testing.T) {
	s := store.NewMemory(10)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, newRecord(fmt.Sprintf("r%d", i), domain.DecisionApprove, now.Add(time.Duration(i)*time.Second))))
	}

	recent, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"r4", "r3", "r2"}, []string{recent[0].ID, recent[1].ID, recent[2].ID})

	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestMemory_EvictsOldestAtCapacity(t *testing.T) {
	s := store.NewMemory(3)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, newRecord(fmt.Sprintf("r%d", i), domain.DecisionApprove, now)))
	}

	recent, err := s.Recent(ctx, 100)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "r4", recent[0].ID)
	assert.Equal(t, "r2", recent[2].ID)

	_, err = s.Get(ctx, "r0")
	assert.ErrorIs(t, err, store.ErrNotFound)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalAnalyzed)
}

func TestMemory_ReturnedRecordsAreCopies(t *testing.T) {
	s := store.NewMemory(10)
	rec := newRecord("c1", domain.DecisionApprove, now)
	require.NoError(t, s.Append(ctx, rec))
	rec.Decision = domain.DecisionDecline

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	got.FeatureContributions[0].Feature = "mutated"

	again, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionApprove, again.Decision)
	assert.Equal(t, "V14", again.FeatureContributions[0].Feature)
}

// ─── Review workflow ──────────────────────────────────────────────────────────

func TestMemory_ReviewOnce(t *testing.T) {
	s := store.NewMemory(10)
	require.NoError(t, s.Append(ctx, newRecord("rv", domain.DecisionReview, now)))

	st, _ := s.Stats(ctx)
	assert.Equal(t, 1, st.PendingReview)

	got, err := s.Review(ctx, "rv", store.Review{ReviewedBy: "analyst@payguard", Decision: domain.ReviewApproved, At: now})
	require.NoError(t, err)
	assert.True(t, got.Reviewed)
	assert.Equal(t, "analyst@payguard", got.ReviewedBy)
	require.NotNil(t, got.ReviewedAt)
	assert.Equal(t, now, *got.ReviewedAt)

	_, err = s.Review(ctx, "rv", store.Review{ReviewedBy: "other", Decision: domain.ReviewRejected, At: now})
	assert.ErrorIs(t, err, store.ErrAlreadyReviewed)

	_, err = s.Review(ctx, "nope", store.Review{ReviewedBy: "x", Decision: domain.ReviewRejected, At: now})
	assert.ErrorIs(t, err, store.ErrNotFound)

	st, _ = s.Stats(ctx)
	assert.Equal(t, 0, st.PendingReview)
}

func TestMemory_ConcurrentReviewExactlyOneWins(t *testing.T) {
	s := store.NewMemory(10)
	require.NoError(t, s.Append(ctx, newRecord("race", domain.DecisionReview, now)))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Review(ctx, "race", store.Review{ReviewedBy: "r", Decision: domain.ReviewEscalated, At: now}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

// ─── Stats ────────────────────────────────────────────────────────────────────

func TestMemory_Stats(t *testing.T) {
	s := store.NewMemory(10)
	decisions := []domain.Decision{
		domain.DecisionApprove, domain.DecisionApprove,
		domain.DecisionReview, domain.DecisionReview,
		domain.DecisionDecline,
	}
	for i, d := range decisions {
		require.NoError(t, s.Append(ctx, newRecord(fmt.Sprintf("s%d", i), d, now)))
	}
	_, err := s.Review(ctx, "s2", store.Review{ReviewedBy: "r", Decision: domain.ReviewRejected, At: now})
	require.NoError(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.AuditStats{TotalAnalyzed: 5, TotalFlagged: 3, TotalDeclined: 1, PendingReview: 1}, st)
}

// ─── Allow / deny lists ───────────────────────────────────────────────────────

func listEntry(kind, value string, lt domain.ListType, expires *time.Time) *domain.ListEntry {
	return &domain.ListEntry{
		ID:        uuid.NewString(),
		Type:      kind,
		Value:     value,
		ListType:  lt,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expires,
	}
}

func TestLists_LookupIsCaseInsensitiveForEmail(t *testing.T) {
	l := store.NewLists()
	require.NoError(t, l.Add(ctx, listEntry(domain.EntityEmail, "Fraud@Example.com", domain.ListBlacklist, nil)))

	st, err := l.Lookup(ctx, domain.EntityEmail, "fraud@example.COM")
	require.NoError(t, err)
	assert.Equal(t, domain.ListedBlacklisted, st)

	st, _ = l.Lookup(ctx, domain.EntityIP, "fraud@example.com")
	assert.Equal(t, domain.ListedNone, st, "type must match")
}

func TestLists_BlacklistBeatsWhitelist(t *testing.T) {
	l := store.NewLists()
	require.NoError(t, l.Add(ctx, listEntry(domain.EntityIP, "1.2.3.4", domain.ListWhitelist, nil)))
	require.NoError(t, l.Add(ctx, listEntry(domain.EntityIP, "1.2.3.4", domain.ListBlacklist, nil)))

	st, err := l.Lookup(ctx, domain.EntityIP, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, domain.ListedBlacklisted, st)
}

func TestLists_ExpiredEntriesIgnored(t *testing.T) {
	l := store.NewLists()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	require.NoError(t, l.Add(ctx, listEntry(domain.EntityDevice, "dev-old", domain.ListBlacklist, &past)))
	require.NoError(t, l.Add(ctx, listEntry(domain.EntityDevice, "dev-new", domain.ListWhitelist, &future)))

	st, _ := l.Lookup(ctx, domain.EntityDevice, "dev-old")
	assert.Equal(t, domain.ListedNone, st)
	st, _ = l.Lookup(ctx, domain.EntityDevice, "dev-new")
	assert.Equal(t, domain.ListedWhitelisted, st)

	entries, err := l.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dev-new", entries[0].Value)
}

func TestLists_Delete(t *testing.T) {
	l := store.NewLists()
	e := listEntry(domain.EntityCountry, "ng", domain.ListBlacklist, nil)
	require.NoError(t, l.Add(ctx, e))

	st, _ := l.Lookup(ctx, domain.EntityCountry, "NG")
	assert.Equal(t, domain.ListedBlacklisted, st)

	require.NoError(t, l.Delete(ctx, e.ID))
	assert.ErrorIs(t, l.Delete(ctx, e.ID), store.ErrNotFound)

	st, _ = l.Lookup(ctx, domain.EntityCountry, "NG")
	assert.Equal(t, domain.ListedNone, st)
}

func TestLists_EmptyValueNeverMatches(t *testing.T) {
	l := store.NewLists()
	require.NoError(t, l.Add(ctx, listEntry(domain.EntityBIN, "", domain.ListBlacklist, nil)))
	st, _ := l.Lookup(ctx, domain.EntityBIN, "")
	assert.Equal(t, domain.ListedNone, st)
}
