package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payguard/risk-api/internal/domain"
	"payguard/risk-api/internal/store"
)

// newPostgres connects to POSTGRES_URL, migrates, and returns a store.
// Skips the test when the variable is unset.
func newPostgres(t *testing.T) *store.Postgres {
	t.Helper()
	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, store.Migrate(ctx, url))
	pool, err := store.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, "TRUNCATE audit_transactions")
	require.NoError(t, err)
	return store.NewPostgres(pool)
}

func TestPostgres_AppendGetRecent(t *testing.T) {
	s := newPostgres(t)
	base := time.Now().UTC().Truncate(time.Millisecond)

	ids := make([]string, 3)
	for i := range ids {
		ids[i] = uuid.NewString()
		rec := newRecord(ids[i], domain.DecisionApprove, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, s.Append(ctx, rec))
	}

	got, err := s.Get(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "txn_"+ids[1], got.TransactionID)
	assert.Equal(t, domain.RiskLow, got.RiskLevel)
	require.Len(t, got.FeatureContributions, 1)
	assert.Equal(t, "V14", got.FeatureContributions[0].Feature)
	assert.Nil(t, got.ReviewedAt)

	recent, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ids[2], recent[0].ID)
	assert.Equal(t, ids[1], recent[1].ID)

	_, err = s.Get(ctx, uuid.NewString())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgres_ReviewAndStats(t *testing.T) {
	s := newPostgres(t)
	id := uuid.NewString()
	require.NoError(t, s.Append(ctx, newRecord(id, domain.DecisionReview, time.Now().UTC())))
	require.NoError(t, s.Append(ctx, newRecord(uuid.NewString(), domain.DecisionDecline, time.Now().UTC())))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.AuditStats{TotalAnalyzed: 2, TotalFlagged: 2, TotalDeclined: 1, PendingReview: 1}, st)

	got, err := s.Review(ctx, id, store.Review{ReviewedBy: "analyst", Decision: domain.ReviewEscalated, At: time.Now()})
	require.NoError(t, err)
	assert.True(t, got.Reviewed)
	assert.Equal(t, domain.ReviewEscalated, got.ReviewDecision)

	_, err = s.Review(ctx, id, store.Review{ReviewedBy: "again", Decision: domain.ReviewApproved, At: time.Now()})
	assert.ErrorIs(t, err, store.ErrAlreadyReviewed)

	_, err = s.Review(ctx, uuid.NewString(), store.Review{ReviewedBy: "x", Decision: domain.ReviewApproved, At: time.Now()})
	assert.ErrorIs(t, err, store.ErrNotFound)

	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.PendingReview)
}
