package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for goose
	"github.com/pressly/goose/v3"

	"payguard/risk-api/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Migrate applies all pending schema migrations.
func Migrate(ctx context.Context, url string) error {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Postgres is the durable AuditStore.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an open pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const auditColumns = `id, transaction_id, created_at, amount, currency,
	customer_email, customer_ip, customer_country, card_bin, device_fingerprint,
	fraud_probability, risk_score, risk_level, decision, override,
	feature_contributions, model_version, processing_time_ms,
	reviewed, reviewed_by, reviewed_at, review_decision`

// Append inserts one record.
func (p *Postgres) Append(ctx context.Context, tx *domain.AuditedTransaction) error {
	contributions, err := json.Marshal(tx.FeatureContributions)
	if err != nil {
		return fmt.Errorf("encode contributions: %w", err)
	}
	_, err = p.pool.Exec(ctx, `INSERT INTO audit_transactions (`+auditColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		tx.ID, tx.TransactionID, tx.Timestamp, tx.Amount, tx.Currency,
		tx.CustomerEmail, tx.CustomerIP, tx.CustomerCountry, tx.CardBIN, tx.DeviceFingerprint,
		tx.FraudProbability, tx.RiskScore, string(tx.RiskLevel), string(tx.Decision), tx.Override,
		contributions, tx.ModelVersion, tx.ProcessingTimeMS,
		tx.Reviewed, tx.ReviewedBy, tx.ReviewedAt, string(tx.ReviewDecision),
	)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// Recent returns up to limit records, most recent first.
func (p *Postgres) Recent(ctx context.Context, limit int) ([]domain.AuditedTransaction, error) {
	if limit <= 0 {
		limit = DefaultCapacity
	}
	rows, err := p.pool.Query(ctx, `SELECT `+auditColumns+`
		FROM audit_transactions ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	out := []domain.AuditedTransaction{}
	for rows.Next() {
		rec, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Get retrieves one record.
func (p *Postgres) Get(ctx context.Context, id string) (*domain.AuditedTransaction, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+auditColumns+` FROM audit_transactions WHERE id = $1`, id)
	rec, err := scanAudit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// Review sets the reviewer fields once; the NOT reviewed guard makes the
// update atomic against concurrent reviewers.
func (p *Postgres) Review(ctx context.Context, id string, r Review) (*domain.AuditedTransaction, error) {
	row := p.pool.QueryRow(ctx, `UPDATE audit_transactions
		SET reviewed = TRUE, reviewed_by = $2, reviewed_at = $3, review_decision = $4
		WHERE id = $1 AND NOT reviewed
		RETURNING `+auditColumns,
		id, r.ReviewedBy, r.At.UTC(), string(r.Decision))
	rec, err := scanAudit(row)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if _, getErr := p.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrAlreadyReviewed
}

// Stats aggregates over the whole table.
func (p *Postgres) Stats(ctx context.Context) (domain.AuditStats, error) {
	var st domain.AuditStats
	err := p.pool.QueryRow(ctx, `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE decision <> 'approve'),
		COUNT(*) FILTER (WHERE decision = 'decline'),
		COUNT(*) FILTER (WHERE decision = 'review' AND NOT reviewed)
		FROM audit_transactions`).Scan(&st.TotalAnalyzed, &st.TotalFlagged, &st.TotalDeclined, &st.PendingReview)
	if err != nil {
		return st, fmt.Errorf("audit stats: %w", err)
	}
	return st, nil
}

// Ping reports whether the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func scanAudit(row pgx.Row) (*domain.AuditedTransaction, error) {
	var (
		rec                             domain.AuditedTransaction
		level, decision, reviewDecision string
		contributions                   []byte
	)
	err := row.Scan(
		&rec.ID, &rec.TransactionID, &rec.Timestamp, &rec.Amount, &rec.Currency,
		&rec.CustomerEmail, &rec.CustomerIP, &rec.CustomerCountry, &rec.CardBIN, &rec.DeviceFingerprint,
		&rec.FraudProbability, &rec.RiskScore, &level, &decision, &rec.Override,
		&contributions, &rec.ModelVersion, &rec.ProcessingTimeMS,
		&rec.Reviewed, &rec.ReviewedBy, &rec.ReviewedAt, &reviewDecision,
	)
	if err != nil {
		return nil, err
	}
	rec.RiskLevel = domain.RiskLevel(level)
	rec.Decision = domain.Decision(decision)
	rec.ReviewDecision = domain.ReviewDecision(reviewDecision)
	rec.Timestamp = rec.Timestamp.UTC()
	if err := json.Unmarshal(contributions, &rec.FeatureContributions); err != nil {
		return nil, fmt.Errorf("decode contributions: %w", err)
	}
	return &rec, nil
}
