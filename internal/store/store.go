// Package store provides the audit log and the allow/deny lists.
//
// The audit log has an in-memory ring for single-instance deployments and a
// Postgres implementation for durable history. Lists are small and are
// always held in memory.
package store

import (
	"context"
	"errors"
	"time"

	"payguard/risk-api/internal/domain"
)

var (
	// ErrNotFound is returned when an id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyReviewed is returned when a second review is attempted.
	ErrAlreadyReviewed = errors.New("transaction already reviewed")
)

// DefaultCapacity is how many audited transactions the memory log retains.
const DefaultCapacity = 1000

// Review is the single mutation allowed on an audited transaction.
type Review struct {
	ReviewedBy string
	Decision   domain.ReviewDecision
	At         time.Time
}

// AuditStore is the append-only audit log of scored requests.
type AuditStore interface {
	Append(ctx context.Context, tx *domain.AuditedTransaction) error
	// Recent returns at most limit records, most recent first.
	Recent(ctx context.Context, limit int) ([]domain.AuditedTransaction, error)
	Get(ctx context.Context, id string) (*domain.AuditedTransaction, error)
	// Review marks a record reviewed. Returns ErrNotFound or ErrAlreadyReviewed.
	Review(ctx context.Context, id string, r Review) (*domain.AuditedTransaction, error)
	Stats(ctx context.Context) (domain.AuditStats, error)
}

// ListStore holds the manual override rules.
type ListStore interface {
	Add(ctx context.Context, e *domain.ListEntry) error
	Delete(ctx context.Context, id string) error
	// List returns all entries that have not expired.
	List(ctx context.Context) ([]domain.ListEntry, error)
	// Lookup reports whether value is listed for the entity type.
	// A blacklist match wins over a whitelist match.
	Lookup(ctx context.Context, entityType, value string) (domain.ListStatus, error)
}
