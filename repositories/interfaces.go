// Package repositories defines the persistence contracts the services depend
// on. Implementations live in subpackages (currently postgres).
package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/brightline-ai/enhance-gateway/models"
)

// ErrUsageNotFound is returned when a user has no usage record yet.
var ErrUsageNotFound = errors.New("usage record not found")

// UsageStore persists usage records and the idempotency ledger.
//
// The store must guarantee per-user read-then-write consistency; cross-row
// atomicity is not required. ApplyUsage must be atomic with respect to the
// ledger: either the key is marked applied and the record persisted together,
// or neither happens.
type UsageStore interface {
	// GetUsage returns the user's record, or ErrUsageNotFound.
	GetUsage(ctx context.Context, userID string) (*models.UsageRecord, error)

	// UpsertUsage writes the record without touching the ledger. Used for
	// tier changes and administrative corrections.
	UpsertUsage(ctx context.Context, rec *models.UsageRecord) error

	// IsApplied reports whether an idempotency key has already been applied.
	IsApplied(ctx context.Context, idempotencyKey string) (bool, error)

	// ApplyUsage marks the key applied and persists the record in one
	// transaction. It returns false with no error when the key was already
	// applied (a concurrent retry won the race); the record is untouched in
	// that case.
	ApplyUsage(ctx context.Context, rec *models.UsageRecord, idempotencyKey string) (bool, error)

	// PruneLedger deletes ledger entries older than the retention window and
	// returns the number removed. Retention must outlive any plausible client
	// retry interval.
	PruneLedger(ctx context.Context, retention time.Duration) (int64, error)
}
