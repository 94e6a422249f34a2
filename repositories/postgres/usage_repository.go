package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/brightline-ai/enhance-gateway/models"
	"github.com/brightline-ai/enhance-gateway/repositories"
)

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// UsageRepository implements repositories.UsageStore on PostgreSQL.
type UsageRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUsageRepository creates a new UsageRepository.
func NewUsageRepository(db *sql.DB, logger *zap.Logger) *UsageRepository {
	return &UsageRepository{
		db:     db,
		logger: logger,
	}
}

// GetUsage returns the user's record, or repositories.ErrUsageNotFound.
func (r *UsageRepository) GetUsage(ctx context.Context, userID string) (*models.UsageRecord, error) {
	const query = `
		SELECT user_id, total_count, period_count, period_anchor, tier, tier_expires_at, updated_at
		FROM usage_records
		WHERE user_id = $1
	`

	rec := &models.UsageRecord{}
	var tier string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&rec.UserID, &rec.TotalCount, &rec.PeriodCount, &rec.PeriodAnchor,
		&tier, &rec.TierExpiresAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repositories.ErrUsageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query usage record: %w", err)
	}
	rec.Tier = models.ParseTier(tier)
	return rec, nil
}

// UpsertUsage writes the record without touching the ledger.
func (r *UsageRepository) UpsertUsage(ctx context.Context, rec *models.UsageRecord) error {
	if _, err := r.db.ExecContext(ctx, upsertUsageQuery,
		rec.UserID, rec.TotalCount, rec.PeriodCount, rec.PeriodAnchor,
		string(rec.Tier), rec.TierExpiresAt, time.Now(),
	); err != nil {
		return fmt.Errorf("failed to upsert usage record: %w", err)
	}
	return nil
}

const upsertUsageQuery = `
	INSERT INTO usage_records (user_id, total_count, period_count, period_anchor, tier, tier_expires_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (user_id)
	DO UPDATE SET
		total_count = EXCLUDED.total_count,
		period_count = EXCLUDED.period_count,
		period_anchor = EXCLUDED.period_anchor,
		tier = EXCLUDED.tier,
		tier_expires_at = EXCLUDED.tier_expires_at,
		updated_at = EXCLUDED.updated_at
`

// IsApplied reports whether the idempotency key is already in the ledger.
func (r *UsageRepository) IsApplied(ctx context.Context, idempotencyKey string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM usage_ledger WHERE idempotency_key = $1)`

	var applied bool
	if err := r.db.QueryRowContext(ctx, query, idempotencyKey).Scan(&applied); err != nil {
		return false, fmt.Errorf("failed to query usage ledger: %w", err)
	}
	return applied, nil
}

// ApplyUsage inserts the ledger entry and persists the record in one
// transaction. The ledger's primary key is the uniqueness constraint that
// realizes exactly-once: a duplicate key aborts the transaction before the
// counters are touched, and ApplyUsage reports applied=false.
func (r *UsageRepository) ApplyUsage(ctx context.Context, rec *models.UsageRecord, idempotencyKey string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insertLedger = `
		INSERT INTO usage_ledger (idempotency_key, user_id, applied_at)
		VALUES ($1, $2, $3)
	`
	if _, err := tx.ExecContext(ctx, insertLedger, idempotencyKey, rec.UserID, time.Now()); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx, upsertUsageQuery,
		rec.UserID, rec.TotalCount, rec.PeriodCount, rec.PeriodAnchor,
		string(rec.Tier), rec.TierExpiresAt, time.Now(),
	); err != nil {
		return false, fmt.Errorf("failed to upsert usage record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit usage transaction: %w", err)
	}
	return true, nil
}

// PruneLedger deletes ledger entries older than the retention window.
func (r *UsageRepository) PruneLedger(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)

	const query = `DELETE FROM usage_ledger WHERE applied_at < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune usage ledger: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	r.logger.Info("pruned usage ledger",
		zap.Int64("rows_deleted", rows),
		zap.Time("cutoff", cutoff))

	return rows, nil
}

// StartPruneWorker periodically prunes the ledger until ctx is done.
func (r *UsageRepository) StartPruneWorker(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("started usage ledger prune worker",
		zap.Duration("interval", interval),
		zap.Duration("retention", retention))

	for {
		select {
		case <-ticker.C:
			if _, err := r.PruneLedger(ctx, retention); err != nil {
				r.logger.Error("failed to prune usage ledger", zap.Error(err))
			}
		case <-ctx.Done():
			r.logger.Info("stopping usage ledger prune worker")
			return
		}
	}
}
