// Package usage implements idempotent usage accounting. Every successful
// enhancement is recorded exactly once per idempotency key, guarded by a
// circuit breaker against the persistence store. Accounting never gates:
// gating happens pre-dispatch through CheckAllowance, and Record always
// proceeds even when the period allowance is exceeded.
package usage

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brightline-ai/enhance-gateway/internal/clock"
	"github.com/brightline-ai/enhance-gateway/models"
	"github.com/brightline-ai/enhance-gateway/repositories"
	"github.com/brightline-ai/enhance-gateway/services/breaker"
	"github.com/brightline-ai/enhance-gateway/services/retry"
)

// Period selects the accounting period length.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodMonthly Period = "monthly"
)

// Anchor returns the period key for an instant. Records whose stored anchor
// differs from the current one get their period counter reset on the next
// Record call.
func (p Period) Anchor(t time.Time) string {
	switch p {
	case PeriodMonthly:
		return t.UTC().Format("2006-01")
	default:
		return t.UTC().Format("2006-01-02")
	}
}

// Recorder persists usage counters exactly once per idempotency key.
type Recorder struct {
	store  repositories.UsageStore
	brk    *breaker.Breaker
	policy retry.Policy
	clk    clock.Clock
	logger *zap.Logger

	// lastKnown is an advisory cache used only when persistence is degraded;
	// the store remains the authority.
	mu        sync.RWMutex
	lastKnown map[string]models.UsageRecord
}

// NewRecorder creates a Recorder with its own breaker instance scoped to the
// persistence store.
func NewRecorder(store repositories.UsageStore, brkCfg breaker.Config, policy retry.Policy, clk clock.Clock, logger *zap.Logger) *Recorder {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Recorder{
		store:     store,
		brk:       breaker.New(brkCfg, clk),
		policy:    policy,
		clk:       clk,
		logger:    logger,
		lastKnown: make(map[string]models.UsageRecord),
	}
}

// Record increments the user's counters exactly once for the idempotency key
// and returns the resulting record. Persistence failures never propagate: the
// operation is retried with backoff, and if the store stays down the
// last-known (possibly stale) record is returned so the caller's successful
// enhancement is never reported as failed.
func (r *Recorder) Record(ctx context.Context, userID, idempotencyKey string, period Period) *models.UsageRecord {
	if !r.brk.Allow() {
		r.logger.Warn("usage persistence circuit open, returning last-known record",
			zap.String("user_id", userID))
		return r.stale(userID)
	}

	anchor := period.Anchor(r.clk.Now())

	var result *models.UsageRecord
	err := r.policy.Do(ctx, func() error {
		rec, opErr := r.recordOnce(ctx, userID, idempotencyKey, anchor)
		if opErr != nil {
			r.brk.RecordFailure()
			return opErr
		}
		r.brk.RecordSuccess()
		result = rec
		return nil
	})
	if err != nil {
		r.logger.Error("usage recording degraded, returning last-known record",
			zap.String("user_id", userID),
			zap.Error(err))
		return r.stale(userID)
	}

	r.remember(result)
	return result
}

// recordOnce is a single attempt of the read-rollover-apply cycle.
func (r *Recorder) recordOnce(ctx context.Context, userID, idempotencyKey, anchor string) (*models.UsageRecord, error) {
	applied, err := r.store.IsApplied(ctx, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if applied {
		// Retried call for an event already accounted; hand back the current
		// record unchanged.
		return r.currentOrZero(ctx, userID, anchor)
	}

	rec, err := r.store.GetUsage(ctx, userID)
	if errors.Is(err, repositories.ErrUsageNotFound) {
		rec = &models.UsageRecord{
			UserID:       userID,
			Tier:         models.TierFree,
			PeriodAnchor: anchor,
		}
	} else if err != nil {
		return nil, err
	}

	if rec.PeriodAnchor != anchor {
		rec.PeriodCount = 0
		rec.PeriodAnchor = anchor
	}
	rec.TotalCount++
	rec.PeriodCount++
	rec.UpdatedAt = r.clk.Now()

	ok, err := r.store.ApplyUsage(ctx, rec, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		// A concurrent retry with the same key committed first; our increment
		// was discarded with the transaction. Read what it wrote.
		return r.currentOrZero(ctx, userID, anchor)
	}
	return rec, nil
}

func (r *Recorder) currentOrZero(ctx context.Context, userID, anchor string) (*models.UsageRecord, error) {
	rec, err := r.store.GetUsage(ctx, userID)
	if errors.Is(err, repositories.ErrUsageNotFound) {
		return &models.UsageRecord{UserID: userID, Tier: models.TierFree, PeriodAnchor: anchor}, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Current returns the user's record from the store, falling back to the
// advisory cache when the breaker is open.
func (r *Recorder) Current(ctx context.Context, userID string) (*models.UsageRecord, error) {
	if !r.brk.Allow() {
		return r.stale(userID), nil
	}
	rec, err := r.store.GetUsage(ctx, userID)
	if errors.Is(err, repositories.ErrUsageNotFound) {
		return &models.UsageRecord{UserID: userID, Tier: models.TierFree}, nil
	}
	if err != nil {
		r.brk.RecordFailure()
		return nil, err
	}
	r.brk.RecordSuccess()
	r.remember(rec)
	return rec, nil
}

// CheckAllowance is the pre-dispatch gate: it reports whether the user's tier
// still has period allowance. Store errors fail open, availability beats
// strict quota enforcement during an outage.
func (r *Recorder) CheckAllowance(ctx context.Context, userID string, period Period) (bool, int64) {
	rec, err := r.Current(ctx, userID)
	if err != nil {
		r.logger.Warn("allowance check failing open, usage store unreachable",
			zap.String("user_id", userID),
			zap.Error(err))
		return true, 0
	}

	now := r.clk.Now()
	tier := rec.EffectiveTier(now)
	if !tier.Limited() {
		return true, 0
	}

	used := rec.PeriodCount
	if rec.PeriodAnchor != period.Anchor(now) {
		// Stored counter is from a previous period; it resets on next record.
		used = 0
	}
	remaining := tier.PeriodAllowance() - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining > 0, remaining
}

// BreakerState exposes the persistence breaker for diagnostics.
func (r *Recorder) BreakerState() breaker.Snapshot {
	return r.brk.Snapshot()
}

func (r *Recorder) remember(rec *models.UsageRecord) {
	if rec == nil {
		return
	}
	r.mu.Lock()
	r.lastKnown[rec.UserID] = *rec
	r.mu.Unlock()
}

func (r *Recorder) stale(userID string) *models.UsageRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec, ok := r.lastKnown[userID]; ok {
		out := rec
		return &out
	}
	return &models.UsageRecord{UserID: userID, Tier: models.TierFree}
}
