package models

import "time"

// Tier identifies a user's subscription tier for allowance evaluation.
type Tier string

const (
	TierFree    Tier = "free"
	TierPro     Tier = "pro"
	TierPremium Tier = "premium"
)

// ParseTier maps a stored string to a known Tier, defaulting to free.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierFree, TierPro, TierPremium:
		return Tier(s)
	default:
		return TierFree
	}
}

// PeriodAllowance returns how many enhancements the tier permits per
// accounting period. Zero means unlimited.
func (t Tier) PeriodAllowance() int64 {
	switch t {
	case TierPro:
		return 500
	case TierPremium:
		return 0
	default:
		return 25
	}
}

// Limited reports whether the tier has a finite period allowance.
func (t Tier) Limited() bool {
	return t.PeriodAllowance() > 0
}

// UsageRecord tracks one user's durable usage counters.
//
// Invariants: TotalCount is monotonically non-decreasing and incremented
// exactly once per distinct idempotency key ever applied; PeriodCount is
// zeroed exactly once per period transition.
type UsageRecord struct {
	UserID        string     `json:"user_id" db:"user_id"`
	TotalCount    int64      `json:"total_count" db:"total_count"`
	PeriodCount   int64      `json:"period_count" db:"period_count"`
	PeriodAnchor  string     `json:"period_anchor" db:"period_anchor"`
	Tier          Tier       `json:"tier" db:"tier"`
	TierExpiresAt *time.Time `json:"tier_expires_at,omitempty" db:"tier_expires_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// EffectiveTier resolves the tier as of now: an expired paid tier degrades to
// free.
func (r *UsageRecord) EffectiveTier(now time.Time) Tier {
	if r.Tier != TierFree && r.TierExpiresAt != nil && now.After(*r.TierExpiresAt) {
		return TierFree
	}
	return r.Tier
}
