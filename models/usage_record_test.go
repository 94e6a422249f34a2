package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTier(t *testing.T) {
	assert.Equal(t, TierFree, ParseTier("free"))
	assert.Equal(t, TierPro, ParseTier("pro"))
	assert.Equal(t, TierPremium, ParseTier("premium"))
	assert.Equal(t, TierFree, ParseTier("unknown"))
	assert.Equal(t, TierFree, ParseTier(""))
}

func TestTierAllowances(t *testing.T) {
	assert.Equal(t, int64(25), TierFree.PeriodAllowance())
	assert.Equal(t, int64(500), TierPro.PeriodAllowance())
	assert.True(t, TierFree.Limited())
	assert.True(t, TierPro.Limited())
	assert.False(t, TierPremium.Limited())
}

func TestEffectiveTier(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	rec := UsageRecord{Tier: TierPro, TierExpiresAt: &future}
	assert.Equal(t, TierPro, rec.EffectiveTier(now))

	rec.TierExpiresAt = &past
	assert.Equal(t, TierFree, rec.EffectiveTier(now), "expired subscription drops to free")

	rec = UsageRecord{Tier: TierPremium}
	assert.Equal(t, TierPremium, rec.EffectiveTier(now), "no expiry means the tier stands")

	rec = UsageRecord{Tier: TierFree, TierExpiresAt: &past}
	assert.Equal(t, TierFree, rec.EffectiveTier(now))
}
