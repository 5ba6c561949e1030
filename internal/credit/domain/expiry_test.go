package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyExpiry(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	active := SubscriptionStatusActive

	t.Run("downgrades a lapsed subscription", func(t *testing.T) {
		expires := now.Add(-time.Minute)
		acc := &CreditAccount{
			Plan:                  PlanMonthly,
			IsUnlimited:           true,
			Balance:               250,
			BonusCredits:          10,
			SubscriptionStatus:    &active,
			SubscriptionExpiresAt: &expires,
		}
		require.True(t, ApplyExpiry(acc, now))
		assert.Equal(t, PlanFree, acc.Plan)
		assert.False(t, acc.IsUnlimited)
		require.NotNil(t, acc.SubscriptionStatus)
		assert.Equal(t, SubscriptionStatusExpired, *acc.SubscriptionStatus)
		assert.Equal(t, int64(250), acc.Balance)
		assert.Equal(t, int64(10), acc.BonusCredits)
	})

	t.Run("future expiry is left alone", func(t *testing.T) {
		expires := now.Add(time.Hour)
		acc := &CreditAccount{
			Plan:                  PlanMonthly,
			SubscriptionStatus:    &active,
			SubscriptionExpiresAt: &expires,
		}
		assert.False(t, ApplyExpiry(acc, now))
		assert.Equal(t, PlanMonthly, acc.Plan)
	})

	t.Run("no expiry timestamp is left alone", func(t *testing.T) {
		acc := &CreditAccount{Plan: PlanDaily}
		assert.False(t, ApplyExpiry(acc, now))
	})

	t.Run("already expired is a no-op", func(t *testing.T) {
		expires := now.Add(-time.Hour)
		expired := SubscriptionStatusExpired
		acc := &CreditAccount{
			Plan:                  PlanFree,
			SubscriptionStatus:    &expired,
			SubscriptionExpiresAt: &expires,
		}
		assert.False(t, ApplyExpiry(acc, now))
	})

	t.Run("canceled subscriptions expire too", func(t *testing.T) {
		expires := now.Add(-time.Hour)
		canceled := SubscriptionStatusCanceled
		acc := &CreditAccount{
			Plan:                  PlanMonthly,
			SubscriptionStatus:    &canceled,
			SubscriptionExpiresAt: &expires,
		}
		require.True(t, ApplyExpiry(acc, now))
		assert.Equal(t, PlanFree, acc.Plan)
		assert.Equal(t, SubscriptionStatusExpired, *acc.SubscriptionStatus)
	})
}
