package domain

import "time"

// ApplyExpiry downgrades an account whose paid subscription has lapsed.
// An account expires when SubscriptionExpiresAt is set and in the past;
// it is then marked expired, moved to the free plan, and loses unlimited
// access. Balances and bonus credits are untouched. Reports whether the
// account changed.
func ApplyExpiry(a *CreditAccount, now time.Time) bool {
	if a.SubscriptionExpiresAt == nil || !a.SubscriptionExpiresAt.Before(now) {
		return false
	}
	if a.SubscriptionStatus != nil && *a.SubscriptionStatus == SubscriptionStatusExpired &&
		a.Plan == PlanFree && !a.IsUnlimited {
		return false
	}
	expired := SubscriptionStatusExpired
	a.SubscriptionStatus = &expired
	a.Plan = PlanFree
	a.IsUnlimited = false
	return true
}
