package domain

import (
	"context"
	"time"
)

// DeductRequest spends credits for one generation.
type DeductRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

// AddCreditsRequest grants credits. Bonus credits are consumed first on
// later deductions.
type AddCreditsRequest struct {
	Amount  int64  `json:"amount"`
	IsBonus bool   `json:"isBonus,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// UpdatePlanRequest moves an account onto a plan. Optional fields leave
// the stored value alone when nil.
type UpdatePlanRequest struct {
	Plan                   *Plan               `json:"plan,omitempty"`
	DailyLimit             *int64              `json:"dailyLimit,omitempty"`
	MonthlyLimit           *int64              `json:"monthlyLimit,omitempty"`
	IsUnlimited            *bool               `json:"isUnlimited,omitempty"`
	SubscriptionStatus     *SubscriptionStatus `json:"subscriptionStatus,omitempty"`
	SubscriptionExpiresAt  *time.Time          `json:"subscriptionExpiresAt,omitempty"`
	ProviderSubscriptionID *string             `json:"providerSubscriptionId,omitempty"`
	ProviderCustomerID     *string             `json:"providerCustomerId,omitempty"`
	GrantCredits           int64               `json:"grantCredits,omitempty"`
}

// Service is the credit ledger behind the HTTP surface.
type Service interface {
	// GetOrCreate returns the account after lazy window and expiry
	// evaluation, creating it with signup defaults when missing.
	GetOrCreate(ctx context.Context, userID string) (*CreditAccount, error)

	// Deduct spends credits for one generation, bonus first.
	Deduct(ctx context.Context, userID string, req DeductRequest) (*CreditAccount, error)

	// AddCredits grants purchased or bonus credits.
	AddCredits(ctx context.Context, userID string, req AddCreditsRequest) (*CreditAccount, error)

	// UpdatePlan switches the plan and zeroes both usage windows.
	UpdatePlan(ctx context.Context, userID string, req UpdatePlanRequest) (*CreditAccount, error)

	// CancelSubscription marks the subscription canceled; paid access
	// continues until the expiry timestamp passes.
	CancelSubscription(ctx context.Context, userID string) (*CreditAccount, error)

	// Stats returns the usage projection for an existing account.
	Stats(ctx context.Context, userID string) (*UsageStats, error)
}
