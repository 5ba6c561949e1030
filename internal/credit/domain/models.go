// Package domain contains the persistence model and policy functions for
// per-user credit ledger accounts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Plan identifies the subscription plan attached to a credit account.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanDaily    Plan = "daily"
	PlanMonthly  Plan = "monthly"
	PlanLifetime Plan = "lifetime"
)

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanDaily, PlanMonthly, PlanLifetime:
		return true
	default:
		return false
	}
}

// SubscriptionStatus represents lifecycle states for a paid subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
)

// Valid reports whether s is a known status.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusExpired, SubscriptionStatusCanceled, SubscriptionStatusTrialing:
		return true
	default:
		return false
	}
}

// CreditAccount is the per-user ledger record: balances, usage windows and
// subscription state. One row per user, keyed by the opaque user id the
// identity gateway supplies.
type CreditAccount struct {
	ID     snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID string       `gorm:"type:text;not null;uniqueIndex" json:"userId"`

	// Balance is purchased or granted credits. BonusCredits are promotional
	// and are always consumed before Balance.
	Balance      int64 `gorm:"not null;default:0" json:"balance"`
	BonusCredits int64 `gorm:"not null;default:0" json:"bonusCredits"`

	Plan Plan `gorm:"type:text;not null;default:'free'" json:"plan"`

	// A limit of 0 means the window is not enforced.
	DailyLimit   int64 `gorm:"not null;default:0" json:"dailyLimit"`
	DailyUsed    int64 `gorm:"not null;default:0" json:"dailyUsed"`
	MonthlyLimit int64 `gorm:"not null;default:0" json:"monthlyLimit"`
	MonthlyUsed  int64 `gorm:"not null;default:0" json:"monthlyUsed"`

	// Nil means the window has never been reset; the rolling evaluator
	// treats that as elapsed so the first touch stamps it.
	LastDailyReset   *time.Time `json:"lastDailyReset"`
	LastMonthlyReset *time.Time `json:"lastMonthlyReset"`

	IsUnlimited bool `gorm:"not null;default:false" json:"isUnlimited"`

	SubscriptionStatus    *SubscriptionStatus `gorm:"type:text" json:"subscriptionStatus"`
	SubscriptionExpiresAt *time.Time          `json:"subscriptionExpiresAt"`

	// Audit counters, never decremented.
	TotalCreditsUsed int64 `gorm:"not null;default:0" json:"totalCreditsUsed"`
	TotalGenerations int64 `gorm:"not null;default:0" json:"totalGenerations"`

	// Billing-provider identifiers, passed through opaquely.
	ProviderSubscriptionID *string `gorm:"type:text" json:"providerSubscriptionId,omitempty"`
	ProviderCustomerID     *string `gorm:"type:text" json:"providerCustomerId,omitempty"`

	Metadata datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName sets the database table name.
func (CreditAccount) TableName() string { return "credit_accounts" }

// TotalAvailable is the spendable credit total.
func (a *CreditAccount) TotalAvailable() int64 {
	return a.Balance + a.BonusCredits
}

// UsageStats is the read-only projection returned by the stats endpoint.
type UsageStats struct {
	TotalCredits          int64               `json:"totalCredits"`
	Balance               int64               `json:"balance"`
	BonusCredits          int64               `json:"bonusCredits"`
	TotalCreditsUsed      int64               `json:"totalCreditsUsed"`
	TotalGenerations      int64               `json:"totalGenerations"`
	Plan                  Plan                `json:"plan"`
	DailyLimit            int64               `json:"dailyLimit"`
	DailyUsed             int64               `json:"dailyUsed"`
	MonthlyLimit          int64               `json:"monthlyLimit"`
	MonthlyUsed           int64               `json:"monthlyUsed"`
	IsUnlimited           bool                `json:"isUnlimited"`
	SubscriptionStatus    *SubscriptionStatus `json:"subscriptionStatus"`
	SubscriptionExpiresAt *time.Time          `json:"subscriptionExpiresAt"`
}
