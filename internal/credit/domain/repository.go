package domain

import (
	"context"
	"time"
)

// Repository persists credit accounts.
type Repository interface {
	// FindByUserID returns ErrAccountNotFound when no row exists.
	FindByUserID(ctx context.Context, userID string) (*CreditAccount, error)
	Insert(ctx context.Context, account *CreditAccount) error
	Update(ctx context.Context, account *CreditAccount) error

	// ResetDailyWindows zeroes daily usage for every account on one of the
	// given plans whose last daily reset predates cutoff, excluding
	// unlimited accounts. Returns the number of rows touched.
	ResetDailyWindows(ctx context.Context, plans []Plan, cutoff, now time.Time) (int64, error)

	// ResetMonthlyWindows is the monthly counterpart of ResetDailyWindows.
	ResetMonthlyWindows(ctx context.Context, plans []Plan, cutoff, now time.Time) (int64, error)
}
