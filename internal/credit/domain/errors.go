package domain

import "errors"

var (
	ErrAccountNotFound     = errors.New("credit account not found")
	ErrInvalidAmount       = errors.New("amount must be a positive integer")
	ErrInvalidPlan         = errors.New("unknown plan")
	ErrInvalidStatus       = errors.New("unknown subscription status")
	ErrDailyLimitReached   = errors.New("daily generation limit reached")
	ErrMonthlyLimitReached = errors.New("monthly generation limit reached")
	ErrInsufficientCredits = errors.New("insufficient credits")
)
