package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/reelforge/reelforge/internal/clock"
	"github.com/reelforge/reelforge/internal/config"
	"github.com/reelforge/reelforge/internal/credit/domain"
	obsmetrics "github.com/reelforge/reelforge/internal/observability/metrics"
	pkgdb "github.com/reelforge/reelforge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Clock   clock.Clock
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	cfg     config.Config
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	clock   clock.Clock
	metrics *obsmetrics.Metrics
	locks   *userLocks
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		cfg:     p.Config,
		log:     p.Log.Named("credit.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   p.Clock,
		metrics: p.Metrics,
		locks:   newUserLocks(),
	}
}

func (s *Service) GetOrCreate(ctx context.Context, userID string) (*domain.CreditAccount, error) {
	release := s.locks.Acquire(userID)
	defer release()

	account, err := s.fetchOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.refresh(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) Deduct(ctx context.Context, userID string, req domain.DeductRequest) (*domain.CreditAccount, error) {
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	release := s.locks.Acquire(userID)
	defer release()

	account, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.refresh(ctx, account); err != nil {
		return nil, err
	}

	now := s.clock.Now()

	// Unlimited accounts skip every limit and balance check and spend
	// nothing; only the generation counter moves.
	if account.IsUnlimited {
		account.TotalGenerations++
		account.UpdatedAt = now
		if err := s.repo.Update(ctx, account); err != nil {
			return nil, err
		}
		s.metrics.RecordDeduction(ctx, string(account.Plan), 0)
		return account, nil
	}

	if account.DailyLimit > 0 && account.DailyUsed >= account.DailyLimit {
		s.metrics.RecordLimitDenial(ctx, "daily")
		return nil, domain.ErrDailyLimitReached
	}
	if account.MonthlyLimit > 0 && account.MonthlyUsed >= account.MonthlyLimit {
		s.metrics.RecordLimitDenial(ctx, "monthly")
		return nil, domain.ErrMonthlyLimitReached
	}
	if account.TotalAvailable() < req.Amount {
		s.metrics.RecordLimitDenial(ctx, "insufficient")
		return nil, domain.ErrInsufficientCredits
	}

	// Bonus credits burn first.
	remaining := req.Amount
	if account.BonusCredits > 0 {
		fromBonus := min(account.BonusCredits, remaining)
		account.BonusCredits -= fromBonus
		remaining -= fromBonus
	}
	account.Balance -= remaining

	// Windows count generations, not credits, so one deduct is one unit
	// regardless of amount. A window only accumulates while its cap is on.
	if account.DailyLimit > 0 {
		account.DailyUsed++
		if account.LastDailyReset == nil {
			account.LastDailyReset = &now
		}
	}
	if account.MonthlyLimit > 0 {
		account.MonthlyUsed++
		if account.LastMonthlyReset == nil {
			account.LastMonthlyReset = &now
		}
	}
	account.TotalCreditsUsed += req.Amount
	account.TotalGenerations++
	account.UpdatedAt = now

	if err := s.repo.Update(ctx, account); err != nil {
		return nil, err
	}

	s.metrics.RecordDeduction(ctx, string(account.Plan), req.Amount)
	s.log.Info("credits deducted",
		zap.String("user_id", userID),
		zap.Int64("amount", req.Amount),
		zap.String("reason", req.Reason),
		zap.Int64("balance", account.Balance),
		zap.Int64("bonus_credits", account.BonusCredits),
	)
	return account, nil
}

func (s *Service) AddCredits(ctx context.Context, userID string, req domain.AddCreditsRequest) (*domain.CreditAccount, error) {
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	release := s.locks.Acquire(userID)
	defer release()

	account, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.refresh(ctx, account); err != nil {
		return nil, err
	}

	if req.IsBonus {
		account.BonusCredits += req.Amount
	} else {
		account.Balance += req.Amount
	}
	account.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, account); err != nil {
		return nil, err
	}

	s.metrics.RecordCreditsGranted(ctx, req.Amount, req.IsBonus)
	s.log.Info("credits granted",
		zap.String("user_id", userID),
		zap.Int64("amount", req.Amount),
		zap.Bool("bonus", req.IsBonus),
		zap.String("reason", req.Reason),
	)
	return account, nil
}

func (s *Service) UpdatePlan(ctx context.Context, userID string, req domain.UpdatePlanRequest) (*domain.CreditAccount, error) {
	if req.Plan != nil && !req.Plan.Valid() {
		return nil, domain.ErrInvalidPlan
	}
	if req.SubscriptionStatus != nil && !req.SubscriptionStatus.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	if req.GrantCredits < 0 {
		return nil, domain.ErrInvalidAmount
	}

	release := s.locks.Acquire(userID)
	defer release()

	account, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.refresh(ctx, account); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if req.Plan != nil {
		account.Plan = *req.Plan
	}
	if req.DailyLimit != nil {
		account.DailyLimit = *req.DailyLimit
	}
	if req.MonthlyLimit != nil {
		account.MonthlyLimit = *req.MonthlyLimit
	}
	if req.IsUnlimited != nil {
		account.IsUnlimited = *req.IsUnlimited
	}
	if req.SubscriptionStatus != nil {
		status := *req.SubscriptionStatus
		account.SubscriptionStatus = &status
	}
	if req.SubscriptionExpiresAt != nil {
		expires := *req.SubscriptionExpiresAt
		account.SubscriptionExpiresAt = &expires
	}
	if req.ProviderSubscriptionID != nil {
		account.ProviderSubscriptionID = req.ProviderSubscriptionID
	}
	if req.ProviderCustomerID != nil {
		account.ProviderCustomerID = req.ProviderCustomerID
	}
	if req.GrantCredits > 0 {
		account.Balance += req.GrantCredits
	}

	// A plan change opens fresh usage windows.
	ApplyPlanReset(account, now)
	account.UpdatedAt = now

	if err := s.repo.Update(ctx, account); err != nil {
		return nil, err
	}

	s.log.Info("plan updated",
		zap.String("user_id", userID),
		zap.String("plan", string(account.Plan)),
		zap.Int64("daily_limit", account.DailyLimit),
		zap.Int64("monthly_limit", account.MonthlyLimit),
		zap.Bool("is_unlimited", account.IsUnlimited),
	)
	return account, nil
}

func (s *Service) CancelSubscription(ctx context.Context, userID string) (*domain.CreditAccount, error) {
	release := s.locks.Acquire(userID)
	defer release()

	account, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.refresh(ctx, account); err != nil {
		return nil, err
	}

	// Canceling revokes unlimited access but keeps the paid plan and owned
	// credits until the expiry timestamp lapses; the downgrade itself
	// happens in refresh once that moment passes.
	canceled := domain.SubscriptionStatusCanceled
	account.SubscriptionStatus = &canceled
	account.IsUnlimited = false
	account.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, account); err != nil {
		return nil, err
	}

	s.log.Info("subscription canceled", zap.String("user_id", userID))
	return account, nil
}

func (s *Service) Stats(ctx context.Context, userID string) (*domain.UsageStats, error) {
	release := s.locks.Acquire(userID)
	defer release()

	account, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.refresh(ctx, account); err != nil {
		return nil, err
	}

	return &domain.UsageStats{
		TotalCredits:          account.TotalAvailable(),
		Balance:               account.Balance,
		BonusCredits:          account.BonusCredits,
		TotalCreditsUsed:      account.TotalCreditsUsed,
		TotalGenerations:      account.TotalGenerations,
		Plan:                  account.Plan,
		DailyLimit:            account.DailyLimit,
		DailyUsed:             account.DailyUsed,
		MonthlyLimit:          account.MonthlyLimit,
		MonthlyUsed:           account.MonthlyUsed,
		IsUnlimited:           account.IsUnlimited,
		SubscriptionStatus:    account.SubscriptionStatus,
		SubscriptionExpiresAt: account.SubscriptionExpiresAt,
	}, nil
}

// fetchOrCreate loads the account or seeds a new one with signup
// defaults. A duplicate-key error means another request won the insert
// race, so the row is re-fetched.
func (s *Service) fetchOrCreate(ctx context.Context, userID string) (*domain.CreditAccount, error) {
	account, err := s.repo.FindByUserID(ctx, userID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	now := s.clock.Now()
	account = &domain.CreditAccount{
		ID:               s.genID.Generate(),
		UserID:           userID,
		Balance:          s.cfg.SignupCredits,
		Plan:             domain.PlanFree,
		LastDailyReset:   &now,
		LastMonthlyReset: &now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Insert(ctx, account); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return s.repo.FindByUserID(ctx, userID)
		}
		return nil, err
	}

	s.metrics.RecordAccountCreated(ctx)
	s.log.Info("credit account created",
		zap.String("user_id", userID),
		zap.Int64("signup_credits", s.cfg.SignupCredits),
	)
	return account, nil
}

// refresh applies expiry and rolling-window evaluation at read time and
// persists the account when anything changed. The sweeper does the same
// work in bulk on calendar boundaries; this path covers accounts touched
// between sweeps.
func (s *Service) refresh(ctx context.Context, account *domain.CreditAccount) error {
	now := s.clock.Now()
	changed := domain.ApplyExpiry(account, now)

	st := domain.EvaluateWindows(now, account.LastDailyReset, account.LastMonthlyReset, domain.BoundaryRolling)
	if domain.ApplyWindowReset(account, st, now) {
		changed = true
	}
	if !changed {
		return nil
	}
	account.UpdatedAt = now
	return s.repo.Update(ctx, account)
}

// ApplyPlanReset zeroes both usage windows, used when an account moves
// between plans.
func ApplyPlanReset(account *domain.CreditAccount, now time.Time) {
	account.DailyUsed = 0
	account.MonthlyUsed = 0
	account.LastDailyReset = &now
	account.LastMonthlyReset = &now
}
