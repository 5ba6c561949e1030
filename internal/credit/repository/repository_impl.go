package repository

import (
	"context"
	"errors"
	"time"

	"github.com/reelforge/reelforge/internal/credit/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) FindByUserID(ctx context.Context, userID string) (*domain.CreditAccount, error) {
	var account domain.CreditAccount
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repo) Insert(ctx context.Context, account *domain.CreditAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repo) Update(ctx context.Context, account *domain.CreditAccount) error {
	tx := r.db.WithContext(ctx).Save(account)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *repo) ResetDailyWindows(ctx context.Context, plans []domain.Plan, cutoff, now time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&domain.CreditAccount{}).
		Where("plan IN ?", plans).
		Where("is_unlimited = ?", false).
		Where("last_daily_reset IS NULL OR last_daily_reset < ?", cutoff).
		Updates(map[string]any{
			"daily_used":       0,
			"last_daily_reset": now,
			"updated_at":       now,
		})
	return tx.RowsAffected, tx.Error
}

func (r *repo) ResetMonthlyWindows(ctx context.Context, plans []domain.Plan, cutoff, now time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&domain.CreditAccount{}).
		Where("plan IN ?", plans).
		Where("is_unlimited = ?", false).
		Where("last_monthly_reset IS NULL OR last_monthly_reset < ?", cutoff).
		Updates(map[string]any{
			"monthly_used":       0,
			"last_monthly_reset": now,
			"updated_at":         now,
		})
	return tx.RowsAffected, tx.Error
}
