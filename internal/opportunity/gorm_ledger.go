// Package opportunity implements the interview opportunity ledger that gates
// the interviewee side of a match. Backends: gorm (postgres or sqlite), redis
// and an in-process map.
package opportunity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/Aidin1998/codemeet/pkg/errors"
	"github.com/Aidin1998/codemeet/pkg/models"
)

const DefaultInitialBalance = 1

// Transaction reasons recorded in the audit table
const (
	ReasonInitial = "initial"
	ReasonConsume = "consume"
	ReasonAward   = "award"
	ReasonDaily   = "daily"
)

// GormLedger keeps balances in the user_opportunities table. Every balance
// change is a conditional UPDATE so concurrent consumers never overdraw.
type GormLedger struct {
	db             *gorm.DB
	logger         *zap.Logger
	initialBalance int
	now            func() time.Time
}

func NewGormLedger(db *gorm.DB, logger *zap.Logger, initialBalance int) *GormLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if initialBalance < 0 {
		initialBalance = 0
	}
	return &GormLedger{
		db:             db,
		logger:         logger,
		initialBalance: initialBalance,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates the ledger tables
func (l *GormLedger) Migrate() error {
	return l.db.AutoMigrate(&models.UserOpportunity{}, &models.OpportunityTransaction{})
}

// EnsureAccount creates the user's account with the initial balance if it
// does not exist yet. The creation counts as today's daily award.
func (l *GormLedger) EnsureAccount(ctx context.Context, userID string) error {
	if userID == "" {
		return apperrors.ErrInvalidArgument.Explain("user id is required")
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := l.now()
		account := models.UserOpportunity{
			UserID:           userID,
			Balance:          l.initialBalance,
			LastDailyAwardAt: &now,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&account)
		if res.Error != nil {
			return fmt.Errorf("failed to create opportunity account: %w", res.Error)
		}
		if res.RowsAffected == 0 || l.initialBalance == 0 {
			return nil
		}
		return l.record(tx, userID, l.initialBalance, ReasonInitial)
	})
}

// Balance returns the user's current balance. Users without an account
// report the initial balance they would be created with.
func (l *GormLedger) Balance(ctx context.Context, userID string) (int, error) {
	var account models.UserOpportunity
	err := l.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return l.initialBalance, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load opportunity account: %w", err)
	}
	return account.Balance, nil
}

func (l *GormLedger) HasOpportunity(ctx context.Context, userID string) (bool, error) {
	balance, err := l.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance > 0, nil
}

// TryConsume takes one opportunity if the balance allows it.
func (l *GormLedger) TryConsume(ctx context.Context, userID string) (bool, error) {
	if err := l.EnsureAccount(ctx, userID); err != nil {
		return false, err
	}

	// Start transaction
	tx := l.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	res := tx.Model(&models.UserOpportunity{}).
		Where("user_id = ? AND balance > 0", userID).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance - 1"),
			"updated_at": l.now(),
		})
	if res.Error != nil {
		tx.Rollback()
		return false, fmt.Errorf("failed to consume opportunity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return false, nil
	}

	if err := l.record(tx, userID, -1, ReasonConsume); err != nil {
		tx.Rollback()
		return false, err
	}

	// Commit transaction
	if err := tx.Commit().Error; err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	l.logger.Debug("Opportunity consumed", zap.String("user_id", userID))
	return true, nil
}

// Award adds amount opportunities to the user's balance.
func (l *GormLedger) Award(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return apperrors.ErrInvalidArgument.Explain("award amount must be positive, got %d", amount)
	}
	if err := l.EnsureAccount(ctx, userID); err != nil {
		return err
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.UserOpportunity{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"balance":    gorm.Expr("balance + ?", amount),
				"updated_at": l.now(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to award opportunity: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrNotFound.Explain("opportunity account for %s", userID)
		}
		return l.record(tx, userID, amount, ReasonAward)
	})
	if err != nil {
		return err
	}

	l.logger.Debug("Opportunities awarded", zap.String("user_id", userID), zap.Int("amount", amount))
	return nil
}

// TryAwardDaily grants one opportunity once per UTC calendar day.
func (l *GormLedger) TryAwardDaily(ctx context.Context, userID string) (bool, error) {
	if err := l.EnsureAccount(ctx, userID); err != nil {
		return false, err
	}

	now := l.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	awarded := false

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.UserOpportunity{}).
			Where("user_id = ? AND (last_daily_award_at IS NULL OR last_daily_award_at < ?)", userID, startOfDay).
			Updates(map[string]interface{}{
				"balance":             gorm.Expr("balance + 1"),
				"last_daily_award_at": now,
				"updated_at":          now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to award daily opportunity: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		awarded = true
		return l.record(tx, userID, 1, ReasonDaily)
	})
	if err != nil {
		return false, err
	}
	return awarded, nil
}

func (l *GormLedger) record(tx *gorm.DB, userID string, delta int, reason string) error {
	entry := models.OpportunityTransaction{
		ID:        uuid.New(),
		UserID:    userID,
		Delta:     delta,
		Reason:    reason,
		CreatedAt: l.now(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to record opportunity transaction: %w", err)
	}
	return nil
}
