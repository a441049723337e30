package repository

import (
	"context"
	"errors"
	"time"

	"github.com/timmy/jobalerts/internal/domain"
	"gorm.io/gorm"
)

// AccountRepository handles account lifecycle operations.
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetOrCreate returns the account for email, creating an active user account if missing.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - email: address; normalized before lookup.
//
// Returns:
//   - *domain.Account: existing or new account.
//   - bool: true when the account was created by this call.
//   - error: non-nil if the lookup or insert fails.
func (r *AccountRepository) GetOrCreate(ctx context.Context, email string) (*domain.Account, bool, error) {
	existing, err := r.GetByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	acc := domain.Account{Email: domain.NormalizeEmail(email), Role: domain.RoleUser, Active: true}
	if err := r.Create(ctx, &acc); err != nil {
		// lost a race with a concurrent signup
		if again, getErr := r.GetByEmail(ctx, email); getErr == nil {
			return again, false, nil
		}
		return nil, false, err
	}
	return &acc, true, nil
}

// Create inserts an account as given.
func (r *AccountRepository) Create(ctx context.Context, acc *domain.Account) error {
	acc.Email = domain.NormalizeEmail(acc.Email)
	return storageErr("create account", r.db.WithContext(ctx).Create(acc).Error)
}

// GetByID retrieves an account by its ID.
func (r *AccountRepository) GetByID(ctx context.Context, id uint) (*domain.Account, error) {
	var acc domain.Account
	if err := r.db.WithContext(ctx).First(&acc, id).Error; err != nil {
		return nil, storageErr("get account", err)
	}
	return &acc, nil
}

// GetByIDForEmail retrieves an account only when it is owned by email.
// A mismatched address reports domain.ErrNotFound, same as a missing ID.
func (r *AccountRepository) GetByIDForEmail(ctx context.Context, id uint, email string) (*domain.Account, error) {
	var acc domain.Account
	err := r.db.WithContext(ctx).
		Where("id = ? AND email = ?", id, domain.NormalizeEmail(email)).
		First(&acc).Error
	if err != nil {
		return nil, storageErr("get account", err)
	}
	return &acc, nil
}

// GetByEmail retrieves an account by normalized email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var acc domain.Account
	if err := r.db.WithContext(ctx).Where("email = ?", domain.NormalizeEmail(email)).First(&acc).Error; err != nil {
		return nil, storageErr("get account", err)
	}
	return &acc, nil
}

// Deactivate switches the account and all of its subscriptions off.
func (r *AccountRepository) Deactivate(ctx context.Context, id uint) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acc domain.Account
		if err := tx.First(&acc, id).Error; err != nil {
			return err
		}
		if err := tx.Model(&acc).Update("active", false).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Subscription{}).
			Where("owner_id = ? OR lower(email) = ?", acc.ID, acc.Email).
			Updates(map[string]interface{}{
				"active":              false,
				"last_deactivated_at": now,
				"needs_pref_update":   false,
			}).Error
	})
	return storageErr("deactivate account", err)
}

// Reactivate switches the account back on together with only its most
// recently deactivated subscription, which is flagged for preference review.
// Returns the reactivated subscription, or nil if the account had none.
func (r *AccountRepository) Reactivate(ctx context.Context, id uint) (*domain.Subscription, error) {
	var reactivated *domain.Subscription
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acc domain.Account
		if err := tx.First(&acc, id).Error; err != nil {
			return err
		}
		if err := tx.Model(&acc).Update("active", true).Error; err != nil {
			return err
		}

		var sub domain.Subscription
		err := tx.Where("(owner_id = ? OR lower(email) = ?) AND active = ?", acc.ID, acc.Email, false).
			Order("last_deactivated_at IS NULL").
			Order("last_deactivated_at DESC").
			Order("id DESC").
			First(&sub).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Model(&sub).Updates(map[string]interface{}{
			"active":            true,
			"needs_pref_update": true,
		}).Error; err != nil {
			return err
		}
		sub.Active = true
		sub.NeedsPrefUpdate = true
		reactivated = &sub
		return nil
	})
	if err != nil {
		return nil, storageErr("reactivate account", err)
	}
	return reactivated, nil
}

// DeleteData removes the account with its subscriptions and ledger rows.
func (r *AccountRepository) DeleteData(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acc domain.Account
		if err := tx.First(&acc, id).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_id = ?", acc.ID).Delete(&domain.Delivery{}).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_id = ? OR lower(email) = ?", acc.ID, acc.Email).Delete(&domain.Subscription{}).Error; err != nil {
			return err
		}
		return tx.Delete(&acc).Error
	})
	return storageErr("delete account", err)
}
