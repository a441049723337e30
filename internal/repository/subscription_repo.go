package repository

import (
	"context"
	"time"

	"github.com/timmy/jobalerts/internal/domain"
	"gorm.io/gorm"
)

// SubscriptionRepository handles subscription data operations.
type SubscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *SubscriptionRepository: repository instance bound to db.
func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Create inserts a new subscription.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	return storageErr("create subscription", r.db.WithContext(ctx).Create(sub).Error)
}

// GetByID retrieves a subscription by its ID.
func (r *SubscriptionRepository) GetByID(ctx context.Context, id uint) (*domain.Subscription, error) {
	var sub domain.Subscription
	if err := r.db.WithContext(ctx).First(&sub, id).Error; err != nil {
		return nil, storageErr("get subscription", err)
	}
	return &sub, nil
}

// ListActive returns every active subscription in ID order.
func (r *SubscriptionRepository) ListActive(ctx context.Context) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&subs).Error; err != nil {
		return nil, storageErr("list active subscriptions", err)
	}
	return subs, nil
}

// ListForEmail returns an address's subscriptions, newest first.
func (r *SubscriptionRepository) ListForEmail(ctx context.Context, email string) ([]domain.Subscription, error) {
	subs := []domain.Subscription{}
	err := r.db.WithContext(ctx).
		Where("lower(email) = ?", domain.NormalizeEmail(email)).
		Order("created_at DESC").
		Order("id DESC").
		Find(&subs).Error
	if err != nil {
		return nil, storageErr("list subscriptions", err)
	}
	return subs, nil
}

// CountActive returns the number of active subscriptions.
func (r *SubscriptionRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.Subscription{}).Where("active = ?", true).Count(&n).Error; err != nil {
		return 0, storageErr("count subscriptions", err)
	}
	return n, nil
}

// Deactivate switches one subscription off and stamps last_deactivated_at.
// Returns domain.ErrNotFound if no row has that ID.
func (r *SubscriptionRepository) Deactivate(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"active":              false,
			"last_deactivated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return storageErr("deactivate subscription", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ActivateLatestInactive re-enables the most recently created inactive
// subscription for email. Returns false when there is none.
func (r *SubscriptionRepository) ActivateLatestInactive(ctx context.Context, email string) (bool, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return false, nil
	}
	var sub domain.Subscription
	err := r.db.WithContext(ctx).
		Where("lower(email) = ? AND active = ?", email, false).
		Order("created_at DESC").
		Order("id DESC").
		First(&sub).Error
	if err != nil {
		if err = storageErr("find inactive subscription", err); err == domain.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	res := r.db.WithContext(ctx).Model(&sub).Update("active", true)
	if res.Error != nil {
		return false, storageErr("activate subscription", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// UpdateForOwner rewrites the preference of a subscription owned by email.
// The location is trimmed to three slots and the subscription is re-activated.
// Returns false when no subscription with that ID belongs to email.
func (r *SubscriptionRepository) UpdateForOwner(ctx context.Context, id uint, email, location, jobType string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("id = ? AND lower(email) = ?", id, domain.NormalizeEmail(email)).
		Updates(map[string]interface{}{
			"preferred_location": domain.TrimLocationSlots(location),
			"job_type":           jobType,
			"updated_once":       true,
			"needs_pref_update":  false,
			"active":             true,
		})
	if res.Error != nil {
		return false, storageErr("update subscription", res.Error)
	}
	return res.RowsAffected > 0, nil
}
