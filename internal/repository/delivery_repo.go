package repository

import (
	"context"
	"time"

	"github.com/timmy/jobalerts/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultHistoryLimit caps HistoryForOwner when the caller passes no limit.
const DefaultHistoryLimit = 200

var deliveryKeyColumns = []clause.Column{{Name: "subscription_id"}, {Name: "job_id"}}

// DeliveryRepository is the alert ledger. The unique (subscription_id, job_id)
// index is the only authority on whether a subscriber was already told about a job.
type DeliveryRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDeliveryRepository creates a new DeliveryRepository.
func NewDeliveryRepository(db *gorm.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Reserve creates a queued row for every (subscriptionID, jobID) pair not yet in the ledger.
// Concurrent callers are arbitrated by the unique index, so a pair is returned
// to exactly one of them.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ownerID: account that owns the subscription.
//   - subscriptionID: subscription the jobs matched.
//   - jobIDs: candidate job IDs.
//
// Returns:
//   - []uint: the job IDs newly reserved by this call.
//   - error: *domain.StorageError if the insert fails.
func (r *DeliveryRepository) Reserve(ctx context.Context, ownerID, subscriptionID uint, jobIDs []uint) ([]uint, error) {
	if len(jobIDs) == 0 {
		return []uint{}, nil
	}

	now := r.now()
	reserved := make([]uint, 0, len(jobIDs))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, jobID := range jobIDs {
			row := domain.Delivery{
				OwnerID:        ownerID,
				SubscriptionID: subscriptionID,
				JobID:          jobID,
				Status:         domain.DeliveryQueued,
				CreatedAt:      now,
			}
			res := tx.Clauses(clause.OnConflict{Columns: deliveryKeyColumns, DoNothing: true}).Create(&row)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				reserved = append(reserved, jobID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("reserve deliveries", err)
	}
	return reserved, nil
}

// MarkSent records transport success: status sent, sent_at now, error cleared.
func (r *DeliveryRepository) MarkSent(ctx context.Context, subscriptionID uint, jobIDs []uint) error {
	if len(jobIDs) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&domain.Delivery{}).
		Where("subscription_id = ? AND job_id IN ?", subscriptionID, jobIDs).
		Updates(map[string]interface{}{
			"status":  domain.DeliverySent,
			"sent_at": r.now(),
			"error":   nil,
		}).Error
	return storageErr("mark sent", err)
}

// MarkFailed records transport failure with the error text capped at 500 chars.
func (r *DeliveryRepository) MarkFailed(ctx context.Context, subscriptionID uint, jobIDs []uint, errText string) error {
	if len(jobIDs) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&domain.Delivery{}).
		Where("subscription_id = ? AND job_id IN ?", subscriptionID, jobIDs).
		Updates(map[string]interface{}{
			"status":  domain.DeliveryFailed,
			"sent_at": nil,
			"error":   domain.TruncateError(errText),
		}).Error
	return storageErr("mark failed", err)
}

// GetByID retrieves one ledger row.
func (r *DeliveryRepository) GetByID(ctx context.Context, id uint) (*domain.Delivery, error) {
	var d domain.Delivery
	if err := r.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, storageErr("get delivery", err)
	}
	return &d, nil
}

// HistoryForOwner returns an account's ledger rows joined with job attributes, newest first.
// limit <= 0 uses DefaultHistoryLimit.
func (r *DeliveryRepository) HistoryForOwner(ctx context.Context, ownerID uint, limit int) ([]domain.DeliveryWithJob, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows := []domain.DeliveryWithJob{}
	err := r.db.WithContext(ctx).
		Table("alert_deliveries AS ad").
		Select(`ad.id, ad.subscription_id, ad.job_id, ad.status, ad.created_at, ad.sent_at, ad.error,
			j.title, j.location, j.url, j.employment_type, j.duration, j.pay`).
		Joins("JOIN jobs j ON j.id = ad.job_id").
		Where("ad.owner_id = ?", ownerID).
		Order("ad.created_at DESC").
		Order("ad.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, storageErr("delivery history", err)
	}
	return rows, nil
}

// CountByStatus returns ledger row counts keyed by status.
func (r *DeliveryRepository) CountByStatus(ctx context.Context) (map[domain.DeliveryStatus]int64, error) {
	var rows []struct {
		Status domain.DeliveryStatus
		N      int64
	}
	err := r.db.WithContext(ctx).Model(&domain.Delivery{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, storageErr("count deliveries", err)
	}
	out := make(map[domain.DeliveryStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}
