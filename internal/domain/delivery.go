package domain

import (
	"strconv"
	"strings"
	"time"
)

// DeliveryStatus represents the state of one (subscription, job) alert.
// Values include DeliveryQueued, DeliverySent, and DeliveryFailed.
type DeliveryStatus string

const (
	DeliveryQueued DeliveryStatus = "queued"
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// MaxDeliveryErrorLen caps the stored error text of a failed delivery.
const MaxDeliveryErrorLen = 500

// Delivery is a ledger entry; (SubscriptionID, JobID) is unique.
type Delivery struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	OwnerID        uint           `gorm:"not null;index" json:"owner_id"`
	SubscriptionID uint           `gorm:"not null;uniqueIndex:idx_deliveries_sub_job,priority:1" json:"subscription_id"`
	JobID          uint           `gorm:"not null;uniqueIndex:idx_deliveries_sub_job,priority:2;index" json:"job_id"`
	Status         DeliveryStatus `gorm:"type:text;not null;default:queued" json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	Error          *string        `gorm:"type:text" json:"error,omitempty"`
}

// TableName returns the database table name for Delivery.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Delivery) TableName() string {
	return "alert_deliveries"
}

// DeliveryWithJob is a ledger row joined with the attributes of its job.
type DeliveryWithJob struct {
	ID             uint           `json:"id"`
	SubscriptionID uint           `json:"subscription_id"`
	JobID          uint           `json:"job_id"`
	Status         DeliveryStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	Error          *string        `json:"error,omitempty"`
	Title          string         `json:"title"`
	Location       string         `json:"location"`
	URL            string         `json:"url"`
	EmploymentType *string        `json:"type,omitempty"`
	Duration       *string        `json:"duration,omitempty"`
	Pay            *string        `json:"pay,omitempty"`
}

// TruncateError trims msg and caps it at MaxDeliveryErrorLen runes.
func TruncateError(msg string) string {
	r := []rune(strings.TrimSpace(msg))
	if len(r) > MaxDeliveryErrorLen {
		r = r[:MaxDeliveryErrorLen]
	}
	return string(r)
}

// Stats summarizes the store for dashboards.
type Stats struct {
	Jobs                int64 `json:"jobs"`
	ActiveSubscriptions int64 `json:"active_subscriptions"`
	Locations           int64 `json:"locations"`
	// Deliveries holds ledger row counts keyed by status.
	Deliveries map[DeliveryStatus]int64 `json:"deliveries,omitempty"`
}

func uintToString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
