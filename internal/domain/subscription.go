package domain

import (
	"strings"
	"time"
)

// MaxLocationSlots is the number of location preferences one subscription carries.
const MaxLocationSlots = 3

// AnyPreference is the literal that disables a location or job-type filter.
const AnyPreference = "Any"

// JobTypeOptions is the job-type vocabulary accepted from subscribers.
var JobTypeOptions = []string{
	AnyPreference,
	"Full Time",
	"Part Time",
	"Fixed-term",
	"Permanent",
	"Regular",
	"Seasonal",
}

// Subscription is a standing location and job-type preference owned by one account.
type Subscription struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	OwnerID           uint       `gorm:"not null;index" json:"owner_id"`
	Email             string     `gorm:"type:text;not null;index" json:"email"`
	PreferredLocation string     `gorm:"type:text" json:"preferred_location"`
	JobType           string     `gorm:"type:text" json:"job_type"`
	Active            bool       `gorm:"not null;index" json:"active"`
	UpdatedOnce       bool       `gorm:"not null" json:"updated_once"`
	NeedsPrefUpdate   bool       `gorm:"not null" json:"needs_pref_update"`
	LastDeactivatedAt *time.Time `json:"last_deactivated_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Subscription.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Subscription) TableName() string {
	return "subscriptions"
}

// JoinLocationSlots trims parts, drops empties, keeps the first
// MaxLocationSlots and joins them with "; ".
func JoinLocationSlots(parts []string) string {
	kept := make([]string, 0, MaxLocationSlots)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kept = append(kept, p)
		if len(kept) == MaxLocationSlots {
			break
		}
	}
	return strings.Join(kept, "; ")
}

// TrimLocationSlots re-splits a stored preference and caps it at MaxLocationSlots.
func TrimLocationSlots(pref string) string {
	return JoinLocationSlots(strings.Split(pref, ";"))
}

// ValidJobType reports whether jt is in the job-type vocabulary (case-insensitive).
func ValidJobType(jt string) bool {
	for _, opt := range JobTypeOptions {
		if strings.EqualFold(opt, strings.TrimSpace(jt)) {
			return true
		}
	}
	return false
}
