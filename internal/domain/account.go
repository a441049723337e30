package domain

import (
	"strings"
	"time"
)

// AccountRole distinguishes regular subscribers from administrators.
type AccountRole string

const (
	RoleUser  AccountRole = "user"
	RoleAdmin AccountRole = "admin"
)

// Account owns subscriptions and delivery history.
type Account struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	Email     string      `gorm:"type:text;not null;uniqueIndex" json:"email"`
	Role      AccountRole `gorm:"type:text;not null;default:user" json:"role"`
	Active    bool        `gorm:"not null" json:"active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Account.
func (Account) TableName() string {
	return "accounts"
}

// IsAdmin reports whether the account has the admin role.
func (a Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail performs the minimal address check used before sending.
func ValidEmail(email string) bool {
	return strings.Contains(email, "@")
}
