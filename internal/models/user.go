package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User is a verified account able to hold a session.
type User struct {
	BaseModel

	Email     string  `gorm:"uniqueIndex;not null;size:320" json:"email"`
	Name      string  `gorm:"not null" json:"name"`
	Password  string  `json:"-"`
	GoogleID  *string `gorm:"uniqueIndex;size:255" json:"-"`
	AvatarURL string  `json:"avatar_url,omitempty"`

	IsActive   bool `gorm:"not null" json:"is_active"`
	IsAdmin    bool `gorm:"not null" json:"is_admin"`
	IsVerified bool `gorm:"not null" json:"is_verified"`

	FailedAttempts int        `gorm:"not null;default:0" json:"-"`
	LockedUntil    *time.Time `json:"-"`
	LastLoginAt    *time.Time `json:"last_login_at"`
}

// BeforeCreate assigns the identifier and normalises the email address.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.Email = NormalizeEmail(u.Email)
	return u.BaseModel.BeforeCreate(tx)
}

// HasPassword reports whether the account can sign in with a local password.
func (u *User) HasPassword() bool {
	return u.Password != ""
}

// IsLocked reports whether a lockout is still in effect at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// NormalizeEmail lower-cases and trims an address so lookups are case insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
