package models

import "time"

// PasswordResetToken stores the digest of a single-use recovery credential.
type PasswordResetToken struct {
	BaseModel

	UserID    string     `gorm:"size:36;not null;index" json:"user_id"`
	User      *User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	TokenHash string     `gorm:"uniqueIndex;not null;size:64" json:"-"`
	ExpiresAt time.Time  `gorm:"index" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
}

// Usable reports whether the token may still be redeemed at now.
func (t *PasswordResetToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
