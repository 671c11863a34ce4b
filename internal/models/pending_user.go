package models

import (
	"time"

	"gorm.io/gorm"
)

// PendingUser holds a registration awaiting confirmation of its emailed code.
type PendingUser struct {
	BaseModel

	Email         string    `gorm:"uniqueIndex;not null;size:320" json:"email"`
	Name          string    `gorm:"not null" json:"name"`
	Password      string    `gorm:"not null" json:"-"`
	CodeHash      string    `gorm:"not null" json:"-"`
	CodeExpiresAt time.Time `gorm:"index" json:"code_expires_at"`
	Attempts      int       `gorm:"not null;default:0" json:"-"`
}

func (p *PendingUser) BeforeCreate(tx *gorm.DB) error {
	p.Email = NormalizeEmail(p.Email)
	return p.BaseModel.BeforeCreate(tx)
}

// Expired reports whether the verification code can no longer be used.
func (p *PendingUser) Expired(now time.Time) bool {
	return !now.Before(p.CodeExpiresAt)
}
