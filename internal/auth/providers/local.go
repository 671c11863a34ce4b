package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/internai/internal/models"
	"github.com/charlesng35/internai/pkg/crypto"
)

var (
	// ErrInvalidCredentials is returned when the supplied email/password pair is invalid.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrAccountLocked signals that the user has exceeded the permitted failed attempts.
	ErrAccountLocked = errors.New("auth: account locked")
	// ErrAccountDisabled signals that the user has been deactivated.
	ErrAccountDisabled = errors.New("auth: account disabled")
)

// LocalConfig defines tunable behaviour for the local provider.
type LocalConfig struct {
	LockoutThreshold int
	LockoutDuration  time.Duration
	Clock            func() time.Time
}

// AuthenticateInput contains the credentials submitted to the login endpoint.
type AuthenticateInput struct {
	Email    string
	Password string
}

// LocalProvider implements email/password authentication with account lockout controls.
type LocalProvider struct {
	db        *gorm.DB
	clock     func() time.Time
	threshold int
	duration  time.Duration
}

// NewLocalProvider builds a provider with sane defaults.
func NewLocalProvider(db *gorm.DB, cfg LocalConfig) (*LocalProvider, error) {
	if db == nil {
		return nil, errors.New("local provider: db is required")
	}

	threshold := cfg.LockoutThreshold
	if threshold <= 0 {
		threshold = 5
	}
	duration := cfg.LockoutDuration
	if duration <= 0 {
		duration = 15 * time.Minute
	}
	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &LocalProvider{db: db, clock: clock, threshold: threshold, duration: duration}, nil
}

// Authenticate verifies the supplied credentials and returns the associated user when successful.
// Unknown emails and password-less federated accounts fail like a wrong password.
func (p *LocalProvider) Authenticate(ctx context.Context, input AuthenticateInput) (*models.User, error) {
	email := models.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, ErrInvalidCredentials
	}

	db := p.db.WithContext(ctx)

	var user models.User
	err := db.Take(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("local provider: query user: %w", err)
	}

	now := p.clock().UTC()

	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	if user.IsLocked(now) {
		return nil, ErrAccountLocked
	}
	if !user.HasPassword() {
		return nil, ErrInvalidCredentials
	}

	if user.LockedUntil != nil {
		user.LockedUntil = nil
		user.FailedAttempts = 0
		if err := db.Model(&user).Updates(map[string]any{
			"locked_until":    nil,
			"failed_attempts": 0,
		}).Error; err != nil {
			return nil, fmt.Errorf("local provider: reset lock state: %w", err)
		}
	}

	if !crypto.VerifyPassword(user.Password, input.Password) {
		return nil, p.recordFailure(db, &user, now)
	}

	user.FailedAttempts = 0
	user.LastLoginAt = &now
	if err := db.Model(&user).Updates(map[string]any{
		"failed_attempts": 0,
		"locked_until":    nil,
		"last_login_at":   now,
	}).Error; err != nil {
		return nil, fmt.Errorf("local provider: update user: %w", err)
	}

	return &user, nil
}

func (p *LocalProvider) recordFailure(db *gorm.DB, user *models.User, now time.Time) error {
	user.FailedAttempts++
	updates := map[string]any{"failed_attempts": user.FailedAttempts}

	locked := user.FailedAttempts >= p.threshold
	if locked {
		until := now.Add(p.duration)
		user.LockedUntil = &until
		updates["locked_until"] = until
	}

	if err := db.Model(user).Updates(updates).Error; err != nil {
		return fmt.Errorf("local provider: update failed attempts: %w", err)
	}
	if locked {
		return ErrAccountLocked
	}
	return ErrInvalidCredentials
}
