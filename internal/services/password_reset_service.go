package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/internai/internal/models"
	"github.com/charlesng35/internai/pkg/crypto"
	apperrors "github.com/charlesng35/internai/pkg/errors"
	"github.com/charlesng35/internai/pkg/logger"
	"github.com/charlesng35/internai/pkg/mail"
	"github.com/charlesng35/internai/pkg/metrics"
)

const (
	defaultResetTTL        = time.Hour
	defaultResetTokenBytes = 32
)

// PasswordResetOption customises the PasswordResetService.
type PasswordResetOption func(*PasswordResetService)

// WithPasswordResetClock injects a custom time source.
func WithPasswordResetClock(clock func() time.Time) PasswordResetOption {
	return func(s *PasswordResetService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithPasswordResetTTL overrides how long a reset link remains valid.
func WithPasswordResetTTL(ttl time.Duration) PasswordResetOption {
	return func(s *PasswordResetService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithPasswordResetURL sets the frontend page that receives the token.
func WithPasswordResetURL(raw string) PasswordResetOption {
	return func(s *PasswordResetService) {
		s.resetURL = strings.TrimSpace(raw)
	}
}

// WithPasswordResetTokenGenerator replaces the random token source.
func WithPasswordResetTokenGenerator(generate func(n int) (string, error)) PasswordResetOption {
	return func(s *PasswordResetService) {
		if generate != nil {
			s.generate = generate
		}
	}
}

// WithPasswordResetDeliveryTimeout bounds how long sending the link may take.
func WithPasswordResetDeliveryTimeout(d time.Duration) PasswordResetOption {
	return func(s *PasswordResetService) {
		if d > 0 {
			s.deliveryTimeout = d
		}
	}
}

// PasswordResetService issues and redeems single-use password reset tokens.
// Only the SHA-256 digest of a token is stored.
type PasswordResetService struct {
	db              *gorm.DB
	mailer          mail.Mailer
	now             func() time.Time
	generate        func(n int) (string, error)
	hashPassword    func(string) (string, error)
	ttl             time.Duration
	resetURL        string
	deliveryTimeout time.Duration
	log             *zap.Logger
}

// NewPasswordResetService constructs the service with the provided dependencies.
func NewPasswordResetService(db *gorm.DB, mailer mail.Mailer, opts ...PasswordResetOption) (*PasswordResetService, error) {
	if db == nil {
		return nil, errors.New("password reset service: db is required")
	}

	service := &PasswordResetService{
		db:              db,
		mailer:          mailer,
		now:             time.Now,
		generate:        crypto.GenerateToken,
		hashPassword:    crypto.HashPassword,
		ttl:             defaultResetTTL,
		resetURL:        "http://localhost:5173/reset-password",
		deliveryTimeout: defaultDeliveryTimeout,
		log:             logger.WithModule("password_reset"),
	}
	for _, opt := range opts {
		opt(service)
	}

	if _, err := url.Parse(service.resetURL); err != nil {
		return nil, fmt.Errorf("password reset service: invalid reset url: %w", err)
	}
	return service, nil
}

// RequestReset sends a reset link when the email belongs to an active account
// with a password. The outcome is the same for every address.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	ctx = ensureContext(ctx)
	metrics.PasswordResets.WithLabelValues("requested").Inc()

	email = models.NormalizeEmail(email)
	if email == "" {
		return nil
	}

	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("password reset service: find user: %w", err)
	}
	if !user.IsActive || !user.HasPassword() {
		s.log.Debug("reset requested for ineligible account", zap.String("user_id", user.ID))
		return nil
	}

	raw, err := s.generate(defaultResetTokenBytes)
	if err != nil {
		return fmt.Errorf("password reset service: generate token: %w", err)
	}

	token := &models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: crypto.HashToken(raw),
		ExpiresAt: s.now().UTC().Add(s.ttl),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.PasswordResetToken{}).Error; err != nil {
			return err
		}
		return tx.Create(token).Error
	})
	if err != nil {
		return fmt.Errorf("password reset service: store token: %w", err)
	}

	msg, err := mail.PasswordResetMessage(user.Email, user.Name, s.link(raw), s.ttl)
	if err != nil {
		s.log.Error("render password reset message", zap.Error(err))
		return nil
	}
	deliver(ctx, s.mailer, s.deliveryTimeout, "password_reset", msg, s.log)
	return nil
}

// Redeem sets a new password if raw names a live token, consuming it.
// Of any number of concurrent redemptions exactly one succeeds.
func (s *PasswordResetService) Redeem(ctx context.Context, raw, newPassword string) error {
	ctx = ensureContext(ctx)

	raw = strings.TrimSpace(raw)
	if raw == "" {
		metrics.PasswordResets.WithLabelValues("rejected").Inc()
		return apperrors.ErrInvalidOrExpired
	}
	if newPassword == "" {
		return apperrors.NewBadRequest("password is required")
	}

	hash := crypto.HashToken(raw)
	now := s.now().UTC()

	var token models.PasswordResetToken
	err := s.db.WithContext(ctx).Take(&token, "token_hash = ? AND used_at IS NULL AND expires_at > ?", hash, now).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.PasswordResets.WithLabelValues("rejected").Inc()
		return apperrors.ErrInvalidOrExpired
	}
	if err != nil {
		return fmt.Errorf("password reset service: find token: %w", err)
	}

	// Only a live token pays for the password digest.
	digest, err := s.hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("password reset service: hash password: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PasswordResetToken{}).
			Where("id = ? AND used_at IS NULL AND expires_at > ?", token.ID, now).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrInvalidOrExpired
		}

		res = tx.Model(&models.User{}).
			Where("id = ?", token.UserID).
			Updates(map[string]any{
				"password":        digest,
				"failed_attempts": 0,
				"locked_until":    nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrInvalidOrExpired
		}
		return nil
	})
	if err != nil {
		metrics.PasswordResets.WithLabelValues("rejected").Inc()
		if errors.Is(err, apperrors.ErrInvalidOrExpired) {
			return apperrors.ErrInvalidOrExpired
		}
		return fmt.Errorf("password reset service: redeem: %w", err)
	}

	metrics.PasswordResets.WithLabelValues("redeemed").Inc()
	return nil
}

func (s *PasswordResetService) link(raw string) string {
	u, err := url.Parse(s.resetURL)
	if err != nil {
		return s.resetURL + "?token=" + url.QueryEscape(raw)
	}
	q := u.Query()
	q.Set("token", raw)
	u.RawQuery = q.Encode()
	return u.String()
}
