package services

import (
	"context"
	"errors"
	"fmt"
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
	defaultCodeLength     = 6
	defaultCodeTTL        = 10 * time.Minute
	defaultMaxCodeAttempt = 5
	replaceAttempts       = 3
)

// RegisterInput captures a sign-up request.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// RegistrationResult reports where the code went and whether delivery succeeded.
type RegistrationResult struct {
	Email     string
	ExpiresAt time.Time
	Delivered bool
}

// RegistrationOption customises the RegistrationService.
type RegistrationOption func(*RegistrationService)

// WithRegistrationClock injects a custom time source.
func WithRegistrationClock(clock func() time.Time) RegistrationOption {
	return func(s *RegistrationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(generate func(length int) (string, error)) RegistrationOption {
	return func(s *RegistrationService) {
		if generate != nil {
			s.generate = generate
		}
	}
}

// WithCodeLength overrides the number of digits per code.
func WithCodeLength(length int) RegistrationOption {
	return func(s *RegistrationService) {
		if length > 0 {
			s.codeLength = length
		}
	}
}

// WithCodeTTL overrides how long a code stays valid.
func WithCodeTTL(ttl time.Duration) RegistrationOption {
	return func(s *RegistrationService) {
		if ttl > 0 {
			s.codeTTL = ttl
		}
	}
}

// WithMaxCodeAttempts bounds wrong guesses per issued code.
func WithMaxCodeAttempts(n int) RegistrationOption {
	return func(s *RegistrationService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRegistrationDeliveryTimeout bounds how long a code delivery may take.
func WithRegistrationDeliveryTimeout(d time.Duration) RegistrationOption {
	return func(s *RegistrationService) {
		if d > 0 {
			s.deliveryTimeout = d
		}
	}
}

// RegistrationService gates account creation behind an emailed numeric code.
type RegistrationService struct {
	db              *gorm.DB
	mailer          mail.Mailer
	now             func() time.Time
	generate        func(length int) (string, error)
	codeLength      int
	codeTTL         time.Duration
	maxAttempts     int
	deliveryTimeout time.Duration
	log             *zap.Logger
}

// NewRegistrationService constructs the service with the provided dependencies.
func NewRegistrationService(db *gorm.DB, mailer mail.Mailer, opts ...RegistrationOption) (*RegistrationService, error) {
	if db == nil {
		return nil, errors.New("registration service: db is required")
	}

	service := &RegistrationService{
		db:              db,
		mailer:          mailer,
		now:             time.Now,
		generate:        crypto.GenerateNumericCode,
		codeLength:      defaultCodeLength,
		codeTTL:         defaultCodeTTL,
		maxAttempts:     defaultMaxCodeAttempt,
		deliveryTimeout: defaultDeliveryTimeout,
		log:             logger.WithModule("registration"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// CodeTTL returns how long issued codes remain valid.
func (s *RegistrationService) CodeTTL() time.Duration { return s.codeTTL }

// BeginRegistration replaces any pending registration for the email and sends a fresh code.
func (s *RegistrationService) BeginRegistration(ctx context.Context, input RegisterInput) (*RegistrationResult, error) {
	ctx = ensureContext(ctx)

	email := models.NormalizeEmail(input.Email)
	name := strings.TrimSpace(input.Name)
	if email == "" || input.Password == "" {
		return nil, apperrors.NewBadRequest("email and password are required")
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("registration service: check user: %w", err)
	}
	if existing > 0 {
		metrics.Registrations.WithLabelValues("rejected").Inc()
		return nil, apperrors.ErrAlreadyRegistered
	}

	digest, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("registration service: hash password: %w", err)
	}
	code, err := s.generate(s.codeLength)
	if err != nil {
		return nil, fmt.Errorf("registration service: generate code: %w", err)
	}

	pending := &models.PendingUser{
		Email:         email,
		Name:          name,
		Password:      digest,
		CodeHash:      crypto.HashToken(code),
		CodeExpiresAt: s.now().UTC().Add(s.codeTTL),
	}

	if err := s.replacePending(ctx, pending); err != nil {
		return nil, fmt.Errorf("registration service: store pending registration: %w", err)
	}

	metrics.Registrations.WithLabelValues("started").Inc()
	return s.sendCode(ctx, pending, code), nil
}

// Resend issues a new code for an existing pending registration and resets its attempts.
func (s *RegistrationService) Resend(ctx context.Context, email string) (*RegistrationResult, error) {
	ctx = ensureContext(ctx)

	pending, err := s.findPending(ctx, email)
	if err != nil {
		return nil, err
	}

	code, err := s.generate(s.codeLength)
	if err != nil {
		return nil, fmt.Errorf("registration service: generate code: %w", err)
	}
	pending.CodeHash = crypto.HashToken(code)
	pending.CodeExpiresAt = s.now().UTC().Add(s.codeTTL)
	pending.Attempts = 0

	res := s.db.WithContext(ctx).Model(&models.PendingUser{}).
		Where("id = ?", pending.ID).
		Updates(map[string]any{
			"code_hash":       pending.CodeHash,
			"code_expires_at": pending.CodeExpiresAt,
			"attempts":        0,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("registration service: refresh code: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrPendingNotFound
	}

	metrics.Registrations.WithLabelValues("resent").Inc()
	return s.sendCode(ctx, pending, code), nil
}

// Confirm turns a pending registration into a verified, active user when the
// code matches. Of two racing confirmations only one creates the user.
func (s *RegistrationService) Confirm(ctx context.Context, email, code string) (*models.User, error) {
	ctx = ensureContext(ctx)

	pending, err := s.findPending(ctx, email)
	if err != nil {
		return nil, err
	}

	if pending.Expired(s.now()) {
		metrics.Registrations.WithLabelValues("rejected").Inc()
		return nil, apperrors.ErrInvalidOrExpired
	}

	// Every comparison spends an attempt up front; the conditional update
	// is what bounds concurrent guesses.
	spent := s.db.WithContext(ctx).Model(&models.PendingUser{}).
		Where("id = ? AND code_hash = ? AND attempts < ?", pending.ID, pending.CodeHash, s.maxAttempts).
		UpdateColumn("attempts", gorm.Expr("attempts + ?", 1))
	if spent.Error != nil {
		return nil, fmt.Errorf("registration service: record attempt: %w", spent.Error)
	}
	if spent.RowsAffected == 0 {
		metrics.Registrations.WithLabelValues("rejected").Inc()
		return nil, apperrors.ErrInvalidOrExpired
	}

	if !crypto.ConstantTimeEqual(crypto.HashToken(strings.TrimSpace(code)), pending.CodeHash) {
		metrics.Registrations.WithLabelValues("rejected").Inc()
		return nil, apperrors.ErrInvalidOrExpired
	}

	var user *models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND code_hash = ?", pending.ID, pending.CodeHash).Delete(&models.PendingUser{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPendingNotFound
		}

		created, err := createUser(ctx, tx, CreateUserInput{
			Email:        pending.Email,
			Name:         pending.Name,
			PasswordHash: pending.Password,
			IsVerified:   true,
		})
		if err != nil {
			return err
		}
		user = created
		return nil
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, fmt.Errorf("registration service: confirm: %w", err)
	}

	metrics.Registrations.WithLabelValues("confirmed").Inc()
	s.log.Info("registration confirmed", zap.String("user_id", user.ID))
	return user, nil
}

// replacePending swaps in the new pending row. A concurrent registration
// for the same email surfaces as a unique violation; the replace is retried
// so the latest registration wins.
func (s *RegistrationService) replacePending(ctx context.Context, pending *models.PendingUser) error {
	var err error
	for attempt := 0; attempt < replaceAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("email = ?", pending.Email).Delete(&models.PendingUser{}).Error; err != nil {
				return err
			}
			return tx.Create(pending).Error
		})
		if !isUniqueConstraintError(err) {
			return err
		}
		s.log.Debug("pending registration raced, retrying", zap.Int("attempt", attempt+1))
	}
	return err
}

func (s *RegistrationService) findPending(ctx context.Context, email string) (*models.PendingUser, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, ErrPendingNotFound
	}

	var pending models.PendingUser
	err := s.db.WithContext(ctx).Take(&pending, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPendingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registration service: find pending: %w", err)
	}
	return &pending, nil
}

func (s *RegistrationService) sendCode(ctx context.Context, pending *models.PendingUser, code string) *RegistrationResult {
	result := &RegistrationResult{Email: pending.Email, ExpiresAt: pending.CodeExpiresAt}

	msg, err := mail.VerificationCodeMessage(pending.Email, pending.Name, code, s.codeTTL)
	if err != nil {
		s.log.Error("render verification message", zap.Error(err))
		return result
	}
	result.Delivered = deliver(ctx, s.mailer, s.deliveryTimeout, "verification_code", msg, s.log)
	return result
}
