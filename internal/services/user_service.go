package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/internai/internal/auth/providers"
	"github.com/charlesng35/internai/internal/models"
	"github.com/charlesng35/internai/pkg/crypto"
	apperrors "github.com/charlesng35/internai/pkg/errors"
	"github.com/charlesng35/internai/pkg/logger"
)

// CreateUserInput describes the fields accepted when creating a user.
type CreateUserInput struct {
	Email    string
	Name     string
	Password string
	// PasswordHash is used as-is when set, for callers holding an existing digest.
	PasswordHash string
	IsAdmin      bool
	IsVerified   bool
	IsActive     *bool
}

// UpdateUserInput enumerates mutable user attributes.
type UpdateUserInput struct {
	Name      *string
	AvatarURL *string
	IsActive  *bool
	IsAdmin   *bool
}

// ListUsersOptions pages and filters List.
type ListUsersOptions struct {
	Page     int
	PageSize int
	// Query matches a case-insensitive substring of email or name.
	Query    string
	IsActive *bool
}

// UserService manages the lifecycle of users.
type UserService struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.Logger
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db, now: time.Now, log: logger.WithModule("users")}, nil
}

// FindByID loads a user by identifier.
func (s *UserService) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.findOne(ensureContext(ctx), "id = ?", strings.TrimSpace(id))
}

// FindByEmail loads a user by case-insensitive email.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ensureContext(ctx), "email = ?", models.NormalizeEmail(email))
}

func (s *UserService) findOne(ctx context.Context, query string, arg string) (*models.User, error) {
	if arg == "" {
		return nil, ErrUserNotFound
	}

	var user models.User
	err := s.db.WithContext(ctx).Take(&user, query, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: find user: %w", err)
	}
	return &user, nil
}

// List returns one page of users, newest first, with the total match count.
func (s *UserService) List(ctx context.Context, opts ListUsersOptions) ([]models.User, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	query := s.db.WithContext(ctx).Model(&models.User{})
	if opts.IsActive != nil {
		query = query.Where("is_active = ?", *opts.IsActive)
	}
	if q := strings.TrimSpace(opts.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(name) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: count users: %w", err)
	}

	var users []models.User
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: list users: %w", err)
	}
	return users, total, nil
}

// Create provisions a new user. An email collision maps to ErrAlreadyRegistered.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	return createUser(ensureContext(ctx), s.db, input)
}

func createUser(ctx context.Context, db *gorm.DB, input CreateUserInput) (*models.User, error) {
	email := models.NormalizeEmail(input.Email)
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}

	hashed := input.PasswordHash
	if hashed == "" && input.Password != "" {
		var err error
		if hashed, err = crypto.HashPassword(input.Password); err != nil {
			return nil, fmt.Errorf("user service: hash password: %w", err)
		}
	}

	user := &models.User{
		Email:      email,
		Name:       strings.TrimSpace(input.Name),
		Password:   hashed,
		IsActive:   true,
		IsAdmin:    input.IsAdmin,
		IsVerified: input.IsVerified,
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}

	if err := db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrAlreadyRegistered.WithInternal(err)
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}
	return user, nil
}

// Update persists mutable attributes for an existing user.
func (s *UserService) Update(ctx context.Context, id string, input UpdateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*input.AvatarURL)
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if input.IsAdmin != nil {
		updates["is_admin"] = *input.IsAdmin
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("user service: update user: %w", err)
	}
	return s.FindByID(ctx, id)
}

// Delete removes a user and, through the foreign key, its reset tokens.
func (s *UserService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	res := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).Delete(&models.User{})
	if res.Error != nil {
		return fmt.Errorf("user service: delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpsertFederated signs in a federated identity: matched by provider subject,
// then linked by email, otherwise created as an active password-less account.
// An email already bound to another subject is never relinked.
func (s *UserService) UpsertFederated(ctx context.Context, identity *providers.FederatedIdentity) (*models.User, error) {
	ctx = ensureContext(ctx)
	if identity == nil || identity.Subject == "" || identity.Email == "" {
		return nil, apperrors.NewBadRequest("federated identity is incomplete")
	}

	var result *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Take(&user, "google_id = ?", identity.Subject).Error
		switch {
		case err == nil:
			updates := map[string]any{}
			if identity.Name != "" && user.Name != identity.Name {
				updates["name"] = identity.Name
			}
			if identity.AvatarURL != "" && user.AvatarURL == "" {
				updates["avatar_url"] = identity.AvatarURL
			}
			if len(updates) > 0 {
				if err := tx.Model(&user).Updates(updates).Error; err != nil {
					return err
				}
			}
			result = &user
			return tx.Take(result, "id = ?", user.ID).Error
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		err = tx.Take(&user, "email = ?", models.NormalizeEmail(identity.Email)).Error
		switch {
		case err == nil:
			if user.GoogleID != nil {
				s.log.Warn("federated subject does not match linked account",
					zap.String("user_id", user.ID), zap.String("provider", identity.Provider))
				return ErrIdentityConflict
			}
			subject := identity.Subject
			updates := map[string]any{"google_id": subject, "is_verified": true}
			if identity.Name != "" {
				updates["name"] = identity.Name
			}
			if identity.AvatarURL != "" && user.AvatarURL == "" {
				updates["avatar_url"] = identity.AvatarURL
			}
			if err := tx.Model(&user).Updates(updates).Error; err != nil {
				return err
			}
			s.log.Info("linked federated identity", zap.String("user_id", user.ID), zap.String("provider", identity.Provider))
			result = &user
			return tx.Take(result, "id = ?", user.ID).Error
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		subject := identity.Subject
		name := identity.Name
		if name == "" {
			name = strings.SplitN(identity.Email, "@", 2)[0]
		}
		created := &models.User{
			Email:      identity.Email,
			Name:       name,
			GoogleID:   &subject,
			AvatarURL:  identity.AvatarURL,
			IsActive:   true,
			IsVerified: true,
		}
		if err := tx.Create(created).Error; err != nil {
			return err
		}
		result = created
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrIdentityConflict) {
			return nil, ErrIdentityConflict
		}
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrAlreadyRegistered.WithInternal(err)
		}
		return nil, fmt.Errorf("user service: upsert federated user: %w", err)
	}
	return result, nil
}
