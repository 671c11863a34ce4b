package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/internai/internal/auth"
	"github.com/charlesng35/internai/internal/auth/providers"
	"github.com/charlesng35/internai/internal/models"
	"github.com/charlesng35/internai/internal/services"
	apperrors "github.com/charlesng35/internai/pkg/errors"
	"github.com/charlesng35/internai/pkg/metrics"
	"github.com/charlesng35/internai/pkg/response"
)

var errAccountDisabled = apperrors.New("ACCOUNT_DISABLED", "Account is disabled", http.StatusForbidden)

// AuthHandler serves registration, password login, session and recovery endpoints.
type AuthHandler struct {
	registration *services.RegistrationService
	resets       *services.PasswordResetService
	local        *providers.LocalProvider
	sessions     *iauth.SessionService
}

// NewAuthHandler wires the handler; every dependency is required.
func NewAuthHandler(registration *services.RegistrationService, resets *services.PasswordResetService, local *providers.LocalProvider, sessions *iauth.SessionService) (*AuthHandler, error) {
	switch {
	case registration == nil:
		return nil, errors.New("auth handler: registration service is required")
	case resets == nil:
		return nil, errors.New("auth handler: password reset service is required")
	case local == nil:
		return nil, errors.New("auth handler: local provider is required")
	case sessions == nil:
		return nil, errors.New("auth handler: session service is required")
	}
	return &AuthHandler{
		registration: registration,
		resets:       resets,
		local:        local,
		sessions:     sessions,
	}, nil
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=320"`
	Name     string `json:"name" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type verifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,numeric_code"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type pendingResponse struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	Delivered bool      `json:"delivered"`
}

type userResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	IsAdmin     bool       `json:"is_admin"`
	IsVerified  bool       `json:"is_verified"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newUserResponse(user *models.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		AvatarURL:   user.AvatarURL,
		IsAdmin:     user.IsAdmin,
		IsVerified:  user.IsVerified,
		IsActive:    user.IsActive,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	}
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.registration.BeginRegistration(requestContext(c), services.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, pendingResponse{
		Email:     result.Email,
		ExpiresAt: result.ExpiresAt,
		Delivered: result.Delivered,
	})
}

// POST /api/auth/register/verify
func (h *AuthHandler) VerifyRegistration(c *gin.Context) {
	var req verifyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.registration.Confirm(requestContext(c), req.Email, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	if _, err := h.sessions.IssueSession(c.Writer, user); err != nil {
		response.Error(c, apperrors.ErrInternalServer.WithInternal(err))
		return
	}
	response.Success(c, http.StatusCreated, newUserResponse(user))
}

// POST /api/auth/register/resend
func (h *AuthHandler) ResendCode(c *gin.Context) {
	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.registration.Resend(requestContext(c), req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, pendingResponse{
		Email:     result.Email,
		ExpiresAt: result.ExpiresAt,
		Delivered: result.Delivered,
	})
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.local.Authenticate(requestContext(c), providers.AuthenticateInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("password", "failure").Inc()
		switch {
		case errors.Is(err, providers.ErrInvalidCredentials):
			response.Error(c, apperrors.ErrInvalidCredentials)
		case errors.Is(err, providers.ErrAccountLocked):
			response.Error(c, apperrors.ErrAccountLocked)
		case errors.Is(err, providers.ErrAccountDisabled):
			response.Error(c, errAccountDisabled)
		default:
			response.Error(c, apperrors.ErrInternalServer.WithInternal(err))
		}
		return
	}

	if _, err := h.sessions.IssueSession(c.Writer, user); err != nil {
		metrics.AuthAttempts.WithLabelValues("password", "failure").Inc()
		response.Error(c, apperrors.ErrInternalServer.WithInternal(err))
		return
	}

	metrics.AuthAttempts.WithLabelValues("password", "success").Inc()
	response.Success(c, http.StatusOK, newUserResponse(user))
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	user, err := h.sessions.RefreshSession(requestContext(c), c.Writer, c.Request)
	if err != nil {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}
	response.Success(c, http.StatusOK, newUserResponse(user))
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	h.sessions.ClearSession(c.Writer)
	response.Message(c, http.StatusOK, "Successfully logged out")
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, newUserResponse(user))
}

// POST /api/auth/password/forgot
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.resets.RequestReset(requestContext(c), req.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusAccepted, "If the email is registered, a reset link has been sent")
}

// POST /api/auth/password/reset
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.resets.Redeem(requestContext(c), req.Token, req.Password); err != nil {
		response.Error(c, err)
		return
	}

	h.sessions.ClearSession(c.Writer)
	response.Message(c, http.StatusOK, "Password updated")
}
