package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/internai/internal/auth"
	"github.com/charlesng35/internai/internal/auth/providers"
	"github.com/charlesng35/internai/internal/models"
	"github.com/charlesng35/internai/internal/services"
	"github.com/charlesng35/internai/pkg/crypto"
	apperrors "github.com/charlesng35/internai/pkg/errors"
	"github.com/charlesng35/internai/pkg/logger"
	"github.com/charlesng35/internai/pkg/metrics"
	"github.com/charlesng35/internai/pkg/response"
)

var (
	errGoogleUnavailable = apperrors.New("GOOGLE_SIGN_IN_DISABLED", "Google sign-in is not configured", http.StatusServiceUnavailable)
	errGoogleToken       = apperrors.New("INVALID_GOOGLE_TOKEN", "Invalid Google token", http.StatusUnauthorized)
)

// FederatedHandler signs users in with Google, either from an ID token posted
// by the frontend or through the authorization code redirect.
type FederatedHandler struct {
	google      providers.RedirectProvider
	users       *services.UserService
	sessions    *iauth.SessionService
	cookies     *iauth.CookieBinder
	flows       *iauth.FlowStateStore
	frontendURL string
	log         *zap.Logger
}

// NewFederatedHandler wires the handler. A nil google provider leaves the
// endpoints mounted but answering that sign-in is unavailable.
func NewFederatedHandler(google providers.RedirectProvider, users *services.UserService, sessions *iauth.SessionService, cookies *iauth.CookieBinder, flows *iauth.FlowStateStore, frontendURL string) (*FederatedHandler, error) {
	switch {
	case users == nil:
		return nil, errors.New("federated handler: user service is required")
	case sessions == nil:
		return nil, errors.New("federated handler: session service is required")
	case cookies == nil:
		return nil, errors.New("federated handler: cookie binder is required")
	case flows == nil:
		return nil, errors.New("federated handler: flow state store is required")
	}
	return &FederatedHandler{
		google:      google,
		users:       users,
		sessions:    sessions,
		cookies:     cookies,
		flows:       flows,
		frontendURL: strings.TrimRight(strings.TrimSpace(frontendURL), "/"),
		log:         logger.WithModule("federated"),
	}, nil
}

type googleTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// POST /api/auth/google
func (h *FederatedHandler) GoogleToken(c *gin.Context) {
	if h.google == nil {
		response.Error(c, errGoogleUnavailable)
		return
	}

	var req googleTokenRequest
	if !bindAndValidate(c, &req) {
		return
	}

	identity, err := h.google.Verify(requestContext(c), req.Token)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("google", "failure").Inc()
		h.log.Debug("google token rejected", zap.Error(err))
		response.Error(c, errGoogleToken)
		return
	}

	user, err := h.signIn(c, identity)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("google", "failure").Inc()
		response.Error(c, err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("google", "success").Inc()
	response.Success(c, http.StatusOK, newUserResponse(user))
}

// GET /api/auth/google/start
func (h *FederatedHandler) GoogleStart(c *gin.Context) {
	if h.google == nil {
		h.redirectFailure(c, errGoogleUnavailable)
		return
	}

	key, state, err := h.flows.Begin(requestContext(c), sanitizeRedirect(c.Query("redirect"), "/"))
	if err != nil {
		h.redirectFailure(c, err)
		return
	}

	h.cookies.BindFlowState(c.Writer, key, h.flows.TTL())
	c.Redirect(http.StatusFound, h.google.AuthCodeURL(key, state.Nonce, state.Verifier))
}

// GET /api/auth/google/callback
func (h *FederatedHandler) GoogleCallback(c *gin.Context) {
	if h.google == nil {
		h.redirectFailure(c, errGoogleUnavailable)
		return
	}

	pinned := h.cookies.FlowStateKey(c.Request)
	h.cookies.UnbindFlowState(c.Writer)

	if providerErr := c.Query("error"); providerErr != "" {
		h.redirectFailure(c, errors.New("google: "+providerErr))
		return
	}

	key := c.Query("state")
	if !crypto.ConstantTimeEqual(key, pinned) {
		h.redirectFailure(c, iauth.ErrFlowStateInvalid)
		return
	}

	state, err := h.flows.Consume(requestContext(c), key)
	if err != nil {
		h.redirectFailure(c, err)
		return
	}

	identity, err := h.google.Exchange(requestContext(c), c.Query("code"), state.Verifier, state.Nonce)
	if err != nil {
		h.redirectFailure(c, err)
		return
	}

	if _, err := h.signIn(c, identity); err != nil {
		h.redirectFailure(c, err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("google", "success").Inc()
	c.Redirect(http.StatusSeeOther, h.frontendURL+sanitizeRedirect(state.ReturnURL, "/"))
}

func (h *FederatedHandler) signIn(c *gin.Context, identity *providers.FederatedIdentity) (*models.User, error) {
	if !identity.EmailVerified {
		return nil, errGoogleToken
	}

	user, err := h.users.UpsertFederated(requestContext(c), identity)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, errAccountDisabled
	}

	if _, err := h.sessions.IssueSession(c.Writer, user); err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	return user, nil
}

func (h *FederatedHandler) redirectFailure(c *gin.Context, err error) {
	metrics.AuthAttempts.WithLabelValues("google", "failure").Inc()
	h.log.Info("google redirect sign-in failed", zap.Error(err))

	target, parseErr := url.Parse(h.frontendURL + "/login")
	if parseErr != nil {
		response.Error(c, apperrors.ErrBadRequest)
		return
	}
	q := target.Query()
	q.Set("error", "google_failed")
	target.RawQuery = q.Encode()
	c.Redirect(http.StatusSeeOther, target.String())
}

// sanitizeRedirect only allows site-relative paths.
func sanitizeRedirect(input, fallback string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return fallback
	}
	if strings.ContainsAny(trimmed, "\r\n\\") {
		return fallback
	}
	if !strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, "//") {
		return fallback
	}
	return trimmed
}
