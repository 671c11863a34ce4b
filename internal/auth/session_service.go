package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/charlesng35/internai/internal/models"
	"github.com/charlesng35/internai/pkg/logger"
	"github.com/charlesng35/internai/pkg/metrics"
)

// ErrUnauthenticated is the single outcome of every failed session resolution.
var ErrUnauthenticated = errors.New("session: unauthenticated")

// IdentityStore is the lookup the resolver needs from user storage.
type IdentityStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// SessionService resolves requests to identities using only the two signed
// cookies. No session state is kept on the server.
type SessionService struct {
	jwt     *JWTService
	cookies *CookieBinder
	store   IdentityStore
	log     *zap.Logger
}

// NewSessionService wires the token codec, cookie binder and identity store.
func NewSessionService(jwtService *JWTService, cookies *CookieBinder, store IdentityStore) (*SessionService, error) {
	if jwtService == nil {
		return nil, errors.New("session service: jwt service is required")
	}
	if cookies == nil {
		return nil, errors.New("session service: cookie binder is required")
	}
	if store == nil {
		return nil, errors.New("session service: identity store is required")
	}
	return &SessionService{
		jwt:     jwtService,
		cookies: cookies,
		store:   store,
		log:     logger.WithModule("session"),
	}, nil
}

// IssueSession mints a fresh pair for the user and binds it to the response.
func (s *SessionService) IssueSession(w http.ResponseWriter, user *models.User) (TokenPair, error) {
	if user == nil || user.ID == "" {
		return TokenPair{}, errors.New("session service: user is required")
	}

	pair, err := s.jwt.IssuePair(user.ID, user.IsAdmin)
	if err != nil {
		return TokenPair{}, fmt.Errorf("session service: issue tokens: %w", err)
	}
	s.cookies.Bind(w, pair)
	return pair, nil
}

// ResolveSession returns the active identity behind the request. When only
// the refresh cookie is valid both cookies are rotated on w.
func (s *SessionService) ResolveSession(ctx context.Context, w http.ResponseWriter, r *http.Request) (*models.User, error) {
	if raw := s.cookies.AccessToken(r); raw != "" {
		principal, err := s.jwt.Verify(raw, TokenKindAccess)
		if err == nil {
			user, err := s.activeIdentity(ctx, principal.UserID)
			if err != nil {
				metrics.SessionResolutions.WithLabelValues("rejected").Inc()
				return nil, err
			}
			metrics.SessionResolutions.WithLabelValues("access").Inc()
			return user, nil
		}
		s.log.Debug("access token rejected", zap.Error(err))
	}

	return s.RefreshSession(ctx, w, r)
}

// RefreshSession renews the pair from the refresh cookie alone.
func (s *SessionService) RefreshSession(ctx context.Context, w http.ResponseWriter, r *http.Request) (*models.User, error) {
	raw := s.cookies.RefreshToken(r)
	if raw == "" {
		metrics.SessionResolutions.WithLabelValues("rejected").Inc()
		return nil, ErrUnauthenticated
	}

	principal, err := s.jwt.Verify(raw, TokenKindRefresh)
	if err != nil {
		s.log.Debug("refresh token rejected", zap.Error(err))
		metrics.SessionResolutions.WithLabelValues("rejected").Inc()
		return nil, ErrUnauthenticated
	}

	user, err := s.activeIdentity(ctx, principal.UserID)
	if err != nil {
		metrics.SessionResolutions.WithLabelValues("rejected").Inc()
		return nil, err
	}

	if _, err := s.IssueSession(w, user); err != nil {
		s.log.Error("rotate session tokens", zap.String("user_id", user.ID), zap.Error(err))
		metrics.SessionResolutions.WithLabelValues("rejected").Inc()
		return nil, ErrUnauthenticated
	}

	metrics.SessionResolutions.WithLabelValues("refreshed").Inc()
	return user, nil
}

// ClearSession removes both cookies.
func (s *SessionService) ClearSession(w http.ResponseWriter) {
	s.cookies.Unbind(w)
}

func (s *SessionService) activeIdentity(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil || user == nil {
		s.log.Debug("session identity lookup failed", zap.String("user_id", userID), zap.Error(err))
		return nil, ErrUnauthenticated
	}
	if !user.IsActive {
		s.log.Debug("session identity inactive", zap.String("user_id", userID))
		return nil, ErrUnauthenticated
	}
	return user, nil
}
