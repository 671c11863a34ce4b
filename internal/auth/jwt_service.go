package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/charlesng35/internai/pkg/metrics"
)

const (
	// DefaultAccessTokenTTL defines the fallback validity period for access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute
	// DefaultRefreshTokenTTL defines the fallback validity period for refresh tokens.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// TokenKind distinguishes the two token purposes. A token of one kind never
// verifies as the other.
type TokenKind string

const (
	// TokenKindAccess authorises individual requests for a short window.
	TokenKindAccess TokenKind = "access"
	// TokenKindRefresh only renews a session and is never accepted on its own.
	TokenKindRefresh TokenKind = "refresh"
)

// ErrInvalidToken is returned for any token that fails verification. The
// underlying cause is wrapped for logging only.
var ErrInvalidToken = errors.New("jwt: invalid token")

// JWTConfig bundles the configuration required to build a JWTService.
type JWTConfig struct {
	// Secret is the decoded HMAC key.
	Secret          []byte
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Clock           func() time.Time
}

// Claims represents the custom claims embedded in issued JWTs.
type Claims struct {
	UserID   string    `json:"uid"`
	Kind     TokenKind `json:"typ"`
	Elevated bool      `json:"adm,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the verified content of a token.
type Principal struct {
	UserID    string
	Kind      TokenKind
	Elevated  bool
	TokenID   string
	ExpiresAt time.Time
}

// TokenPair is a freshly minted access and refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// JWTService is responsible for issuing and validating JSON Web Tokens.
type JWTService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

// NewJWTService constructs a JWTService instance when provided with the required configuration.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt: secret must be provided")
	}

	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	if refreshTTL <= accessTTL {
		return nil, fmt.Errorf("jwt: refresh ttl %s must exceed access ttl %s", refreshTTL, accessTTL)
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &JWTService{
		secret:     append([]byte(nil), cfg.Secret...),
		issuer:     cfg.Issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(now),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *JWTService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *JWTService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccess mints a short-lived token carrying the elevated flag.
func (s *JWTService) IssueAccess(userID string, elevated bool) (string, error) {
	return s.issue(userID, TokenKindAccess, elevated, s.accessTTL)
}

// IssueRefresh mints a long-lived token used only to renew sessions.
func (s *JWTService) IssueRefresh(userID string) (string, error) {
	return s.issue(userID, TokenKindRefresh, false, s.refreshTTL)
}

// IssuePair mints both tokens for a user.
func (s *JWTService) IssuePair(userID string, elevated bool) (TokenPair, error) {
	access, err := s.IssueAccess(userID, elevated)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.IssueRefresh(userID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *JWTService) issue(userID string, kind TokenKind, elevated bool, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("jwt: user id is required")
	}

	now := s.now()
	claims := &Claims{
		UserID:   userID,
		Kind:     kind,
		Elevated: elevated,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	metrics.TokensIssued.WithLabelValues(string(kind)).Inc()
	return signed, nil
}

// Verify checks signature, algorithm, time claims, issuer, subject and kind.
// Every failure is reported as ErrInvalidToken.
func (s *JWTService) Verify(tokenString string, expected TokenKind) (*Principal, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	var claims Claims
	_, err := s.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	switch {
	case s.issuer != "" && claims.Issuer != s.issuer:
		return nil, fmt.Errorf("%w: issuer %q", ErrInvalidToken, claims.Issuer)
	case claims.UserID == "" || claims.Subject != claims.UserID:
		return nil, fmt.Errorf("%w: missing or mismatched subject", ErrInvalidToken)
	case claims.Kind != expected:
		return nil, fmt.Errorf("%w: kind %q, want %q", ErrInvalidToken, claims.Kind, expected)
	}

	principal := &Principal{
		UserID:   claims.UserID,
		Kind:     claims.Kind,
		Elevated: claims.Elevated && claims.Kind == TokenKindAccess,
		TokenID:  claims.ID,
	}
	if claims.ExpiresAt != nil {
		principal.ExpiresAt = claims.ExpiresAt.Time
	}
	return principal, nil
}
