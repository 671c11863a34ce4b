package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// GoogleIssuer is the discovery base for Google accounts.
const GoogleIssuer = "https://accounts.google.com"

// GoogleConfig configures Google sign-in.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Issuer overrides discovery, used by tests.
	Issuer     string
	HTTPClient *http.Client
	Timeout    time.Duration
	Clock      func() time.Time
}

// GoogleProvider verifies Google ID tokens and completes the authorization code flow.
type GoogleProvider struct {
	oauth      *oauth2.Config
	verifier   *oidc.IDTokenVerifier
	httpClient *http.Client
	timeout    time.Duration
}

// NewGoogleProvider performs OIDC discovery against the issuer. It returns
// ErrProviderDisabled when no client id is configured.
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig) (*GoogleProvider, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, ErrProviderDisabled
	}

	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = GoogleIssuer
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	if cfg.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, cfg.HTTPClient)
	}
	discoverCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	provider, err := oidc.NewProvider(discoverCtx, issuer)
	if err != nil {
		return nil, fmt.Errorf("google provider: discovery failed: %w", err)
	}

	verifierCfg := &oidc.Config{ClientID: clientID}
	if cfg.Clock != nil {
		verifierCfg.Now = cfg.Clock
	}

	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier:   provider.Verifier(verifierCfg),
		httpClient: cfg.HTTPClient,
		timeout:    timeout,
	}, nil
}

// Verify validates a Google ID token posted by the browser.
func (p *GoogleProvider) Verify(ctx context.Context, rawIDToken string) (*FederatedIdentity, error) {
	if strings.TrimSpace(rawIDToken) == "" {
		return nil, fmt.Errorf("%w: empty token", ErrFederatedTokenInvalid)
	}

	ctx, cancel := p.context(ctx)
	defer cancel()

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFederatedTokenInvalid, err)
	}
	return identityFromToken(idToken)
}

// AuthCodeURL builds the consent redirect carrying state, nonce and a PKCE challenge.
func (p *GoogleProvider) AuthCodeURL(state, nonce, verifier string) string {
	return p.oauth.AuthCodeURL(state,
		oidc.Nonce(nonce),
		oauth2.S256ChallengeOption(verifier),
		oauth2.AccessTypeOnline,
	)
}

// Exchange redeems the authorization code and verifies the returned ID token.
func (p *GoogleProvider) Exchange(ctx context.Context, code, verifier, nonce string) (*FederatedIdentity, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("google provider: authorization code missing")
	}

	ctx, cancel := p.context(ctx)
	defer cancel()

	token, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("google provider: exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%w: id token missing", ErrFederatedTokenInvalid)
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFederatedTokenInvalid, err)
	}
	if nonce != "" && idToken.Nonce != nonce {
		return nil, fmt.Errorf("%w: nonce mismatch", ErrFederatedTokenInvalid)
	}
	return identityFromToken(idToken)
}

func (p *GoogleProvider) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.httpClient != nil {
		ctx = oidc.ClientContext(ctx, p.httpClient)
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}
	return context.WithTimeout(ctx, p.timeout)
}

func identityFromToken(idToken *oidc.IDToken) (*FederatedIdentity, error) {
	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: decode claims: %v", ErrFederatedTokenInvalid, err)
	}

	identity := &FederatedIdentity{
		Provider:      "google",
		Subject:       idToken.Subject,
		Email:         strings.ToLower(strings.TrimSpace(stringValue(claims, "email"))),
		EmailVerified: boolValue(claims, "email_verified"),
		Name:          strings.TrimSpace(stringValue(claims, "name")),
		AvatarURL:     stringValue(claims, "picture"),
	}
	if identity.Subject == "" || identity.Email == "" {
		return nil, fmt.Errorf("%w: subject and email are required", ErrFederatedTokenInvalid)
	}
	return identity, nil
}

func stringValue(claims map[string]any, key string) string {
	if s, ok := claims[key].(string); ok {
		return s
	}
	return ""
}

func boolValue(claims map[string]any, key string) bool {
	switch val := claims[key].(type) {
	case bool:
		return val
	case string:
		return strings.EqualFold(val, "true")
	}
	return false
}
