package providers

import (
	"context"
	"errors"
)

// ErrProviderDisabled is returned when a federated provider has no credentials configured.
var ErrProviderDisabled = errors.New("auth: provider not configured")

// ErrFederatedTokenInvalid is returned when an externally issued token fails verification.
var ErrFederatedTokenInvalid = errors.New("auth: invalid federated token")

// FederatedIdentity is the verified profile returned by an external identity provider.
type FederatedIdentity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	AvatarURL     string
}

// FederatedVerifier validates an externally issued ID token.
type FederatedVerifier interface {
	Verify(ctx context.Context, idToken string) (*FederatedIdentity, error)
}

// RedirectProvider supports the authorization code flow in addition to ID token verification.
type RedirectProvider interface {
	FederatedVerifier
	AuthCodeURL(state, nonce, verifier string) string
	Exchange(ctx context.Context, code, verifier, nonce string) (*FederatedIdentity, error)
}
