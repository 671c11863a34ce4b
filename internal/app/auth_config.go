package app

import (
	"time"

	"github.com/charlesng35/internai/internal/auth"
	"github.com/charlesng35/internai/internal/auth/providers"
	"github.com/charlesng35/internai/internal/services"
)

const (
	defaultLockoutThreshold = 5
	defaultLockoutDuration  = 15 * time.Minute
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
// The secret is decoded with DecodeKey, the same reading Validate measures.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	access := c.JWT.AccessTTL
	if access <= 0 {
		access = auth.DefaultAccessTokenTTL
	}
	refresh := c.JWT.RefreshTTL
	if refresh <= 0 {
		refresh = auth.DefaultRefreshTokenTTL
	}

	// An empty secret stays nil and NewJWTService rejects it.
	secret, _ := DecodeKey(c.JWT.Secret)

	return auth.JWTConfig{
		Secret:          secret,
		Issuer:          c.JWT.Issuer,
		AccessTokenTTL:  access,
		RefreshTokenTTL: refresh,
	}
}

// CookieConfig converts AuthConfig into cookie binder parameters. Cookie
// lifetimes follow the token lifetimes.
func (c AuthConfig) CookieConfig(environment string) auth.CookieConfig {
	jwtCfg := c.JWTServiceConfig()
	return auth.CookieConfig{
		AccessName:  c.Cookies.AccessName,
		RefreshName: c.Cookies.RefreshName,
		Domain:      c.Cookies.Domain,
		Secure:      auth.SecureCookiesFor(environment),
		AccessTTL:   jwtCfg.AccessTokenTTL,
		RefreshTTL:  jwtCfg.RefreshTokenTTL,
	}
}

// LocalProviderConfig converts AuthConfig into LocalProvider parameters.
func (c AuthConfig) LocalProviderConfig() providers.LocalConfig {
	duration := c.Local.LockoutDuration
	if duration <= 0 {
		duration = defaultLockoutDuration
	}

	threshold := c.Local.LockoutThreshold
	if threshold <= 0 {
		threshold = defaultLockoutThreshold
	}

	return providers.LocalConfig{
		LockoutThreshold: threshold,
		LockoutDuration:  duration,
	}
}

// GoogleConfig converts AuthConfig into Google provider parameters.
func (c AuthConfig) GoogleConfig() providers.GoogleConfig {
	return providers.GoogleConfig{
		ClientID:     c.Google.ClientID,
		ClientSecret: c.Google.ClientSecret,
		RedirectURL:  c.Google.RedirectURL,
		Timeout:      c.Google.Timeout,
	}
}

// RegistrationOptions maps verification settings onto the registration service.
// Zero values keep the service defaults.
func (c Config) RegistrationOptions() []services.RegistrationOption {
	v := c.Auth.Verification
	return []services.RegistrationOption{
		services.WithCodeLength(v.CodeLength),
		services.WithCodeTTL(v.CodeTTL),
		services.WithMaxCodeAttempts(v.MaxAttempts),
		services.WithRegistrationDeliveryTimeout(c.Email.DeliveryTimeout),
	}
}

// PasswordResetOptions maps recovery settings onto the password reset service.
func (c Config) PasswordResetOptions() []services.PasswordResetOption {
	r := c.Auth.PasswordReset
	return []services.PasswordResetOption{
		services.WithPasswordResetTTL(r.TokenTTL),
		services.WithPasswordResetURL(r.URL),
		services.WithPasswordResetDeliveryTimeout(c.Email.DeliveryTimeout),
	}
}
