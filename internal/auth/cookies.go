package auth

import (
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultAccessCookieName carries the access token when no name is configured.
	DefaultAccessCookieName = "access_token"
	// DefaultRefreshCookieName carries the refresh token when no name is configured.
	DefaultRefreshCookieName = "refresh_token"

	flowStateCookieName = "oauth_state"
)

// CookieConfig controls how session tokens are written to the client.
type CookieConfig struct {
	AccessName  string
	RefreshName string
	Domain      string
	Secure      bool
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
}

// CookieBinder writes and reads the two session cookies. Both are HttpOnly,
// SameSite=Lax and scoped to the whole site.
type CookieBinder struct {
	cfg CookieConfig
}

// NewCookieBinder fills in default names and lifetimes.
func NewCookieBinder(cfg CookieConfig) *CookieBinder {
	if strings.TrimSpace(cfg.AccessName) == "" {
		cfg.AccessName = DefaultAccessCookieName
	}
	if strings.TrimSpace(cfg.RefreshName) == "" {
		cfg.RefreshName = DefaultRefreshCookieName
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTokenTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTokenTTL
	}
	return &CookieBinder{cfg: cfg}
}

// SecureCookiesFor reports whether cookies must carry the Secure attribute in
// the named environment.
func SecureCookiesFor(environment string) bool {
	switch strings.ToLower(strings.TrimSpace(environment)) {
	case "development", "dev", "local", "test":
		return false
	default:
		return true
	}
}

// Bind writes both tokens with Max-Age equal to their lifetimes.
func (b *CookieBinder) Bind(w http.ResponseWriter, pair TokenPair) {
	http.SetCookie(w, b.cookie(b.cfg.AccessName, pair.AccessToken, b.cfg.AccessTTL))
	http.SetCookie(w, b.cookie(b.cfg.RefreshName, pair.RefreshToken, b.cfg.RefreshTTL))
}

// Unbind instructs the client to drop both cookies.
func (b *CookieBinder) Unbind(w http.ResponseWriter) {
	for _, name := range []string{b.cfg.AccessName, b.cfg.RefreshName} {
		c := b.cookie(name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

// AccessToken returns the access cookie value or "".
func (b *CookieBinder) AccessToken(r *http.Request) string {
	return readCookie(r, b.cfg.AccessName)
}

// RefreshToken returns the refresh cookie value or "".
func (b *CookieBinder) RefreshToken(r *http.Request) string {
	return readCookie(r, b.cfg.RefreshName)
}

// BindFlowState pins a redirect login to the browser that started it.
func (b *CookieBinder) BindFlowState(w http.ResponseWriter, key string, ttl time.Duration) {
	http.SetCookie(w, b.cookie(flowStateCookieName, key, ttl))
}

// FlowStateKey returns the pinned redirect state or "".
func (b *CookieBinder) FlowStateKey(r *http.Request) string {
	return readCookie(r, flowStateCookieName)
}

// UnbindFlowState drops the redirect state cookie.
func (b *CookieBinder) UnbindFlowState(w http.ResponseWriter) {
	c := b.cookie(flowStateCookieName, "", 0)
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	http.SetCookie(w, c)
}

func (b *CookieBinder) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   b.cfg.Domain,
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   b.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func readCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
