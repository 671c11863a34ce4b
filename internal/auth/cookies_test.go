package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestCookieBinderBindAttributes(t *testing.T) {
	binder := NewCookieBinder(CookieConfig{Secure: true, AccessTTL: 15 * time.Minute, RefreshTTL: 720 * time.Hour})
	rec := httptest.NewRecorder()

	binder.Bind(rec, TokenPair{AccessToken: "a-token", RefreshToken: "r-token"})

	cookies := cookiesByName(rec)
	require.Len(t, cookies, 2)

	access := cookies["access_token"]
	require.NotNil(t, access)
	require.Equal(t, "a-token", access.Value)
	require.Equal(t, 900, access.MaxAge)
	require.True(t, access.HttpOnly)
	require.True(t, access.Secure)
	require.Equal(t, http.SameSiteLaxMode, access.SameSite)
	require.Equal(t, "/", access.Path)

	refresh := cookies["refresh_token"]
	require.NotNil(t, refresh)
	require.Equal(t, "r-token", refresh.Value)
	require.Equal(t, 2592000, refresh.MaxAge)
	require.True(t, refresh.HttpOnly)
}

func TestCookieBinderUnbindClearsBoth(t *testing.T) {
	binder := NewCookieBinder(CookieConfig{AccessName: "a", RefreshName: "r"})
	rec := httptest.NewRecorder()

	binder.Unbind(rec)

	cookies := cookiesByName(rec)
	require.Len(t, cookies, 2)
	for _, name := range []string{"a", "r"} {
		require.Equal(t, "", cookies[name].Value)
		require.Less(t, cookies[name].MaxAge, 0)
	}
}

func TestCookieBinderReadsTokens(t *testing.T) {
	binder := NewCookieBinder(CookieConfig{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Empty(t, binder.AccessToken(req))

	req.AddCookie(&http.Cookie{Name: "access_token", Value: "a"})
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "r"})
	require.Equal(t, "a", binder.AccessToken(req))
	require.Equal(t, "r", binder.RefreshToken(req))
}

func TestSecureCookiesFor(t *testing.T) {
	require.False(t, SecureCookiesFor("development"))
	require.False(t, SecureCookiesFor(" Local "))
	require.True(t, SecureCookiesFor("production"))
	require.True(t, SecureCookiesFor(""))
}

func TestCookieBinderFlowState(t *testing.T) {
	binder := NewCookieBinder(CookieConfig{Secure: true})
	rec := httptest.NewRecorder()

	binder.BindFlowState(rec, "state-key", 10*time.Minute)
	state := cookiesByName(rec)["oauth_state"]
	require.NotNil(t, state)
	require.Equal(t, "state-key", state.Value)
	require.Equal(t, 600, state.MaxAge)
	require.True(t, state.HttpOnly)
	require.True(t, state.Secure)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "state-key"})
	require.Equal(t, "state-key", binder.FlowStateKey(req))

	rec = httptest.NewRecorder()
	binder.UnbindFlowState(rec)
	require.Less(t, cookiesByName(rec)["oauth_state"].MaxAge, 0)
}
