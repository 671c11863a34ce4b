package api_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/internai/internal/api"
	"github.com/charlesng35/internai/internal/app"
	"github.com/charlesng35/internai/internal/database"
	"github.com/charlesng35/internai/internal/handlers/testutil"
)

func TestRouterPublicAndProtectedRoutes(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), `"status":"up"`)
	require.Contains(t, w.Body.String(), `"component":"database"`)

	w = env.Request(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "internai_api_latency_seconds")

	testutil.RequireError(t, env.Request(http.MethodGet, "/api/auth/me", nil), http.StatusUnauthorized, "UNAUTHORIZED")
	testutil.RequireError(t, env.Request(http.MethodGet, "/api/admin/users", nil), http.StatusUnauthorized, "UNAUTHORIZED")

	w = env.Request(http.MethodGet, "/api/nowhere", nil)
	testutil.RequireError(t, w, http.StatusNotFound, "NOT_FOUND")
	require.Contains(t, w.Body.String(), "/api/nowhere")
}

func TestRouterHealthReportsDownDependency(t *testing.T) {
	env := testutil.NewEnv(t)
	require.NoError(t, database.Close(env.DB))

	w := env.Request(http.MethodGet, "/health", nil)
	testutil.RequireError(t, w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE")
	require.Contains(t, w.Body.String(), `"status":"down"`)
}

func TestRouterSecurityHeaders(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/health", nil)
	require.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	// Test environments are not served over TLS.
	require.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestRouterCORS(t *testing.T) {
	env := testutil.NewEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", testutil.FrontendURL)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := env.Do(req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, testutil.FrontendURL, w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = env.Do(req)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterAuthRoutesAreRateLimited(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/auth/refresh", nil)
	require.Equal(t, "20", w.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "19", w.Header().Get("X-RateLimit-Remaining"))

	w = env.Request(http.MethodPost, "/api/auth/register", map[string]string{})
	require.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))

	w = env.Request(http.MethodPost, "/api/auth/google", map[string]string{})
	require.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))

	w = env.Request(http.MethodPost, "/api/auth/password/forgot", map[string]string{})
	require.Equal(t, "30", w.Header().Get("X-RateLimit-Limit"))

	w = env.Request(http.MethodGet, "/health", nil)
	require.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func loginFrom(env *testutil.Env, forwardedFor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"nobody@example.com","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	return env.Do(req)
}

func TestRouterIgnoresForwardedForFromUntrustedPeers(t *testing.T) {
	env := testutil.NewEnv(t)

	for i := 0; i < 5; i++ {
		w := loginFrom(env, fmt.Sprintf("203.0.113.%d", i+1))
		require.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
	}
	testutil.RequireError(t, loginFrom(env, "203.0.113.99"), http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED")
}

func TestRouterHonoursForwardedForFromTrustedProxy(t *testing.T) {
	// httptest requests arrive from 192.0.2.1.
	env := testutil.NewEnv(t, testutil.WithTrustedProxies("192.0.2.0/24"))

	for i := 0; i < 8; i++ {
		w := loginFrom(env, fmt.Sprintf("203.0.113.%d", i+1))
		require.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
		require.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestNewRouterRejectsInvalidTrustedProxy(t *testing.T) {
	env := testutil.NewEnv(t)
	_, err := api.NewRouter(api.Dependencies{
		Config:   &app.Config{Server: app.ServerConfig{TrustedProxies: []string{"not-an-ip"}}},
		DB:       env.DB,
		Sessions: env.Sessions,
	})
	require.ErrorContains(t, err, "trusted proxies")
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := api.NewRouter(api.Dependencies{})
	require.ErrorContains(t, err, "config")

	_, err = api.NewRouter(api.Dependencies{Config: &app.Config{}})
	require.True(t, strings.Contains(err.Error(), "database"))
}
