package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	iauth "github.com/charlesng35/internai/internal/auth"
	"github.com/charlesng35/internai/internal/handlers/testutil"
	"github.com/charlesng35/internai/internal/models"
)

func TestAdminRoutesRequireElevatedFlag(t *testing.T) {
	env := testutil.NewEnv(t)
	testutil.RequireError(t, env.Request(http.MethodGet, "/api/admin/users", nil), http.StatusUnauthorized, "UNAUTHORIZED")

	env.CreateUser("user@example.com", "secret1", false)
	env.Login("user@example.com", "secret1")
	testutil.RequireError(t, env.Request(http.MethodGet, "/api/admin/users", nil), http.StatusForbidden, "FORBIDDEN")

	env.ClearCookies()
	admin := env.CreateUser("admin@example.com", "secret1", true)
	env.Login("admin@example.com", "secret1")
	require.Equal(t, http.StatusOK, env.Request(http.MethodGet, "/api/admin/users", nil).Code)

	// Demotion takes effect immediately even though the token still claims the flag.
	require.NoError(t, env.DB.Model(admin).Update("is_admin", false).Error)
	testutil.RequireError(t, env.Request(http.MethodGet, "/api/admin/users", nil), http.StatusForbidden, "FORBIDDEN")
}

func TestAdminListUsers(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateUser("admin@example.com", "secret1", true)
	env.CreateUser("ann@example.com", "secret1", false)
	bob := env.CreateUser("bob@example.com", "secret1", false)
	require.NoError(t, env.DB.Model(bob).Update("is_active", false).Error)
	env.Login("admin@example.com", "secret1")

	w := env.Request(http.MethodGet, "/api/admin/users?page=1&per_page=2", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	require.EqualValues(t, 3, resp.Meta.Total)
	var page []testutil.UserPayload
	testutil.DecodeInto(t, resp.Data, &page)
	require.Len(t, page, 2)

	w = env.Request(http.MethodGet, "/api/admin/users?active=false", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var inactive []testutil.UserPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &inactive)
	require.Len(t, inactive, 1)
	require.Equal(t, "bob@example.com", inactive[0].Email)

	w = env.Request(http.MethodGet, "/api/admin/users?q=ANN", nil)
	var matched []testutil.UserPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &matched)
	require.Len(t, matched, 1)
	require.Equal(t, "ann@example.com", matched[0].Email)

	w = env.Request(http.MethodGet, "/api/admin/users?email=BOB@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var exact []testutil.UserPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &exact)
	require.Len(t, exact, 1)
	require.Equal(t, bob.ID, exact[0].ID)

	w = env.Request(http.MethodGet, "/api/admin/users?email=nobody@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.JSONEq(t, "[]", string(testutil.DecodeResponse(t, w).Data))

	testutil.RequireError(t, env.Request(http.MethodGet, "/api/admin/users?active=maybe", nil), http.StatusBadRequest, "BAD_REQUEST")
}

func TestAdminDeactivationRevokesLiveSession(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateUser("admin@example.com", "secret1", true)
	env.CreateUser("user@example.com", "secret1", false)

	member := env.Login("user@example.com", "secret1")
	access := env.Cookie(iauth.DefaultAccessCookieName)
	refresh := env.Cookie(iauth.DefaultRefreshCookieName)
	require.Equal(t, http.StatusOK, env.Request(http.MethodGet, "/api/auth/me", nil).Code)

	env.ClearCookies()
	env.Login("admin@example.com", "secret1")
	w := env.Request(http.MethodPatch, "/api/admin/users/"+member.ID, map[string]any{"is_active": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated testutil.UserPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &updated)
	require.False(t, updated.IsActive)

	// The access token is still within its lifetime.
	env.ClearCookies()
	env.SetCookie(iauth.DefaultAccessCookieName, access)
	testutil.RequireError(t, env.Request(http.MethodGet, "/api/auth/me", nil), http.StatusUnauthorized, "UNAUTHORIZED")

	env.ClearCookies()
	env.SetCookie(iauth.DefaultRefreshCookieName, refresh)
	testutil.RequireError(t, env.Request(http.MethodPost, "/api/auth/refresh", nil), http.StatusUnauthorized, "UNAUTHORIZED")

	env.ClearCookies()
	w = env.Request(http.MethodPost, "/api/auth/login", map[string]string{"email": "user@example.com", "password": "secret1"})
	testutil.RequireError(t, w, http.StatusForbidden, "ACCOUNT_DISABLED")
}

func TestAdminDeleteUser(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateUser("admin@example.com", "secret1", true)
	victim := env.CreateUser("user@example.com", "secret1", false)
	env.Login("admin@example.com", "secret1")

	w := env.Request(http.MethodDelete, "/api/admin/users/"+victim.ID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var count int64
	require.NoError(t, env.DB.Model(&models.User{}).Where("id = ?", victim.ID).Count(&count).Error)
	require.Zero(t, count)

	testutil.RequireError(t, env.Request(http.MethodDelete, "/api/admin/users/"+victim.ID, nil), http.StatusNotFound, "USER_NOT_FOUND")
	testutil.RequireError(t, env.Request(http.MethodGet, "/api/admin/users/"+victim.ID, nil), http.StatusNotFound, "USER_NOT_FOUND")
	testutil.RequireError(t, env.Request(http.MethodDelete, "/api/admin/users/"+admin.ID, nil), http.StatusConflict, "SELF_MODIFICATION")
}

func TestAdminCannotDeactivateSelf(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateUser("admin@example.com", "secret1", true)
	env.Login("admin@example.com", "secret1")

	w := env.Request(http.MethodPatch, "/api/admin/users/"+admin.ID, map[string]any{"is_active": false})
	testutil.RequireError(t, w, http.StatusConflict, "SELF_MODIFICATION")

	w = env.Request(http.MethodPatch, "/api/admin/users/"+admin.ID, map[string]any{"name": "Root"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated testutil.UserPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &updated)
	require.Equal(t, "Root", updated.Name)
	require.True(t, updated.IsAdmin)
}
