package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/internai/internal/models"
	"github.com/charlesng35/internai/pkg/response"
)

type stubResolver struct {
	user  *models.User
	err   error
	calls int
}

func (s *stubResolver) ResolveSession(_ context.Context, w http.ResponseWriter, _ *http.Request) (*models.User, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "rotated"})
	return s.user, nil
}

func newAuthRouter(resolver SessionResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/me", RequireSession(resolver), func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": user.ID, "user_id": c.GetString(CtxUserIDKey)})
	})
	r.GET("/admin", RequireSession(resolver), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequireSessionPlacesUser(t *testing.T) {
	user := &models.User{BaseModel: models.BaseModel{ID: "user-1"}, IsActive: true}
	r := newAuthRouter(&stubResolver{user: user})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, "user-1", payload["id"])
	require.Equal(t, "user-1", payload["user_id"])
	require.Contains(t, w.Header().Get("Set-Cookie"), "access_token=rotated")
}

func TestRequireSessionRejects(t *testing.T) {
	resolver := &stubResolver{err: errors.New("session: unauthenticated")}
	r := newAuthRouter(resolver)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, 1, resolver.calls)
	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, "UNAUTHORIZED", payload.Error.Code)
}

func TestRequireAdmin(t *testing.T) {
	member := &models.User{BaseModel: models.BaseModel{ID: "member"}, IsActive: true}
	w := httptest.NewRecorder()
	newAuthRouter(&stubResolver{user: member}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.Equal(t, http.StatusForbidden, w.Code)

	admin := &models.User{BaseModel: models.BaseModel{ID: "admin"}, IsActive: true, IsAdmin: true}
	w = httptest.NewRecorder()
	newAuthRouter(&stubResolver{user: admin}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequireAdminWithoutSession(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
