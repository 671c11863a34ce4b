package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/internai/internal/models"
	"github.com/charlesng35/internai/pkg/errors"
	"github.com/charlesng35/internai/pkg/response"
)

const (
	CtxUserKey   = "authUser"
	CtxUserIDKey = "userID"
)

// SessionResolver resolves the caller of a request, renewing cookies when needed.
type SessionResolver interface {
	ResolveSession(ctx context.Context, w http.ResponseWriter, r *http.Request) (*models.User, error)
}

// RequireSession rejects requests without a resolvable session and places the
// active user in the gin context.
func RequireSession(sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := sessions.ResolveSession(c.Request.Context(), c.Writer, c.Request)
		if err != nil || user == nil {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxUserKey, user)
		c.Set(CtxUserIDKey, user.ID)
		c.Next()
	}
}

// RequireAdmin must follow RequireSession. It trusts the stored is_admin flag,
// not the claim carried by the access token.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !user.IsAdmin {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user placed in the context by RequireSession.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, ok := c.Get(CtxUserKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok && user != nil
}
