package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/internai/internal/middleware"
	"github.com/charlesng35/internai/internal/models"
	apperrors "github.com/charlesng35/internai/pkg/errors"
	"github.com/charlesng35/internai/pkg/response"
)

func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}

// sessionUser returns the identity RequireSession resolved for this request.
// It writes 401 and reports false when the route was mounted without it.
func sessionUser(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok || user == nil {
		response.Error(c, apperrors.ErrUnauthorized)
		return nil, false
	}
	return user, true
}
