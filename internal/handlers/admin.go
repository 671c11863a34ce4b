package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/internai/internal/services"
	apperrors "github.com/charlesng35/internai/pkg/errors"
	"github.com/charlesng35/internai/pkg/logger"
	"github.com/charlesng35/internai/pkg/response"
)

var errSelfModification = apperrors.New("SELF_MODIFICATION", "Administrators cannot deactivate or delete their own account", http.StatusConflict)

// AdminHandler exposes user administration to callers holding the elevated flag.
type AdminHandler struct {
	users *services.UserService
	log   *zap.Logger
}

// NewAdminHandler wires the handler around the user service.
func NewAdminHandler(users *services.UserService) (*AdminHandler, error) {
	if users == nil {
		return nil, errors.New("admin handler: user service is required")
	}
	return &AdminHandler{users: users, log: logger.WithModule("admin")}, nil
}

type updateUserRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=100"`
	IsActive *bool   `json:"is_active"`
	IsAdmin  *bool   `json:"is_admin"`
}

// GET /api/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	if email := strings.TrimSpace(c.Query("email")); email != "" {
		h.findByEmail(c, email)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	per, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	opts := services.ListUsersOptions{Page: page, PageSize: per, Query: c.Query("q")}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, apperrors.NewBadRequest("active must be true or false"))
			return
		}
		opts.IsActive = &active
	}

	users, total, err := h.users.List(requestContext(c), opts)
	if err != nil {
		response.Error(c, apperrors.ErrInternalServer.WithInternal(err))
		return
	}

	out := make([]userResponse, 0, len(users))
	for i := range users {
		out = append(out, newUserResponse(&users[i]))
	}
	response.SuccessWithMeta(c, http.StatusOK, out, &response.Meta{Page: page, PerPage: per, Total: total})
}

// findByEmail answers an exact email lookup as a list of zero or one users.
func (h *AdminHandler) findByEmail(c *gin.Context, email string) {
	out := []userResponse{}
	user, err := h.users.FindByEmail(requestContext(c), email)
	switch {
	case err == nil:
		out = append(out, newUserResponse(user))
	case !errors.Is(err, services.ErrUserNotFound):
		response.Error(c, apperrors.ErrInternalServer.WithInternal(err))
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, out, &response.Meta{Page: 1, PerPage: 1, Total: int64(len(out))})
}

// GET /api/admin/users/:id
func (h *AdminHandler) GetUser(c *gin.Context) {
	user, err := h.users.FindByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, newUserResponse(user))
}

// PATCH /api/admin/users/:id
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	caller, ok := sessionUser(c)
	if !ok {
		return
	}

	var req updateUserRequest
	if !bindAndValidate(c, &req) {
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	demotesSelf := (req.IsActive != nil && !*req.IsActive) || (req.IsAdmin != nil && !*req.IsAdmin)
	if id == caller.ID && demotesSelf {
		response.Error(c, errSelfModification)
		return
	}

	user, err := h.users.Update(requestContext(c), id, services.UpdateUserInput{
		Name:     req.Name,
		IsActive: req.IsActive,
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.log.Info("user updated", zap.String("user_id", user.ID), zap.String("by", caller.ID))
	response.Success(c, http.StatusOK, newUserResponse(user))
}

// DELETE /api/admin/users/:id
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	caller, ok := sessionUser(c)
	if !ok {
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == caller.ID {
		response.Error(c, errSelfModification)
		return
	}

	if err := h.users.Delete(requestContext(c), id); err != nil {
		response.Error(c, err)
		return
	}

	h.log.Info("user deleted", zap.String("user_id", id), zap.String("by", caller.ID))
	response.Message(c, http.StatusOK, "user deleted")
}
