package api

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/internai/internal/app"
	iauth "github.com/charlesng35/internai/internal/auth"
	"github.com/charlesng35/internai/internal/auth/providers"
	"github.com/charlesng35/internai/internal/cache"
	"github.com/charlesng35/internai/internal/handlers"
	"github.com/charlesng35/internai/internal/middleware"
	"github.com/charlesng35/internai/internal/monitoring"
	"github.com/charlesng35/internai/internal/services"
)

// Dependencies are the collaborators the HTTP surface is built from.
// Google may be nil when federated sign-in is not configured. Health
// defaults to a database probe.
type Dependencies struct {
	Config       *app.Config
	DB           *gorm.DB
	Cache        cache.Store
	Cookies      *iauth.CookieBinder
	Sessions     *iauth.SessionService
	Users        *services.UserService
	Registration *services.RegistrationService
	Resets       *services.PasswordResetService
	Local        *providers.LocalProvider
	Google       providers.RedirectProvider
	Flows        *iauth.FlowStateStore
	Health       *monitoring.HealthManager
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, errors.New("router: config must be provided")
	}
	if deps.DB == nil {
		return nil, errors.New("router: database handle must be provided")
	}
	if deps.Sessions == nil {
		return nil, errors.New("router: session service must be provided")
	}

	r := gin.New()
	if err := r.SetTrustedProxies(deps.Config.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("router: trusted proxies: %w", err)
	}

	authHandler, err := handlers.NewAuthHandler(deps.Registration, deps.Resets, deps.Local, deps.Sessions)
	if err != nil {
		return nil, err
	}
	adminHandler, err := handlers.NewAdminHandler(deps.Users)
	if err != nil {
		return nil, err
	}
	federatedHandler, err := handlers.NewFederatedHandler(deps.Google, deps.Users, deps.Sessions, deps.Cookies, deps.Flows, deps.Config.Server.FrontendURL)
	if err != nil {
		return nil, err
	}

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders(iauth.SecureCookiesFor(deps.Config.Server.Environment)))
	r.Use(middleware.CORS(deps.Config.Server.CORSOrigins))

	health := deps.Health
	if health == nil {
		health = monitoring.NewHealthManager(monitoring.DatabaseCheck(deps.DB, 0))
	}
	registerHealthRoutes(r, health)

	requireSession := middleware.RequireSession(deps.Sessions)
	registerAuthRoutes(r, authRouteDeps{
		Auth:           authHandler,
		Federated:      federatedHandler,
		Limits:         deps.Cache,
		RequireSession: requireSession,
	})

	admin := r.Group("/api/admin", requireSession, middleware.RequireAdmin())
	admin.GET("/users", adminHandler.ListUsers)
	admin.GET("/users/:id", adminHandler.GetUser)
	admin.PATCH("/users/:id", adminHandler.UpdateUser)
	admin.DELETE("/users/:id", adminHandler.DeleteUser)

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
