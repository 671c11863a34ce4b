package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/internai/internal/cache"
	"github.com/charlesng35/internai/internal/handlers"
	"github.com/charlesng35/internai/internal/middleware"
)

type authRouteDeps struct {
	Auth           *handlers.AuthHandler
	Federated      *handlers.FederatedHandler
	Limits         cache.Store
	RequireSession gin.HandlerFunc
}

func registerAuthRoutes(engine *gin.Engine, deps authRouteDeps) {
	limit := func(policy middleware.RatePolicy) gin.HandlerFunc {
		return middleware.RateLimit(deps.Limits, policy)
	}

	auth := engine.Group("/api/auth")
	{
		auth.POST("/register", limit(middleware.RegisterPolicy), deps.Auth.Register)
		auth.POST("/register/resend", limit(middleware.RegisterPolicy), deps.Auth.ResendCode)
		auth.POST("/register/verify", limit(middleware.GeneralPolicy), deps.Auth.VerifyRegistration)

		auth.POST("/login", limit(middleware.LoginPolicy), deps.Auth.Login)
		auth.POST("/refresh", limit(middleware.RefreshPolicy), deps.Auth.Refresh)
		auth.POST("/logout", limit(middleware.GeneralPolicy), deps.Auth.Logout)

		auth.POST("/google", limit(middleware.GooglePolicy), deps.Federated.GoogleToken)
		auth.GET("/google/start", limit(middleware.GooglePolicy), deps.Federated.GoogleStart)
		auth.GET("/google/callback", limit(middleware.GooglePolicy), deps.Federated.GoogleCallback)

		auth.POST("/password/forgot", limit(middleware.GeneralPolicy), deps.Auth.ForgotPassword)
		auth.POST("/password/reset", limit(middleware.GeneralPolicy), deps.Auth.ResetPassword)

		auth.GET("/me", deps.RequireSession, deps.Auth.Me)
	}
}
