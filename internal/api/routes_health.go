package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/internai/internal/handlers"
	"github.com/charlesng35/internai/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, health *monitoring.HealthManager) {
	r.GET("/health", handlers.Health(health))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
