package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/internai/internal/monitoring"
	"github.com/charlesng35/internai/pkg/response"
)

// Health reports readiness from the registered dependency probes. A down
// dependency answers 503 with the same report.
func Health(manager *monitoring.HealthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := manager.Evaluate(requestContext(c))
		if !report.Healthy() {
			c.JSON(http.StatusServiceUnavailable, response.Response{
				Success: false,
				Data:    report,
				Error:   &response.ErrorInfo{Code: "SERVICE_UNAVAILABLE", Message: "A required dependency is unavailable"},
			})
			return
		}
		response.Success(c, http.StatusOK, report)
	}
}
