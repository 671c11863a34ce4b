package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/internai/pkg/errors"
	"github.com/charlesng35/internai/pkg/logger"
	"github.com/charlesng35/internai/pkg/metrics"
	"github.com/charlesng35/internai/pkg/response"
)

// Recovery turns a handler panic into the generic 500 envelope. The panic
// value stays in the logs; clients never see it.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			fields := []zap.Field{
				zap.String("method", c.Request.Method),
				zap.String("route", route),
				zap.Any("panic", r),
				zap.Stack("stack"),
			}
			if userID := c.GetString(CtxUserIDKey); userID != "" {
				fields = append(fields, zap.String("user_id", userID))
			}
			logger.WithModule("http").Error("handler panic recovered", fields...)
			metrics.RecoveredPanics.WithLabelValues(route).Inc()

			response.Error(c, errors.ErrInternalServer.WithInternal(fmt.Errorf("panic: %v", r)))
			c.Abort()
		}()
		c.Next()
	}
}

// NotFoundHandler answers unknown routes with the JSON 404 envelope.
func NotFoundHandler(c *gin.Context) {
	notFound := errors.ErrNotFound
	response.Error(c, errors.New(notFound.Code, fmt.Sprintf("route %s not found", c.Request.URL.Path), notFound.StatusCode))
}
