package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/internai/internal/cache"
	"github.com/charlesng35/internai/pkg/errors"
	"github.com/charlesng35/internai/pkg/logger"
	"github.com/charlesng35/internai/pkg/metrics"
	"github.com/charlesng35/internai/pkg/response"
)

// RatePolicy describes a fixed window limit applied per client IP.
type RatePolicy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Default policies for the authentication surface.
var (
	LoginPolicy    = RatePolicy{Name: "login", Limit: 5, Window: time.Minute}
	RegisterPolicy = RatePolicy{Name: "register", Limit: 10, Window: time.Hour}
	GooglePolicy   = RatePolicy{Name: "google", Limit: 10, Window: time.Minute}
	RefreshPolicy  = RatePolicy{Name: "refresh", Limit: 20, Window: time.Minute}
	GeneralPolicy  = RatePolicy{Name: "general", Limit: 30, Window: time.Minute}
)

// RateLimit counts requests in store so the limit holds across instances
// sharing it. Store failures let the request through.
func RateLimit(store cache.Store, policy RatePolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || policy.Limit <= 0 || policy.Window <= 0 {
			c.Next()
			return
		}

		key := "ratelimit:" + policy.Name + ":" + c.ClientIP()
		count, ttl, err := store.IncrementWithTTL(c.Request.Context(), key, policy.Window)
		if err != nil {
			logger.WithModule("ratelimit").Warn("rate limit store unavailable",
				zap.String("policy", policy.Name),
				zap.Error(err),
			)
			c.Next()
			return
		}

		if ttl <= 0 {
			ttl = policy.Window
		}
		resetSeconds := strconv.Itoa(int((ttl + time.Second - 1) / time.Second))
		remaining := int64(policy.Limit) - count
		if remaining < 0 {
			remaining = 0
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(policy.Limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", resetSeconds)

		if count > int64(policy.Limit) {
			metrics.RateLimited.WithLabelValues(policy.Name).Inc()
			c.Header("Retry-After", resetSeconds)
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}

		c.Next()
	}
}
