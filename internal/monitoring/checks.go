package monitoring

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/internai/internal/database"
)

const defaultProbeTimeout = 2 * time.Second

// Pinger is implemented by dependencies that can confirm reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseCheck pings the database connection pool. The store is required,
// so any failure marks the service down.
func DatabaseCheck(db *gorm.DB, timeout time.Duration) Check {
	return NewCheck("database", func(ctx context.Context) ProbeResult {
		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout))
		defer cancel()
		if err := database.Ping(probeCtx, db); err != nil {
			return ProbeResult{Status: StatusDown, Details: err.Error()}
		}
		return ProbeResult{Status: StatusUp}
	})
}

// CacheCheck probes the shared cache. Losing it only degrades the service,
// since rate limiting fails open.
func CacheCheck(name string, cache Pinger, timeout time.Duration) Check {
	return NewCheck(name, func(ctx context.Context) ProbeResult {
		if cache == nil {
			return ProbeResult{Status: StatusDegraded, Details: "cache unavailable"}
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout))
		defer cancel()
		result := ResultFromError(cache.Ping(probeCtx))
		if result.Status == StatusDown {
			result.Status = StatusDegraded
		}
		return result
	})
}

func chooseTimeout(provided time.Duration) time.Duration {
	if provided <= 0 {
		return defaultProbeTimeout
	}
	return provided
}
