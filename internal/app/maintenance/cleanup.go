package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/internai/internal/cache"
	"github.com/charlesng35/internai/internal/models"
	"github.com/charlesng35/internai/pkg/logger"
	"github.com/charlesng35/internai/pkg/metrics"
)

const (
	defaultSchedule = "@every 15m"
	// Pending registrations outlive their code so a late resend still works.
	defaultPendingRetention = 24 * time.Hour
)

// Cleaner periodically removes rows that no longer authorize anything:
// stale pending registrations, used or expired reset tokens and expired
// cache entries.
type Cleaner struct {
	db               *gorm.DB
	cron             *cron.Cron
	now              func() time.Time
	log              *zap.Logger
	schedule         string
	pendingRetention time.Duration
	purgeCache       bool
	sweepers         []func() int
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithSchedule overrides the cron specification.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// WithPendingRetention sets how long an expired registration is kept around.
func WithPendingRetention(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.pendingRetention = d
		}
	}
}

// WithCachePurge toggles sweeping the database-backed cache table. Only
// useful when that store is in use.
func WithCachePurge(enabled bool) Option {
	return func(cleaner *Cleaner) {
		cleaner.purgeCache = enabled
	}
}

// WithSweeper registers an in-process expiry sweep, such as the memory
// cache store, run alongside the database cleanup.
func WithSweeper(sweep func() int) Option {
	return func(cleaner *Cleaner) {
		if sweep != nil {
			cleaner.sweepers = append(cleaner.sweepers, sweep)
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(db *gorm.DB, opts ...Option) (*Cleaner, error) {
	if db == nil {
		return nil, errors.New("maintenance: db is required")
	}
	cleaner := &Cleaner{
		db:               db,
		now:              time.Now,
		schedule:         defaultSchedule,
		pendingRetention: defaultPendingRetention,
		log:              logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner, nil
}

// Start registers the cleanup job and launches the scheduler.
func (c *Cleaner) Start() error {
	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("maintenance run failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("maintenance: schedule %q: %w", c.schedule, err)
	}

	c.cron.Start()
	c.log.Info("maintenance scheduled", zap.String("schedule", c.schedule))
	return nil
}

// Stop halts the underlying scheduler. The returned context is done once
// running jobs complete.
func (c *Cleaner) Stop() context.Context {
	return c.cron.Stop()
}

// RunOnce executes every cleanup routine, continuing past failures and
// returning them combined.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	now := c.now().UTC()

	var errs error
	stats, err := CleanupTokens(ctx, c.db, now, c.pendingRetention)
	errs = multierr.Append(errs, err)

	if c.purgeCache {
		purged, err := cache.PurgeExpired(ctx, c.db, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cleanup cache entries: %w", err))
		}
		stats.CacheEntries = purged
	}
	for _, sweep := range c.sweepers {
		stats.CacheEntries += int64(sweep())
	}

	record("pending_users", stats.PendingUsers)
	record("password_reset_tokens", stats.PasswordResets)
	record("cache_entries", stats.CacheEntries)

	if total := stats.PendingUsers + stats.PasswordResets + stats.CacheEntries; total > 0 {
		c.log.Info("maintenance purged rows",
			zap.Int64("pending_users", stats.PendingUsers),
			zap.Int64("password_reset_tokens", stats.PasswordResets),
			zap.Int64("cache_entries", stats.CacheEntries),
		)
	}
	return errs
}

func record(table string, n int64) {
	if n > 0 {
		metrics.MaintenancePurged.WithLabelValues(table).Add(float64(n))
	}
}

// CleanupStats captures the number of records removed per table.
type CleanupStats struct {
	PendingUsers   int64
	PasswordResets int64
	CacheEntries   int64
}

// CleanupTokens removes reset tokens that are used or expired, and pending
// registrations whose code expired more than retention ago.
func CleanupTokens(ctx context.Context, db *gorm.DB, now time.Time, retention time.Duration) (CleanupStats, error) {
	if db == nil {
		return CleanupStats{}, errors.New("cleanup tokens: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	stats := CleanupStats{}
	var errs error

	if result := db.WithContext(ctx).
		Where("used_at IS NOT NULL OR expires_at <= ?", now).
		Delete(&models.PasswordResetToken{}); result.Error != nil {
		errs = multierr.Append(errs, fmt.Errorf("cleanup tokens: password reset tokens: %w", result.Error))
	} else {
		stats.PasswordResets = result.RowsAffected
	}

	if result := db.WithContext(ctx).
		Where("code_expires_at <= ?", now.Add(-retention)).
		Delete(&models.PendingUser{}); result.Error != nil {
		errs = multierr.Append(errs, fmt.Errorf("cleanup tokens: pending users: %w", result.Error))
	} else {
		stats.PendingUsers = result.RowsAffected
	}

	return stats, errs
}
