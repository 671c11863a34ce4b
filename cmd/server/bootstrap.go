package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/internai/internal/api"
	"github.com/charlesng35/internai/internal/app"
	"github.com/charlesng35/internai/internal/app/maintenance"
	iauth "github.com/charlesng35/internai/internal/auth"
	"github.com/charlesng35/internai/internal/auth/providers"
	"github.com/charlesng35/internai/internal/cache"
	"github.com/charlesng35/internai/internal/database"
	"github.com/charlesng35/internai/internal/monitoring"
	"github.com/charlesng35/internai/internal/services"
	"github.com/charlesng35/internai/pkg/logger"
	"github.com/charlesng35/internai/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB      *gorm.DB
	Redis   *cache.RedisStore
	Cleaner *maintenance.Cleaner
	Router  *gin.Engine
}

// bootstrapRuntime initialises the database, cache, services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	var (
		store  cache.Store = cache.NewDatabaseStore(stack.DB)
		memory *cache.MemoryStore
	)
	if cfg.Cache.UsesMemory() {
		memory = cache.NewMemoryStore()
		store = memory
	}
	if cfg.Cache.Redis.Enabled {
		redisStore, redisErr := cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig())
		if redisErr != nil {
			log.Warn("redis unavailable; falling back to local cache", zap.String("local", cfg.Cache.Local), zap.Error(redisErr))
		} else {
			stack.Redis = redisStore
			store = redisStore
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}
	cookies := iauth.NewCookieBinder(cfg.Auth.CookieConfig(cfg.Server.Environment))

	users, err := services.NewUserService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise user service: %w", err)
	}

	sessions, err := iauth.NewSessionService(jwtSvc, cookies, users)
	if err != nil {
		return nil, fmt.Errorf("initialise session service: %w", err)
	}

	mailer, err := mail.New(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}
	if !cfg.Email.SMTP.Enabled {
		log.Warn("smtp disabled; no mail is delivered, verification codes are logged at debug level")
	}

	registration, err := services.NewRegistrationService(stack.DB, mailer, cfg.RegistrationOptions()...)
	if err != nil {
		return nil, fmt.Errorf("initialise registration service: %w", err)
	}

	resets, err := services.NewPasswordResetService(stack.DB, mailer, cfg.PasswordResetOptions()...)
	if err != nil {
		return nil, fmt.Errorf("initialise password reset service: %w", err)
	}

	local, err := providers.NewLocalProvider(stack.DB, cfg.Auth.LocalProviderConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise local provider: %w", err)
	}

	flows, err := iauth.NewFlowStateStore(store, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("initialise flow state store: %w", err)
	}

	health := monitoring.NewHealthManager(monitoring.DatabaseCheck(stack.DB, 0))
	if stack.Redis != nil {
		health.Register(monitoring.CacheCheck("redis", stack.Redis, cfg.Cache.Redis.Timeout))
	}

	deps := api.Dependencies{
		Config:       cfg,
		DB:           stack.DB,
		Cache:        store,
		Cookies:      cookies,
		Sessions:     sessions,
		Users:        users,
		Registration: registration,
		Resets:       resets,
		Local:        local,
		Flows:        flows,
		Health:       health,
	}
	// Only assign a live provider: a typed nil would make the interface non-nil.
	if google := initialiseGoogle(ctx, cfg, log); google != nil {
		deps.Google = google
	}

	cleanerOpts := []maintenance.Option{
		maintenance.WithSchedule(cfg.Maintenance.Schedule),
		maintenance.WithPendingRetention(cfg.Maintenance.PendingRetention),
		maintenance.WithCachePurge(stack.Redis == nil && memory == nil),
	}
	if stack.Redis == nil && memory != nil {
		cleanerOpts = append(cleanerOpts, maintenance.WithSweeper(memory.Sweep))
	}
	stack.Cleaner, err = maintenance.NewCleaner(stack.DB, cleanerOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise maintenance: %w", err)
	}
	if cfg.Maintenance.Enabled {
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(deps)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// initialiseGoogle returns nil when Google sign-in is not configured or its
// discovery document cannot be fetched; the endpoints then report it unavailable.
func initialiseGoogle(ctx context.Context, cfg *app.Config, log *zap.Logger) *providers.GoogleProvider {
	google, err := providers.NewGoogleProvider(ctx, cfg.Auth.GoogleConfig())
	switch {
	case errors.Is(err, providers.ErrProviderDisabled):
		log.Info("google sign-in disabled")
		return nil
	case err != nil:
		log.Warn("google sign-in unavailable", zap.Error(err))
		return nil
	}
	log.Info("google sign-in enabled")
	return google
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}

	logger.WithModule("database").Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}
