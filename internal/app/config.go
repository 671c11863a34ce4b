package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. INTERNAI_SERVER_PORT.
const EnvPrefix = "INTERNAI"

// Config represents the runtime configuration for the auth service.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Email       EmailConfig       `mapstructure:"email"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	LogLevel        string        `mapstructure:"log_level"`
	Environment     string        `mapstructure:"environment"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	FrontendURL     string        `mapstructure:"frontend_url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For is
	// honoured. Empty means the socket peer is the client.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver          string            `mapstructure:"driver"`
	Path            string            `mapstructure:"path"`
	DSN             string            `mapstructure:"dsn"`
	Host            string            `mapstructure:"host"`
	Port            int               `mapstructure:"port"`
	Name            string            `mapstructure:"name"`
	User            string            `mapstructure:"user"`
	Password        string            `mapstructure:"password"`
	Options         map[string]string `mapstructure:"options"`
	MaxOpenConns    int               `mapstructure:"max_open_conns"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration     `mapstructure:"conn_max_lifetime"`
}

// CacheConfig describes cache backends. Local selects the store used when
// Redis is disabled or unreachable: "database" (default) or "memory".
type CacheConfig struct {
	Local string           `mapstructure:"local"`
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT           JWTSettings           `mapstructure:"jwt"`
	Cookies       CookieSettings        `mapstructure:"cookies"`
	Verification  VerificationSettings  `mapstructure:"verification"`
	PasswordReset PasswordResetSettings `mapstructure:"password_reset"`
	Local         LocalAuthSettings     `mapstructure:"local"`
	Google        GoogleSettings        `mapstructure:"google"`
}

// JWTSettings configures the signed session tokens.
type JWTSettings struct {
	Secret     string        `mapstructure:"secret"`
	Issuer     string        `mapstructure:"issuer"`
	AccessTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// CookieSettings names the session cookies.
type CookieSettings struct {
	AccessName  string `mapstructure:"access_name"`
	RefreshName string `mapstructure:"refresh_name"`
	Domain      string `mapstructure:"domain"`
}

// VerificationSettings tunes registration codes.
type VerificationSettings struct {
	CodeLength  int           `mapstructure:"code_length"`
	CodeTTL     time.Duration `mapstructure:"code_ttl"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// PasswordResetSettings tunes recovery links.
type PasswordResetSettings struct {
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	URL      string        `mapstructure:"url"`
}

// LocalAuthSettings defines controls for the local auth provider.
type LocalAuthSettings struct {
	LockoutThreshold int           `mapstructure:"lockout_threshold"`
	LockoutDuration  time.Duration `mapstructure:"lockout_duration"`
}

// GoogleSettings configures Google sign-in. An empty client id disables it.
type GoogleSettings struct {
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	RedirectURL  string        `mapstructure:"redirect_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	SMTP            SMTPConfig    `mapstructure:"smtp"`
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MaintenanceConfig schedules the background cleaner.
type MaintenanceConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
	// PendingRetention keeps expired registrations resendable for a while.
	PendingRetention time.Duration `mapstructure:"pending_retention"`
}

// LoadConfig reads config/config.yaml (or config.yaml in any of paths),
// applies INTERNAI_ environment overrides and fills defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("server.frontend_url", "http://localhost:5173")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/internai.sqlite")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("cache.local", "database")
	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")

	v.SetDefault("auth.jwt.issuer", "internai")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")
	v.SetDefault("auth.jwt.refresh_token_ttl", "720h") // 30 days
	v.SetDefault("auth.cookies.access_name", "access_token")
	v.SetDefault("auth.cookies.refresh_name", "refresh_token")
	v.SetDefault("auth.verification.code_length", 6)
	v.SetDefault("auth.verification.code_ttl", "10m")
	v.SetDefault("auth.verification.max_attempts", 5)
	v.SetDefault("auth.password_reset.token_ttl", "1h")
	v.SetDefault("auth.password_reset.url", "http://localhost:5173/reset-password")
	v.SetDefault("auth.local.lockout_threshold", 5)
	v.SetDefault("auth.local.lockout_duration", "15m")
	v.SetDefault("auth.google.client_id", "")
	v.SetDefault("auth.google.client_secret", "")
	v.SetDefault("auth.google.redirect_url", "http://localhost:8000/api/auth/google/callback")
	v.SetDefault("auth.google.timeout", "10s")

	v.SetDefault("email.delivery_timeout", "5s")
	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.from", "")
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.schedule", "@every 15m")
	v.SetDefault("maintenance.pending_retention", "24h")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Auth.JWT.AccessTTL > 0 && c.Auth.JWT.RefreshTTL > 0 && c.Auth.JWT.AccessTTL >= c.Auth.JWT.RefreshTTL {
		return errors.New("config: auth.jwt.access_token_ttl must be shorter than refresh_token_ttl")
	}
	switch strings.ToLower(strings.TrimSpace(c.Cache.Local)) {
	case "", "database", "memory":
	default:
		return fmt.Errorf("config: cache.local %q must be database or memory", c.Cache.Local)
	}
	if c.Production() {
		length, err := KeyByteLength(c.Auth.JWT.Secret)
		if err != nil {
			return fmt.Errorf("config: auth.jwt.secret: %w", err)
		}
		if length < minJWTSecretBytes {
			return fmt.Errorf("config: auth.jwt.secret must be at least %d bytes in %s", minJWTSecretBytes, c.Server.Environment)
		}
	}
	return nil
}

// Production reports whether the environment requires hardened defaults.
func (c *Config) Production() bool {
	switch strings.ToLower(strings.TrimSpace(c.Server.Environment)) {
	case "development", "dev", "local", "test":
		return false
	default:
		return true
	}
}
