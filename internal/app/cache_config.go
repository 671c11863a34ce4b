package app

import (
	"strings"

	"github.com/charlesng35/internai/internal/cache"
	"github.com/charlesng35/internai/internal/database"
)

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:  strings.TrimSpace(c.Redis.Address),
		Username: strings.TrimSpace(c.Redis.Username),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		TLS:      c.Redis.TLS,
		Timeout:  c.Redis.Timeout,
	}
}

// DatabaseConfig converts the application database settings into the database package representation.
func (c DatabaseConfig) DatabaseConfig() database.Config {
	return database.Config{
		Driver:          strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:            c.Path,
		DSN:             c.DSN,
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		Name:            c.Name,
		Options:         c.Options,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}

// UsesMemory reports whether the in-process store backs the cache when
// Redis is not serving it.
func (c CacheConfig) UsesMemory() bool {
	return strings.EqualFold(strings.TrimSpace(c.Local), "memory")
}
