package models

import "time"

// CacheEntry is a row of the database-backed cache used when Redis is not configured.
type CacheEntry struct {
	Key       string `gorm:"column:cache_key;primaryKey;size:256"`
	Value     []byte
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
