// Package persistence provides the durable stores behind the
// conversation service: the message log and the compression record
// log, each keyed by a scope (one calendar day of conversation).
//
// Supported backends:
// - Memory: for development and testing (default)
// - File: for single-node deployments, one directory per scope
// - Redis: for deployments sharing state across processes
// - SQLite: for single-node deployments wanting queryable history
package persistence

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeFile   StoreType = "file"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeSQLite StoreType = "sqlite"
)

// RedisStoreConfig contains Redis-specific configuration
type RedisStoreConfig struct {
	// Addr is the Redis server address as host:port
	Addr string `json:"addr" yaml:"addr" env:"ADDR"`

	// Password is the Redis password (optional)
	Password string `json:"password" yaml:"password" env:"PASSWORD"`

	// DB is the Redis database number
	DB int `json:"db" yaml:"db" env:"DB"`

	// PoolSize is the connection pool size
	PoolSize int `json:"pool_size" yaml:"pool_size" env:"POOL_SIZE"`

	// KeyPrefix is the prefix for all Redis keys
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix" env:"KEY_PREFIX"`
}

// SQLiteStoreConfig contains SQLite-specific configuration
type SQLiteStoreConfig struct {
	// Path is the database file path
	Path string `json:"path" yaml:"path" env:"PATH"`
}

// StoreConfig is the base configuration for all store implementations
type StoreConfig struct {
	// Type is the storage backend type
	Type StoreType `json:"type" yaml:"type" env:"TYPE"`

	// BaseDir is the base directory for file-based storage
	BaseDir string `json:"base_dir" yaml:"base_dir" env:"BASE_DIR"`

	// Redis configuration (only used when Type is "redis")
	Redis RedisStoreConfig `json:"redis" yaml:"redis" env:"REDIS"`

	// SQLite configuration (only used when Type is "sqlite")
	SQLite SQLiteStoreConfig `json:"sqlite" yaml:"sqlite" env:"SQLITE"`
}

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:    StoreTypeMemory,
		BaseDir: "./data/conversations",
		Redis: RedisStoreConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "life:",
		},
		SQLite: SQLiteStoreConfig{
			Path: "./data/conversations.db",
		},
	}
}

// Store is the base interface for all persistent stores
type Store interface {
	// Close closes the store and releases resources
	Close() error

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error
}

// DayScope returns the scope key for the calendar day containing t,
// in the local timezone. All turns of one day share a scope; a turn
// arriving after midnight starts a fresh one.
func DayScope(t time.Time) string {
	return t.Format("2006-01-02")
}
