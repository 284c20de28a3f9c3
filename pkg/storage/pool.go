package storage

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// PoolConfig holds connection pool configuration.
type PoolConfig struct {
	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 4
	MaxOpenConns int

	// MaxIdleConns is the maximum number of connections in the idle pool.
	// Default: 1
	MaxIdleConns int

	// ConnMaxLifetime is the maximum amount of time a connection may be reused.
	// Default: 30 minutes
	ConnMaxLifetime time.Duration

	// ConnMaxIdleTime is the maximum amount of time a connection may be idle.
	// Default: 5 minutes
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig returns pool settings for a single handoff process.
// A handoff writes a few rows per state, spaced by poll intervals, so a
// small pool with one warm connection is enough.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    4,
		MaxIdleConns:    1,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// PoolOption configures connection pool settings.
type PoolOption interface {
	applyPool(*PoolConfig)
}

type poolOptionFunc func(*PoolConfig)

func (f poolOptionFunc) applyPool(c *PoolConfig) { f(c) }

// MaxOpenConns sets the maximum number of open connections.
func MaxOpenConns(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.MaxOpenConns = n
	})
}

// MaxIdleConns sets the maximum number of idle connections.
func MaxIdleConns(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.MaxIdleConns = n
	})
}

// ConnMaxLifetime sets the maximum connection lifetime.
func ConnMaxLifetime(d time.Duration) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.ConnMaxLifetime = d
	})
}

// ConnMaxIdleTime sets the maximum idle time for connections.
func ConnMaxIdleTime(d time.Duration) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.ConnMaxIdleTime = d
	})
}

// ConfigurePool applies pool configuration to a GORM database connection.
func ConfigurePool(db *gorm.DB, opts ...PoolOption) error {
	config := DefaultPoolConfig()
	for _, opt := range opts {
		opt.applyPool(&config)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	return nil
}

// OpenJournal opens dsn, configures its pool and migrates the schema.
func OpenJournal(dsn string, opts ...PoolOption) (*GormJournal, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := ConfigurePool(db, opts...); err != nil {
		return nil, err
	}
	return NewGormJournal(db), nil
}
