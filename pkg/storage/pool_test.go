package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestDefaultPoolConfig(t *testing.T) {
	cfg := DefaultPoolConfig()

	assert.Equal(t, 4, cfg.MaxOpenConns)
	assert.Equal(t, 1, cfg.MaxIdleConns)
	assert.Equal(t, 30*time.Minute, cfg.ConnMaxLifetime)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxIdleTime)
}

func TestPoolOptions(t *testing.T) {
	cfg := PoolConfig{}

	MaxOpenConns(50).applyPool(&cfg)
	assert.Equal(t, 50, cfg.MaxOpenConns)

	MaxIdleConns(20).applyPool(&cfg)
	assert.Equal(t, 20, cfg.MaxIdleConns)

	ConnMaxLifetime(10 * time.Minute).applyPool(&cfg)
	assert.Equal(t, 10*time.Minute, cfg.ConnMaxLifetime)

	ConnMaxIdleTime(2 * time.Minute).applyPool(&cfg)
	assert.Equal(t, 2*time.Minute, cfg.ConnMaxIdleTime)
}

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = ConfigurePool(db,
		MaxOpenConns(3),
		ConnMaxIdleTime(90*time.Second),
	)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 3, sqlDB.Stats().MaxOpenConnections)
}

func TestConfigurePool_DefaultValues(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, ConfigurePool(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 4, sqlDB.Stats().MaxOpenConnections)
}

func TestOpenJournal_SQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handoff.db")

	j, err := OpenJournal("sqlite://"+path, MaxOpenConns(1))
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := j.DB().DB()
		_ = sqlDB.Close()
	})
	require.NoError(t, j.Migrate(context.Background()))

	sqlDB, err := j.DB().DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	assert.FileExists(t, path)
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open("")
	assert.ErrorContains(t, err, "empty journal DSN")
}
