// Package db provides functions to initialize and manage the SQLite database for Launchpad.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryPath selects a private in-memory database
const MemoryPath = ":memory:"

// DefaultBusyTimeoutMillis is how long a writer waits on a locked database
const DefaultBusyTimeoutMillis = 5000

type DBConfig struct {
	// Path is the database file, or MemoryPath
	Path     string
	LogLevel logger.LogLevel
	// BusyTimeoutMillis defaults to DefaultBusyTimeoutMillis
	BusyTimeoutMillis int
}

// dsn carries the connection pragmas as driver parameters so they apply to
// every connection the pool opens
func (c DBConfig) dsn() string {
	params := url.Values{}
	params.Set("_foreign_keys", "on")

	if c.Path != MemoryPath {
		timeout := c.BusyTimeoutMillis
		if timeout <= 0 {
			timeout = DefaultBusyTimeoutMillis
		}
		params.Set("_journal_mode", "WAL")
		params.Set("_synchronous", "NORMAL")
		params.Set("_busy_timeout", strconv.Itoa(timeout))
		params.Set("_cache_size", "2000")
	}

	return c.Path + "?" + params.Encode()
}

// InitDatabase opens the database described by config. The caller runs
// migrations on the returned handle.
func InitDatabase(config DBConfig) (*gorm.DB, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if config.Path != MemoryPath {
		dir := filepath.Dir(config.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("Database operation failed",
				"layer", "db",
				"operation", "create_data_dir",
				"dir", dir,
				"error", err)
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(config.dsn()), &gorm.Config{
		Logger: logger.Default.LogMode(config.LogLevel),
	})
	if err != nil {
		slog.Error("Database operation failed",
			"layer", "db",
			"operation", "open",
			"path", config.Path,
			"error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: concurrent jobs queue on it instead of failing with
	// "database is locked", and an in-memory database stays a single database
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	slog.Debug("Database initialized", "path", config.Path)
	return db, nil
}

// InitDB opens the database file at dbPath with a GORM log level matching the application's
func InitDB(dbPath string) (*gorm.DB, error) {
	return InitDatabase(DBConfig{
		Path:     dbPath,
		LogLevel: getGormLogLevel(),
	})
}

// getGormLogLevel maps application log level to corresponding GORM log level
func getGormLogLevel() logger.LogLevel {
	l := slog.Default()

	switch {
	case l.Enabled(context.TODO(), slog.LevelDebug):
		return logger.Info // SQL queries only with debug logging
	case l.Enabled(context.TODO(), slog.LevelWarn):
		return logger.Warn
	case l.Enabled(context.TODO(), slog.LevelError):
		return logger.Error
	default:
		return logger.Silent
	}
}
