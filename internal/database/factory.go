package database

import (
	"fmt"
	"os"
	"path/filepath"

	"rentcat/internal/config"
	"rentcat/internal/rentcat"
)

// Database is the activity log plus regeneration history.
type Database interface {
	rentcat.ActivityRecorder
	rentcat.RunRecorder
	rentcat.History
	CheckMigrations() error
	MigrateUp() error
	Close() error
}

// NewDatabaseFromConfig creates a Database implementation based on the database config type.
// The memory database is migrated on creation; sqlite callers run MigrateUp.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, clock rentcat.Clock) (Database, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		db, err := NewSQLiteDatabase(filepath.Join(cfg.DataDir, "rentcat.db"), clock)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "memory":
		db, err := NewSQLiteDatabase(":memory:", clock)
		if err != nil {
			return nil, err
		}
		if err := db.MigrateUp(); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	case "none":
		return nopDatabase{}, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

// nopDatabase keeps no history.
type nopDatabase struct{ rentcat.NopRecorder }

func (nopDatabase) CheckMigrations() error { return nil }
func (nopDatabase) MigrateUp() error       { return nil }
