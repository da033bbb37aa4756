package db

import (
	"fmt"
	"time"

	"github.com/cw35/slackminder/db/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens the sqlite database described by cfg, applies the connection
// pragmas, and runs migrations when cfg.AutoMigrate is set.
func Open(cfg Config) (*gorm.DB, error) {
	dsn, err := ResolveSQLiteDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite dsn: %w", err)
	}

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	}
	if cfg.Pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	}
	if cfg.Pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.Pool.ConnMaxLifetime)
	}

	if cfg.SQLite.BusyTimeoutMs > 0 {
		gdb.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.SQLite.BusyTimeoutMs))
	}
	if cfg.SQLite.WAL {
		gdb.Exec("PRAGMA journal_mode = WAL")
	}
	if cfg.SQLite.ForeignKeys {
		gdb.Exec("PRAGMA foreign_keys = ON")
	}

	if cfg.AutoMigrate {
		if err := gdb.AutoMigrate(
			&models.ReminderSchedule{},
			&models.ReminderRun{},
			&models.UserToken{},
		); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}
	return gdb, nil
}

// OpenAt is a convenience for tests and one-shot commands that want a database
// at an explicit path with default pragmas.
func OpenAt(path string) (*gorm.DB, error) {
	cfg := DefaultConfig()
	cfg.DSN = path
	cfg.Pool.ConnMaxLifetime = time.Hour
	return Open(cfg)
}
