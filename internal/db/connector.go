// Package db establishes the GORM database connection for the review engine.
package db

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported database types.
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
	TypeMySQL    = "mysql"
)

// Config describes the database connection.
type Config struct {
	// Type is one of sqlite, postgres, or mysql.
	Type string
	// DSN is the driver-specific connection string. For sqlite this is a
	// file path (or ":memory:").
	DSN string
	// MaxOpenConns bounds the pool; zero keeps the driver default.
	MaxOpenConns int
	// Verbose enables SQL statement logging.
	Verbose bool
}

// Connect opens a GORM connection for the configured backend.
func Connect(cfg Config) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	logLevel := logger.Silent
	if cfg.Verbose {
		logLevel = logger.Info
	}
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Type {
	case TypeSQLite, "":
		db, err = gorm.Open(sqlite.Open(cfg.DSN), gormCfg)
	case TypePostgres:
		db, err = gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	case TypeMySQL:
		db, err = gorm.Open(mysql.Open(cfg.DSN), gormCfg)
	default:
		return nil, fmt.Errorf("unknown database type %q (expected sqlite, postgres, or mysql)", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s database: %w", cfg.Type, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("access connection pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}
