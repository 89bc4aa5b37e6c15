// Package db opens the relational store that keeps ingestion run history.
package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/winegraph/internal/domain"
	"github.com/yungbote/winegraph/internal/platform/logger"
)

const (
	DriverNone     = ""
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

func (c Config) Enabled() bool { return strings.TrimSpace(c.Driver) != DriverNone }

func (c Config) Validate() error {
	switch c.Driver {
	case DriverNone:
		return nil
	case DriverPostgres, DriverSQLite:
		if strings.TrimSpace(c.DSN) == "" {
			return &domain.ConfigError{Field: "runstore.dsn", Reason: "required when a run store driver is set"}
		}
		return nil
	default:
		return &domain.ConfigError{Field: "runstore.driver", Reason: fmt.Sprintf("unknown driver %q (want postgres or sqlite)", c.Driver)}
	}
}

// Open connects and migrates. SQLite is capped at one connection so in-memory
// databases stay shared across the pool.
func Open(cfg Config, logg *logger.Logger) (*gorm.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	serviceLog := logg.With("service", "RunStore")

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("run store disabled")
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := AutoMigrateAll(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	serviceLog.Info("run store ready", "driver", cfg.Driver)
	return db, nil
}

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.IngestionRun{},
	)
}

func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
