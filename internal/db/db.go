package db

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oggyb/swipelingo/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

// NewDB opens the process-wide connection pool for the configured driver and
// brings the schema up to date. The returned handle is passed explicitly to
// every repository; each statement borrows a pooled connection for its own
// duration only.
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg.DB.Driver, cfg.DSNFor())
	if err != nil {
		return nil, err
	}

	database, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(cfg.Log.Level)),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}
	if cfg.DB.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	}
	if cfg.DB.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	}
	if cfg.DB.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	}

	if cfg.DB.AutoMigrate {
		if err := Migrate(context.Background(), database); err != nil {
			return nil, err
		}
	}

	return database, nil
}

// Migrate applies the versioned SQL migrations on postgres and falls back
// to gorm AutoMigrate on the other dialects.
func Migrate(ctx context.Context, database *gorm.DB) error {
	if database.Dialector.Name() != "postgres" {
		if err := database.WithContext(ctx).AutoMigrate(All()...); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
		return nil
	}

	sqlDB, err := database.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql handle: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch strings.ToLower(driver) {
	case "", "mysql":
		return mysql.Open(dsn), nil
	case "postgres", "postgresql":
		return postgres.Open(dsn), nil
	case "sqlite", "sqlite3":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
}

func gormLogLevel(level string) logger.LogLevel {
	if strings.EqualFold(strings.TrimSpace(level), "debug") {
		return logger.Info
	}
	return logger.Warn
}

// RandomOrder is the dialect's random-ordering expression.
func RandomOrder(database *gorm.DB) string {
	if database.Dialector.Name() == "mysql" {
		return "RAND()"
	}
	return "RANDOM()"
}
