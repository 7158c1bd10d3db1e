// Package db opens the database, applies the schema and seeds reference data.
package db

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/diewo77/go-crm/internal/config"
	"github.com/diewo77/go-crm/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

var passwordPattern = regexp.MustCompile(`(password=|://[^:/@]+:)([^\s@]+)`)

// MaskDSN hides the password of a key=value or URL style DSN.
func MaskDSN(dsn string) string {
	return passwordPattern.ReplaceAllString(dsn, `${1}***`)
}

// Open returns a gorm dialector for the configured driver.
func Open(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.Open(cfg.DSN()), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Connect opens the database, retrying while it comes up, and pings it.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel), TranslateError: true}

	log.Info("connecting to database", zap.String("driver", cfg.Driver), zap.String("dsn", MaskDSN(cfg.DSN())))

	var conn *gorm.DB
	for i := 1; i <= connectAttempts; i++ {
		conn, err = gorm.Open(dialector, gormCfg)
		if err == nil {
			break
		}
		log.Warn("database not ready, retrying", zap.Int("attempt", i), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}

	if err := Ping(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// Ping runs a trivial query to check connectivity.
func Ping(ctx context.Context, conn *gorm.DB) error {
	if err := conn.WithContext(ctx).Exec("SELECT 1").Error; err != nil {
		return fmt.Errorf("db ping failed: %w", err)
	}
	return nil
}

// Migrate brings the schema up to date. With cfg.Migrations set on postgres the
// embedded SQL migrations run through golang-migrate; otherwise gorm AutoMigrate
// is used.
func Migrate(conn *gorm.DB, cfg config.DatabaseConfig, log *zap.Logger) error {
	if cfg.Migrations && cfg.Driver == "postgres" {
		log.Info("running sql migrations")
		if err := runSQLMigrations(cfg.URL()); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		return nil
	}
	return AutoMigrate(conn)
}

// AutoMigrate creates or updates every table from the gorm models.
func AutoMigrate(conn *gorm.DB) error {
	for _, m := range models.All() {
		if err := conn.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}
