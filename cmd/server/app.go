package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/go-crm/internal/blobstore"
	"github.com/diewo77/go-crm/internal/calendar"
	"github.com/diewo77/go-crm/internal/config"
	"github.com/diewo77/go-crm/internal/db"
	"github.com/diewo77/go-crm/internal/logging"
	"github.com/diewo77/go-crm/internal/server"
	"github.com/diewo77/go-crm/internal/tracing"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// bootstrap loads the configuration, builds the logger and connects to the
// database.
func bootstrap(ctx context.Context) (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("config: %w", err)
	}
	log, err := logging.New(cfg.App.LogLevel, cfg.App.Dev())
	if err != nil {
		return nil, nil, nil, err
	}
	conn, err := db.Connect(ctx, cfg.Database, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, nil, err
	}
	return cfg, log, conn, nil
}

func seedOptions(cfg *config.Config) db.SeedOptions {
	return db.SeedOptions{AdminEmail: cfg.App.SeedAdminEmail, AdminPassword: cfg.App.SeedAdminPassword}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, log, conn, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck
	if err := db.Migrate(conn, cfg.Database, log); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("migrations completed")
	return nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, log, conn, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck
	if err := db.Seed(conn, seedOptions(cfg)); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	log.Info("seeding completed")
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, conn, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	if err := db.Migrate(conn, cfg.Database, log); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := db.Seed(conn, seedOptions(cfg)); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	blobs, err := blobstore.NewLocal(cfg.App.StorageDir)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if !cfg.Calendar.Enabled() {
		log.Info("calendar invitations disabled")
	}

	shutdownTracing, err := tracing.Setup(ctx, cfg.App, server.ServiceName, log)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	srv := server.New(server.Deps{
		Config:  cfg,
		DB:      conn,
		Blobs:   blobs,
		Inviter: calendar.NewGoogle(cfg.Calendar),
		Log:     log,
	})
	log.Info("starting server", zap.String("env", cfg.App.Env), zap.String("addr", cfg.Server.Addr()))
	if err := srv.Run(ctx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
