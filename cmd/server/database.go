package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IuryyCosta/test-servimed/internal/config"
	"github.com/IuryyCosta/test-servimed/internal/platform/postgres"
)

// setupDatabase opens the connection pool and, when configured, applies the
// embedded migrations.
func setupDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, errors.New("database.url is required for the postgres store")
	}

	db, err := postgres.Open(ctx, cfg.URL, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime)
	if err != nil {
		return nil, err
	}
	logger.Info("database connection established",
		"max_open_conns", cfg.MaxOpenConns,
		"max_idle_conns", cfg.MaxIdleConns)

	if cfg.MigrateOnStart {
		if err := postgres.Migrate(ctx, db, logger); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	return db, nil
}
