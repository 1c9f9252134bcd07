// Package main runs the Servimed task API: it accepts scraping and order
// submissions over HTTP and processes them with a background worker pool.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/IuryyCosta/test-servimed/internal/config"
	"github.com/IuryyCosta/test-servimed/internal/platform/logger"
)

func main() {
	cfg, l, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		l.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		l.Error("application stopped with error", "error", err)
		os.Exit(1)
	}
}

// initializeApp loads configuration and sets up structured logging.
func initializeApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"store_backend", cfg.Store.Backend,
		"queue_backend", cfg.Queue.Backend,
		"workers", cfg.Worker.Count)
	if cfg.Database.URL != "" {
		l.Debug("database configuration", "url_present", true)
	}

	return cfg, l, nil
}
