package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/IuryyCosta/test-servimed/internal/config"
)

// Setup initializes and configures the application's logging system based on
// the provided configuration. It creates a structured logger writing to stdout
// with the configured level and format and sets it as the default logger.
func Setup(cfg config.ServerConfig) (*slog.Logger, error) {
	logger := New(cfg, os.Stdout)

	// Set this logger as the default for the application
	// This allows using the slog package functions directly (slog.Info, slog.Error, etc.)
	slog.SetDefault(logger)

	return logger, nil
}

// New builds a logger writing to w without touching the default logger.
func New(cfg config.ServerConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.LogLevel),
		AddSource: strings.EqualFold(cfg.LogLevel, "debug"),
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With("service", "servimed-orchestrator")
}

// ParseLevel converts a configured level name (case-insensitive) to a
// slog.Level. Unknown names fall back to info and emit a warning.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		// Create a temporary logger to output the warning
		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", name,
			"default_level", "info")
		return slog.LevelInfo
	}
}
