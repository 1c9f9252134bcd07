package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
)

// startHTTPServer serves router until a SIGINT/SIGTERM arrives or ctx is
// cancelled, then shuts the server down gracefully and releases the
// application resources.
func (app *application) startHTTPServer(ctx context.Context, router http.Handler) error {
	sc := app.config.Server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", sc.Port),
		Handler:      router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		app.logger.Info("starting server", "port", sc.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case err := <-serveErr:
		if err != nil {
			app.logger.Error("server failed", "error", err)
			runErr = fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		app.logger.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), sc.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("server shutdown failed", "error", err)
		runErr = errors.Join(runErr, fmt.Errorf("server shutdown failed: %w", err))
	}

	app.cleanup()

	app.logger.Info("server shutdown completed")
	return runErr
}
