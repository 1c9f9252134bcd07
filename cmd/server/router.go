package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/IuryyCosta/test-servimed/internal/api"
	apiMiddleware "github.com/IuryyCosta/test-servimed/internal/api/middleware"
)

// setupRouter creates the router with middleware and every route.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(app.metrics.Middleware)

	taskHandler := api.NewTaskHandler(app.dispatcher, app.projector, app.logger)
	systemHandler := api.NewSystemHandler(app.healthChecks)

	r.Get("/", systemHandler.Root)
	r.Get("/health", systemHandler.Health)
	r.Method(http.MethodGet, "/metrics", app.metrics.Handler())

	r.Route("/scraping", func(r chi.Router) {
		r.Post("/", taskHandler.CreateTask)
		r.Get("/{"+api.TaskIDParam+"}", taskHandler.GetTask)
	})

	return r
}
