package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/staticwaves/podforge/internal/api"
	apiMiddleware "github.com/staticwaves/podforge/internal/api/middleware"
	"github.com/staticwaves/podforge/internal/api/shared"
)

// setupRouter creates and configures the application router with all routes and middleware.
// It accepts the application dependencies to create handlers and register routes.
// Returns the configured router.
func (app *application) setupRouter() http.Handler {
	// Create a router
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware) // Add trace IDs for improved error handling
	if app.config.Server.EnableCORS {
		r.Use(apiMiddleware.CORS)
	}

	// Create API handlers using the application's services
	jobHandler := api.NewJobHandler(app.pool, app.jobStore, app.queueConfig(), app.logger)
	workerHandler := api.NewWorkerHandler(app.pool, app.logger)
	monitorHandler := api.NewMonitorHandler(app.pool, app.metrics, app.alerts, app.dashboard, app.logger)

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.config.Server.AuthToken)

	// Register routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		// Job endpoints
		r.Post("/jobs", jobHandler.SubmitJob)
		r.Get("/jobs", jobHandler.ListJobs)
		r.Get("/jobs/{id}", jobHandler.GetJob)

		// Worker pool endpoints
		r.Get("/workers", workerHandler.ListWorkers)
		r.Post("/workers/{id}/restart", workerHandler.RestartWorker)
		r.Post("/scale", workerHandler.Scale)

		// Observability endpoints
		r.Get("/health", monitorHandler.Health)
		r.Get("/stats", monitorHandler.Stats)
		r.Get("/dashboard", monitorHandler.Dashboard)
		r.Get("/metrics", monitorHandler.Metrics)
		r.Get("/alerts", monitorHandler.Alerts)
	})

	// Unmatched routes return a structured JSON error
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithError(w, r, http.StatusNotFound, "Not found")
	})

	return r
}
