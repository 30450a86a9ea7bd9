package main

import (
	"net/http"

	"github.com/careloop/careloop-api/internal/api"
	apiMiddleware "github.com/careloop/careloop-api/internal/api/middleware"
	"github.com/careloop/careloop-api/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	c := app.components

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(apiMiddleware.NewCORS(app.config.CORS.AllowedOrigins))

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService, app.triggerKey)

	functionHandler, err := api.NewFunctionHandler(c.Producer, c.Processor, c.Repairer, c.Payments, c.Notifier, app.logger)
	if err != nil {
		// ALLOW-PANIC: every dependency is built by newApplication
		panic(err)
	}
	registrationHandler := api.NewRegistrationHandler(c.Tracker, c.Stores.Tasks, app.logger)
	adminHandler := api.NewAdminHandler(c.CareTeams, c.Stores.Tasks, c.Settings, app.logger)
	dashboardHandler := api.NewDashboardHandler(c.Dashboards, c.Settings, app.logger)

	r.Route("/functions/v1", func(r chi.Router) {
		r.Use(authMiddleware.TriggerOrAdmin)
		functionHandler.Routes(r)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		registrationHandler.Routes(r)
		r.Get("/me/dashboard", dashboardHandler.GetDashboard)
		r.Get("/settings/features", dashboardHandler.GetFeatures)

		r.Route("/admin", func(r chi.Router) {
			r.Use(apiMiddleware.RequireRole(domain.RoleAdmin))
			adminHandler.Routes(r)
		})
	})

	r.Method(http.MethodGet, "/health", api.NewHealthHandler(app.db))
	r.Method(http.MethodGet, "/metrics", c.Metrics.Handler())

	return r
}
