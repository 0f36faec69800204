package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/api/http/handlers"
	"github.com/spec-kit/incident-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Incidents      *handlers.IncidentsHandler
	Dashboard      *handlers.DashboardHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/password/change", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.Auth.ChangePassword)

	incidents := app.Group("/incidents", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	incidents.Post("/", cfg.Incidents.Create)
	incidents.Get("/", cfg.Incidents.List)
	incidents.Get("/:id", cfg.Incidents.Get)
	incidents.Post("/:id/assign", cfg.Incidents.Assign)
	incidents.Patch("/:id/status", cfg.Incidents.SetStatus)
	incidents.Post("/:id/close", cfg.Incidents.Close)
	incidents.Post("/:id/comments", cfg.Incidents.AddComment)

	dashboard := app.Group("/dashboard", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	dashboard.Get("/stats", cfg.Dashboard.Stats)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	admin.Get("/support-users", cfg.Dashboard.SupportUsers)
	admin.Get("/metrics", cfg.Dashboard.Metrics)
}
