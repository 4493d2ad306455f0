package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/helpdesk-kit/helpdesk/internal/api/http/handlers"
	"github.com/helpdesk-kit/helpdesk/internal/auth"
	"github.com/helpdesk-kit/helpdesk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Batch          *handlers.BatchHandler
	Metrics        *observability.Metrics
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))

	app.Post("/auth/register", cfg.Users.Register)
	app.Post("/auth/login", cfg.Users.Login)

	// Batch processing is triggered by cron, not by end users.
	app.Post("/batch", cfg.Batch.Process)

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/users/operators", cfg.Users.ListOperators)

	tickets := protected.Group("/tickets")
	tickets.Post("", cfg.Tickets.Create)
	tickets.Get("", cfg.Tickets.List)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Patch("/:id/state", cfg.Tickets.ChangeState)
	tickets.Post("/:id/assign", cfg.Tickets.Assign)
	tickets.Post("/:id/close", cfg.Tickets.Close)
	tickets.Get("/:id/interactions", cfg.Tickets.ListInteractions)
	tickets.Post("/:id/interactions", cfg.Tickets.AddInteraction)
}
