package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-intake/internal/api/http/handlers"
	"github.com/spec-kit/ticket-intake/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/signup", cfg.Users.Signup)
	authGroup.Post("/login", cfg.Users.Login)

	users := app.Group("/users", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	users.Get("", cfg.Users.ListUsers)
	users.Patch("", cfg.Users.UpdateUser)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/mine", cfg.Tickets.ListOwnTickets)
	tickets.Get("/assigned", auth.RequireStaff(), cfg.Tickets.ListAssignedTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id/status", auth.RequireStaff(), cfg.Tickets.UpdateStatus)
	tickets.Get("/:id/runs", auth.RequireAdmin(), cfg.Tickets.ListRuns)
}
