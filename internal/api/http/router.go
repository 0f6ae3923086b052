package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/campusdesk/ticket-engine/internal/api/http/handlers"
	"github.com/campusdesk/ticket-engine/internal/auth"
	"github.com/campusdesk/ticket-engine/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Groups         *handlers.GroupsHandler
	Ops            *handlers.OpsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	adminOnly := auth.RequireRole(domain.RoleAdmin, domain.RoleSuperAdmin)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, adminOnly)
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListQueue)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Post("/:id/tat", cfg.Tickets.SetTAT)
	tickets.Post("/:id/comment", cfg.Tickets.AddComment)
	tickets.Post("/:id/escalate", cfg.Tickets.Escalate)
	tickets.Post("/:id/assign", cfg.Tickets.Assign)

	groups := app.Group("/groups", cfg.AuthMiddleware.Handle, adminOnly)
	groups.Post("", cfg.Groups.CreateGroup)
	groups.Get("/:id", cfg.Groups.GetGroup)
	groups.Post("/:id/actions", cfg.Groups.Act)
	groups.Post("/:id/tickets", cfg.Groups.AddTickets)

	ops := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleSuperAdmin))
	ops.Post("/sweeps/reminders", cfg.Ops.RunReminderSweep)
	ops.Get("/outbox/dead-letters", cfg.Ops.ListDeadLetters)
}
