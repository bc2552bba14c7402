package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/display-support/internal/api/http/handlers"
	"github.com/spec-kit/display-support/internal/auth"
	"github.com/spec-kit/display-support/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Catalog        *handlers.CatalogHandler
	Staff          *handlers.StaffHandler
	StaffTickets   *handlers.StaffTicketsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))

	authGroup := app.Group("/auth")
	authGroup.Post("/staff/login", cfg.Staff.Login)

	api := app.Group("/api")
	api.Get("/catalog", cfg.Catalog.GetCatalog)
	api.Post("/tickets", cfg.Tickets.CreateTicket)
	api.Post("/tickets/track", cfg.Tickets.TrackTicket)
	api.Get("/tickets/track/:number", cfg.Tickets.TrackTicketByNumber)

	staff := api.Group("/staff", cfg.AuthMiddleware.Handle, auth.RequireStaffRole())
	staff.Get("/me", cfg.Staff.Me)
	staff.Get("/tickets", cfg.StaffTickets.ListStaffTickets)
	staff.Get("/tickets/:id", cfg.StaffTickets.GetStaffTicket)
	staff.Patch("/tickets/:id/status", cfg.StaffTickets.UpdateStatus)
}
