package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/complaint-service/internal/api/http/handlers"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Staff          *handlers.StaffHandler
	AuthMiddleware *auth.AuthMiddleware
	// RateLimit runs after authentication so callers are keyed by identity. Optional.
	RateLimit fiber.Handler
	Metrics   *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	chain := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireAnyRole()}
	if cfg.RateLimit != nil {
		chain = append(chain, cfg.RateLimit)
	}
	complaints := app.Group("/complaints", chain...)

	resident := auth.RequireRole(domain.RoleResident)
	staff := auth.RequireRole(domain.RoleStaff)
	admin := auth.RequireRole(domain.RoleAdmin)
	residentOrAdmin := auth.RequireRole(domain.RoleResident, domain.RoleAdmin)

	h := cfg.Tickets
	complaints.Post("/", resident, h.CreateTicket)
	complaints.Get("/", h.ListTickets)
	complaints.Get("/:id", h.GetTicket)
	complaints.Post("/:id/assign", admin, h.Assign)
	complaints.Post("/:id/work-updates", staff, h.AddWorkUpdate)
	complaints.Put("/:id/status", admin, h.UpdateStatus)
	complaints.Post("/:id/rate", resident, h.Rate)
	complaints.Post("/:id/reopen", resident, h.Reopen)
	complaints.Post("/:id/close", residentOrAdmin, h.Close)
	complaints.Post("/:id/cancel", residentOrAdmin, h.Cancel)
	complaints.Post("/:id/comments", h.AddComment)
	complaints.Post("/:id/admin-media", admin, h.AddAdminMedia)
	complaints.Post("/:id/internal-notes", admin, h.AddInternalNote)
	complaints.Put("/:id/priority", admin, h.UpdatePriority)

	if cfg.Staff != nil {
		app.Group("/staff", chain...).Get("/", admin, cfg.Staff.Roster)
	}
}
