package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketbot/internal/api/http/handlers"
	"github.com/spec-kit/ticketbot/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	CloseRequests  *handlers.CloseRequestsHandler
	Tenants        *handlers.TenantsHandler
	AuthMiddleware *auth.GatewayMiddleware
	Policy         *auth.Policy
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	v1 := app.Group("/v1", cfg.AuthMiddleware.Handle, auth.RequireActor())

	tickets := v1.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/stats", cfg.Tickets.GetStats)
	tickets.Get("/:channel", cfg.Tickets.GetTicket)
	tickets.Delete("/:channel", cfg.Tickets.DeleteTicket)
	tickets.Get("/:channel/history", cfg.Tickets.GetHistory)
	tickets.Post("/:channel/close", cfg.Tickets.CloseTicket)
	tickets.Post("/:channel/reopen", cfg.Tickets.ReopenTicket)
	tickets.Post("/:channel/transcript", cfg.Tickets.GenerateTranscript)
	tickets.Post("/:channel/assign", cfg.Tickets.AssignTicket)

	tickets.Post("/:channel/close-request", cfg.CloseRequests.RequestClose)
	tickets.Get("/:channel/close-request", cfg.CloseRequests.GetCloseRequest)
	tickets.Post("/:channel/close-request/confirm", cfg.CloseRequests.Confirm)
	tickets.Post("/:channel/close-request/deny", cfg.CloseRequests.Deny)
	tickets.Post("/:channel/close-request/message", cfg.CloseRequests.AttachMessage)
	tickets.Post("/:channel/autoclose-exclusion", cfg.CloseRequests.Exclude)

	tenants := v1.Group("/tenants")
	tenants.Get("/config", cfg.Tenants.GetConfig)
	tenants.Put("/config", auth.RequireAdmin(cfg.Policy), cfg.Tenants.PutConfig)
}
