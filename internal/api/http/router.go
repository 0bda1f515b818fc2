package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/curator-desk/internal/api/http/handlers"
	"github.com/spec-kit/curator-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Webhook        *handlers.WebhookHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
	WebhookGuard   *auth.WebhookGuard
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/telegram/webhook", cfg.WebhookGuard.Handle, cfg.Webhook.Handle)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle)
	admin.Get("/tickets/:id", auth.RequireRole(auth.RoleAdmin, auth.RoleAuditor), cfg.Admin.GetTicket)
	admin.Get("/curators", auth.RequireRole(auth.RoleAdmin, auth.RoleAuditor), cfg.Admin.ListCurators)
	admin.Post("/curators", auth.RequireRole(auth.RoleAdmin), cfg.Admin.RegisterCurator)
	admin.Get("/metrics", auth.RequireRole(auth.RoleAdmin, auth.RoleAuditor), cfg.Admin.Metrics)
}
