package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/protocol-service/internal/api/http/handlers"
	"github.com/spec-kit/protocol-service/internal/auth"
	"github.com/spec-kit/protocol-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Protocols      *handlers.ProtocolsHandler
	Sync           *handlers.SyncHandler
	Export         *handlers.ExportHandler
	Evidence       *handlers.EvidenceHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	authed := app.Group("", cfg.AuthMiddleware.Handle)

	authed.Post("/accounts", auth.RequireRole(domain.RoleAdmin), cfg.Auth.Register)

	protocols := authed.Group("/protocols")
	protocols.Post("", cfg.Protocols.Create)
	protocols.Get("", cfg.Protocols.List)
	protocols.Get("/:id", cfg.Protocols.Get)
	protocols.Post("/:id/validation", auth.RequireRole(domain.RoleValidator, domain.RoleAdmin), cfg.Protocols.SetValidation)
	protocols.Post("/:id/launch", auth.RequireRole(domain.RoleDispatcher, domain.RoleAdmin), cfg.Protocols.SetLaunch)
	protocols.Post("/:id/deliveries", auth.RequireRole(domain.RoleDriver, domain.RoleAdmin), cfg.Protocols.Deliver)
	protocols.Post("/:id/reopen", auth.RequireBackOffice(), cfg.Protocols.Reopen)
	protocols.Post("/:id/hide", auth.RequireRole(domain.RoleAdmin), cfg.Protocols.Hide)
	protocols.Post("/:id/force-close", auth.RequireRole(domain.RoleAdmin), cfg.Protocols.ForceClose)

	authed.Post("/sync/protocols", auth.RequireRole(domain.RoleDriver, domain.RoleAdmin), cfg.Sync.Sync)

	authed.Get("/exports/protocols.csv", auth.RequireBackOffice(), cfg.Export.CSV)
	authed.Get("/exports/protocols.xlsx", auth.RequireBackOffice(), cfg.Export.XLSX)

	authed.Post("/evidence", cfg.Evidence.Upload)
}
