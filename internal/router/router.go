package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/projtrack-api/internal/config"
	"github.com/noah-isme/projtrack-api/internal/handler"
	"github.com/noah-isme/projtrack-api/internal/middleware"
	"github.com/noah-isme/projtrack-api/internal/models"
	"github.com/noah-isme/projtrack-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ProjectHandler      *handler.ProjectHandler
	DocumentHandler     *handler.DocumentHandler
	MilestoneHandler    *handler.MilestoneHandler
	TaskHandler         *handler.TaskHandler
	TeamHandler         *handler.TeamHandler
	NotificationHandler *handler.NotificationHandler
	ProfileHandler      *handler.ProfileHandler
	AdminHandler        *handler.AdminHandler
	JWTMiddleware       fiber.Handler
	RateLimiter         fiber.Handler
	HealthProbes        map[string]handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	// registered before the protected group so it stays public
	api.Get("/health", handler.HealthCheck(cfg.AppName, cfg.AppEnv, deps.HealthProbes))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	protected := app.Group("/api/v1", jwtMiddleware)
	if deps.RateLimiter != nil {
		protected.Use(deps.RateLimiter)
	}

	if deps.ProjectHandler != nil {
		deps.ProjectHandler.Register(protected.Group("/projects"))
	}
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.Register(protected)
	}
	if deps.MilestoneHandler != nil {
		deps.MilestoneHandler.Register(protected)
	}
	if deps.TaskHandler != nil {
		deps.TaskHandler.Register(protected)
	}
	if deps.TeamHandler != nil {
		deps.TeamHandler.Register(protected)
	}
	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(protected.Group("/notifications"))
	}
	if deps.ProfileHandler != nil {
		deps.ProfileHandler.Register(protected)
	}
	if deps.AdminHandler != nil {
		deps.AdminHandler.Register(protected.Group("/admin", middleware.RequireRole(models.RoleAdmin)))
	}
}
