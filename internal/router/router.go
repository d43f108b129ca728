package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/bmc-canvas-api/internal/config"
	"github.com/noah-isme/bmc-canvas-api/internal/handler"
	"github.com/noah-isme/bmc-canvas-api/internal/middleware"
	"github.com/noah-isme/bmc-canvas-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AnalyzeHandler     *handler.AnalyzeHandler
	LeaderboardHandler *handler.LeaderboardHandler
	SessionHandler     *handler.SessionHandler
	Health             fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})

	health := deps.Health
	if health == nil {
		health = handler.HealthCheck(cfg, "", "", nil)
	}
	api.Get("/health", health)

	if deps.AnalyzeHandler != nil {
		deps.AnalyzeHandler.Register(
			api.Group("/analyze"),
			middleware.RateLimit("analyze", cfg.AnalyzeRateMax, cfg.AnalyzeRateWindow),
		)
	}

	if deps.LeaderboardHandler != nil {
		deps.LeaderboardHandler.Register(api.Group("/leaderboard"))
		deps.LeaderboardHandler.RegisterReset(api.Group("/reset"))
	}

	if deps.SessionHandler != nil {
		deps.SessionHandler.Register(api.Group("/sessions"))
	}
}
