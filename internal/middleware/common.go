package middleware

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

// Config customises the middleware registration pipeline.
type Config struct {
	Logger *zerolog.Logger
	// AllowOrigins is the CORS origin list for the trainer and student pages. Defaults to "*".
	AllowOrigins string
}

// Register attaches the middlewares shared by every route.
func Register(app *fiber.App, cfg Config) {
	requestLogger := zerolog.New(io.Discard)
	if cfg.Logger != nil {
		requestLogger = *cfg.Logger
	}

	origins := cfg.AllowOrigins
	if origins == "" {
		origins = "*"
	}

	app.Use(recover.New())
	app.Use(CorrelationID())
	app.Use(Observability(requestLogger))
	app.Use(logger.New(logger.Config{
		Next:   skipAccessLog,
		Format: "${time} ${status} ${latency} ${method} ${path} ${locals:correlation_id}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, " + CorrelationHeader,
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		// the export download name and the id used to report problems
		ExposeHeaders: CorrelationHeader + ", Content-Disposition",
	}))
}

// skipAccessLog keeps health checks and metric scrapes out of the access log.
func skipAccessLog(c *fiber.Ctx) bool {
	switch c.Path() {
	case "/api/health", "/metrics":
		return true
	}
	return false
}
