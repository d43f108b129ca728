package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/bmc-canvas-api/internal/config"
	"github.com/noah-isme/bmc-canvas-api/internal/utils"
)

const storePingTimeout = 2 * time.Second

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	OK          bool        `json:"ok"`
	Status      string      `json:"status"`
	Timestamp   time.Time   `json:"timestamp"`
	Service     string      `json:"service"`
	Environment string      `json:"environment"`
	ScoringMode string      `json:"scoringMode"`
	Storage     StoreHealth `json:"storage"`
}

// StoreHealth reports the configured storage backend and whether it answered a ping.
type StoreHealth struct {
	Driver    string `json:"driver"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// HealthCheck returns a handler that reports application health information. A failing
// store ping turns the response into a 503.
func HealthCheck(cfg config.Config, scoringMode string, driver string, ping func(context.Context) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			OK:          true,
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			ScoringMode: scoringMode,
			Storage:     StoreHealth{Driver: driver, Reachable: true},
		}

		if ping != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), storePingTimeout)
			defer cancel()

			if err := ping(ctx); err != nil {
				payload.OK = false
				payload.Status = "degraded"
				payload.Storage.Reachable = false
				payload.Storage.Error = err.Error()
				return utils.SendJSON(c, fiber.StatusServiceUnavailable, payload)
			}
		}

		return utils.SendOK(c, payload)
	}
}
