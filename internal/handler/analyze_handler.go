package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bmc-canvas-api/internal/dto"
	"github.com/noah-isme/bmc-canvas-api/internal/service"
	"github.com/noah-isme/bmc-canvas-api/internal/utils"
)

// AnalyzeHandler scores submitted canvases.
type AnalyzeHandler struct {
	service service.AnalysisService
	logger  zerolog.Logger
}

// NewAnalyzeHandler constructs an analyze handler.
func NewAnalyzeHandler(service service.AnalysisService, logger zerolog.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		service: service,
		logger:  logger.With().Str("component", "analyze_handler").Logger(),
	}
}

// Register wires the analyze route. Extra handlers (rate limiting) run before it.
func (h *AnalyzeHandler) Register(router fiber.Router, guards ...fiber.Handler) {
	handlers := make([]fiber.Handler, 0, len(guards)+1)
	handlers = append(handlers, guards...)
	handlers = append(handlers, h.analyze)
	router.Post("", handlers...)
}

func (h *AnalyzeHandler) analyze(c *fiber.Ctx) error {
	var payload dto.AnalyzeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Analyze(c.UserContext(), payload)
	if err != nil {
		return handleError(c, h.logger, err, "failed to analyze canvas")
	}

	if response.ErrorNote != "" {
		requestLogger(h.logger, c).Warn().Str("error_note", response.ErrorNote).Msg("canvas scored by fallback")
	}

	return utils.SendOK(c, response)
}
