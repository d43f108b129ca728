package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bmc-canvas-api/internal/dto"
	"github.com/noah-isme/bmc-canvas-api/internal/service"
	"github.com/noah-isme/bmc-canvas-api/internal/utils"
)

// SessionHandler manages sessions and the active-session pointer.
type SessionHandler struct {
	service   service.SessionService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(service service.SessionService, validate *validator.Validate, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "session_handler").Logger(),
	}
}

// Register wires session routes.
func (h *SessionHandler) Register(router fiber.Router) {
	router.Get("/active", h.active)
	router.Post("/active", h.setActive)
	router.Get("", h.list)
	router.Post("", h.create)
	router.Delete("", h.delete)
}

func (h *SessionHandler) list(c *fiber.Ctx) error {
	sessions, err := h.service.List(c.UserContext())
	if err != nil {
		return handleError(c, h.logger, err, "failed to list sessions")
	}
	return utils.SendOK(c, sessions)
}

func (h *SessionHandler) create(c *fiber.Ctx) error {
	var payload dto.SessionCreateRequest
	if err := parseOptionalBody(c, &payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return handleError(c, h.logger, err, "invalid session payload")
	}

	session, err := h.service.Create(c.UserContext(), payload.Name)
	if err != nil {
		return handleError(c, h.logger, err, "failed to create session")
	}
	return utils.SendOK(c, dto.SessionCreatedResponse{OK: true, Session: session})
}

func (h *SessionHandler) delete(c *fiber.Ctx) error {
	var payload dto.SessionDeleteRequest
	if err := parseOptionalBody(c, &payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if payload.ID == "" {
		payload.ID = c.Query("id")
	}
	if err := h.validator.Struct(payload); err != nil {
		return handleError(c, h.logger, err, "invalid session payload")
	}

	if err := h.service.Delete(c.UserContext(), payload.ID); err != nil {
		return handleError(c, h.logger, err, "failed to delete session")
	}
	return utils.SendOK(c, fiber.Map{"ok": true})
}

func (h *SessionHandler) active(c *fiber.Ctx) error {
	id, err := h.service.Active(c.UserContext())
	if err != nil {
		return handleError(c, h.logger, err, "failed to read active session")
	}
	return utils.SendOK(c, dto.ActiveSessionResponse{ActiveSessionID: id})
}

func (h *SessionHandler) setActive(c *fiber.Ctx) error {
	var payload dto.SetActiveSessionRequest
	if err := parseOptionalBody(c, &payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return handleError(c, h.logger, err, "invalid session payload")
	}

	if err := h.service.SetActive(c.UserContext(), payload.SessionID); err != nil {
		return handleError(c, h.logger, err, "failed to set active session")
	}
	return utils.SendOK(c, dto.ActiveSessionResponse{OK: true, ActiveSessionID: payload.SessionID})
}
