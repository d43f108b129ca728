package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bmc-canvas-api/internal/dto"
	"github.com/noah-isme/bmc-canvas-api/internal/middleware"
	"github.com/noah-isme/bmc-canvas-api/internal/service"
	"github.com/noah-isme/bmc-canvas-api/internal/utils"
)

const (
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	streamPingPeriod = 30 * time.Second
	streamWriteWait  = 10 * time.Second
)

// LeaderboardHandler exposes the ranked leaderboard, its curation and a live stream.
type LeaderboardHandler struct {
	service  service.LeaderboardService
	sessions service.SessionService
	hub      service.LeaderboardHub
	logger   zerolog.Logger
}

// NewLeaderboardHandler constructs a leaderboard handler.
func NewLeaderboardHandler(service service.LeaderboardService, sessions service.SessionService, hub service.LeaderboardHub, logger zerolog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		service:  service,
		sessions: sessions,
		hub:      hub,
		logger:   logger.With().Str("component", "leaderboard_handler").Logger(),
	}
}

// Register wires the leaderboard routes.
func (h *LeaderboardHandler) Register(router fiber.Router) {
	router.Use("/stream", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		sessionID, err := h.streamSession(c)
		if err != nil {
			return handleError(c, h.logger, err, "failed to resolve stream session")
		}
		c.Locals("stream_session", sessionID)
		return c.Next()
	})

	router.Get("/stream", websocket.New(h.stream))
	router.Get("/export", h.export)
	router.Get("", h.list)
	router.Delete("", h.delete)
}

// RegisterReset wires POST /reset, which lives outside the leaderboard group.
func (h *LeaderboardHandler) RegisterReset(router fiber.Router) {
	router.Post("", h.reset)
}

func (h *LeaderboardHandler) list(c *fiber.Ctx) error {
	board, err := h.service.List(c.UserContext(), c.Query("sessionId"))
	if err != nil {
		return handleError(c, h.logger, err, "failed to load leaderboard")
	}
	return utils.SendOK(c, board)
}

func (h *LeaderboardHandler) delete(c *fiber.Ctx) error {
	var payload dto.LeaderboardDeleteRequest
	if err := parseOptionalBody(c, &payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if payload.SessionID == "" {
		payload.SessionID = c.Query("sessionId")
	}

	removed, err := h.service.Delete(c.UserContext(), payload)
	if err != nil {
		return handleError(c, h.logger, err, "failed to delete leaderboard entry")
	}
	return utils.SendOK(c, removed)
}

func (h *LeaderboardHandler) reset(c *fiber.Ctx) error {
	var payload dto.ResetRequest
	if err := parseOptionalBody(c, &payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	removed, err := h.service.Reset(c.UserContext(), payload)
	if err != nil {
		return handleError(c, h.logger, err, "failed to reset leaderboard")
	}
	return utils.SendOK(c, removed)
}

func (h *LeaderboardHandler) export(c *fiber.Ctx) error {
	buf, filename, err := h.service.Export(c.UserContext(), c.Query("sessionId"))
	if err != nil {
		return handleError(c, h.logger, err, "failed to export leaderboard")
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Status(fiber.StatusOK).Send(buf.Bytes())
}

// streamSession picks the watched session the way list does: an explicit id as given,
// otherwise the active one.
func (h *LeaderboardHandler) streamSession(c *fiber.Ctx) (string, error) {
	if sessionID := strings.TrimSpace(c.Query("sessionId")); sessionID != "" {
		return sessionID, nil
	}
	return h.sessions.Active(c.UserContext())
}

func (h *LeaderboardHandler) stream(conn *websocket.Conn) {
	sessionID, _ := conn.Locals("stream_session").(string)
	correlation, _ := conn.Locals("correlation_id").(string)
	logger := h.logger.With().Str("session_id", sessionID).Str("correlation_id", correlation).Logger()
	ctx := middleware.ContextWithCorrelation(context.Background(), correlation)

	events, cancel := h.hub.Subscribe(sessionID)
	defer cancel()

	// reader loop: detects the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func() bool {
		board, err := h.service.List(ctx, sessionID)
		if err != nil {
			logger.Error().Err(err).Msg("failed to load leaderboard for stream")
			return false
		}
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(board); err != nil {
			logger.Debug().Err(err).Msg("leaderboard stream write failed")
			return false
		}
		return true
	}

	logger.Info().Msg("leaderboard stream connected")
	defer func() { logger.Info().Msg("leaderboard stream disconnected") }()

	if !send() {
		return
	}

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case _, ok := <-events:
			if !ok || !send() {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}
