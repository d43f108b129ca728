package handler_test

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bmc-canvas-api/internal/dto"
	"github.com/noah-isme/bmc-canvas-api/internal/handler"
	"github.com/noah-isme/bmc-canvas-api/internal/models"
	"github.com/noah-isme/bmc-canvas-api/internal/utils"
)

func TestSessionLifecycle(t *testing.T) {
	ta := newTestApp(t)

	resp := performJSON(t, ta.app, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var list dto.SessionListResponse
	decodeResponse(t, resp, &list)
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, models.DefaultSessionID, list.ActiveSessionID)

	resp = performJSON(t, ta.app, http.MethodPost, "/api/sessions", map[string]string{"name": "Kelas 5A"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var created dto.SessionCreatedResponse
	decodeResponse(t, resp, &created)
	assert.True(t, created.OK)
	assert.Equal(t, "Kelas 5A", created.Session.Name)

	resp = performJSON(t, ta.app, http.MethodPost, "/api/sessions/active", map[string]string{"sessionId": created.Session.ID})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var activated dto.ActiveSessionResponse
	decodeResponse(t, resp, &activated)
	assert.Equal(t, dto.ActiveSessionResponse{OK: true, ActiveSessionID: created.Session.ID}, activated)

	resp = performJSON(t, ta.app, http.MethodGet, "/api/sessions/active", nil)
	var active dto.ActiveSessionResponse
	decodeResponse(t, resp, &active)
	assert.Equal(t, created.Session.ID, active.ActiveSessionID)

	resp = performJSON(t, ta.app, http.MethodDelete, "/api/sessions", map[string]string{"id": created.Session.ID})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = performJSON(t, ta.app, http.MethodGet, "/api/sessions/active", nil)
	decodeResponse(t, resp, &active)
	assert.Equal(t, models.DefaultSessionID, active.ActiveSessionID)
}

func TestSessionErrors(t *testing.T) {
	ta := newTestApp(t)

	cases := []struct {
		name   string
		method string
		target string
		body   interface{}
		status int
	}{
		{name: "delete without id", method: http.MethodDelete, target: "/api/sessions", body: map[string]string{}, status: fiber.StatusBadRequest},
		{name: "delete unknown", method: http.MethodDelete, target: "/api/sessions", body: map[string]string{"id": "missing"}, status: fiber.StatusNotFound},
		{name: "activate without id", method: http.MethodPost, target: "/api/sessions/active", body: map[string]string{}, status: fiber.StatusBadRequest},
		{name: "activate unknown", method: http.MethodPost, target: "/api/sessions/active", body: map[string]string{"sessionId": "missing"}, status: fiber.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := performJSON(t, ta.app, tc.method, tc.target, tc.body)
			require.Equal(t, tc.status, resp.StatusCode)

			var body utils.ErrorResponse
			decodeResponse(t, resp, &body)
			assert.False(t, body.OK)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestHealthReportsScoringModeAndStore(t *testing.T) {
	ta := newTestApp(t)

	resp := performJSON(t, ta.app, http.MethodGet, "/api/health", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var health handler.HealthResponse
	decodeResponse(t, resp, &health)
	assert.True(t, health.OK)
	assert.Equal(t, "mock", health.ScoringMode)
	assert.Equal(t, "sqlite", health.Storage.Driver)
	assert.True(t, health.Storage.Reachable)
}
