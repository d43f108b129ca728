package handler_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"

	"github.com/noah-isme/bmc-canvas-api/internal/dto"
	"github.com/noah-isme/bmc-canvas-api/internal/models"
	"github.com/noah-isme/bmc-canvas-api/internal/utils"
	"github.com/noah-isme/bmc-canvas-api/pkg/ai"
)

func seed(t *testing.T, ta testApp, id, sessionID string, score float64, at int64) {
	t.Helper()
	require.NoError(t, ta.store.Submissions.Create(context.Background(), &models.Submission{
		ID:           id,
		SessionID:    sessionID,
		StudentName:  "Pelajar " + id,
		BusinessIdea: "Idea " + id,
		Blocks:       datatypes.NewJSONType(ai.Blocks{}),
		Analysis:     datatypes.NewJSONType(ai.ScoringResult{OverallScore: score, Provider: ai.ProviderMock}),
		OverallScore: score,
		SubmittedAt:  at,
		CreatedAt:    time.UnixMilli(at),
	}))
}

func TestLeaderboardOrdering(t *testing.T) {
	ta := newTestApp(t)
	seed(t, ta, "a", models.DefaultSessionID, 7.5, 100)
	seed(t, ta, "b", models.DefaultSessionID, 9.0, 50)
	seed(t, ta, "c", models.DefaultSessionID, 9.0, 60)

	resp := performJSON(t, ta.app, http.MethodGet, "/api/leaderboard?sessionId=default", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var board dto.LeaderboardResponse
	decodeResponse(t, resp, &board)
	require.Len(t, board.Leaderboard, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{board.Leaderboard[0].ID, board.Leaderboard[1].ID, board.Leaderboard[2].ID})
}

func TestLeaderboardDeleteFlow(t *testing.T) {
	ta := newTestApp(t)
	seed(t, ta, "a", models.DefaultSessionID, 7.5, 100)
	seed(t, ta, "b", models.DefaultSessionID, 8.0, 200)

	resp := performJSON(t, ta.app, http.MethodDelete, "/api/leaderboard", map[string]interface{}{"at": 100})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var removed dto.RemovedResponse
	decodeResponse(t, resp, &removed)
	assert.Equal(t, dto.RemovedResponse{OK: true, Removed: 1}, removed)

	resp = performJSON(t, ta.app, http.MethodDelete, "/api/leaderboard", map[string]interface{}{"at": 100})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeResponse(t, resp, &removed)
	assert.Equal(t, int64(0), removed.Removed)

	resp = performJSON(t, ta.app, http.MethodDelete, "/api/leaderboard", map[string]interface{}{"id": "b"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeResponse(t, resp, &removed)
	assert.Equal(t, int64(1), removed.Removed)

	resp = performJSON(t, ta.app, http.MethodDelete, "/api/leaderboard", map[string]interface{}{})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var failure utils.ErrorResponse
	decodeResponse(t, resp, &failure)
	assert.False(t, failure.OK)
	assert.NotEmpty(t, failure.Error)

	resp = performJSON(t, ta.app, http.MethodDelete, "/api/leaderboard", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestResetEmptiesOnlyOneSession(t *testing.T) {
	ta := newTestApp(t)

	resp := performJSON(t, ta.app, http.MethodPost, "/api/sessions", map[string]string{"name": "Kelas Lain"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var created dto.SessionCreatedResponse
	decodeResponse(t, resp, &created)

	seed(t, ta, "a", models.DefaultSessionID, 7.5, 100)
	seed(t, ta, "b", created.Session.ID, 6.0, 200)

	resp = performJSON(t, ta.app, http.MethodPost, "/api/reset", map[string]string{"sessionId": models.DefaultSessionID})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var removed dto.RemovedResponse
	decodeResponse(t, resp, &removed)
	assert.Equal(t, int64(1), removed.Removed)

	resp = performJSON(t, ta.app, http.MethodGet, "/api/leaderboard?sessionId="+created.Session.ID, nil)
	var board dto.LeaderboardResponse
	decodeResponse(t, resp, &board)
	assert.Len(t, board.Leaderboard, 1)

	resp = performJSON(t, ta.app, http.MethodPost, "/api/reset", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestLeaderboardExport(t *testing.T) {
	ta := newTestApp(t)
	seed(t, ta, "a", models.DefaultSessionID, 7.5, 100)

	resp := performJSON(t, ta.app, http.MethodGet, "/api/leaderboard/export", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="leaderboard_default.xlsx"`, resp.Header.Get(fiber.HeaderContentDisposition))
	assert.True(t, strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), "application/vnd.openxmlformats"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	book, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer book.Close()

	value, err := book.GetCellValue("Leaderboard", "B2")
	require.NoError(t, err)
	assert.Equal(t, "Pelajar a", value)
}

func TestLeaderboardStreamRequiresUpgrade(t *testing.T) {
	ta := newTestApp(t)
	resp := performJSON(t, ta.app, http.MethodGet, "/api/leaderboard/stream", nil)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestLeaderboardStreamPushesSnapshots(t *testing.T) {
	ta := newTestApp(t)
	seed(t, ta, "a", models.DefaultSessionID, 7.5, 100)

	baseURL, shutdown := startFiberServer(t, ta.app)
	defer shutdown()

	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	conn, resp, err := dialer.Dial("ws"+strings.TrimPrefix(baseURL, "http")+"/api/leaderboard/stream", nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	var snapshot dto.LeaderboardResponse
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, models.DefaultSessionID, snapshot.SessionID)
	require.Len(t, snapshot.Leaderboard, 1)

	client := &http.Client{Timeout: 5 * time.Second}
	deleteReq, err := http.NewRequest(http.MethodDelete, baseURL+"/api/leaderboard", strings.NewReader(`{"id":"a"}`))
	require.NoError(t, err)
	deleteReq.Header.Set("Content-Type", "application/json")
	deleteResp, err := client.Do(deleteReq)
	require.NoError(t, err)
	_ = deleteResp.Body.Close()
	require.Equal(t, fiber.StatusOK, deleteResp.StatusCode)

	var updated dto.LeaderboardResponse
	require.NoError(t, conn.ReadJSON(&updated))
	assert.Empty(t, updated.Leaderboard)
}
