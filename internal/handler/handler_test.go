package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/bmc-canvas-api/internal/config"
	"github.com/noah-isme/bmc-canvas-api/internal/database"
	"github.com/noah-isme/bmc-canvas-api/internal/handler"
	"github.com/noah-isme/bmc-canvas-api/internal/middleware"
	"github.com/noah-isme/bmc-canvas-api/internal/repository"
	"github.com/noah-isme/bmc-canvas-api/internal/router"
	"github.com/noah-isme/bmc-canvas-api/internal/service"
	"github.com/noah-isme/bmc-canvas-api/internal/utils"
	"github.com/noah-isme/bmc-canvas-api/pkg/ai"
)

type testApp struct {
	app   *fiber.App
	store repository.Store
}

// newTestApp wires the real services on an in-memory sqlite store with mock scoring.
func newTestApp(t *testing.T) testApp {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	store := repository.NewGormStore(db, config.DriverSQLite)

	logger := zerolog.New(io.Discard)
	validate := utils.NewValidator()
	hub := service.NewLeaderboardHub(nil, nil, "", logger)

	scoring := service.NewScoringService(nil, ai.NewMockEvaluatorWithSource(rand.NewPCG(7, 8)), ai.DefaultPromptOptions(), logger)
	sessions := service.NewSessionService(store.Sessions, store.Submissions, nil, hub, "Sesi Utama", logger)
	leaderboard := service.NewLeaderboardService(store.Submissions, sessions, nil, hub, logger)
	analysis := service.NewAnalysisService(scoring, sessions, store.Submissions, nil, hub, validate, logger)

	cfg := config.Config{
		AppName:           "bmc-canvas-api",
		AppEnv:            "test",
		AnalyzeRateMax:    100,
		AnalyzeRateWindow: time.Minute,
	}

	app := fiber.New()
	app.Use(middleware.CorrelationID())
	router.Register(app, cfg, router.Dependencies{
		AnalyzeHandler:     handler.NewAnalyzeHandler(analysis, logger),
		LeaderboardHandler: handler.NewLeaderboardHandler(leaderboard, sessions, hub, logger),
		SessionHandler:     handler.NewSessionHandler(sessions, validate, logger),
		Health:             handler.HealthCheck(cfg, scoring.Mode(), store.Driver, store.Ping),
	})

	return testApp{app: app, store: store}
}

func fullBlocks() map[string]string {
	blocks := make(map[string]string, len(ai.BlockKeys))
	for _, key := range ai.BlockKeys {
		blocks[key] = "Isi untuk " + key
	}
	return blocks
}

func performJSON(t *testing.T, app *fiber.App, method, target string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func startFiberServer(t *testing.T, app *fiber.App) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	shutdown := func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}

	return "http://" + listener.Addr().String(), shutdown
}
