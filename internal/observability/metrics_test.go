package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoringResultsCounter(t *testing.T) {
	counter := ScoringResults().WithLabelValues("mock", "decode_error")
	before := testutil.ToFloat64(counter)

	ScoringResults().WithLabelValues("mock", "decode_error").Inc()

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	StoreFailures().WithLabelValues("create").Inc()
	StreamClientsActive().Set(0)

	app := fiber.New()
	app.Get("/metrics", MetricsHandler())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `bmc_store_failures_total{operation="create"}`)
	assert.Contains(t, string(body), "bmc_leaderboard_stream_clients")
}
