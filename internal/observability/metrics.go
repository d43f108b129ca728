package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	scoringResultsTotal   *prometheus.CounterVec
	storeFailuresTotal    *prometheus.CounterVec
	leaderboardCacheTotal *prometheus.CounterVec
	streamClientsActive   prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors shared by middleware and services.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bmc_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bmc_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0, 45.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bmc_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		scoringResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bmc_scoring_results_total",
			Help: "Scoring results produced, by provider and outcome.",
		}, []string{"provider", "outcome"})

		storeFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bmc_store_failures_total",
			Help: "Persistence operations that returned an error.",
		}, []string{"operation"})

		leaderboardCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bmc_leaderboard_cache_total",
			Help: "Leaderboard cache lookups by result.",
		}, []string{"result"})

		streamClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bmc_leaderboard_stream_clients",
			Help: "Websocket clients currently following a leaderboard.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			scoringResultsTotal,
			storeFailuresTotal,
			leaderboardCacheTotal,
			streamClientsActive,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// ScoringResults counts results by provider tag and outcome (ok, unconfigured, call_error, decode_error).
func ScoringResults() *prometheus.CounterVec {
	RegisterMetrics()
	return scoringResultsTotal
}

func StoreFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return storeFailuresTotal
}

func LeaderboardCache() *prometheus.CounterVec {
	RegisterMetrics()
	return leaderboardCacheTotal
}

func StreamClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return streamClientsActive
}
