package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/bmc-canvas-api/internal/observability"
)

// Areas group /api routes in request logs.
const (
	AreaScoring     = "scoring"
	AreaLeaderboard = "leaderboard"
	AreaSessions    = "sessions"
	AreaHealth      = "health"
	AreaOther       = "other"
)

const (
	streamRoute          = "/api/leaderboard/stream"
	slowScoringThreshold = 20 * time.Second
)

var tracer = otel.Tracer("github.com/noah-isme/bmc-canvas-api/internal/middleware")

// Observability traces and measures /api requests and writes one log line per request.
// Scoring requests log at info since each one is a student submission; the leaderboard
// stream is counted but kept out of the latency histogram because it lives for the whole
// connection.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		if !strings.HasPrefix(c.Path(), "/api") {
			return c.Next()
		}

		ctx, span := tracer.Start(c.UserContext(), c.Method()+" "+c.Path(), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		c.SetUserContext(ctx)

		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		route := routeTemplate(c)
		method := c.Method()
		status := c.Response().StatusCode()
		statusLabel := strconv.Itoa(status)
		area := RequestArea(route)

		span.SetName(method + " " + route)
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.String("bmc.area", area),
		)
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, statusLabel)
		}

		observability.HTTPRequests().WithLabelValues(method, route, statusLabel).Inc()
		if route != streamRoute {
			observability.HTTPLatency().WithLabelValues(method, route).Observe(duration.Seconds())
		}
		if status >= fiber.StatusBadRequest {
			observability.HTTPErrors().WithLabelValues(method, route, statusLabel).Inc()
		}

		event := requestEvent(logger, area, status, duration)
		if event == nil {
			return err
		}

		if sessionID := c.Query("sessionId"); sessionID != "" {
			event = event.Str("session_id", sessionID)
		}
		event.
			Str("correlation_id", GetCorrelationID(c)).
			Str("area", area).
			Str("route", route).
			Str("method", method).
			Int("status", status).
			Float64("latency_ms", float64(duration)/float64(time.Millisecond)).
			Str("latency_bucket", latencyBucket(duration)).
			Msg(requestMessage(area, status))

		return err
	}
}

// RequestArea maps a route template to the part of the API it belongs to.
func RequestArea(route string) string {
	switch {
	case strings.HasPrefix(route, "/api/analyze"):
		return AreaScoring
	case strings.HasPrefix(route, "/api/leaderboard"), strings.HasPrefix(route, "/api/reset"):
		return AreaLeaderboard
	case strings.HasPrefix(route, "/api/sessions"):
		return AreaSessions
	case strings.HasPrefix(route, "/api/health"):
		return AreaHealth
	default:
		return AreaOther
	}
}

// requestEvent picks the log level; nil means the request is not worth a line.
func requestEvent(logger zerolog.Logger, area string, status int, duration time.Duration) *zerolog.Event {
	switch {
	case status >= fiber.StatusInternalServerError:
		return logger.Error()
	case status >= fiber.StatusBadRequest:
		return logger.Warn()
	case area == AreaScoring && duration > slowScoringThreshold:
		return logger.Warn()
	case area == AreaScoring:
		return logger.Info()
	case area == AreaHealth:
		return nil
	default:
		return logger.Debug()
	}
}

func requestMessage(area string, status int) string {
	switch {
	case status >= fiber.StatusInternalServerError:
		return area + " request failed"
	case status >= fiber.StatusBadRequest:
		return area + " request rejected"
	case area == AreaScoring:
		return "canvas scored"
	default:
		return area + " request completed"
	}
}

func routeTemplate(c *fiber.Ctx) string {
	if c.Route() != nil && c.Route().Path != "" {
		return c.Route().Path
	}
	return c.Path()
}

// Buckets follow the evaluator timeout rather than typical CRUD latency.
func latencyBucket(duration time.Duration) string {
	switch {
	case duration <= 50*time.Millisecond:
		return "<=50ms"
	case duration <= 250*time.Millisecond:
		return "<=250ms"
	case duration <= time.Second:
		return "<=1s"
	case duration <= 5*time.Second:
		return "<=5s"
	case duration <= slowScoringThreshold:
		return "<=20s"
	default:
		return ">20s"
	}
}
