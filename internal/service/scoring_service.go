package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/bmc-canvas-api/internal/observability"
	"github.com/noah-isme/bmc-canvas-api/pkg/ai"
)

const maxErrorNoteLength = 240

// ScoringService turns a canvas into a normalized scoring result. It never fails: any
// problem with the live evaluator falls back to the mock with an error note.
type ScoringService interface {
	Score(ctx context.Context, canvas ai.Canvas) ai.ScoringResult
	// Mode reports the configured scoring path, ai.ProviderLLM or ai.ProviderMock.
	Mode() string
}

type scoringService struct {
	live   ai.Evaluator
	mock   ai.Evaluator
	prompt ai.PromptOptions
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewScoringService constructs the orchestrator. A nil live evaluator means no credential
// is configured and every request is scored by mock.
func NewScoringService(live ai.Evaluator, mock ai.Evaluator, prompt ai.PromptOptions, logger zerolog.Logger) ScoringService {
	if mock == nil {
		mock = ai.NewMockEvaluator()
	}
	return &scoringService{
		live:   live,
		mock:   mock,
		prompt: prompt,
		logger: logger.With().Str("component", "scoring_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/bmc-canvas-api/internal/service/scoring"),
	}
}

func (s *scoringService) Mode() string {
	if s.live == nil {
		return ai.ProviderMock
	}
	return ai.ProviderLLM
}

func (s *scoringService) Score(ctx context.Context, canvas ai.Canvas) ai.ScoringResult {
	ctx, span := s.tracer.Start(ctx, "scoring.score", trace.WithAttributes(
		attribute.String("scoring.mode", s.Mode()),
	))
	defer span.End()

	if s.live == nil {
		return s.fallback(ctx, "unconfigured", "")
	}

	raw, err := s.live.Evaluate(ctx, ai.BuildPrompt(canvas, s.prompt))
	if err != nil {
		span.RecordError(err)
		outcome := "call_error"
		note := fmt.Sprintf("evaluator call failed: %v", err)
		if errors.Is(err, ai.ErrDecode) {
			outcome = "decode_error"
			note = fmt.Sprintf("evaluator reply could not be read: %v", err)
		}
		s.logger.Warn().Err(err).Str("outcome", outcome).Msg("live evaluation failed, falling back to mock")
		return s.fallback(ctx, outcome, note)
	}

	result := ai.Normalize(raw)
	result.Provider = ai.ProviderLLM
	observability.ScoringResults().WithLabelValues(ai.ProviderLLM, "ok").Inc()
	return result
}

func (s *scoringService) fallback(ctx context.Context, outcome, note string) ai.ScoringResult {
	raw, err := s.mock.Evaluate(ctx, "")
	if err != nil {
		// the bundled mock never fails; a custom one may
		s.logger.Error().Err(err).Msg("mock evaluation failed")
		if note == "" {
			note = fmt.Sprintf("mock evaluation failed: %v", err)
		}
	}

	result := ai.Normalize(raw)
	result.Provider = ai.ProviderMock
	result.ErrorNote = truncate(note, maxErrorNoteLength)
	observability.ScoringResults().WithLabelValues(ai.ProviderMock, outcome).Inc()
	return result
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
