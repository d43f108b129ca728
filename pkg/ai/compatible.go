package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CompatibleEvaluator talks to an OpenAI-compatible endpoint (DashScope, DeepSeek, local
// gateways). JSON mode is not requested since support differs between vendors; the reply repair
// in ParseScoringResult covers prose-wrapped objects.
type CompatibleEvaluator struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewCompatibleEvaluator builds an evaluator for the configured base URL.
func NewCompatibleEvaluator(cfg OpenAIConfig) (*CompatibleEvaluator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base url is required for an openai-compatible provider")
	}
	cfg = cfg.withDefaults()

	client := openai.NewClient(
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	)

	return &CompatibleEvaluator{
		client: client,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/bmc-canvas-api/pkg/ai/compatible"),
		logger: cfg.Logger.With().Str("component", "compatible_evaluator").Logger(),
	}, nil
}

// Evaluate sends the rubric prompt and parses the reply.
func (e *CompatibleEvaluator) Evaluate(parent context.Context, prompt string) (RawResult, error) {
	ctx, span := e.tracer.Start(parent, "compatible.evaluate", trace.WithAttributes(
		attribute.String("model", e.cfg.Model),
		attribute.String("base_url", e.cfg.BaseURL),
	))
	defer span.End()

	start := time.Now()
	params := openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt()),
			openai.UserMessage(prompt),
		}),
		Model:       openai.F(openai.ChatModel(e.cfg.Model)),
		Temperature: openai.F(float64(e.cfg.Temperature)),
		MaxTokens:   openai.F(int64(e.cfg.MaxTokens)),
	}

	completion, err := e.client.Chat.Completions.New(ctx, params)
	aiDuration.WithLabelValues("compatible", e.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return RawResult{}, e.fail(span, "request", fmt.Errorf("compatible evaluate: %w", err))
	}

	if len(completion.Choices) == 0 {
		return RawResult{}, e.fail(span, "empty", fmt.Errorf("no choices returned from %s", e.cfg.BaseURL))
	}

	result, err := ParseScoringResult(completion.Choices[0].Message.Content)
	if err != nil {
		return RawResult{}, e.fail(span, "decode", err)
	}

	e.logger.Debug().
		Int64("prompt_tokens", completion.Usage.PromptTokens).
		Int64("completion_tokens", completion.Usage.CompletionTokens).
		Msg("compatible evaluation completed")

	return result, nil
}

func (e *CompatibleEvaluator) fail(span trace.Span, reason string, err error) error {
	aiFailures.WithLabelValues("compatible", e.cfg.Model, reason).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
