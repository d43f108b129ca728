package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/bmc-canvas-api/internal/dto"
	"github.com/noah-isme/bmc-canvas-api/internal/models"
	"github.com/noah-isme/bmc-canvas-api/internal/observability"
	"github.com/noah-isme/bmc-canvas-api/internal/repository"
	"github.com/noah-isme/bmc-canvas-api/pkg/ai"
)

// AnalysisService scores a student canvas and records it on the session leaderboard.
type AnalysisService interface {
	Analyze(ctx context.Context, req dto.AnalyzeRequest) (dto.AnalyzeResponse, error)
}

type analysisService struct {
	scoring     ScoringService
	sessions    SessionService
	submissions repository.SubmissionRepository
	cache       *LeaderboardCache
	hub         LeaderboardHub
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewAnalysisService constructs the analysis service.
func NewAnalysisService(scoring ScoringService, sessions SessionService, submissions repository.SubmissionRepository, cache *LeaderboardCache, hub LeaderboardHub, validate *validator.Validate, logger zerolog.Logger) AnalysisService {
	return &analysisService{
		scoring:     scoring,
		sessions:    sessions,
		submissions: submissions,
		cache:       cache,
		hub:         hub,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "analysis_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/bmc-canvas-api/internal/service/analysis"),
		now:         time.Now,
	}
}

func (s *analysisService) Analyze(ctx context.Context, req dto.AnalyzeRequest) (dto.AnalyzeResponse, error) {
	s.sanitize(&req)
	if err := s.validator.Struct(req); err != nil {
		return dto.AnalyzeResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "analysis.analyze", trace.WithAttributes(
		attribute.String("analysis.requested_session", req.SessionID),
	))
	defer span.End()

	canvas := req.Canvas()
	result := s.scoring.Score(ctx, canvas)
	span.SetAttributes(attribute.String("analysis.provider", result.Provider))

	response := dto.AnalyzeResponse{ScoringResult: result}

	sessionID, err := s.sessions.Resolve(ctx, req.SessionID)
	if err != nil {
		span.RecordError(err)
		observability.StoreFailures().WithLabelValues("resolve_session").Inc()
		s.logger.Error().Err(err).Msg("failed to resolve session, result not saved")
		return response, nil
	}
	response.SessionID = sessionID

	now := s.now()
	submission := models.Submission{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		StudentName:  canvas.StudentName,
		BusinessIdea: canvas.BusinessIdea,
		Blocks:       datatypes.NewJSONType(canvas.Blocks),
		Analysis:     datatypes.NewJSONType(result),
		OverallScore: result.OverallScore,
		SubmittedAt:  now.UnixMilli(),
		CreatedAt:    now.UTC(),
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		span.RecordError(err)
		observability.StoreFailures().WithLabelValues("create").Inc()
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to save submission")
		return response, nil
	}

	response.SubmissionID = submission.ID
	response.SubmittedAt = submission.SubmittedAt

	s.cache.Invalidate(ctx, sessionID)
	s.hub.Publish(ctx, LeaderboardEvent{
		Type:         EventSubmissionCreated,
		SessionID:    sessionID,
		SubmissionID: submission.ID,
	})

	s.logger.Info().
		Str("session_id", sessionID).
		Str("submission_id", submission.ID).
		Str("provider", result.Provider).
		Float64("overall_score", result.OverallScore).
		Msg("canvas analyzed")

	return response, nil
}

func (s *analysisService) sanitize(req *dto.AnalyzeRequest) {
	req.StudentName = cleanText(s.sanitizer, req.StudentName)
	req.BusinessIdea = cleanText(s.sanitizer, req.BusinessIdea)

	blocks := make(map[string]string, len(req.Blocks))
	for key, value := range req.Blocks {
		if !ai.IsBlockKey(key) {
			continue
		}
		blocks[key] = cleanText(s.sanitizer, value)
	}
	if req.Blocks != nil {
		req.Blocks = blocks
	}

	req.Normalize()
}
