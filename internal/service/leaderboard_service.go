package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/bmc-canvas-api/internal/dto"
	"github.com/noah-isme/bmc-canvas-api/internal/observability"
	"github.com/noah-isme/bmc-canvas-api/internal/repository"
	"github.com/noah-isme/bmc-canvas-api/pkg/ai"
)

var (
	// ErrDeleteKeyRequired indicates neither an id nor a submittedAt was given.
	ErrDeleteKeyRequired = errors.New("id or at is required")
	// ErrExportFailed indicates the workbook could not be generated.
	ErrExportFailed = errors.New("failed to generate leaderboard export")
)

const exportSheet = "Leaderboard"

// LeaderboardService reads and curates a session's ranked submissions.
type LeaderboardService interface {
	// List returns the leaderboard of sessionID, or of the active session when blank.
	List(ctx context.Context, sessionID string) (dto.LeaderboardResponse, error)
	Delete(ctx context.Context, req dto.LeaderboardDeleteRequest) (dto.RemovedResponse, error)
	Reset(ctx context.Context, req dto.ResetRequest) (dto.RemovedResponse, error)
	// Export renders the leaderboard as an xlsx workbook and suggests a file name.
	Export(ctx context.Context, sessionID string) (*bytes.Buffer, string, error)
}

type leaderboardService struct {
	submissions repository.SubmissionRepository
	sessions    SessionService
	cache       *LeaderboardCache
	hub         LeaderboardHub
	logger      zerolog.Logger
}

// NewLeaderboardService constructs the leaderboard service.
func NewLeaderboardService(submissions repository.SubmissionRepository, sessions SessionService, cache *LeaderboardCache, hub LeaderboardHub, logger zerolog.Logger) LeaderboardService {
	return &leaderboardService{
		submissions: submissions,
		sessions:    sessions,
		cache:       cache,
		hub:         hub,
		logger:      logger.With().Str("component", "leaderboard_service").Logger(),
	}
}

func (s *leaderboardService) List(ctx context.Context, sessionID string) (dto.LeaderboardResponse, error) {
	sessionID, err := s.target(ctx, sessionID)
	if err != nil {
		return dto.LeaderboardResponse{}, err
	}

	generation, cacheable := s.cache.generation(ctx, sessionID)
	if cacheable {
		if rows, ok := s.cache.get(ctx, sessionID, generation); ok {
			return dto.LeaderboardResponse{Leaderboard: rows, SessionID: sessionID}, nil
		}
	}

	submissions, err := s.submissions.ListBySession(ctx, sessionID)
	if err != nil {
		observability.StoreFailures().WithLabelValues("list").Inc()
		return dto.LeaderboardResponse{}, err
	}

	rows := dto.NewSubmissionResponses(submissions)
	if rows == nil {
		rows = []dto.SubmissionResponse{}
	}
	if cacheable {
		s.cache.set(ctx, sessionID, generation, rows)
	}

	return dto.LeaderboardResponse{Leaderboard: rows, SessionID: sessionID}, nil
}

func (s *leaderboardService) Delete(ctx context.Context, req dto.LeaderboardDeleteRequest) (dto.RemovedResponse, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" && req.At == nil {
		return dto.RemovedResponse{}, ErrDeleteKeyRequired
	}

	sessionID, err := s.sessions.Resolve(ctx, req.SessionID)
	if err != nil {
		return dto.RemovedResponse{}, err
	}

	var removed int64
	if id != "" {
		removed, err = s.submissions.DeleteByID(ctx, sessionID, id)
	} else {
		removed, err = s.submissions.DeleteBySubmittedAt(ctx, sessionID, *req.At)
	}
	if err != nil {
		observability.StoreFailures().WithLabelValues("delete").Inc()
		return dto.RemovedResponse{}, err
	}

	if removed > 0 {
		s.changed(ctx, LeaderboardEvent{Type: EventSubmissionDeleted, SessionID: sessionID, SubmissionID: id})
	}

	s.logger.Info().Str("session_id", sessionID).Int64("removed", removed).Msg("leaderboard entry deleted")
	return dto.RemovedResponse{OK: true, Removed: removed}, nil
}

func (s *leaderboardService) Reset(ctx context.Context, req dto.ResetRequest) (dto.RemovedResponse, error) {
	sessionID, err := s.sessions.Resolve(ctx, req.SessionID)
	if err != nil {
		return dto.RemovedResponse{}, err
	}

	removed, err := s.submissions.DeleteBySession(ctx, sessionID)
	if err != nil {
		observability.StoreFailures().WithLabelValues("reset").Inc()
		return dto.RemovedResponse{}, err
	}

	s.changed(ctx, LeaderboardEvent{Type: EventLeaderboardReset, SessionID: sessionID})
	s.logger.Info().Str("session_id", sessionID).Int64("removed", removed).Msg("leaderboard reset")
	return dto.RemovedResponse{OK: true, Removed: removed}, nil
}

func (s *leaderboardService) Export(ctx context.Context, sessionID string) (*bytes.Buffer, string, error) {
	board, err := s.List(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrExportFailed, err)
	}

	header := []interface{}{"Rank", "Student", "Business Idea", "Overall"}
	for _, key := range ai.BlockKeys {
		header = append(header, key)
	}
	header = append(header, "Provider", "Submitted At")
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrExportFailed, err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to build export header style")
	} else if err := s.styleHeader(f, len(header), headerStyle); err != nil {
		s.logger.Warn().Err(err).Msg("failed to style export header")
	}

	for i, entry := range board.Leaderboard {
		row := []interface{}{i + 1, entry.StudentName, entry.BusinessIdea, entry.OverallScore}
		for _, key := range ai.BlockKeys {
			row = append(row, entry.Analysis.Scores[key])
		}
		row = append(row,
			entry.Analysis.Provider,
			time.UnixMilli(entry.SubmittedAt).UTC().Format(time.RFC3339),
		)

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrExportFailed, err)
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrExportFailed, err)
		}
	}

	if err := f.SetColWidth(exportSheet, "B", "C", 28); err != nil {
		s.logger.Warn().Err(err).Msg("failed to widen export name columns")
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error().Err(err).Msg("failed to write leaderboard workbook")
		return nil, "", ErrExportFailed
	}

	return buf, fmt.Sprintf("leaderboard_%s.xlsx", board.SessionID), nil
}

func (s *leaderboardService) styleHeader(f *excelize.File, columns, style int) error {
	lastCol, err := excelize.ColumnNumberToName(columns)
	if err != nil {
		return err
	}
	return f.SetCellStyle(exportSheet, "A1", lastCol+"1", style)
}

// target picks the session to read: an explicit id as given (unknown ids read as empty),
// otherwise the active session.
func (s *leaderboardService) target(ctx context.Context, sessionID string) (string, error) {
	if trimmed := strings.TrimSpace(sessionID); trimmed != "" {
		return trimmed, nil
	}
	return s.sessions.Active(ctx)
}

func (s *leaderboardService) changed(ctx context.Context, event LeaderboardEvent) {
	s.cache.Invalidate(ctx, event.SessionID)
	s.hub.Publish(ctx, event)
}
