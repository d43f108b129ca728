package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bmc-canvas-api/internal/dto"
	"github.com/noah-isme/bmc-canvas-api/internal/models"
	"github.com/noah-isme/bmc-canvas-api/internal/repository"
)

var (
	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionIDRequired indicates a session id was expected but blank.
	ErrSessionIDRequired = errors.New("session id is required")
)

// SessionService manages sessions and the active-session pointer.
type SessionService interface {
	// Default ensures the default session exists and returns its id.
	Default(ctx context.Context) (string, error)
	// Active returns the active session id, falling back to the default session.
	Active(ctx context.Context) (string, error)
	SetActive(ctx context.Context, id string) error
	// Resolve returns explicit when it names an existing session, else the active session.
	Resolve(ctx context.Context, explicit string) (string, error)
	Create(ctx context.Context, name string) (dto.SessionResponse, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) (dto.SessionListResponse, error)
}

type sessionService struct {
	sessions    repository.SessionRepository
	submissions repository.SubmissionRepository
	cache       *LeaderboardCache
	hub         LeaderboardHub
	defaultName string
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSessionService constructs the session registry.
func NewSessionService(sessions repository.SessionRepository, submissions repository.SubmissionRepository, cache *LeaderboardCache, hub LeaderboardHub, defaultName string, logger zerolog.Logger) SessionService {
	if strings.TrimSpace(defaultName) == "" {
		defaultName = "Sesi Utama"
	}
	return &sessionService{
		sessions:    sessions,
		submissions: submissions,
		cache:       cache,
		hub:         hub,
		defaultName: defaultName,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "session_service").Logger(),
		now:         time.Now,
	}
}

func (s *sessionService) Default(ctx context.Context) (string, error) {
	_, err := s.sessions.GetByID(ctx, models.DefaultSessionID)
	if err == nil {
		return models.DefaultSessionID, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}

	session := models.Session{
		ID:           models.DefaultSessionID,
		Name:         s.defaultName,
		CreatedAt:    s.now().UnixMilli(),
		DisplayOrder: 0,
	}
	if err := s.sessions.Create(ctx, &session); err != nil {
		// a concurrent request may have created it first
		if _, getErr := s.sessions.GetByID(ctx, models.DefaultSessionID); getErr == nil {
			return models.DefaultSessionID, nil
		}
		return "", fmt.Errorf("create default session: %w", err)
	}

	s.logger.Info().Msg("default session created")
	return models.DefaultSessionID, nil
}

func (s *sessionService) Active(ctx context.Context) (string, error) {
	id, err := s.sessions.ActiveID(ctx)
	if err != nil {
		return "", err
	}
	if id != "" {
		if exists, err := s.exists(ctx, id); err != nil {
			return "", err
		} else if exists {
			return id, nil
		}
	}
	return s.Default(ctx)
}

func (s *sessionService) SetActive(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrSessionIDRequired
	}
	if id == models.DefaultSessionID {
		if _, err := s.Default(ctx); err != nil {
			return err
		}
	}

	if err := s.sessions.SetActiveID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

func (s *sessionService) Resolve(ctx context.Context, explicit string) (string, error) {
	explicit = strings.TrimSpace(explicit)
	if explicit != "" {
		exists, err := s.exists(ctx, explicit)
		if err != nil {
			return "", err
		}
		if exists {
			return explicit, nil
		}
		s.logger.Debug().Str("session_id", explicit).Msg("unknown session requested, using active session")
	}
	return s.Active(ctx)
}

func (s *sessionService) Create(ctx context.Context, name string) (dto.SessionResponse, error) {
	name = strings.TrimSpace(cleanText(s.sanitizer, name))
	if name == "" {
		count, err := s.sessions.Count(ctx)
		if err != nil {
			return dto.SessionResponse{}, err
		}
		name = fmt.Sprintf("Sesi %d", count+1)
	}

	now := s.now().UnixMilli()
	session := models.Session{
		ID:           shortuuid.New(),
		Name:         name,
		CreatedAt:    now,
		DisplayOrder: now,
	}
	if err := s.sessions.Create(ctx, &session); err != nil {
		return dto.SessionResponse{}, err
	}

	s.logger.Info().Str("session_id", session.ID).Str("name", session.Name).Msg("session created")
	return dto.NewSessionResponse(session, 0, false), nil
}

func (s *sessionService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrSessionIDRequired
	}

	if err := s.sessions.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	s.cache.Invalidate(ctx, id)
	s.hub.Publish(ctx, LeaderboardEvent{Type: EventSessionDeleted, SessionID: id})
	s.logger.Info().Str("session_id", id).Msg("session deleted")
	return nil
}

func (s *sessionService) List(ctx context.Context) (dto.SessionListResponse, error) {
	activeID, err := s.Active(ctx)
	if err != nil {
		return dto.SessionListResponse{}, err
	}

	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return dto.SessionListResponse{}, err
	}

	items := make([]dto.SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		count, err := s.submissions.CountBySession(ctx, session.ID)
		if err != nil {
			return dto.SessionListResponse{}, err
		}
		items = append(items, dto.NewSessionResponse(session, count, session.ID == activeID))
	}

	return dto.SessionListResponse{Sessions: items, ActiveSessionID: activeID}, nil
}

func (s *sessionService) exists(ctx context.Context, id string) (bool, error) {
	_, err := s.sessions.GetByID(ctx, id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return false, err
}
