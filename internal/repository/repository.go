package repository

import (
	"context"
	"errors"

	"github.com/noah-isme/bmc-canvas-api/internal/models"
)

// ErrNotFound is returned by every store when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// SubmissionRepository persists scored canvases per session.
type SubmissionRepository interface {
	// Create stores a new submission. Saving an id that already exists is a no-op.
	Create(ctx context.Context, submission *models.Submission) error
	// ListBySession returns the session's submissions in leaderboard order.
	ListBySession(ctx context.Context, sessionID string) ([]models.Submission, error)
	DeleteByID(ctx context.Context, sessionID, id string) (int64, error)
	// DeleteBySubmittedAt removes at most one submission with the given timestamp.
	DeleteBySubmittedAt(ctx context.Context, sessionID string, at int64) (int64, error)
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)
	CountBySession(ctx context.Context, sessionID string) (int64, error)
}

// SessionRepository persists sessions and the active-session pointer.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (models.Session, error)
	// List returns sessions newest first (display order descending).
	List(ctx context.Context) ([]models.Session, error)
	// Delete removes the session together with its submissions.
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	// ActiveID returns the active pointer, or "" when none has been set.
	ActiveID(ctx context.Context) (string, error)
	SetActiveID(ctx context.Context, id string) error
}

// Store bundles the repositories of one storage backend.
type Store struct {
	Driver      string
	Submissions SubmissionRepository
	Sessions    SessionRepository
	Ping        func(ctx context.Context) error
}
