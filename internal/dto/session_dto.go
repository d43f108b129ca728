package dto

import "github.com/noah-isme/bmc-canvas-api/internal/models"

// SessionCreateRequest names a new session. An empty name gets a generated one.
type SessionCreateRequest struct {
	Name string `json:"name" validate:"max=120"`
}

// SessionDeleteRequest identifies the session to remove.
type SessionDeleteRequest struct {
	ID string `json:"id" validate:"required,max=64"`
}

// SetActiveSessionRequest moves the active-session pointer.
type SetActiveSessionRequest struct {
	SessionID string `json:"sessionId" validate:"required,max=64"`
}

// SessionResponse describes a session in listings.
type SessionResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CreatedAt    int64  `json:"createdAt"`
	DisplayOrder int64  `json:"displayOrder"`
	EntryCount   int64  `json:"entryCount"`
	Active       bool   `json:"active"`
}

// SessionListResponse is returned by GET /sessions.
type SessionListResponse struct {
	Sessions        []SessionResponse `json:"sessions"`
	ActiveSessionID string            `json:"activeSessionId"`
}

// SessionCreatedResponse is returned by POST /sessions.
type SessionCreatedResponse struct {
	OK      bool            `json:"ok"`
	Session SessionResponse `json:"session"`
}

// ActiveSessionResponse reports the active-session pointer.
type ActiveSessionResponse struct {
	OK              bool   `json:"ok,omitempty"`
	ActiveSessionID string `json:"activeSessionId"`
}

// NewSessionResponse converts a Session model into a DTO.
func NewSessionResponse(model models.Session, entryCount int64, active bool) SessionResponse {
	return SessionResponse{
		ID:           model.ID,
		Name:         model.Name,
		CreatedAt:    model.CreatedAt,
		DisplayOrder: model.DisplayOrder,
		EntryCount:   entryCount,
		Active:       active,
	}
}
