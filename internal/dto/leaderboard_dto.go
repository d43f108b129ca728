package dto

import (
	"github.com/ecodeclub/ekit/slice"

	"github.com/noah-isme/bmc-canvas-api/internal/models"
	"github.com/noah-isme/bmc-canvas-api/pkg/ai"
)

// SubmissionResponse is one leaderboard row.
type SubmissionResponse struct {
	ID           string           `json:"id"`
	SessionID    string           `json:"sessionId"`
	StudentName  string           `json:"studentName"`
	BusinessIdea string           `json:"businessIdea"`
	Blocks       ai.Blocks        `json:"blocks"`
	Analysis     ai.ScoringResult `json:"analysis"`
	OverallScore float64          `json:"overallScore"`
	SubmittedAt  int64            `json:"submittedAt"`
}

// LeaderboardResponse lists a session's submissions in rank order.
type LeaderboardResponse struct {
	Leaderboard []SubmissionResponse `json:"leaderboard"`
	SessionID   string               `json:"sessionId"`
}

// LeaderboardDeleteRequest removes one submission, by stable id or by submittedAt.
type LeaderboardDeleteRequest struct {
	ID        string `json:"id" validate:"omitempty,max=64"`
	At        *int64 `json:"at"`
	SessionID string `json:"sessionId" validate:"omitempty,max=64"`
}

// ResetRequest clears one session's leaderboard.
type ResetRequest struct {
	SessionID string `json:"sessionId" validate:"omitempty,max=64"`
}

// RemovedResponse reports how many submissions a mutation removed.
type RemovedResponse struct {
	OK      bool  `json:"ok"`
	Removed int64 `json:"removed"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:           model.ID,
		SessionID:    model.SessionID,
		StudentName:  model.StudentName,
		BusinessIdea: model.BusinessIdea,
		Blocks:       model.Blocks.Data(),
		Analysis:     model.Analysis.Data(),
		OverallScore: model.OverallScore,
		SubmittedAt:  model.SubmittedAt,
	}
}

// NewSubmissionResponses converts submissions preserving their order.
func NewSubmissionResponses(submissions []models.Submission) []SubmissionResponse {
	return slice.Map(submissions, func(_ int, src models.Submission) SubmissionResponse {
		return NewSubmissionResponse(src)
	})
}
