package dto

import (
	"strings"

	"github.com/noah-isme/bmc-canvas-api/pkg/ai"
)

// AnalyzeRequest is the canvas submitted by a student.
type AnalyzeRequest struct {
	StudentName  string            `json:"studentName" validate:"required,max=120"`
	BusinessIdea string            `json:"businessIdea" validate:"required,max=1000"`
	Blocks       map[string]string `json:"blocks" validate:"required,dive,max=5000"`
	SessionID    string            `json:"sessionId" validate:"omitempty,max=64"`
}

// Normalize trims every text field in place so blank values fail validation.
func (r *AnalyzeRequest) Normalize() {
	r.StudentName = strings.TrimSpace(r.StudentName)
	r.BusinessIdea = strings.TrimSpace(r.BusinessIdea)
	r.SessionID = strings.TrimSpace(r.SessionID)
	for key, value := range r.Blocks {
		r.Blocks[key] = strings.TrimSpace(value)
	}
}

// Canvas converts the request into the evaluator input.
func (r AnalyzeRequest) Canvas() ai.Canvas {
	return ai.Canvas{
		StudentName:  r.StudentName,
		BusinessIdea: r.BusinessIdea,
		Blocks:       ai.Blocks(r.Blocks).Canonical(),
	}
}

// AnalyzeResponse is the scoring result plus where it was saved. SubmissionID and
// SubmittedAt are omitted when persistence failed.
type AnalyzeResponse struct {
	ai.ScoringResult
	SessionID    string `json:"sessionId"`
	SubmissionID string `json:"submissionId,omitempty"`
	SubmittedAt  int64  `json:"submittedAt,omitempty"`
}
