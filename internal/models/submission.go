package models

import (
	"sort"
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/bmc-canvas-api/pkg/ai"
)

// Submission is a scored canvas stored under a session. It is never updated after creation.
type Submission struct {
	ID           string                               `gorm:"primaryKey;size:36" json:"id"`
	SessionID    string                               `gorm:"size:64;not null;index:idx_submissions_session_at,priority:1" json:"sessionId"`
	StudentName  string                               `gorm:"size:255;not null" json:"studentName"`
	BusinessIdea string                               `gorm:"type:text;not null" json:"businessIdea"`
	Blocks       datatypes.JSONType[ai.Blocks]        `json:"blocks"`
	Analysis     datatypes.JSONType[ai.ScoringResult] `json:"analysis"`
	OverallScore float64                              `gorm:"not null;index" json:"overallScore"`
	SubmittedAt  int64                                `gorm:"not null;index:idx_submissions_session_at,priority:2" json:"submittedAt"`
	CreatedAt    time.Time                            `json:"createdAt"`
}

// Ranks reports whether a sorts before b on the leaderboard: higher score first, then the
// earlier submission, then id so the order is total.
func Ranks(a, b Submission) bool {
	if a.OverallScore != b.OverallScore {
		return a.OverallScore > b.OverallScore
	}
	if a.SubmittedAt != b.SubmittedAt {
		return a.SubmittedAt < b.SubmittedAt
	}
	return a.ID < b.ID
}

// SortLeaderboard orders submissions in place using Ranks.
func SortLeaderboard(submissions []Submission) {
	sort.SliceStable(submissions, func(i, j int) bool {
		return Ranks(submissions[i], submissions[j])
	})
}
