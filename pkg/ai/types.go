package ai

import (
	"context"
	"errors"
	"strings"
)

// Provider tags identify which scoring path produced a result.
const (
	ProviderLLM  = "llm"
	ProviderMock = "mock"
)

// BlockKeys lists the nine Business Model Canvas blocks in canonical order.
var BlockKeys = []string{
	"keyPartners",
	"keyActivities",
	"keyResources",
	"valuePropositions",
	"customerRelationships",
	"channels",
	"customerSegments",
	"costStructure",
	"revenueStreams",
}

// ErrDecode indicates the evaluator reply could not be decoded into a scoring result.
var ErrDecode = errors.New("evaluator reply is not valid json")

// Blocks maps canvas block keys to the student's free text.
type Blocks map[string]string

// Canonical returns a copy holding exactly the nine block keys, trimmed, with unknown keys dropped.
func (b Blocks) Canonical() Blocks {
	out := make(Blocks, len(BlockKeys))
	for _, key := range BlockKeys {
		out[key] = strings.TrimSpace(b[key])
	}
	return out
}

// IsBlockKey reports whether key is one of the nine canvas blocks.
func IsBlockKey(key string) bool {
	for _, k := range BlockKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Canvas is the structured form input that gets scored.
type Canvas struct {
	StudentName  string
	BusinessIdea string
	Blocks       Blocks
}

// ScoringResult is the normalized rubric outcome attached to a submission.
type ScoringResult struct {
	Scores       map[string]float64 `json:"scores"`
	Tips         map[string]string  `json:"tips"`
	OverallScore float64            `json:"overallScore"`
	Strengths    string             `json:"strengths"`
	Weaknesses   string             `json:"weaknesses"`
	Provider     string             `json:"provider"`
	ErrorNote    string             `json:"errorNote"`
}

// RawResult is an evaluator reply before normalization. Values are loosely typed because
// models do not always respect the requested schema.
type RawResult struct {
	Scores       map[string]any `json:"scores"`
	Tips         map[string]any `json:"tips"`
	OverallScore any            `json:"overallScore"`
	Strengths    any            `json:"strengths"`
	Weaknesses   any            `json:"weaknesses"`
}

// Evaluator turns a rubric prompt into a raw scoring result.
type Evaluator interface {
	Evaluate(ctx context.Context, prompt string) (RawResult, error)
}
