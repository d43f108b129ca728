package service

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bmc-canvas-api/pkg/ai"
)

func sampleCanvas() ai.Canvas {
	return ai.Canvas{
		StudentName:  "Ali",
		BusinessIdea: "Catering app",
		Blocks:       ai.Blocks(fullCanvas()).Canonical(),
	}
}

func TestScoringServiceWithoutCredentialUsesMock(t *testing.T) {
	svc := NewScoringService(nil, ai.NewMockEvaluatorWithSource(rand.NewPCG(1, 2)), ai.DefaultPromptOptions(), zerolog.Nop())
	require.Equal(t, ai.ProviderMock, svc.Mode())

	for i := 0; i < 20; i++ {
		result := svc.Score(context.Background(), sampleCanvas())

		assert.Equal(t, ai.ProviderMock, result.Provider)
		assert.Empty(t, result.ErrorNote)
		require.Len(t, result.Scores, len(ai.BlockKeys))

		var total float64
		for _, key := range ai.BlockKeys {
			score := result.Scores[key]
			assert.GreaterOrEqual(t, score, 6.0)
			assert.LessOrEqual(t, score, 9.0)
			total += score
		}
		assert.Equal(t, math.Round(total/9), result.OverallScore)
	}
}

func TestScoringServiceUsesLiveEvaluator(t *testing.T) {
	live := &stubEvaluator{result: ai.RawResult{
		Scores:       map[string]any{"keyPartners": 7.46, "channels": "8", "costStructure": "n/a", "revenueStreams": 14},
		Tips:         map[string]any{"keyPartners": []any{"- satu", "- dua"}},
		OverallScore: 6.94,
		Strengths:    "Jelas",
	}}
	svc := NewScoringService(live, nil, ai.DefaultPromptOptions(), zerolog.Nop())
	require.Equal(t, ai.ProviderLLM, svc.Mode())

	result := svc.Score(context.Background(), sampleCanvas())

	assert.Equal(t, ai.ProviderLLM, result.Provider)
	assert.Empty(t, result.ErrorNote)
	assert.Equal(t, 7.5, result.Scores["keyPartners"])
	assert.Equal(t, 8.0, result.Scores["channels"])
	assert.Equal(t, 0.0, result.Scores["costStructure"])
	assert.Equal(t, 10.0, result.Scores["revenueStreams"])
	assert.Equal(t, 0.0, result.Scores["keyResources"])
	assert.Equal(t, 6.9, result.OverallScore)
	assert.Equal(t, "- satu\n- dua", result.Tips["keyPartners"])
	assert.Equal(t, "", result.Weaknesses)

	require.Len(t, live.prompts, 1)
	assert.Contains(t, live.prompts[0], "Catering app")
}

func TestScoringServiceFallsBackOnFailure(t *testing.T) {
	cases := map[string]error{
		"call error":   fmt.Errorf("openai evaluate: %w", context.DeadlineExceeded),
		"decode error": fmt.Errorf("%w: no json object found", ai.ErrDecode),
	}

	for name, failure := range cases {
		t.Run(name, func(t *testing.T) {
			live := &stubEvaluator{err: failure}
			svc := NewScoringService(live, ai.NewMockEvaluatorWithSource(rand.NewPCG(3, 4)), ai.DefaultPromptOptions(), zerolog.Nop())

			result := svc.Score(context.Background(), sampleCanvas())

			assert.Equal(t, ai.ProviderMock, result.Provider)
			assert.NotEmpty(t, result.ErrorNote)
			require.Len(t, result.Scores, len(ai.BlockKeys))
			for _, key := range ai.BlockKeys {
				assert.GreaterOrEqual(t, result.Scores[key], 6.0)
			}
			require.Len(t, live.prompts, 1, "live evaluator is called exactly once")
		})
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "éé", truncate("ééé", 2))
}
