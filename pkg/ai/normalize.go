package ai

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const (
	minScore = 0
	maxScore = 10
)

// NormalizeScore coerces v to a number, clamps it to [0,10] and rounds it to one decimal.
// Anything that is not numeric normalizes to 0.
func NormalizeScore(v any) float64 {
	x, ok := toFloat(v)
	if !ok || math.IsNaN(x) {
		return 0
	}
	x = math.Max(minScore, math.Min(maxScore, x))
	return math.Round(x*10) / 10
}

// Normalize converts a raw evaluator reply into the contractual result shape. Every block
// receives a score and a tip; provider and error note are left for the caller.
func Normalize(raw RawResult) ScoringResult {
	result := ScoringResult{
		Scores:       make(map[string]float64, len(BlockKeys)),
		Tips:         make(map[string]string, len(BlockKeys)),
		OverallScore: NormalizeScore(raw.OverallScore),
		Strengths:    toText(raw.Strengths),
		Weaknesses:   toText(raw.Weaknesses),
	}

	for _, key := range BlockKeys {
		result.Scores[key] = NormalizeScore(raw.Scores[key])
		result.Tips[key] = toText(raw.Tips[key])
	}

	return result
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func toText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		lines := make([]string, 0, len(t))
		for _, item := range t {
			if line := toText(item); line != "" {
				lines = append(lines, line)
			}
		}
		return strings.Join(lines, "\n")
	case []string:
		return strings.TrimSpace(strings.Join(t, "\n"))
	default:
		return ""
	}
}
