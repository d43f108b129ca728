package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseScoringResult decodes an evaluator reply. When the reply is not a bare JSON object it
// retries with the span between the first '{' and the last '}', which recovers replies where
// the model wrapped valid JSON in prose.
func ParseScoringResult(content string) (RawResult, error) {
	content = strings.TrimSpace(content)

	result, err := decodeObject(content)
	if err == nil {
		return result, nil
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return RawResult{}, fmt.Errorf("%w: no json object found", ErrDecode)
	}

	result, err = decodeObject(content[start : end+1])
	if err != nil {
		return RawResult{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return result, nil
}

func decodeObject(content string) (RawResult, error) {
	// json.Unmarshal accepts a bare null for a struct target
	if !strings.HasPrefix(content, "{") {
		return RawResult{}, fmt.Errorf("reply does not start with an object")
	}

	var result RawResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return RawResult{}, err
	}
	return result, nil
}
