package moderation

import (
	"encoding/json"
	"fmt"
	"math"
)

// Verdict is the classifier's judgement of one tool response.
type Verdict struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// ParseVerdict decodes classifier content. The content must be a JSON
// object; a non-numeric score becomes 0 and a non-string reasoning becomes
// "". Fractional scores are floored, so a score passes exactly when it
// is below an integer threshold. Range is not checked.
func ParseVerdict(content string) (Verdict, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return Verdict{}, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	if raw == nil {
		return Verdict{}, fmt.Errorf("%w: not an object", ErrInvalidJSON)
	}

	var v Verdict
	if score, ok := raw["score"].(float64); ok {
		v.Score = clampScore(math.Floor(score))
	}
	if reasoning, ok := raw["reasoning"].(string); ok {
		v.Reasoning = reasoning
	}
	return v, nil
}

func clampScore(f float64) int {
	switch {
	case f > math.MaxInt32:
		return math.MaxInt32
	case f < math.MinInt32:
		return math.MinInt32
	default:
		return int(f)
	}
}
