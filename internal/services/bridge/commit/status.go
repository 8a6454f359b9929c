package commit

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Tracking-data keys read from the cmi map. Each pair is primary key first,
// then the legacy key.
const (
	KeyCompletionStatus       = "cmi.completion_status"
	KeyLegacyCompletionStatus = "cmi.core.lesson_status"
	KeySuccessStatus          = "cmi.success_status"
	KeyScoreRaw               = "cmi.score.raw"
	KeyLegacyScoreRaw         = "cmi.core.score.raw"
)

// IsCompletion reports whether a status map signals completion.
//
// True when the completion status (primary key, else legacy key) equals
// "completed" or "passed", or when the success status equals "passed".
// Comparisons ignore case. This is a loose disjunction over an externally
// controlled vocabulary and must stay exactly this permissive.
func IsCompletion(cmi map[string]any) bool {
	completion := lookupString(cmi, KeyCompletionStatus, KeyLegacyCompletionStatus)
	if strings.EqualFold(completion, "completed") || strings.EqualFold(completion, "passed") {
		return true
	}
	return strings.EqualFold(lookupString(cmi, KeySuccessStatus), "passed")
}

// Score extracts the raw score (primary key, else legacy key). The bool is
// false when no score is available, which is distinct from a zero score.
func Score(cmi map[string]any) (float64, bool) {
	for _, key := range []string{KeyScoreRaw, KeyLegacyScoreRaw} {
		value, ok := cmi[key]
		if !ok || isBlank(value) {
			continue
		}
		return toNumber(value)
	}
	return 0, false
}

// lookupString returns the first key holding a non-blank value, trimmed.
// A blank primary value falls through to the legacy key.
func lookupString(cmi map[string]any, keys ...string) string {
	for _, key := range keys {
		value, ok := cmi[key]
		if !ok || isBlank(value) {
			continue
		}
		if s, ok := value.(string); ok {
			return strings.TrimSpace(s)
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
	return ""
}

func isBlank(value any) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	return ok && strings.TrimSpace(s) == ""
}

func toNumber(value any) (float64, bool) {
	var n float64
	switch v := value.(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		n = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
