package commit

import (
	"encoding/json"
	"testing"
)

// Any future tracking-data variant has to keep satisfying this table: the
// completion rule is a disjunction, not a typed status.
func TestIsCompletion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cmi  map[string]any
		want bool
	}{
		{name: "empty", cmi: map[string]any{}, want: false},
		{name: "nil map", cmi: nil, want: false},
		{name: "completed mixed case", cmi: map[string]any{"cmi.completion_status": "Completed"}, want: true},
		{name: "completion passed", cmi: map[string]any{"cmi.completion_status": "PASSED"}, want: true},
		{name: "incomplete", cmi: map[string]any{"cmi.completion_status": "incomplete"}, want: false},
		{name: "success passed", cmi: map[string]any{"cmi.success_status": "passed"}, want: true},
		{name: "success failed", cmi: map[string]any{"cmi.success_status": "failed"}, want: false},
		{name: "legacy completed", cmi: map[string]any{"cmi.core.lesson_status": "completed"}, want: true},
		{name: "legacy passed", cmi: map[string]any{"cmi.core.lesson_status": "Passed"}, want: true},
		{name: "legacy failed", cmi: map[string]any{"cmi.core.lesson_status": "failed"}, want: false},
		{
			name: "primary shadows legacy",
			cmi:  map[string]any{"cmi.completion_status": "incomplete", "cmi.core.lesson_status": "completed"},
			want: false,
		},
		{
			name: "success rescues incomplete",
			cmi:  map[string]any{"cmi.completion_status": "incomplete", "cmi.success_status": "passed"},
			want: true,
		},
		{name: "success completed is not passed", cmi: map[string]any{"cmi.success_status": "completed"}, want: false},
		{name: "padded value", cmi: map[string]any{"cmi.completion_status": " completed "}, want: true},
		{name: "non string value", cmi: map[string]any{"cmi.completion_status": 1}, want: false},
		{
			name: "blank primary falls back to legacy",
			cmi:  map[string]any{"cmi.completion_status": "", "cmi.core.lesson_status": "completed"},
			want: true,
		},
		{
			name: "whitespace primary falls back to legacy",
			cmi:  map[string]any{"cmi.completion_status": "  ", "cmi.core.lesson_status": "passed"},
			want: true,
		},
	}
	for _, tc := range tests {
		if got := IsCompletion(tc.cmi); got != tc.want {
			t.Fatalf("%s: IsCompletion(%v) = %t, want %t", tc.name, tc.cmi, got, tc.want)
		}
	}
}

func TestScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cmi    map[string]any
		want   float64
		wantOK bool
	}{
		{name: "primary string", cmi: map[string]any{"cmi.score.raw": "80"}, want: 80, wantOK: true},
		{name: "legacy string", cmi: map[string]any{"cmi.core.score.raw": "55"}, want: 55, wantOK: true},
		{name: "absent", cmi: map[string]any{}, wantOK: false},
		{name: "zero is a score", cmi: map[string]any{"cmi.score.raw": "0"}, want: 0, wantOK: true},
		{name: "float", cmi: map[string]any{"cmi.score.raw": 92.5}, want: 92.5, wantOK: true},
		{name: "json number", cmi: map[string]any{"cmi.score.raw": json.Number("71")}, want: 71, wantOK: true},
		{name: "primary wins", cmi: map[string]any{"cmi.score.raw": "10", "cmi.core.score.raw": "20"}, want: 10, wantOK: true},
		{name: "nil primary falls back", cmi: map[string]any{"cmi.score.raw": nil, "cmi.core.score.raw": "20"}, want: 20, wantOK: true},
		{name: "unparseable", cmi: map[string]any{"cmi.score.raw": "n/a"}, wantOK: false},
		{name: "empty string", cmi: map[string]any{"cmi.score.raw": ""}, wantOK: false},
		{name: "blank primary falls back", cmi: map[string]any{"cmi.score.raw": " ", "cmi.core.score.raw": "64"}, want: 64, wantOK: true},
		{name: "nan", cmi: map[string]any{"cmi.score.raw": "NaN"}, wantOK: false},
	}
	for _, tc := range tests {
		got, ok := Score(tc.cmi)
		if ok != tc.wantOK || got != tc.want {
			t.Fatalf("%s: Score(%v) = %v, %t; want %v, %t", tc.name, tc.cmi, got, ok, tc.want, tc.wantOK)
		}
	}
}
