package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var parserNames = []string{"database_query", "google_search", "visualize", "conversation"}

func TestBestEffortParser(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]float64
	}{
		{
			name: "embedded object",
			raw:  `Here you go: {"database_query": 0.6, "conversation": 0.4} hope it helps`,
			want: map[string]float64{"database_query": 0.6, "google_search": 0, "visualize": 0, "conversation": 0.4},
		},
		{
			name: "fenced nested object",
			raw:  "```json\n{\"scores\": {\"x\": 1}, \"google_search\": 0.8}\n```",
			want: map[string]float64{"database_query": 0, "google_search": 0.8, "visualize": 0, "conversation": 0},
		},
		{
			name: "regex scan",
			raw:  "database_query: 0.5, 'visualize': 0.25 and google_search\": 1",
			want: map[string]float64{"database_query": 0.5, "google_search": 1, "visualize": 0.25, "conversation": 0},
		},
		{
			name: "string numbers",
			raw:  `{"visualize": "0.9"}`,
			want: map[string]float64{"database_query": 0, "google_search": 0, "visualize": 0.9, "conversation": 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BestEffortParser{}.Parse(tt.raw, parserNames)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBestEffortParserBrokenFirstObject(t *testing.T) {
	raw := `{not json} then "conversation": 0.9`
	got, err := BestEffortParser{}.Parse(raw, parserNames)
	require.NoError(t, err)
	assert.Equal(t, 0.9, got["conversation"])
}

func TestBestEffortParserEmpty(t *testing.T) {
	_, err := BestEffortParser{}.Parse("\n\t", parserNames)
	assert.Error(t, err)
}

func TestBestEffortParserProseWithoutScores(t *testing.T) {
	_, err := BestEffortParser{}.Parse("I cannot decide which category applies.", parserNames)
	assert.Error(t, err)

	_, err = BestEffortParser{}.Parse(`{"category": "finance"}`, parserNames)
	assert.Error(t, err)
}
