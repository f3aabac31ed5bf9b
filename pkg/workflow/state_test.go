package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/finquery/pkg/handler"
)

func TestBuildContext(t *testing.T) {
	state := &RunState{Results: []Result{
		{HandlerName: "database_query", Content: "rows", AdditionalData: map[string]any{"success": true}},
		{HandlerName: "visualize", Content: "saved", AdditionalData: map[string]any{
			"success":    true,
			"chart_info": &handler.ChartInfo{ChartType: "bar", XColumn: "symbol", YColumn: "volume"},
		}},
		{HandlerName: "visualize", Content: "failed", AdditionalData: map[string]any{
			"success":    false,
			"chart_info": &handler.ChartInfo{ChartType: "pie"},
		}},
	}}

	got := state.BuildContext()
	assert.Contains(t, got, "\n--- Result from database_query ---\nrows\n")
	assert.Contains(t, got, "\n--- Result from visualize ---\nsaved\n\nChart info: {\"chart_type\":\"bar\"")
	assert.NotContains(t, got, `"chart_type":"pie"`)
}

func TestDistinctHandlerNames(t *testing.T) {
	state := &RunState{Results: []Result{
		{HandlerName: "database_query"},
		{HandlerName: "google_search"},
		{HandlerName: "database_query"},
	}}
	assert.Equal(t, []string{"database_query", "google_search"}, state.DistinctHandlerNames())
}

func TestSynthesizeWithoutResultsSkipsModel(t *testing.T) {
	inv := &recordingInvoker{response: "unused"}
	answer, err := NewSynthesizer(inv).Synthesize(context.Background(), &RunState{Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, NoResultsMessage, answer)
	assert.Zero(t, inv.calls())
}

func TestSynthesizePrompt(t *testing.T) {
	inv := &recordingInvoker{response: "AAPL closed at 125.07."}
	state := &RunState{
		Question: "AAPL close?",
		Results:  []Result{{HandlerName: "database_query", Content: "| 125.07 |"}},
	}

	answer, err := NewSynthesizer(inv).Synthesize(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, "AAPL closed at 125.07.\n\n---\n*Handlers used: database_query*", answer)
	require.Len(t, inv.prompts, 1)
	assert.Contains(t, inv.prompts[0], "Question: AAPL close?")
	assert.Contains(t, inv.prompts[0], "| 125.07 |")
}

func TestCurrentHandler(t *testing.T) {
	res := func(names ...string) []Result {
		out := make([]Result, len(names))
		for i, n := range names {
			out[i] = Result{HandlerName: n}
		}
		return out
	}

	tests := []struct {
		name     string
		selected []string
		results  []Result
		chart    bool
		want     string
	}{
		{"nothing selected", nil, nil, false, "conversation"},
		{"visualize with chart", []string{"database_query", "visualize"}, nil, true, "visualize"},
		{"visualize without chart", []string{"database_query", "visualize"}, nil, false, "database_query"},
		{"search over first", []string{"conversation", "google_search"}, nil, false, "google_search"},
		{"first selected", []string{"conversation"}, nil, false, "conversation"},
		{"last result wins", []string{"database_query", "visualize"}, res("database_query", "visualize"), true, "visualize"},
		{"last known result", []string{"google_search"}, res("google_search", "custom"), false, "google_search"},
		{"unknown only", []string{"custom"}, res("custom"), false, "custom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentHandler(tt.selected, tt.results, tt.chart))
		})
	}
}

func TestRunStoreEvicts(t *testing.T) {
	store := NewRunStore(2, time.Minute)
	store.Put(&Outcome{RunID: "a"})
	store.Put(&Outcome{RunID: "b"})
	store.Put(&Outcome{RunID: "c"})
	store.Put(&Outcome{})

	_, ok := store.Get("a")
	assert.False(t, ok)
	_, ok = store.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, store.Len())
}

func TestStepsOrder(t *testing.T) {
	steps := Handlers{}.Steps()
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
		assert.Nil(t, s.Run)
	}
	assert.Equal(t, []string{"conversation", "database_query", "google_search", "visualize"}, names)
	assert.False(t, steps[0].Retry)
	assert.True(t, steps[1].Retry)
}

func TestLookupResultFormatting(t *testing.T) {
	r := lookupResult(&handler.LookupResult{
		Query:   "SELECT symbol FROM companies",
		Columns: []string{"symbol"},
		Rows:    []map[string]any{{"symbol": "AAPL"}},
	})
	assert.Equal(t, "Database query results:\nSQL: SELECT symbol FROM companies\n\n| symbol |\n| ------ |\n| AAPL |\n", r.Content)
	assert.True(t, r.Succeeded())

	empty := lookupResult(&handler.LookupResult{Query: "SELECT 1"})
	assert.Equal(t, "No matching data found.", empty.Content)
}

func TestSearchResultFormatting(t *testing.T) {
	r := searchResult(&handler.SearchResult{
		Status:  handler.SearchSuccess,
		Results: []handler.SearchHit{{Title: "T", URL: "https://x", Content: "C"}},
	})
	assert.Equal(t, "Web search results:\n\n1. **T**\n   URL: https://x\n   C\n\n", r.Content)

	none := searchResult(&handler.SearchResult{Status: handler.SearchNoResults, Message: "No results found."})
	assert.Equal(t, "No results found.", none.Content)
	assert.False(t, none.Succeeded())
}

func TestVisualizationResultFormatting(t *testing.T) {
	ok := visualizationResult(&handler.VisualizationResult{Success: true, Path: "v/a.json"})
	assert.Equal(t, "Chart created and saved at: v/a.json", ok.Content)
	_, hasInfo := ok.AdditionalData["chart_info"]
	assert.False(t, hasInfo)

	failed := visualizationResult(&handler.VisualizationResult{Message: "The query returned no data to chart."})
	assert.Equal(t, "The query returned no data to chart.", failed.Content)
	assert.False(t, failed.Succeeded())
}
