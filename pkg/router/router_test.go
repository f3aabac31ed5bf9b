package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/finquery/pkg/adapter"
)

type countingInvoker struct {
	calls    int
	response string
	err      error
	prompts  []string
}

func (c *countingInvoker) Invoke(_ context.Context, prompt string) (string, error) {
	c.calls++
	c.prompts = append(c.prompts, prompt)
	return c.response, c.err
}

type staticClassifier map[string]float64

func (s staticClassifier) Classify(context.Context, string) (map[string]float64, error) {
	out := make(map[string]float64, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}

func newTestRouter(response string, err error) (*Router, *countingInvoker) {
	inv := &countingInvoker{response: response, err: err}
	reg := DefaultRegistry()
	return New(reg, NewLLMClassifier(inv, reg)), inv
}

func TestRouteGreetingSelectsConversation(t *testing.T) {
	r, _ := newTestRouter(`{"database_query": 0.1, "google_search": 0.1, "visualize": 0.05, "conversation": 0.75}`, nil)

	decision := r.Route(context.Background(), "Xin chào")
	assert.Equal(t, []string{"conversation"}, decision.Selected)
	require.Len(t, decision.Scores, 4)
	assert.Equal(t, 0.75, decision.Scores[3].Confidence)
	assert.True(t, decision.Scores[3].Selected)
}

func TestRouteChartRequest(t *testing.T) {
	r, _ := newTestRouter(`Sure! {"visualize": 0.95, "database_query": 0.3, "google_search": 0.1, "conversation": 0.1}`, nil)

	decision := r.Route(context.Background(), "Plot Apple's closing prices for 2023")
	assert.Equal(t, []string{"database_query", "visualize"}, decision.Selected)
}

func TestRouteUnparsableFallsBack(t *testing.T) {
	r, _ := newTestRouter("I am not sure how to classify that question.", nil)

	decision := r.Route(context.Background(), "???")
	assert.Equal(t, []string{"conversation"}, decision.Selected)
	assert.Contains(t, decision.ClassifierError, "no handler confidences")
	for _, s := range decision.Scores {
		assert.Zero(t, s.Confidence, s.Name)
	}
}

func TestRouteClassifierFailureFallsBack(t *testing.T) {
	r, _ := newTestRouter("", errors.New("connection refused"))

	decision := r.Route(context.Background(), "what is the price of MSFT")
	assert.Equal(t, []string{"conversation"}, decision.Selected)
	assert.Contains(t, decision.ClassifierError, "connection refused")
	assert.Len(t, decision.Scores, 4)
}

func TestRouteNeverEmpty(t *testing.T) {
	reg := DefaultRegistry()
	inputs := []map[string]float64{
		{},
		{"database_query": 0.19, "google_search": 0.19, "visualize": 0.69, "conversation": 0.19},
		{"unknown": 1},
		{"visualize": 0.5},
	}
	for i, scores := range inputs {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			d := New(reg, staticClassifier(scores)).Route(context.Background(), "q")
			assert.Equal(t, []string{"conversation"}, d.Selected)
		})
	}
}

func TestRouteThresholdIsInclusive(t *testing.T) {
	reg := DefaultRegistry()
	d := New(reg, staticClassifier{"visualize": 0.7, "google_search": 0.2}).Route(context.Background(), "q")
	assert.Equal(t, []string{"google_search", "visualize"}, d.Selected)
}

func TestDetailedRoutingRoundsAndIsIdempotent(t *testing.T) {
	reg := DefaultRegistry()
	r := New(reg, staticClassifier{"database_query": 0.333333, "conversation": 0.666667})

	first := r.DetailedRouting(context.Background(), "q")
	second := r.DetailedRouting(context.Background(), "q")
	assert.Equal(t, first.Scores, second.Scores)
	assert.Equal(t, 0.33, first.Scores[0].Confidence)
	assert.Equal(t, 0.67, first.Scores[3].Confidence)
	assert.Equal(t, 0.7, first.Scores[2].Threshold)
	assert.Equal(t, []string{"database_query", "conversation"}, first.Selected)
}

func TestClassifierPromptListsHandlers(t *testing.T) {
	r, inv := newTestRouter(`{"conversation": 1}`, nil)
	r.Route(context.Background(), "hello there")

	require.Len(t, inv.prompts, 1)
	prompt := inv.prompts[0]
	for _, name := range DefaultRegistry().Names() {
		assert.Contains(t, prompt, name)
	}
	assert.Contains(t, prompt, "Question: hello there")
	assert.Contains(t, prompt, "summing to 1.0")
}

func TestClassifierWithMockAdapter(t *testing.T) {
	mock := adapter.NewMockAdapterWithResponses(map[string]string{
		"Question: chart": "```json\n{\"visualize\": 0.9, \"database_query\": 0.1}\n```",
	}, "")
	reg := DefaultRegistry()
	c := NewLLMClassifier(adapter.NewLLM(mock, ""), reg)

	scores, err := c.Classify(context.Background(), "chart of AAPL")
	require.NoError(t, err)
	assert.Equal(t, 0.9, scores["visualize"])
	assert.Equal(t, 0.0, scores["conversation"])
}

func TestClassifierEmptyOutputIsFailure(t *testing.T) {
	reg := DefaultRegistry()
	c := NewLLMClassifier(&countingInvoker{response: "  "}, reg)

	_, err := c.Classify(context.Background(), "q")
	var classErr *ClassificationError
	require.ErrorAs(t, err, &classErr)
}

func TestNewRegistryValidation(t *testing.T) {
	_, err := NewRegistry(nil, "conversation")
	assert.Error(t, err)

	_, err = NewRegistry([]HandlerSpec{{Name: "a", Threshold: 0.2}}, "conversation")
	assert.Error(t, err)

	_, err = NewRegistry([]HandlerSpec{{Name: "a"}, {Name: "a"}}, "a")
	assert.Error(t, err)

	_, err = NewRegistry([]HandlerSpec{{Name: "a", Threshold: -0.1}}, "a")
	assert.Error(t, err)

	reg, err := NewRegistry([]HandlerSpec{{Name: " a ", Threshold: 0.3}}, "a")
	require.NoError(t, err)
	spec, ok := reg.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, 0.3, spec.Threshold)
	assert.Equal(t, "a", reg.Fallback())
}

func TestDefaultRegistryOrder(t *testing.T) {
	names := DefaultRegistry().Names()
	assert.Equal(t, "database_query,google_search,visualize,conversation", strings.Join(names, ","))
}
