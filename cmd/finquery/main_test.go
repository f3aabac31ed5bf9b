package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/finquery/pkg/adapter"
	"github.com/zen-systems/finquery/pkg/config"
	"github.com/zen-systems/finquery/pkg/router"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSelectLLMFallsBackToMock(t *testing.T) {
	adapters := map[string]adapter.Adapter{"mock": adapter.NewMockAdapter()}

	llm := selectLLM(adapters, config.DefaultAliases(), "openai", "fast", discardLogger())
	assert.Equal(t, "mock/mock-1", llm.String())
}

func TestSelectLLMResolvesAlias(t *testing.T) {
	adapters := map[string]adapter.Adapter{
		"mock":   adapter.NewMockAdapter(),
		"openai": adapter.NewMockAdapter(),
	}

	llm := selectLLM(adapters, config.DefaultAliases(), "openai", "smart", discardLogger())
	assert.Equal(t, "mock/gpt-4o", llm.String())

	llm = selectLLM(adapters, config.DefaultAliases(), "openai", "quality", discardLogger())
	assert.Equal(t, "mock/mock-1", llm.String())
}

func TestBuildRouterWithMock(t *testing.T) {
	cfg := config.Default()
	cfg.ClassifierCache.Enabled = true
	adapters := map[string]adapter.Adapter{
		"mock": adapter.NewMockAdapterWithResponses(map[string]string{
			"Question: show me a chart": `{"database_query": 0.4, "google_search": 0.0, "visualize": 0.9, "conversation": 0.0}`,
		}, `{"conversation": 1.0}`),
	}
	cfg.LLM.Adapter = "mock"

	r, closeRouter, err := buildRouter(cfg, adapters, discardLogger())
	require.NoError(t, err)
	defer closeRouter()

	decision := r.Route(context.Background(), "show me a chart")
	assert.Equal(t, []string{"database_query", "visualize"}, decision.Selected)

	decision = r.Route(context.Background(), "hello")
	assert.Equal(t, []string{"conversation"}, decision.Selected)
}

func TestPrintDecision(t *testing.T) {
	var buf bytes.Buffer
	err := printDecision(&buf, &router.Decision{
		Scores: []router.HandlerScore{
			{Name: "database_query", Confidence: 0.8, Threshold: 0.2, Selected: true},
			{Name: "conversation", Confidence: 0.1, Threshold: 0.2},
		},
		Selected: []string{"database_query"},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "HANDLER")
	assert.Contains(t, out, "0.80")
	assert.Contains(t, out, "Selected: database_query")
	assert.NotContains(t, out, "Classifier error")
}

func TestPrintRegistry(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRegistry(&buf, router.DefaultRegistry()))

	out := buf.String()
	assert.Contains(t, out, "conversation (fallback)")
	assert.Contains(t, out, "0.70")
}

func TestPrintModels(t *testing.T) {
	cfg := &config.Config{OpenAIAPIKey: "sk-test"}

	var buf bytes.Buffer
	require.NoError(t, printModels(&buf, cfg))

	out := buf.String()
	assert.Regexp(t, `fast\s+gpt-4o-mini\s+openai\s+ready`, out)
	assert.Regexp(t, `quality\s+claude-sonnet-4-20250514\s+anthropic\s+no key`, out)
}
