package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/zen-systems/finquery/pkg/adapter"
	"github.com/zen-systems/finquery/pkg/config"
	"github.com/zen-systems/finquery/pkg/handler/chart"
	"github.com/zen-systems/finquery/pkg/handler/chat"
	"github.com/zen-systems/finquery/pkg/handler/sqllookup"
	"github.com/zen-systems/finquery/pkg/handler/websearch"
	"github.com/zen-systems/finquery/pkg/retry"
	"github.com/zen-systems/finquery/pkg/router"
	"github.com/zen-systems/finquery/pkg/workflow"
)

const dbConnectTimeout = 5 * time.Second

// app holds the wired services of one process.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	router *router.Router
	orch   *workflow.Orchestrator
	store  *workflow.RunStore

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newLogger(w io.Writer, level slog.Level, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts)).With("service", "finquery")
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func createAdapters(cfg *config.Config) (map[string]adapter.Adapter, error) {
	adapters := make(map[string]adapter.Adapter)

	if cfg.AnthropicAPIKey != "" {
		a, err := adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic adapter: %w", err)
		}
		adapters["anthropic"] = a
	}

	if cfg.OpenAIAPIKey != "" {
		a, err := adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai adapter: %w", err)
		}
		adapters["openai"] = a
	}

	if cfg.GoogleAPIKey != "" {
		a, err := adapter.NewGoogleAdapter(cfg.GoogleAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create google adapter: %w", err)
		}
		adapters["google"] = a
	}

	if cfg.DeepSeekAPIKey != "" {
		a, err := adapter.NewDeepSeekAdapter(cfg.DeepSeekAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create deepseek adapter: %w", err)
		}
		adapters["deepseek"] = a
	}

	adapters["mock"] = adapter.NewMockAdapter()

	return adapters, nil
}

// selectLLM binds the configured adapter to a resolved model. An adapter
// without a key falls back to the mock adapter; a model the provider does not
// list falls back to the provider's first model.
func selectLLM(adapters map[string]adapter.Adapter, aliases *config.ModelAliases, name, model string, logger *slog.Logger) *adapter.LLM {
	a, ok := adapters[name]
	if !ok {
		logger.Warn("adapter not configured, using mock", "adapter", name)
		name, a, model = "mock", adapters["mock"], ""
	}

	resolved := aliases.Resolve(model)
	if resolved != "" {
		if err := aliases.ValidateModel(name, resolved); err != nil {
			logger.Warn("model not available for adapter, using default", "adapter", name, "model", resolved, "error", err)
			resolved = ""
		}
	}
	return adapter.NewLLM(a, resolved)
}

// buildRouter wires the classifier and router. The returned closer releases
// the classification cache, if any.
func buildRouter(cfg *config.Config, adapters map[string]adapter.Adapter, logger *slog.Logger) (*router.Router, func(), error) {
	registry, err := router.RegistryFromConfig(cfg.Handlers, cfg.Fallback)
	if err != nil {
		return nil, nil, err
	}

	llm := selectLLM(adapters, cfg.ModelAliases(), cfg.LLM.Adapter, cfg.LLM.ClassifierModel, logger)
	logger.Debug("classifier model selected", "model", llm.String())

	var classifier router.Classifier = router.NewLLMClassifier(llm, registry)
	closer := func() {}
	if cfg.ClassifierCache.Enabled {
		cached, err := router.NewCachedClassifier(classifier, cfg.ClassifierCache.MaxCost, cfg.ClassifierCache.TTL)
		if err != nil {
			return nil, nil, fmt.Errorf("create classifier cache: %w", err)
		}
		classifier = cached
		closer = cached.Close
	}

	return router.New(registry, classifier, router.WithLogger(logger)), closer, nil
}

// buildApp wires every service. The lookup and chart handlers are left out
// when the database is unreachable, and web search when no key is set.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	adapters, err := createAdapters(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	r, closeRouter, err := buildRouter(cfg, adapters, logger)
	if err != nil {
		return nil, err
	}
	a.router = r
	a.closers = append(a.closers, closeRouter)

	aliases := cfg.ModelAliases()
	llm := selectLLM(adapters, aliases, cfg.LLM.Adapter, cfg.LLM.Model, logger)
	synthLLM := selectLLM(adapters, aliases, cfg.LLM.Adapter, cfg.LLM.SynthesisModel, logger)
	policy := retry.Policy{MaxAttempts: cfg.Retry.MaxAttempts, Delay: cfg.Retry.Delay()}

	handlers := workflow.Handlers{
		Conversation: chat.New(llm, chat.WithRetryPolicy(policy), chat.WithLogger(logger)),
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbConnectTimeout)
	pool, err := sqllookup.NewPool(dbCtx, cfg.Postgres.DSN(), int32(cfg.Server.Workers))
	cancel()
	if err != nil {
		logger.Warn("database unavailable, lookup and chart handlers disabled",
			"host", cfg.Postgres.Host, "database", cfg.Postgres.Database, "error", err)
	} else {
		a.closers = append(a.closers, pool.Close)
		lookup := sqllookup.New(llm, pool, sqllookup.WithLogger(logger))
		handlers.Lookup = lookup
		handlers.Visualizer = chart.New(lookup, llm, cfg.Visualization.Dir, chart.WithLogger(logger))
	}

	search := websearch.New(
		websearch.WithAPIKey(cfg.TavilyAPIKey),
		websearch.WithMaxResults(cfg.Search.MaxResults),
		websearch.WithSearchDepth(cfg.Search.SearchDepth),
		websearch.WithLogger(logger),
	)
	if search.Available() {
		handlers.Search = search
	} else {
		logger.Warn("TAVILY_API_KEY not set, web search handler disabled")
	}

	a.store = workflow.NewRunStore(cfg.Runs.MaxRuns, cfg.Runs.TTL)
	a.orch = workflow.New(r, handlers, workflow.NewSynthesizer(synthLLM),
		workflow.WithLogger(logger),
		workflow.WithRetryPolicy(policy),
		workflow.WithRunStore(a.store),
		workflow.WithParallel(cfg.ParallelHandlers),
	)
	return a, nil
}
