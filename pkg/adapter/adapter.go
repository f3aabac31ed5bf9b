package adapter

import (
	"context"
	"fmt"
	"strings"
)

// Adapter defines the interface for LLM provider adapters.
type Adapter interface {
	// Generate sends a prompt to the model and returns its text response.
	Generate(ctx context.Context, model string, prompt string) (*Response, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}

// Invoker is a text service that turns a prompt into text. The classifier,
// synthesizer and the LLM-backed handlers depend on this and nothing wider.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// LLM binds an adapter to a single model.
type LLM struct {
	adapter Adapter
	model   string
}

// NewLLM returns an Invoker that always calls a with model. An empty model
// selects the adapter's first listed model.
func NewLLM(a Adapter, model string) *LLM {
	if model == "" {
		if models := a.Models(); len(models) > 0 {
			model = models[0]
		}
	}
	return &LLM{adapter: a, model: model}
}

// Invoke sends prompt to the bound model.
func (l *LLM) Invoke(ctx context.Context, prompt string) (string, error) {
	resp, err := l.adapter.Generate(ctx, l.model, prompt)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("%s returned empty response", l.adapter.Name())
	}
	return strings.TrimSpace(resp.Content), nil
}

// String identifies the binding as adapter/model.
func (l *LLM) String() string {
	return l.adapter.Name() + "/" + l.model
}
