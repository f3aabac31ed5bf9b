package adapter

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockAdapter returns deterministic responses for local runs and tests.
// Responses are matched first by exact prompt, then by substring.
type MockAdapter struct {
	mu              sync.Mutex
	responses       map[string]string
	defaultResponse string
	prompts         []string
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		responses:       make(map[string]string),
		defaultResponse: "mock response:",
	}
}

// NewMockAdapterWithResponses creates a mock adapter with predefined responses.
func NewMockAdapterWithResponses(responses map[string]string, defaultResponse string) *MockAdapter {
	if defaultResponse == "" {
		defaultResponse = "mock response:"
	}
	if responses == nil {
		responses = make(map[string]string)
	}
	return &MockAdapter{responses: responses, defaultResponse: defaultResponse}
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return "mock"
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Prompts returns every prompt the adapter has received, in order.
func (a *MockAdapter) Prompts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.prompts...)
}

// Generate returns a deterministic response for the prompt.
func (a *MockAdapter) Generate(_ context.Context, model string, prompt string) (*Response, error) {
	if model == "" {
		model = "mock-1"
	}

	a.mu.Lock()
	a.prompts = append(a.prompts, prompt)
	a.mu.Unlock()

	if response, ok := a.responses[prompt]; ok {
		return &Response{Content: response, Adapter: a.Name(), Model: model}, nil
	}
	for key, response := range a.responses {
		if key != "" && strings.Contains(prompt, key) {
			return &Response{Content: response, Adapter: a.Name(), Model: model}, nil
		}
	}
	content := fmt.Sprintf("%s\n%s", a.defaultResponse, prompt)
	return &Response{Content: content, Adapter: a.Name(), Model: model}, nil
}
