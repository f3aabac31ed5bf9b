package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/zen-systems/finquery/pkg/adapter"
)

// NoResultsMessage is the answer when no handler produced a result.
const NoResultsMessage = "No results were produced by any handler. Please try again with a different question."

// Synthesizer merges handler results into one answer.
type Synthesizer struct {
	llm adapter.Invoker
}

// NewSynthesizer creates a synthesizer backed by llm.
func NewSynthesizer(llm adapter.Invoker) *Synthesizer {
	return &Synthesizer{llm: llm}
}

// Synthesize answers question from the run's results and appends the list of
// handlers that contributed. With no results the model is not called.
func (s *Synthesizer) Synthesize(ctx context.Context, state *RunState) (string, error) {
	if len(state.Results) == 0 {
		return NoResultsMessage, nil
	}

	answer, err := s.llm.Invoke(ctx, buildSynthesisPrompt(state.Question, state.BuildContext()))
	if err != nil {
		return "", fmt.Errorf("synthesize: %w", err)
	}
	return answer + Provenance(state.DistinctHandlerNames()), nil
}

// Provenance formats the handler attribution suffix.
func Provenance(names []string) string {
	return "\n\n---\n*Handlers used: " + strings.Join(names, ", ") + "*"
}

func buildSynthesisPrompt(question, context string) string {
	var sb strings.Builder
	sb.WriteString("Using the results from the handlers below, write one coherent, logical and easy to follow ")
	sb.WriteString("answer to the user's question.\n\n")
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nHandler results:\n")
	sb.WriteString(context)
	sb.WriteString("\n\nAnswer completely and accurately.\n")
	sb.WriteString("If a chart was produced, mention it and explain what it shows.\n")
	sb.WriteString("If there are concrete figures, cite them.\n")
	sb.WriteString("If there is recent information from web search, mention the source.\n")
	return sb.String()
}
