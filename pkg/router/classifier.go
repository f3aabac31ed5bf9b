package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/zen-systems/finquery/pkg/adapter"
)

// Classifier scores a question against every registered handler.
type Classifier interface {
	Classify(ctx context.Context, question string) (map[string]float64, error)
}

// ClassificationError reports that the classification service could not be
// reached or its output could not be interpreted.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// LLMClassifier asks a text service for a JSON object of confidences.
type LLMClassifier struct {
	llm    adapter.Invoker
	specs  []HandlerSpec
	parser ConfidenceParser
}

// ClassifierOption configures an LLMClassifier.
type ClassifierOption func(*LLMClassifier)

// WithParser replaces the default BestEffortParser.
func WithParser(p ConfidenceParser) ClassifierOption {
	return func(c *LLMClassifier) {
		c.parser = p
	}
}

// NewLLMClassifier creates a classifier that scores the handlers in registry.
func NewLLMClassifier(llm adapter.Invoker, registry *Registry, opts ...ClassifierOption) *LLMClassifier {
	c := &LLMClassifier{
		llm:    llm,
		specs:  registry.Specs(),
		parser: BestEffortParser{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns a confidence for every registered handler.
func (c *LLMClassifier) Classify(ctx context.Context, question string) (map[string]float64, error) {
	raw, err := c.llm.Invoke(ctx, buildClassifierPrompt(question, c.specs))
	if err != nil {
		return nil, &ClassificationError{Err: err}
	}

	names := make([]string, len(c.specs))
	for i, spec := range c.specs {
		names[i] = spec.Name
	}
	scores, err := c.parser.Parse(raw, names)
	if err != nil {
		return nil, &ClassificationError{Err: err}
	}
	return scores, nil
}

func buildClassifierPrompt(question string, specs []HandlerSpec) string {
	var sb strings.Builder
	sb.WriteString("Classify the following question into one or more of these categories:\n")
	for i, spec := range specs {
		sb.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, spec.Name, spec.Description))
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n\nConsider how well the question fits each category. In particular:\n")
	sb.WriteString("- If the question asks for a chart, graph, plot, histogram, boxplot or any other visual ")
	sb.WriteString("rendering of data, favour \"visualize\".\n")
	sb.WriteString("- Only give \"visualize\" a high score (above 0.9) when a visual is clearly requested.\n\n")
	sb.WriteString("Return ONLY a JSON object with a confidence score for each category, summing to 1.0.\n")
	sb.WriteString("Example: {")
	for i, spec := range specs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%q: %.2f", spec.Name, 1/float64(len(specs))))
	}
	sb.WriteString("}\n")
	return sb.String()
}
