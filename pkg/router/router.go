// Package router decides which handlers should answer a question.
package router

import (
	"context"
	"log/slog"
)

// Router scores a question against the registry and selects every handler
// whose confidence reaches its threshold.
type Router struct {
	registry   *Registry
	classifier Classifier
	logger     *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithLogger sets the logger used for routing decisions.
func WithLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a router over registry using classifier for confidences.
func New(registry *Registry, classifier Classifier, opts ...RouterOption) *Router {
	r := &Router{
		registry:   registry,
		classifier: classifier,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the router's handler registry.
func (r *Router) Registry() *Registry {
	return r.registry
}

// Route classifies question and returns the selection. Classification
// failures are absorbed: every confidence becomes 0 and the fallback handler
// is selected.
func (r *Router) Route(ctx context.Context, question string) *Decision {
	decision := &Decision{Question: question}

	confidences, err := r.classifier.Classify(ctx, question)
	if err != nil {
		r.logger.Warn("classification failed, using zero confidences",
			"question", question, "error", err)
		decision.ClassifierError = err.Error()
		confidences = nil
	}

	for _, spec := range r.registry.specs {
		confidence := confidences[spec.Name]
		selected := confidence >= spec.Threshold
		decision.Scores = append(decision.Scores, HandlerScore{
			Name:       spec.Name,
			Confidence: confidence,
			Threshold:  spec.Threshold,
			Selected:   selected,
		})
		if selected {
			decision.Selected = append(decision.Selected, spec.Name)
		}
	}
	if len(decision.Selected) == 0 {
		decision.Selected = []string{r.registry.fallback}
	}

	r.logger.Info("routed question", "question", question, "selected", decision.Selected)
	return decision
}

// DetailedRouting returns the full per-handler breakdown with confidences
// rounded to two decimals. It has no side effects beyond classification.
func (r *Router) DetailedRouting(ctx context.Context, question string) *Decision {
	return r.Route(ctx, question).Rounded()
}
