package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zen-systems/finquery/pkg/config"
	"github.com/zen-systems/finquery/pkg/handler"
	"github.com/zen-systems/finquery/pkg/retry"
	"github.com/zen-systems/finquery/pkg/router"
)

// Router is the routing surface the orchestrator depends on.
type Router interface {
	Route(ctx context.Context, question string) *router.Decision
	DetailedRouting(ctx context.Context, question string) *router.Decision
	Registry() *router.Registry
}

// FollowUpFunc inspects a synthesized run and returns further handlers to run
// in another round. Returning none completes the run.
type FollowUpFunc func(state *RunState) []string

// Orchestrator drives runs through ROUTING, PROCESSING and COMPLETE.
type Orchestrator struct {
	router    Router
	steps     []Step
	synth     *Synthesizer
	policy    retry.Policy
	parallel  bool
	store     *RunStore
	maxRounds int
	followUp  FollowUpFunc
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRetryPolicy sets the policy applied to each retried handler step.
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *Orchestrator) {
		o.policy = p
	}
}

// WithParallel runs the selected handler steps concurrently. Results are
// still recorded in step order.
func WithParallel(parallel bool) Option {
	return func(o *Orchestrator) {
		o.parallel = parallel
	}
}

// WithRunStore keeps completed runs for later retrieval by ID.
func WithRunStore(store *RunStore) Option {
	return func(o *Orchestrator) {
		o.store = store
	}
}

// WithFollowUp enables multi-round runs: after synthesis, fn may request more
// handlers and the run loops back to PROCESSING, at most maxRounds times in
// total.
func WithFollowUp(fn FollowUpFunc, maxRounds int) Option {
	return func(o *Orchestrator) {
		o.followUp = fn
		if maxRounds > 0 {
			o.maxRounds = maxRounds
		}
	}
}

// New creates an orchestrator.
func New(r Router, handlers Handlers, synth *Synthesizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		router:    r,
		steps:     handlers.Steps(),
		synth:     synth,
		policy:    retry.DefaultPolicy(),
		maxRounds: 1,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Artifacts are auxiliary outputs of a run.
type Artifacts struct {
	VisualizationBase64 string             `json:"visualization_base64,omitempty"`
	VisualizationPath   string             `json:"visualization_path,omitempty"`
	VisualizationURL    string             `json:"visualization_url,omitempty"`
	ChartInfo           *handler.ChartInfo `json:"chart_info,omitempty"`
}

// Outcome is the result of a completed run.
type Outcome struct {
	RunID          string           `json:"run_id"`
	Question       string           `json:"question"`
	FinalAnswer    string           `json:"answer"`
	Decision       *router.Decision `json:"routing_info"`
	Results        []Result         `json:"results"`
	Artifacts      Artifacts        `json:"artifacts"`
	CurrentHandler string           `json:"current_handler"`
}

// RouteOnly returns the detailed routing for question without running it.
func (o *Orchestrator) RouteOnly(ctx context.Context, question string) (*router.Decision, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	return o.router.DetailedRouting(ctx, question), nil
}

// Store returns the run store, or nil.
func (o *Orchestrator) Store() *RunStore {
	return o.store
}

// ProcessQuestion runs question to completion. A non-empty pinned handler
// skips routing and runs only that handler. Handler failures are absorbed;
// only invalid states, cancellation and synthesis failures are returned.
func (o *Orchestrator) ProcessQuestion(ctx context.Context, question, pinned string) (*Outcome, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	state := &RunState{
		ID:       uuid.NewString(),
		Question: question,
		Phase:    PhaseRouting,
	}
	if pinned != "" {
		if _, ok := o.router.Registry().Lookup(pinned); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownHandler, pinned)
		}
		state.Phase = PhaseProcessing
		state.Selected = []string{pinned}
		state.Decision = &router.Decision{Question: question, Selected: []string{pinned}}
	}

	logger := o.logger.With("run_id", state.ID)
	if err := o.run(ctx, state, logger); err != nil {
		logger.Error("run failed", "question", question, "error", err)
		return nil, err
	}

	outcome := &Outcome{
		RunID:       state.ID,
		Question:    state.Question,
		FinalAnswer: state.FinalAnswer,
		Decision:    state.Decision,
		Results:     state.Results,
		Artifacts:   collectArtifacts(state.Results),
	}
	outcome.CurrentHandler = CurrentHandler(state.Selected, state.Results, outcome.Artifacts.VisualizationBase64 != "")
	if o.store != nil {
		o.store.Put(outcome)
	}
	return outcome, nil
}

func (o *Orchestrator) run(ctx context.Context, state *RunState, logger *slog.Logger) error {
	switch state.Phase {
	case PhaseRouting:
		state.Decision = o.router.Route(ctx, state.Question)
		state.Selected = append([]string(nil), state.Decision.Selected...)
		state.Phase = PhaseProcessing
	case PhaseProcessing:
	default:
		return &InvalidStateError{Phase: state.Phase, Transition: "start"}
	}

	for {
		if state.Phase != PhaseProcessing {
			return &InvalidStateError{Phase: state.Phase, Transition: "process"}
		}
		if err := o.processSteps(ctx, state, logger); err != nil {
			return err
		}

		answer, err := o.synth.Synthesize(ctx, state)
		if err != nil {
			return err
		}
		state.FinalAnswer = answer
		state.Phase = PhaseComplete
		state.Round++
		o.maybeLoopBack(state, logger)

		switch state.Phase {
		case PhaseComplete:
			return nil
		case PhaseProcessing:
			continue
		default:
			return &InvalidStateError{Phase: state.Phase, Transition: "end"}
		}
	}
}

// maybeLoopBack reopens a completed run when a follow-up requests handlers
// and rounds remain.
func (o *Orchestrator) maybeLoopBack(state *RunState, logger *slog.Logger) {
	if o.followUp == nil || state.Round >= o.maxRounds {
		return
	}
	next := o.followUp(state)
	if len(next) == 0 {
		return
	}
	logger.Info("looping back for follow-up handlers", "round", state.Round, "handlers", next)
	state.Selected = next
	state.Phase = PhaseProcessing
}

func (o *Orchestrator) processSteps(ctx context.Context, state *RunState, logger *slog.Logger) error {
	var active []Step
	for _, step := range o.steps {
		if !state.IsSelected(step.Name) {
			continue
		}
		if step.Run == nil {
			logger.Warn("selected handler is not configured", "handler", step.Name)
			continue
		}
		active = append(active, step)
	}

	if o.parallel && len(active) > 1 {
		return o.processParallel(ctx, state, active, logger)
	}

	for _, step := range active {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, ok := o.runStep(ctx, step, state.Question, logger)
		if ok {
			state.Append(result)
		}
	}
	return ctx.Err()
}

func (o *Orchestrator) processParallel(ctx context.Context, state *RunState, active []Step, logger *slog.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	results := make([]*Result, len(active))
	var g errgroup.Group
	for i, step := range active {
		g.Go(func() error {
			if result, ok := o.runStep(ctx, step, state.Question, logger); ok {
				results[i] = &result
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r != nil {
			state.Append(*r)
		}
	}
	return ctx.Err()
}

// runStep invokes one handler. Failures are logged and reported as ok=false.
func (o *Orchestrator) runStep(ctx context.Context, step Step, question string, logger *slog.Logger) (Result, bool) {
	var (
		result Result
		err    error
	)
	if step.Retry {
		result, err = retry.Do(ctx, o.policy, func(ctx context.Context) (Result, error) {
			return step.Run(ctx, question)
		}, retry.WithOnRetry(func(attempt int, err error) {
			logger.Warn("handler attempt failed", "handler", step.Name, "attempt", attempt, "error", err)
		}))
	} else {
		result, err = step.Run(ctx, question)
	}

	if err != nil {
		var exhausted *retry.ExhaustedRetriesError
		if errors.As(err, &exhausted) {
			logger.Error("handler exhausted retries", "handler", step.Name, "attempt", exhausted.Attempts, "error", exhausted.Err)
		} else {
			logger.Error("handler failed", "handler", step.Name, "error", err)
		}
		return Result{}, false
	}
	return result, true
}

func collectArtifacts(results []Result) Artifacts {
	var a Artifacts
	for _, r := range results {
		if r.HandlerName != config.HandlerVisualize || !r.Succeeded() {
			continue
		}
		a.VisualizationBase64, _ = r.AdditionalData["visualization_base64"].(string)
		a.VisualizationPath, _ = r.AdditionalData["visualization_path"].(string)
		a.VisualizationURL, _ = r.AdditionalData["visualization_url"].(string)
		a.ChartInfo, _ = r.AdditionalData["chart_info"].(*handler.ChartInfo)
		if a.VisualizationBase64 != "" {
			break
		}
	}
	return a
}
