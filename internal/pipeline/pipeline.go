// Package pipeline runs the fixed sequential agent pipelines.
//
// Each invocation step is one prompt render, one external LLM call, and
// one ledger append. Pipelines run strictly sequentially: a later step
// consumes the prior step's output as context, so there is no fan-out.
// A failed pipeline publishes no result; the caller keeps whatever
// result it had before.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/mwenda/kazi/internal/llm"
	"github.com/mwenda/kazi/internal/prompts"
	"github.com/mwenda/kazi/internal/usage"
)

// Decoding is pinned low to minimize output variance across repeated calls.
const temperature = 0.1

// Kind names a pipeline.
type Kind string

const (
	KindPlan       Kind = "plan"
	KindAllocation Kind = "allocation"
	KindStatus     Kind = "status"
)

// ProjectInput feeds the planning pipeline. Immutable once submitted.
type ProjectInput struct {
	Description string
	Team        string
}

// AllocationInput feeds the allocation pipeline. Plan is the plan text
// tasks are allocated against, typically the latest planning output.
type AllocationInput struct {
	Plan string
	Team string
}

// StatusInput feeds the status pipeline. Immutable once submitted.
type StatusInput struct {
	Status       string
	Deliverables string
}

// StepResult is one completed invocation step.
type StepResult struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
	Output string `json:"output"`
}

// Result is one completed pipeline run. Created fresh per invocation;
// the session keeps only the latest Result per Kind.
type Result struct {
	Kind       Kind         `json:"kind"`
	Steps      []StepResult `json:"steps"`
	FinishedAt time.Time    `json:"finished_at"` // UTC.
}

// Output returns the final step's output text.
func (r *Result) Output() string {
	if len(r.Steps) == 0 {
		return ""
	}
	return r.Steps[len(r.Steps)-1].Output
}

// Runner executes pipelines against an LLM provider.
type Runner struct {
	provider  llm.Provider
	logger    *slog.Logger
	maxTokens int
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithMaxTokens caps the completion length of every step. Zero leaves
// the provider default in place.
func WithMaxTokens(n int) RunnerOption {
	return func(r *Runner) {
		r.maxTokens = n
	}
}

// NewRunner creates a pipeline runner.
func NewRunner(provider llm.Provider, logger *slog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{provider: provider, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunPlanning executes the planning pipeline: [planner].
func (r *Runner) RunPlanning(ctx context.Context, ledger *usage.Ledger, in ProjectInput) (*Result, error) {
	step, err := r.invoke(ctx, ledger, prompts.Planner, map[string]string{
		prompts.FieldDescription: in.Description,
		prompts.FieldTeam:        in.Team,
	})
	if err != nil {
		return nil, err
	}
	return newResult(KindPlan, step), nil
}

// RunAllocation executes the allocation pipeline: [allocator].
func (r *Runner) RunAllocation(ctx context.Context, ledger *usage.Ledger, in AllocationInput) (*Result, error) {
	step, err := r.invoke(ctx, ledger, prompts.Allocator, map[string]string{
		prompts.FieldPlan: in.Plan,
		prompts.FieldTeam: in.Team,
	})
	if err != nil {
		return nil, err
	}
	return newResult(KindAllocation, step), nil
}

// RunStatus executes the status pipeline: [monitor, reviewer]. The
// monitor step's output is passed to the reviewer as context. The
// reviewer never starts before the monitor call completes.
func (r *Runner) RunStatus(ctx context.Context, ledger *usage.Ledger, in StatusInput) (*Result, error) {
	monitor, err := r.invoke(ctx, ledger, prompts.Monitor, map[string]string{
		prompts.FieldStatus: in.Status,
	})
	if err != nil {
		return nil, err
	}

	review, err := r.invoke(ctx, ledger, prompts.Reviewer, map[string]string{
		prompts.FieldDeliverables: in.Deliverables,
		prompts.FieldAnalysis:     monitor.Output,
	})
	if err != nil {
		return nil, err
	}

	return newResult(KindStatus, monitor, review), nil
}

// invoke runs one step: render, call, record. On success it appends
// exactly one usage record; a failed call appends nothing.
func (r *Runner) invoke(ctx context.Context, ledger *usage.Ledger, id prompts.TemplateID, fields map[string]string) (StepResult, error) {
	tmpl, err := prompts.Lookup(id)
	if err != nil {
		return StepResult{}, &ValidationError{Step: string(id), Err: err}
	}

	rendered, err := tmpl.Render(fields)
	if err != nil {
		return StepResult{}, &ValidationError{Step: string(id), Err: err}
	}

	resp, err := r.provider.Complete(ctx, &llm.Request{
		SystemPrompt: tmpl.System(),
		Prompt:       rendered,
		MaxTokens:    r.maxTokens,
		Temperature:  temperature,
	})
	if err != nil {
		return StepResult{}, &UpstreamError{Step: string(id), Err: err}
	}

	// Prefer usage counts the API actually reported; fall back to the
	// length heuristic when the provider returned none.
	tokens := resp.Usage.TotalTokens()
	if !resp.Usage.Reported() {
		tokens = usage.EstimateTokens(rendered + resp.Content)
	}
	ledger.Record(tmpl.Operation, tokens, usage.Cost(tokens))

	r.logger.InfoContext(ctx, "invocation step completed",
		slog.String("step", string(id)),
		slog.String("operation", tmpl.Operation),
		slog.Int("tokens", tokens),
	)

	return StepResult{Name: string(id), Prompt: rendered, Output: resp.Content}, nil
}

func newResult(kind Kind, steps ...StepResult) *Result {
	return &Result{Kind: kind, Steps: steps, FinishedAt: time.Now().UTC()}
}
