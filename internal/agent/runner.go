package agent

import (
	"context"

	"github.com/butler-ai/butler/internal/tools"
)

// ToolExecutor runs one tool call. Satisfied by *tools.Executor.
type ToolExecutor interface {
	Execute(ctx context.Context, tool string, params map[string]any) tools.ExecutionResult
}

// Runner executes a plan's steps strictly in order. A later step may
// depend on an earlier step's side effect, so steps are never run in
// parallel and never retried. The runner makes no success judgment; it
// returns one result per step and policy lives in the orchestrator.
type Runner struct {
	executor ToolExecutor
}

// NewRunner creates a runner over the given executor.
func NewRunner(executor ToolExecutor) *Runner {
	return &Runner{executor: executor}
}

// Run executes every step, even after a failure, and returns results in
// step order with each step's purpose copied onto its result.
func (r *Runner) Run(ctx context.Context, steps []PlanStep) []tools.ExecutionResult {
	results := make([]tools.ExecutionResult, 0, len(steps))
	for _, step := range steps {
		result := r.executor.Execute(ctx, step.Tool, step.Params)
		result.Purpose = step.Purpose
		results = append(results, result)
	}
	return results
}
