package runner

import (
	"context"
	"time"

	"github.com/ppiankov/scriptforge/internal/task"
)

// PoetryRunner executes tasks through an Operator and reports timing and
// outcome as a TaskResult.
type PoetryRunner struct {
	opts Options
}

// NewPoetryRunner creates a PoetryRunner sharing opts across tasks.
func NewPoetryRunner(opts Options) *PoetryRunner {
	return &PoetryRunner{opts: opts}
}

// Name returns the runner identifier.
func (r *PoetryRunner) Name() string { return "poetry" }

// Run executes t once and returns the result.
func (r *PoetryRunner) Run(ctx context.Context, t *task.Task, tctx task.Context) *task.TaskResult {
	start := time.Now()
	op := NewOperator(t, r.opts)

	value, err := op.Execute(ctx, tctx)
	end := time.Now()

	result := &task.TaskResult{
		TaskID:    t.ID,
		RunID:     op.RunID(),
		StartedAt: start,
		EndedAt:   end,
		Duration:  end.Sub(start),
	}
	if err != nil {
		result.State = task.StateFailed
		result.Error = err.Error()
		return result
	}
	result.State = task.StateCompleted
	result.Value = value
	return result
}
