package runner

import (
	"context"

	"github.com/ppiankov/scriptforge/internal/task"
)

// Runner executes a task and returns its result.
// Implementations: PoetryRunner.
type Runner interface {
	Name() string
	Run(ctx context.Context, t *task.Task, tctx task.Context) *task.TaskResult
}

// Step names the subprocess invocations of one execution.
const (
	StepBootstrap = "bootstrap"
	StepExecute   = "execute"
)

// Command is a single shell invocation.
type Command struct {
	Step   string
	RunID  string
	Dir    string // working directory; empty inherits the caller's
	Script string // passed to the shell via -c
	// Args lists the artifact paths already quoted into Script. Executors
	// do not append them; they are carried for logging and inspection.
	Args []string
	Env  map[string]string
}

// Executor runs shell commands to completion.
type Executor interface {
	Run(ctx context.Context, cmd Command) error
}
