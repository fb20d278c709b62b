package runner

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/ppiankov/scriptforge/internal/artifact"
	"github.com/ppiankov/scriptforge/internal/script"
	"github.com/ppiankov/scriptforge/internal/task"
	"github.com/ppiankov/scriptforge/internal/toolchain"
)

// DefaultDagsRoot is where <stage>/<project> trees live unless configured.
const DefaultDagsRoot = "/opt/airflow/dags"

// Options configures how an Operator provisions and runs its task.
type Options struct {
	DagsRoot  string
	Toolchain toolchain.Poetry
	Generator script.Generator
	Executor  Executor

	// Test hooks; nil means time.Now, the global random source, and os.Environ.
	Now     func() time.Time
	Rand    *rand.Rand
	Environ func() []string
}

// Operator runs one task definition: it writes the argument artifacts,
// generates the runner script, makes sure the toolchain is installed, runs
// the script in the project's environment, and returns the decoded result.
type Operator struct {
	task      *task.Task
	opts      Options
	lastRunID string
}

// NewOperator binds a task definition to its execution options.
func NewOperator(t *task.Task, opts Options) *Operator {
	if opts.DagsRoot == "" {
		opts.DagsRoot = DefaultDagsRoot
	}
	if opts.Executor == nil {
		opts.Executor = NewShellExecutor("")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Environ == nil {
		opts.Environ = os.Environ
	}
	return &Operator{task: t, opts: opts}
}

// RunID returns the run identifier of the most recent Execute call.
func (o *Operator) RunID() string { return o.lastRunID }

// Execute runs the task once. tctx, when non-nil, receives the task's
// op_kwargs and templates_dict; it is not forwarded to the subprocess.
// Artifacts are removed before Execute returns, whatever the outcome.
func (o *Operator) Execute(ctx context.Context, tctx task.Context) (any, error) {
	t := o.task
	if tctx != nil {
		tctx.Merge(t)
	}

	dir := t.ProjectDir(o.opts.DagsRoot)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("project %s/%s not found at %s: %w", t.ProjectStage, t.ProjectName, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project path %s is not a directory", dir)
	}

	runID := artifact.NewRunID(o.opts.Now(), o.opts.Rand)
	o.lastRunID = runID
	set := artifact.NewSet(dir, runID)
	defer set.Cleanup()

	log := slog.With("task", t.ID, "run", runID)

	if _, err := artifact.WriteArgs(set.Input, t.SubprocessArgs(), t.SubprocessKwargs()); err != nil {
		return nil, err
	}
	if err := artifact.WriteStringArgs(set.StringArgs, t.StringArgs); err != nil {
		return nil, err
	}

	// The wrapper calls the target with no arguments unless forward_args is set.
	callable := script.Callable{Module: t.FunctionFilePath, Name: t.FunctionName, ForwardArgs: t.ForwardArgs}
	if err := o.opts.Generator.Write(set.Script, set.Template, callable); err != nil {
		return nil, err
	}

	env, err := BuildEnv(o.opts.Environ(), dir, t.EnvFiles, t.Env)
	if err != nil {
		return nil, err
	}

	bootstrap, err := o.opts.Toolchain.BootstrapScript()
	if err != nil {
		return nil, err
	}
	if err := o.opts.Executor.Run(ctx, Command{
		Step:   StepBootstrap,
		RunID:  runID,
		Script: bootstrap,
		Env:    env,
	}); err != nil {
		return nil, err
	}

	execScript, err := o.opts.Toolchain.ExecScript(dir, set.Script, set.ScriptArgs()...)
	if err != nil {
		return nil, err
	}
	if err := o.opts.Executor.Run(ctx, Command{
		Step:   StepExecute,
		RunID:  runID,
		Dir:    dir,
		Script: execScript,
		Args:   set.ScriptArgs(),
		Env:    env,
	}); err != nil {
		return nil, err
	}

	result, err := artifact.ReadResult(set.Output)
	if err != nil {
		return nil, err
	}

	log.Info("done", "returned", result)
	return result, nil
}
