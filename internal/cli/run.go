package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/scriptforge/internal/config"
	"github.com/ppiankov/scriptforge/internal/reporter"
	"github.com/ppiankov/scriptforge/internal/runner"
	"github.com/ppiankov/scriptforge/internal/script"
	"github.com/ppiankov/scriptforge/internal/state"
	"github.com/ppiankov/scriptforge/internal/task"
)

// runFlags are the flags shared by run and watch.
type runFlags struct {
	dagsRoot   string
	maxRuntime time.Duration
	logDir     string
	stateFile  string
	context    []string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.dagsRoot, "dags-root", runner.DefaultDagsRoot, "directory containing <stage>/<project> trees")
	cmd.Flags().DurationVar(&f.maxRuntime, "max-runtime", 0, "per-task timeout duration (0 disables)")
	cmd.Flags().StringVar(&f.logDir, "log-dir", "", "write subprocess output logs to this directory")
	cmd.Flags().StringVar(&f.stateFile, "state-file", state.DefaultPath(), "path to the execution state file")
	cmd.Flags().StringArrayVar(&f.context, "context", nil, "key=value entry added to every task context (repeatable)")
}

// applySettings fills flags the user did not set from the config file.
func (f *runFlags) applySettings(cmd *cobra.Command, cfg *config.Settings) {
	if !cmd.Flags().Changed("dags-root") && cfg.DagsRoot != "" {
		f.dagsRoot = cfg.DagsRoot
	}
	if !cmd.Flags().Changed("max-runtime") && cfg.MaxRuntime > 0 {
		f.maxRuntime = cfg.MaxRuntime
	}
	if !cmd.Flags().Changed("log-dir") && cfg.LogDir != "" {
		f.logDir = cfg.LogDir
	}
	if !cmd.Flags().Changed("state-file") && cfg.StateFile != "" {
		f.stateFile = cfg.StateFile
	}
}

// options builds runner options from flags and settings.
func (f *runFlags) options(cfg *config.Settings) (runner.Options, error) {
	root, err := filepath.Abs(f.dagsRoot)
	if err != nil {
		return runner.Options{}, fmt.Errorf("resolve dags root: %w", err)
	}
	return runner.Options{
		DagsRoot:  root,
		Toolchain: cfg.Poetry(),
		Generator: script.Generator{SettingsModule: cfg.SettingsModule},
		Executor:  runner.NewShellExecutor(f.logDir),
	}, nil
}

func newRunCmd() *cobra.Command {
	var (
		tasksFile string
		filter    string
		jsonOut   string
		flags     runFlags
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute script-runner tasks sequentially",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			flags.applySettings(cmd, cfg)
			return runTasks(cmd.OutOrStdout(), tasksFile, filter, jsonOut, flags, cfg)
		},
	}

	cmd.Flags().StringVar(&tasksFile, "tasks", "scriptforge.yml", "path to tasks file (supports glob patterns)")
	cmd.Flags().StringVar(&filter, "filter", "", "only run tasks matching ID glob pattern")
	cmd.Flags().StringVar(&jsonOut, "json", "", "also write results as JSON to this path")
	flags.register(cmd)

	return cmd
}

func runTasks(out io.Writer, tasksFile, filter, jsonOut string, flags runFlags, cfg *config.Settings) error {
	paths, err := config.ResolveGlob(tasksFile)
	if err != nil {
		return fmt.Errorf("resolve tasks: %w", err)
	}
	tf, err := loadTasks(paths, cfg)
	if err != nil {
		return err
	}
	if len(paths) > 1 {
		slog.Info("loaded multiple task files", "files", len(paths), "total_tasks", len(tf.Tasks))
	}

	tasks := tf.Tasks
	if filter != "" {
		tasks, err = filterTasks(tasks, filter)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			return fmt.Errorf("no tasks match filter %q", filter)
		}
	}

	base, err := parseContext(flags.context)
	if err != nil {
		return err
	}
	opts, err := flags.options(cfg)
	if err != nil {
		return err
	}
	if err := config.ValidateProjects(&task.TaskFile{Tasks: tasks}, opts.DagsRoot); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\ninterrupted, stopping current task...")
			cancel()
		case <-ctx.Done():
		}
	}()

	tracker := state.Load(flags.stateFile)
	if n := tracker.RecoverInterrupted(); n > 0 {
		slog.Warn("recovered interrupted tasks", "count", n)
	}

	rep := reporter.NewTextReporter(out, isTerminal())
	rep.PrintHeader(len(tasks), opts.DagsRoot)

	exec := &taskExecutor{
		runner:     runner.NewPoetryRunner(opts),
		tracker:    tracker,
		maxRuntime: flags.maxRuntime,
		base:       base,
		onResult:   rep.PrintResult,
	}
	results := exec.runAll(ctx, tasks)
	rep.PrintSummary(results)

	if jsonOut != "" {
		if err := reporter.WriteJSONResults(results, jsonOut); err != nil {
			return err
		}
	}
	return resultsError(results)
}

// loadTasks loads task files, resolves function aliases, and validates.
func loadTasks(paths []string, cfg *config.Settings) (*task.TaskFile, error) {
	tf, err := config.LoadMulti(paths)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	if err := config.Resolve(tf, cfg.Functions); err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	return tf, nil
}

// taskExecutor runs tasks one at a time, recording state for each.
type taskExecutor struct {
	runner     runner.Runner
	tracker    *state.Tracker
	maxRuntime time.Duration
	base       task.Context
	onResult   func(*task.TaskResult)
}

func (e *taskExecutor) runAll(ctx context.Context, tasks []task.Task) []*task.TaskResult {
	results := make([]*task.TaskResult, 0, len(tasks))
	for i := range tasks {
		if ctx.Err() != nil {
			slog.Warn("run cancelled, skipping remaining tasks", "remaining", len(tasks)-i)
			break
		}
		res := e.run(ctx, &tasks[i])
		results = append(results, res)
		if e.onResult != nil {
			e.onResult(res)
		}
	}
	return results
}

func (e *taskExecutor) run(ctx context.Context, t *task.Task) *task.TaskResult {
	if e.maxRuntime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.maxRuntime)
		defer cancel()
	}

	// Each task mutates its own context.
	tctx := make(task.Context, len(e.base))
	for k, v := range e.base {
		tctx[k] = v
	}

	if e.tracker != nil {
		e.tracker.MarkStarted(t.ID)
	}
	slog.Info("task started", "task", t.ID, "runner", e.runner.Name())
	res := e.runner.Run(ctx, t, tctx)

	if res.State == task.StateCompleted {
		slog.Info("task completed", "task", t.ID, "run_id", res.RunID, "duration", res.Duration)
		if e.tracker != nil {
			e.tracker.MarkCompleted(t.ID, res.RunID, summarize(res.Value))
		}
	} else {
		slog.Error("task failed", "task", t.ID, "run_id", res.RunID, "error", res.Error)
		if e.tracker != nil {
			e.tracker.MarkFailed(t.ID, res.RunID, res.Error)
		}
	}
	return res
}

func summarize(v any) string {
	if v == nil {
		return ""
	}
	return reporter.Truncate(fmt.Sprintf("%v", v), 120)
}

// resultsError returns an error when any task did not complete.
func resultsError(results []*task.TaskResult) error {
	var failed int
	for _, r := range results {
		if r.State != task.StateCompleted {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tasks failed", failed, len(results))
	}
	return nil
}

// filterTasks keeps tasks whose ID matches a glob pattern.
func filterTasks(tasks []task.Task, pattern string) ([]task.Task, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("bad filter %q: %w", pattern, err)
	}
	var filtered []task.Task
	for _, t := range tasks {
		if ok, _ := path.Match(pattern, t.ID); ok {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

// parseContext turns repeated key=value flags into a task context.
func parseContext(pairs []string) (task.Context, error) {
	ctx := make(task.Context, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("context entry %q: expected key=value", p)
		}
		ctx[k] = v
	}
	return ctx, nil
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
