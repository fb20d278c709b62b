package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ppiankov/scriptforge/internal/config"
	"github.com/ppiankov/scriptforge/internal/runner"
	"github.com/ppiankov/scriptforge/internal/state"
	"github.com/ppiankov/scriptforge/internal/task"
	"github.com/ppiankov/scriptforge/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var (
		poll  bool
		flags runFlags
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Execute task files as they are dropped into a directory",
		Long:  "Watch executes every task file already in <dir>, then each new one, writing <file>.result.json next to it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			flags.applySettings(cmd, cfg)
			return runWatch(args[0], poll, flags, cfg)
		},
	}

	cmd.Flags().BoolVar(&poll, "poll", false, "poll the directory instead of using filesystem events")
	flags.register(cmd)

	return cmd
}

func runWatch(dir string, poll bool, flags runFlags, cfg *config.Settings) error {
	base, err := parseContext(flags.context)
	if err != nil {
		return err
	}
	opts, err := flags.options(cfg)
	if err != nil {
		return err
	}

	tracker := state.Load(flags.stateFile)
	tracker.RecoverInterrupted()

	exec := &taskExecutor{
		runner:     runner.NewPoetryRunner(opts),
		tracker:    tracker,
		maxRuntime: flags.maxRuntime,
		base:       base,
	}

	w, err := watcher.New(watcher.Config{
		Dir:      dir,
		PollMode: poll,
		ExecFn:   fileExecFunc(exec, cfg),
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	return w.Run(ctx)
}

// fileExecFunc loads one task file and runs all of its tasks.
func fileExecFunc(exec *taskExecutor, cfg *config.Settings) watcher.ExecFunc {
	return func(ctx context.Context, path string) ([]*task.TaskResult, error) {
		tf, err := loadTasks([]string{path}, cfg)
		if err != nil {
			return nil, err
		}
		return exec.runAll(ctx, tf.Tasks), nil
	}
}
