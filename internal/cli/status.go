package cli

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/scriptforge/internal/config"
	"github.com/ppiankov/scriptforge/internal/state"
)

func newStatusCmd() *cobra.Command {
	var stateFile string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recorded task executions",
		Long: `Show the execution history recorded by run and watch.

Use 'scriptforge status reset <id>' to forget one task or
'scriptforge status clear' to remove all recorded state.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, err := loadTracker(cmd, stateFile)
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), tracker)
		},
	}

	cmd.PersistentFlags().StringVar(&stateFile, "state-file", state.DefaultPath(), "path to the execution state file")

	cmd.AddCommand(&cobra.Command{
		Use:   "reset <task-id>",
		Short: "Forget the recorded state of one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, err := loadTracker(cmd, stateFile)
			if err != nil {
				return err
			}
			entry := tracker.Get(args[0])
			if entry == nil {
				return fmt.Errorf("task %q not found in state", args[0])
			}
			tracker.Reset(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Reset %q (was %s)\n", args[0], entry.Status)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove all recorded task state",
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, err := loadTracker(cmd, stateFile)
			if err != nil {
				return err
			}
			tracker.Clear()
			fmt.Fprintln(cmd.OutOrStdout(), "State cleared.")
			return nil
		},
	})

	return cmd
}

// loadTracker opens the state file, preferring the config file's path
// unless --state-file was given.
func loadTracker(cmd *cobra.Command, stateFile string) (*state.Tracker, error) {
	if !cmd.Flags().Changed("state-file") {
		cfg, err := config.LoadSettings(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if cfg.StateFile != "" {
			stateFile = cfg.StateFile
		}
	}
	return state.Load(stateFile), nil
}

func printStatus(out io.Writer, tracker *state.Tracker) error {
	entries := tracker.Entries()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No recorded executions.")
		return nil
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "TASK\tSTATUS\tRUN\tRUNS\tFINISHED\tDETAIL\n")
	for _, id := range ids {
		e := entries[id]
		finished := ""
		if !e.FinishedAt.IsZero() {
			finished = e.FinishedAt.Format("2006-01-02 15:04")
		}
		detail := e.Result
		if e.Error != "" {
			detail = e.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", id, e.Status, e.RunID, e.Executions, finished, detail)
	}
	return w.Flush()
}
