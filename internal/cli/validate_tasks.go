package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/scriptforge/internal/config"
	"github.com/ppiankov/scriptforge/internal/task"
)

func newValidateTasksCmd() *cobra.Command {
	var (
		tasksFile string
		dagsRoot  string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate task files without running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return validateTasks(cmd.OutOrStdout(), tasksFile, dagsRoot, cfg)
		},
	}

	cmd.Flags().StringVar(&tasksFile, "tasks", "scriptforge.yml", "path to tasks file (supports glob patterns)")
	cmd.Flags().StringVar(&dagsRoot, "dags-root", "", "verify project directories exist under this root (optional)")

	return cmd
}

func validateTasks(out io.Writer, tasksFile, dagsRoot string, cfg *config.Settings) error {
	paths, err := config.ResolveGlob(tasksFile)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	tf, err := loadTasks(paths, cfg)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	if dagsRoot != "" {
		dagsRoot, err = filepath.Abs(dagsRoot)
		if err != nil {
			return fmt.Errorf("resolve dags root: %w", err)
		}
		if err := config.ValidateProjects(tf, dagsRoot); err != nil {
			return fmt.Errorf("validate: %w", err)
		}
	}

	fmt.Fprintf(out, "valid: %d tasks, %d projects, %d files\n", len(tf.Tasks), countProjects(tf.Tasks), len(paths))
	return nil
}

func countProjects(tasks []task.Task) int {
	seen := make(map[string]struct{})
	for _, t := range tasks {
		seen[t.ProjectStage+"/"+t.ProjectName] = struct{}{}
	}
	return len(seen)
}
