package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version, Commit and BuildDate are set via LDFLAGS at build time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var (
	verbose    bool
	configFile string
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scriptforge",
		Short: "Run Python functions inside Poetry-managed Django projects",
		Long:  "scriptforge serializes task arguments, generates a Django bootstrap script, and runs a target function inside the project's Poetry environment.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&configFile, "config", ".scriptforge.yml", "path to config file")

	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateTasksCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newVersionCmd())

	return root
}
