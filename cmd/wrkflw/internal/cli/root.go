// Package cli wires the cobra command tree for the wrkflw binary:
// validate, run, the recognized-but-unimplemented tui/trigger surface, and
// a minimal list command.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/sisaku-security/wrkflw/pkg/logging"
)

var (
	flagVerbose bool
	flagDebug   bool
	lastExit    int
)

// LastExitCode reports the exit code the most recently run subcommand
// wants the process to exit with (0 success, 1 failure).
func LastExitCode() int { return lastExit }

func setExit(code int) { lastExit = code }

// NewRootCommand builds the wrkflw command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "wrkflw",
		Short: "Run GitHub Actions and GitLab CI workflows locally",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := logging.Silent
			if flagVerbose {
				level = logging.Verbose
			}
			if flagDebug {
				level = logging.Debug
			}
			logging.SetGlobalLevel(level)
		},
	}
	root.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "print per-step progress")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "print debug-level tracing")

	root.AddCommand(newValidateCommand())
	root.AddCommand(newRunCommand())
	root.AddCommand(newTUICommand())
	root.AddCommand(newTriggerCommand())
	root.AddCommand(newTriggerGitLabCommand())
	root.AddCommand(newListCommand())
	return root
}
