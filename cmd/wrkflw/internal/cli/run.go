package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sisaku-security/wrkflw/pkg/ast"
	"github.com/sisaku-security/wrkflw/pkg/config"
	"github.com/sisaku-security/wrkflw/pkg/engine"
	"github.com/sisaku-security/wrkflw/pkg/parser"
	"github.com/sisaku-security/wrkflw/pkg/registry"
	"github.com/sisaku-security/wrkflw/pkg/runtime"
)

func newRunCommand() *cobra.Command {
	var emulate bool
	var showActionMessages bool

	cmd := &cobra.Command{
		Use:   "run PATH",
		Short: "Execute a single workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				setExit(1)
				return err
			}

			wf, parseErrs := parser.Parse(data)
			if len(parseErrs) > 0 {
				setExit(1)
				for _, e := range parseErrs {
					fmt.Fprintln(cmd.ErrOrStderr(), e.Error())
				}
				return nil
			}

			cfg, _ := config.Load(".wrkflw.yaml")
			cfg = config.ApplyEnv(cfg)
			hideMessages := cfg.HideActionMessages && !showActionMessages
			if os.Getenv("WRKFLW_HIDE_ACTION_MESSAGES") == "true" {
				hideMessages = !showActionMessages
			}

			reg := registry.New(nil)
			emu := runtime.NewEmulationDriver(reg, hideMessages)

			var eng *engine.Engine
			if emulate {
				eng = engine.New(nil, emu, reg, engine.Emulation, flagVerbose)
			} else {
				containerDriver, err := runtime.NewContainerDriver(reg)
				if err != nil {
					eng = engine.New(nil, emu, reg, engine.Auto, flagVerbose)
				} else {
					eng = engine.New(containerDriver, emu, reg, engine.Auto, flagVerbose)
				}
			}

			cleanup := engine.NewCleanup(reg)
			stop := cleanup.InstallSignalHandler()
			defer stop()
			defer cleanup.Run(0, 0)

			result, err := eng.Run(context.Background(), wf)
			if err != nil {
				setExit(1)
				return err
			}

			printResult(cmd, result)
			if result.Success() {
				setExit(0)
			} else {
				setExit(1)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&emulate, "emulate", false, "force the emulation driver instead of auto-detecting a container engine")
	cmd.Flags().BoolVar(&showActionMessages, "show-action-messages", false, "show \"would execute GitHub action\" emulation notices")
	return cmd
}

// printResult renders the per-step/per-job/per-workflow result summary.
func printResult(cmd *cobra.Command, result *ast.ExecutionResult) {
	out := cmd.OutOrStdout()
	for _, job := range result.Jobs {
		fmt.Fprintf(out, "%s %s\n", statusIcon(job.Status), job.DisplayName)
		for _, step := range job.Steps {
			fmt.Fprintf(out, "  %s %s", statusIcon(step.Status), step.Name)
			if step.Status == ast.StatusFailure {
				fmt.Fprintf(out, " (exit %d)", step.ExitCode)
			}
			fmt.Fprintln(out)
		}
	}
	if result.Success() {
		fmt.Fprintln(out, "all jobs succeeded")
	} else {
		fmt.Fprintln(out, "one or more jobs failed")
	}
}

func statusIcon(s ast.Status) string {
	switch s {
	case ast.StatusSuccess:
		return "✓"
	case ast.StatusSkipped:
		return "○"
	default:
		return "✗"
	}
}
