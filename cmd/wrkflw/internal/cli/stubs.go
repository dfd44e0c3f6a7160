package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// These four commands (terminal UI, remote triggers, workflow enumeration)
// are out of scope for the core this module implements. They are hidden
// from `wrkflw --help`. tui, trigger and trigger-gitlab are recognized but
// unimplemented and always fail; list only prints the workflow files found
// under .github/workflows.

func newTUICommand() *cobra.Command {
	return &cobra.Command{
		Use:    "tui [PATH]",
		Short:  "Launch the terminal UI (out of scope for this build)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			setExit(1)
			return fmt.Errorf("tui is not implemented by this build")
		},
	}
}

func newTriggerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "trigger WORKFLOW",
		Short:  "Trigger a workflow via the GitHub REST API (out of scope for this build)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			setExit(1)
			return fmt.Errorf("remote trigger is not implemented by this build")
		},
	}
	cmd.Flags().String("branch", "", "branch to dispatch against")
	cmd.Flags().StringArray("input", nil, "workflow_dispatch input, k=v")
	return cmd
}

func newTriggerGitLabCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "trigger-gitlab",
		Short:  "Trigger a pipeline via the GitLab REST API (out of scope for this build)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			setExit(1)
			return fmt.Errorf("remote GitLab trigger is not implemented by this build")
		},
	}
	cmd.Flags().String("branch", "", "branch to run the pipeline against")
	cmd.Flags().StringArray("variable", nil, "pipeline variable, k=v")
	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "list",
		Short:  "List workflow files under .github/workflows",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := discoverWorkflowFiles(".github/workflows")
			if err != nil {
				setExit(1)
				return err
			}
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			setExit(0)
			return nil
		},
	}
}
