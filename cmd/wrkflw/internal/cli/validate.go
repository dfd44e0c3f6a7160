package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sisaku-security/wrkflw/pkg/parser"
	"github.com/sisaku-security/wrkflw/pkg/validator"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [PATH]",
		Short: "Validate workflows at PATH or .github/workflows",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ".github/workflows"
			if len(args) == 1 {
				path = args[0]
			}
			files, err := discoverWorkflowFiles(path)
			if err != nil {
				setExit(1)
				return err
			}
			anyInvalid := false
			for _, f := range files {
				if !validateOne(cmd, f) {
					anyInvalid = true
				}
			}
			if anyInvalid {
				setExit(1)
			} else {
				setExit(0)
			}
			return nil
		},
	}
	return cmd
}

func discoverWorkflowFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	var out []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := strings.ToLower(filepath.Ext(p))
		if ext == ".yml" || ext == ".yaml" {
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

func validateOne(cmd *cobra.Command, path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
		return false
	}

	var wf, parseErrs = parser.Parse(data)
	if strings.HasSuffix(path, ".gitlab-ci.yml") {
		wf, parseErrs = parser.ParseGitLab(data)
	}
	if len(parseErrs) > 0 {
		for _, e := range parseErrs {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", path, e.Error())
		}
		return false
	}

	issues := validator.Validate(wf)
	for _, issue := range issues {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", path, issue.Error())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d issue(s)\n", path, len(issues))
	return len(issues) == 0
}
