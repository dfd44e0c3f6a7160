package main

import (
	"fmt"
	"os"

	"github.com/sisaku-security/wrkflw/cmd/wrkflw/internal/cli"
)

// exitUsage distinguishes cobra's own argument-parsing failures from a
// validation/run failure, which each subcommand reports through
// cli.LastExitCode instead.
const exitUsage = 2

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if code := cli.LastExitCode(); code != 0 {
			os.Exit(code)
		}
		os.Exit(exitUsage)
	}
	os.Exit(cli.LastExitCode())
}
