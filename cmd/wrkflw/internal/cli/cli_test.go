package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodWorkflow = `
name: ci
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: exit 0
`

const badWorkflow = `
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: exit 0
        uses: actions/checkout@v4
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateCommandAcceptsWellFormedWorkflow(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ci.yml", goodWorkflow)

	cmd := newValidateCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, 0, LastExitCode())
	assert.Contains(t, out.String(), "0 issue(s)")
}

func TestValidateCommandFlagsStructuralIssues(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ci.yml", badWorkflow)

	cmd := newValidateCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, 1, LastExitCode())
	assert.Contains(t, out.String(), "missing a \"name\"")
	assert.Contains(t, out.String(), "both")
}

func TestValidateCommandWalksDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yml", goodWorkflow)
	writeFile(t, dir, "b.yaml", goodWorkflow)
	writeFile(t, dir, "notes.txt", "ignored")

	cmd := newValidateCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{dir})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, 0, LastExitCode())
}

func TestRunCommandEmulateSucceeds(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ci.yml", goodWorkflow)

	cmd := newRunCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--emulate", path})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, 0, LastExitCode())
	assert.Contains(t, out.String(), "all jobs succeeded")
}

func TestListCommandStubReportsWorkflowFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".github", "workflows"), 0o755))
	writeFile(t, filepath.Join(dir, ".github", "workflows"), "ci.yml", goodWorkflow)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	cmd := newListCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, 0, LastExitCode())
	assert.Contains(t, out.String(), "ci.yml")
}

func TestTUITriggerCommandsAreUnimplementedStubs(t *testing.T) {
	cmds := []interface {
		Execute() error
		SetArgs([]string)
	}{newTUICommand(), newTriggerCommand(), newTriggerGitLabCommand()}
	for _, cmd := range cmds {
		cmd.SetArgs([]string{})
		err := cmd.Execute()
		assert.Error(t, err)
		assert.Equal(t, 1, LastExitCode())
	}
}
