package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sisaku-security/wrkflw/pkg/registry"
)

func TestEmulationDriverAvailableAndNoopImageOps(t *testing.T) {
	e := NewEmulationDriver(registry.New(nil), false)
	assert.True(t, e.Available(context.Background()))
	assert.NoError(t, e.Pull(context.Background(), "ignored:latest"))
	assert.NoError(t, e.Build(context.Background(), "Dockerfile", "ignored:latest"))
}

func TestEmulationDriverRunSucceeds(t *testing.T) {
	reg := registry.New(nil)
	e := NewEmulationDriver(reg, true)

	result, err := e.Run(context.Background(), "ignored", []string{"sh", "-c", "echo hello"}, nil, t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Stdout, "hello")
	assert.Equal(t, 0, reg.Counts().Processes)
}

func TestEmulationDriverRunNonZeroExit(t *testing.T) {
	reg := registry.New(nil)
	e := NewEmulationDriver(reg, true)

	result, err := e.Run(context.Background(), "ignored", []string{"sh", "-c", "exit 3"}, nil, t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
}

func TestEmulationDriverRunMissingTool(t *testing.T) {
	reg := registry.New(nil)
	e := NewEmulationDriver(reg, true)

	result, err := e.Run(context.Background(), "ignored", []string{"definitely-not-a-real-binary-xyz"}, nil, t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExitCode)
	assert.Contains(t, result.Stderr, "not on PATH")
}

func TestEmulationDriverStageWorkspaceCopiesAndSkipsHidden(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "main.go"), []byte("package main"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(src, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, ".git", "HEAD"), []byte("ref: refs/heads/main"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(src, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "node_modules", "pkg.json"), []byte("{}"), 0o644))

	reg := registry.New(nil)
	e := NewEmulationDriver(reg, true)

	root, err := e.StageWorkspace("wrkflw-test", []Volume{{HostPath: src, ContainerPath: "workspace"}})
	require.NoError(t, err)
	defer os.RemoveAll(root)

	_, err = os.Stat(filepath.Join(root, "workspace", "main.go"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "workspace", ".git"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "workspace", "node_modules"))
	assert.True(t, os.IsNotExist(err))

	assert.Equal(t, 1, reg.Counts().Workspaces)
}

func TestEmulationDriverNotifyActionEmulatedHiddenDoesNotPanic(t *testing.T) {
	e := NewEmulationDriver(registry.New(nil), true)
	e.NotifyActionEmulated("actions/setup-go@v5")
}
