package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sisaku-security/wrkflw/pkg/ast"
	"github.com/sisaku-security/wrkflw/pkg/registry"
	"github.com/sisaku-security/wrkflw/pkg/runtime"
)

func runStep(cmd string) *ast.Step {
	return &ast.Step{Index: 1, Exec: ast.Exec{Run: cmd}, Env: map[string]string{}}
}

func newEmulationEngine() (*Engine, *registry.Registry) {
	reg := registry.New(nil)
	emu := runtime.NewEmulationDriver(reg, true)
	return New(nil, emu, reg, Emulation, false), reg
}

func TestRunSingleSuccessfulJob(t *testing.T) {
	eng, reg := newEmulationEngine()
	defer reg.CleanupAll(context.Background(), 0)

	wf := &ast.Workflow{
		Name:     "ci",
		JobOrder: []string{"build"},
		Jobs: map[string]*ast.Job{
			"build": {ID: "build", RunsOn: "ubuntu-latest", Env: map[string]string{}, Steps: []*ast.Step{runStep("exit 0")}},
		},
	}

	result, err := eng.Run(context.Background(), wf)
	require.NoError(t, err)
	require.Len(t, result.Jobs, 1)
	assert.Equal(t, ast.StatusSuccess, result.Jobs[0].Status)
	assert.True(t, result.Success())
}

func TestRunFailingJobSkipsDownstreamDependent(t *testing.T) {
	eng, reg := newEmulationEngine()
	defer reg.CleanupAll(context.Background(), 0)

	wf := &ast.Workflow{
		Name:     "ci",
		JobOrder: []string{"build", "deploy"},
		Jobs: map[string]*ast.Job{
			"build":  {ID: "build", RunsOn: "ubuntu-latest", Env: map[string]string{}, Steps: []*ast.Step{runStep("exit 1")}},
			"deploy": {ID: "deploy", RunsOn: "ubuntu-latest", Needs: []string{"build"}, Env: map[string]string{}, Steps: []*ast.Step{runStep("exit 0")}},
		},
	}

	result, err := eng.Run(context.Background(), wf)
	require.NoError(t, err)
	require.Len(t, result.Jobs, 2)
	byID := map[string]*ast.JobResult{}
	for _, j := range result.Jobs {
		byID[j.JobID] = j
	}
	assert.Equal(t, ast.StatusFailure, byID["build"].Status)
	assert.Equal(t, ast.StatusSkipped, byID["deploy"].Status)
	assert.False(t, result.Success())
}

func TestRunMatrixJobProducesOneResultPerInstance(t *testing.T) {
	eng, reg := newEmulationEngine()
	defer reg.CleanupAll(context.Background(), 0)

	mc := ast.NewMatrixConfig()
	mc.ParameterNames = []string{"os", "node"}
	mc.Parameters = map[string][]any{
		"os":   {"ubuntu", "macos"},
		"node": {14, 16},
	}

	wf := &ast.Workflow{
		Name:     "ci",
		JobOrder: []string{"t"},
		Jobs: map[string]*ast.Job{
			"t": {ID: "t", RunsOn: "ubuntu-latest", Env: map[string]string{}, Matrix: mc, Steps: []*ast.Step{runStep("exit 0")}},
		},
	}

	result, err := eng.Run(context.Background(), wf)
	require.NoError(t, err)
	require.Len(t, result.Jobs, 4)
	for _, j := range result.Jobs {
		assert.Equal(t, "t", j.JobID)
		assert.Equal(t, ast.StatusSuccess, j.Status)
		assert.Contains(t, j.DisplayName, "t (")
	}
}

func TestRunReusableWorkflowJobIsSkippedNotExecuted(t *testing.T) {
	eng, reg := newEmulationEngine()
	defer reg.CleanupAll(context.Background(), 0)

	wf := &ast.Workflow{
		Name:     "ci",
		JobOrder: []string{"call"},
		Jobs: map[string]*ast.Job{
			"call": {ID: "call", UsesReusable: "org/repo/.github/workflows/shared.yml@main"},
		},
	}

	result, err := eng.Run(context.Background(), wf)
	require.NoError(t, err)
	require.Len(t, result.Jobs, 1)
	assert.Equal(t, ast.StatusSkipped, result.Jobs[0].Status)
}

func TestRunContinueOnErrorStepDoesNotFailJob(t *testing.T) {
	eng, reg := newEmulationEngine()
	defer reg.CleanupAll(context.Background(), 0)

	failingStep := runStep("exit 1")
	failingStep.ContinueOnError = true

	wf := &ast.Workflow{
		Name:     "ci",
		JobOrder: []string{"build"},
		Jobs: map[string]*ast.Job{
			"build": {ID: "build", RunsOn: "ubuntu-latest", Env: map[string]string{}, Steps: []*ast.Step{failingStep, runStep("exit 0")}},
		},
	}

	result, err := eng.Run(context.Background(), wf)
	require.NoError(t, err)
	require.Len(t, result.Jobs, 1)
	assert.Equal(t, ast.StatusSuccess, result.Jobs[0].Status)
	require.Len(t, result.Jobs[0].Steps, 2)
	assert.Equal(t, ast.StatusFailure, result.Jobs[0].Steps[0].Status)
	assert.Equal(t, ast.StatusSuccess, result.Jobs[0].Steps[1].Status)
}
