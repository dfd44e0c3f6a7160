// Package engine drives batch-by-batch, job-by-job, step-by-step workflow
// execution wired to a ContainerRuntime, a ResourceRegistry, and an
// environment context, plus the Cleanup coordinator that tears resources
// back down. Jobs within a batch run concurrently with a barrier between
// batches; a job's matrix sub-jobs are bounded by a semaphore sized by
// max-parallel.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sisaku-security/wrkflw/pkg/ast"
	"github.com/sisaku-security/wrkflw/pkg/dependency"
	"github.com/sisaku-security/wrkflw/pkg/environment"
	"github.com/sisaku-security/wrkflw/pkg/logging"
	"github.com/sisaku-security/wrkflw/pkg/matrix"
	"github.com/sisaku-security/wrkflw/pkg/registry"
	"github.com/sisaku-security/wrkflw/pkg/runtime"
	"github.com/sisaku-security/wrkflw/pkg/substitution"
	"github.com/sisaku-security/wrkflw/pkg/wfkerrors"
)

// RuntimeSelector chooses which driver backs execution.
type RuntimeSelector int

const (
	Auto RuntimeSelector = iota
	Container
	Emulation
)

// Engine drives one Workflow's execution to an ast.ExecutionResult.
type Engine struct {
	container *runtime.ContainerDriver
	emulation *runtime.EmulationDriver
	registry  *registry.Registry
	selector  RuntimeSelector
	verbose   bool
}

// New constructs an Engine. container may be nil when no engine connection
// could be established; the selector then always resolves to emulation.
func New(container *runtime.ContainerDriver, emulation *runtime.EmulationDriver, reg *registry.Registry, selector RuntimeSelector, verbose bool) *Engine {
	return &Engine{container: container, emulation: emulation, registry: reg, selector: selector, verbose: verbose}
}

// resolveDriver picks the driver for the current selector, falling back to
// emulation when a container engine was requested but is unavailable.
func (e *Engine) resolveDriver(ctx context.Context) runtime.ContainerRuntime {
	switch e.selector {
	case Emulation:
		return e.emulation
	case Container:
		if e.container != nil && e.container.Available(ctx) {
			return e.container
		}
		logging.Global().Warn("container runtime unavailable, falling back to emulation")
		return e.emulation
	default: // Auto
		if e.container != nil && e.container.Available(ctx) {
			return e.container
		}
		return e.emulation
	}
}

// Run executes wf end to end: build environment, resolve dependencies,
// walk batches with a barrier between them, run jobs (and their matrix
// sub-jobs) concurrently within a batch.
func (e *Engine) Run(ctx context.Context, wf *ast.Workflow) (*ast.ExecutionResult, error) {
	cwd, _ := os.Getwd()
	envCtx := environment.Build(wf, cwd)

	batches, err := dependency.Resolve(wf)
	if err != nil {
		return nil, err
	}

	driver := e.resolveDriver(ctx)

	resultsByJob := map[string][]*ast.JobResult{}
	failedOrSkipped := map[string]bool{}

	for _, batch := range batches {
		var eg errgroup.Group
		batchResults := make([][]*ast.JobResult, len(batch))

		for i, jobID := range batch {
			i, jobID := i, jobID
			job := wf.Jobs[jobID]
			eg.Go(func() error {
				skip := false
				for _, need := range job.Needs {
					if failedOrSkipped[need] {
						skip = true
					}
				}
				if skip {
					batchResults[i] = []*ast.JobResult{skippedJobResult(job)}
					return nil
				}
				batchResults[i] = e.runJob(ctx, driver, job, envCtx)
				return nil
			})
		}
		_ = eg.Wait()

		for _, rs := range batchResults {
			if len(rs) == 0 {
				continue
			}
			resultsByJob[rs[0].JobID] = rs
			for _, r := range rs {
				if r.Status != ast.StatusSuccess {
					failedOrSkipped[rs[0].JobID] = true
				}
			}
		}
	}

	out := &ast.ExecutionResult{}
	for _, id := range wf.JobOrder {
		out.Jobs = append(out.Jobs, resultsByJob[id]...)
	}
	return out, nil
}

func skippedJobResult(job *ast.Job) *ast.JobResult {
	now := time.Now()
	return &ast.JobResult{JobID: job.ID, DisplayName: job.ID, Status: ast.StatusSkipped, Started: now, Ended: now}
}

// runJob expands a job's matrix into concurrent sub-jobs bounded by
// maxParallel, composes env, stages a workspace, and runs steps
// sequentially within each sub-job. It returns one JobResult per matrix
// instance, or a single-element slice for a non-matrix job.
func (e *Engine) runJob(ctx context.Context, driver runtime.ContainerRuntime, job *ast.Job, envCtx map[string]string) []*ast.JobResult {
	if job.IsReusable() {
		// Reusable-workflow jobs are validated for reference shape but not
		// executed by this engine (see DESIGN.md: validate-only).
		now := time.Now()
		return []*ast.JobResult{{JobID: job.ID, DisplayName: job.ID, Status: ast.StatusSkipped, Started: now, Ended: now}}
	}

	jobEnv := mergeEnv(envCtx, job.Env)

	if job.Matrix == nil {
		sub := e.runSubJob(ctx, driver, job, jobEnv, nil)
		return []*ast.JobResult{{
			JobID: job.ID, DisplayName: job.ID, Status: sub.Status,
			Steps: sub.Steps, Started: sub.Started, Ended: sub.Ended,
		}}
	}

	instances, err := matrix.Expand(job.ID, job.Matrix)
	if err != nil {
		now := time.Now()
		return []*ast.JobResult{{
			JobID: job.ID, DisplayName: job.ID, Status: ast.StatusFailure,
			Steps:   []*ast.StepResult{executionErrorStep(err)},
			Started: now, Ended: now,
		}}
	}

	limit := int64(len(instances))
	if job.Matrix.MaxParallel > 0 {
		limit = int64(job.Matrix.MaxParallel)
	}
	sema := semaphore.NewWeighted(limit)

	var eg errgroup.Group
	subResults := make([]*ast.JobResult, len(instances))
	var failFastTripped atomic.Bool

	for i, inst := range instances {
		i, inst := i, inst
		eg.Go(func() error {
			if job.Matrix.FailFast && failFastTripped.Load() {
				now := time.Now()
				subResults[i] = &ast.JobResult{JobID: job.ID, DisplayName: inst.DisplayName(job.ID), Status: ast.StatusSkipped, Started: now, Ended: now}
				return nil
			}
			if err := sema.Acquire(ctx, 1); err != nil {
				return nil
			}
			defer sema.Release(1)

			if job.Matrix.FailFast && failFastTripped.Load() {
				now := time.Now()
				subResults[i] = &ast.JobResult{JobID: job.ID, DisplayName: inst.DisplayName(job.ID), Status: ast.StatusSkipped, Started: now, Ended: now}
				return nil
			}

			sub := e.runSubJob(ctx, driver, job, jobEnv, &inst)
			subResults[i] = &ast.JobResult{
				JobID: job.ID, DisplayName: inst.DisplayName(job.ID), Status: sub.Status,
				Steps: sub.Steps, Started: sub.Started, Ended: sub.Ended,
			}
			if sub.Status == ast.StatusFailure {
				failFastTripped.Store(true)
			}
			return nil
		})
	}
	_ = eg.Wait()

	return subResults
}

// subJobOutcome is the internal result of running one (possibly
// matrix-expanded) instance of a job's step sequence.
type subJobOutcome struct {
	Status  ast.Status
	Steps   []*ast.StepResult
	Started time.Time
	Ended   time.Time
}

// workspaceContainerPath is the canonical working directory for steps,
// bind-mounted (or staged, for the emulation driver) from the host
// checkout so that steps within the same job see each other's writes.
const workspaceContainerPath = "/github/workspace"

func (e *Engine) runSubJob(ctx context.Context, driver runtime.ContainerRuntime, job *ast.Job, jobEnv map[string]string, inst *matrix.Instance) subJobOutcome {
	started := time.Now()
	cwd, _ := os.Getwd()
	volumes := []runtime.Volume{{HostPath: cwd, ContainerPath: workspaceContainerPath}}
	workspace := workspaceContainerPath

	if emu, ok := driver.(*runtime.EmulationDriver); ok {
		ws, err := emu.StageWorkspace("wrkflw-job-"+job.ID, volumes)
		if err != nil {
			return subJobOutcome{Status: ast.StatusFailure, Steps: []*ast.StepResult{executionErrorStep(wfkerrors.IOError("staging workspace: %s", err.Error()))}, Started: started, Ended: time.Now()}
		}
		workspace = filepath.Join(ws, workspaceContainerPath)
	}

	failed := false
	var stepResults []*ast.StepResult

	for _, step := range job.Steps {
		if failed && !step.ContinueOnError {
			stepResults = append(stepResults, &ast.StepResult{Name: step.DisplayName(), Status: ast.StatusSkipped})
			continue
		}

		stepEnv := mergeEnv(jobEnv, step.Env)
		for k, v := range step.With {
			stepEnv["INPUT_"+strings.ToUpper(k)] = v
		}

		sr := e.runStep(ctx, driver, step, stepEnv, workspace, volumes, inst)
		stepResults = append(stepResults, sr)
		if sr.Status == ast.StatusFailure && !step.ContinueOnError {
			failed = true
		}
	}

	status := ast.StatusSuccess
	if failed {
		status = ast.StatusFailure
	}
	return subJobOutcome{Status: status, Steps: stepResults, Started: started, Ended: time.Now()}
}

func (e *Engine) runStep(ctx context.Context, driver runtime.ContainerRuntime, step *ast.Step, env map[string]string, workingDir string, volumes []runtime.Volume, inst *matrix.Instance) *ast.StepResult {
	started := time.Now()

	if step.Exec.IsRun() {
		cmd := substitution.Substitute(step.Exec.Run, func(ident string) (any, bool) {
			if inst == nil {
				return nil, false
			}
			return inst.Get(ident)
		})
		argv, err := runtime.SplitArgv(shellWrap(cmd, env["SHELL"]))
		if err != nil {
			return &ast.StepResult{Name: step.DisplayName(), Status: ast.StatusFailure, Stderr: err.Error(), ExitCode: 1, Started: started, Ended: time.Now()}
		}
		res, err := driver.Run(ctx, defaultRunnerImage, argv, env, workingDir, volumes)
		if err != nil {
			return &ast.StepResult{Name: step.DisplayName(), Status: ast.StatusFailure, Stderr: err.Error(), ExitCode: -1, Started: started, Ended: time.Now()}
		}
		status := ast.StatusSuccess
		if res.ExitCode != 0 {
			status = ast.StatusFailure
		}
		return &ast.StepResult{Name: step.DisplayName(), Status: status, Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.ExitCode, Started: started, Ended: time.Now()}
	}

	// uses: step.
	ref := step.Exec.Uses
	if isCheckoutAction(ref.Repository) {
		if emu, ok := driver.(*runtime.EmulationDriver); ok {
			emu.NotifyActionEmulated(ref.Raw)
		}
		return &ast.StepResult{Name: step.DisplayName(), Status: ast.StatusSuccess, Started: started, Ended: time.Now()}
	}

	img := runnerImageFor(ref)
	if emu, ok := driver.(*runtime.EmulationDriver); ok {
		emu.NotifyActionEmulated(ref.Raw)
	}
	res, err := driver.Run(ctx, img, []string{"true"}, env, workingDir, volumes)
	if err != nil {
		return &ast.StepResult{Name: step.DisplayName(), Status: ast.StatusFailure, Stderr: err.Error(), ExitCode: -1, Started: started, Ended: time.Now()}
	}
	status := ast.StatusSuccess
	if res.ExitCode != 0 {
		status = ast.StatusFailure
	}
	return &ast.StepResult{Name: step.DisplayName(), Status: status, Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.ExitCode, Started: started, Ended: time.Now()}
}

const defaultRunnerImage = "catthehacker/ubuntu:act-latest"

func isCheckoutAction(repo string) bool {
	return strings.HasPrefix(repo, "actions/checkout")
}

func runnerImageFor(ref *ast.ActionReference) string {
	switch ref.Kind {
	case ast.ActionDocker:
		return ref.Repository
	case ast.ActionLocal:
		return defaultRunnerImage
	default:
		return defaultRunnerImage
	}
}

func shellWrap(cmd, shell string) string {
	if shell == "" {
		shell = "bash"
	}
	return fmt.Sprintf("%s -c %q", shell, cmd)
}

func executionErrorStep(err error) *ast.StepResult {
	now := time.Now()
	return &ast.StepResult{Name: "Execution Error", Status: ast.StatusFailure, Stderr: err.Error(), ExitCode: -1, Started: now, Ended: now}
}

func mergeEnv(base, overlay map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
