// Package runtime implements the ContainerRuntime capability and its two
// concrete drivers: ContainerDriver (a real container engine) and
// EmulationDriver (a host-process sandbox). The docker client wiring —
// client.NewClientWithOpts, container.Config/HostConfig, stdcopy.StdCopy
// log demultiplexing — follows the standard docker/docker/client idiom for
// a create/start/wait/collect-logs/remove lifecycle.
package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"

	"github.com/sisaku-security/wrkflw/pkg/registry"
	"github.com/sisaku-security/wrkflw/pkg/wfkerrors"
)

// RunResult is a run()'s (stdout, stderr, exitCode) triple.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Volume is a (hostPath, containerPath) bind mount.
type Volume struct {
	HostPath      string
	ContainerPath string
}

// ContainerRuntime is the capability interface: three operations,
// implemented identically in shape by both drivers so the execution engine
// can run the same job graph against either.
type ContainerRuntime interface {
	Run(ctx context.Context, image string, argv []string, env map[string]string, workingDir string, volumes []Volume) (RunResult, error)
	Pull(ctx context.Context, image string) error
	Build(ctx context.Context, dockerfilePath, tag string) error
	// Available answers whether this runtime can be used right now,
	// bounded at ~3 seconds end-to-end.
	Available(ctx context.Context) bool
}

// shapeArgv applies the shell-argv shaping rule: if any token references a
// `$GITHUB_*` variable or contains " &", wrap the whole command in
// `sh -c "... ; wait"` so background children finish before the container
// (or process) exits.
func shapeArgv(argv []string) []string {
	needsWrap := false
	for _, tok := range argv {
		if strings.Contains(tok, "$GITHUB_") || strings.Contains(tok, " &") {
			needsWrap = true
			break
		}
	}
	if !needsWrap {
		return argv
	}
	joined := strings.Join(argv, " ")
	return []string{"sh", "-c", joined + " ; wait"}
}

// --- ContainerDriver ---------------------------------------------------

// ContainerDriver connects to a local container engine over its Unix
// socket / named pipe.
type ContainerDriver struct {
	docker client.APIClient
	reg    *registry.Registry
}

// NewContainerDriver connects to the engine found via the standard
// DOCKER_HOST / environment discovery (client.FromEnv).
func NewContainerDriver(reg *registry.Registry) (*ContainerDriver, error) {
	dcli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, wfkerrors.RuntimeError("connecting to container engine").Wrap(err)
	}
	return &ContainerDriver{docker: dcli, reg: reg}, nil
}

// Available probes engine reachability, bounded at ~3 seconds.
func (d *ContainerDriver) Available(ctx context.Context) bool {
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := d.docker.Ping(cctx)
	return err == nil
}

func (d *ContainerDriver) Pull(ctx context.Context, img string) error {
	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	rc, err := d.docker.ImagePull(cctx, img, image.PullOptions{})
	if err != nil {
		// A pull failure is not fatal when a cached image exists; the
		// caller attempts create/start regardless and surfaces a
		// RuntimeError only if that subsequently fails for want of the
		// image.
		return nil
	}
	defer rc.Close()
	_, _ = io.Copy(io.Discard, rc)
	return nil
}

func (d *ContainerDriver) Build(ctx context.Context, dockerfilePath, tag string) error {
	// Image builds from a local Dockerfile are not exercised by the
	// action-execution path: docker:// actions and reusable default
	// runner images are pulled, not built; kept as a narrow stub
	// satisfying the ContainerRuntime interface.
	return wfkerrors.RuntimeError("image build is not supported by the container driver")
}

// Run implements the Idle->Pulling->Creating->Starting->Running->Finished
// ->Removing state machine, with per-phase timeouts and cleanup-on-failure
// at every transition.
func (d *ContainerDriver) Run(ctx context.Context, img string, argv []string, env map[string]string, workingDir string, volumes []Volume) (RunResult, error) {
	_ = d.Pull(ctx, img)

	createCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	netName := uniqueName("wrkflw-net")
	if _, err := d.docker.NetworkCreate(createCtx, netName, network.CreateOptions{Driver: "bridge"}); err == nil {
		d.reg.AddNetwork(netName)
	}

	mounts := make([]string, 0, len(volumes))
	for _, v := range volumes {
		mounts = append(mounts, fmt.Sprintf("%s:%s", v.HostPath, v.ContainerPath))
	}

	resp, err := d.docker.ContainerCreate(createCtx, &container.Config{
		Image:      img,
		Cmd:        shapeArgv(argv),
		WorkingDir: workingDir,
		Env:        envSlice(env),
	}, containerHostConfig(mounts), nil, nil, "")
	if err != nil {
		d.cleanupNetwork(ctx, netName)
		return RunResult{ExitCode: -1}, wfkerrors.RuntimeError("creating container for %s", img).Wrap(err)
	}
	// Register the instant create succeeds, before start.
	d.reg.AddContainer(resp.ID)

	_ = d.docker.NetworkConnect(createCtx, netName, resp.ID, nil)

	startCtx, startCancel := context.WithTimeout(ctx, 10*time.Second)
	defer startCancel()
	if err := d.docker.ContainerStart(startCtx, resp.ID, container.StartOptions{}); err != nil {
		d.cleanup(ctx, resp.ID, netName)
		return RunResult{ExitCode: -1}, wfkerrors.RuntimeError("starting container %s", resp.ID).Wrap(err)
	}

	runCtx, runCancel := context.WithTimeout(ctx, 10*time.Minute)
	defer runCancel()
	statusCh, errCh := d.docker.ContainerWait(runCtx, resp.ID, container.WaitConditionNotRunning)
	var exitCode int
	select {
	case err := <-errCh:
		if err != nil {
			d.cleanup(ctx, resp.ID, netName)
			return RunResult{ExitCode: -1}, wfkerrors.TimeoutError("container wait", 10*time.Minute).Wrap(err)
		}
	case status := <-statusCh:
		exitCode = int(status.StatusCode)
	case <-runCtx.Done():
		d.cleanup(ctx, resp.ID, netName)
		return RunResult{ExitCode: -1}, wfkerrors.TimeoutError("container run", 10*time.Minute)
	}

	logCtx, logCancel := context.WithTimeout(ctx, 10*time.Second)
	defer logCancel()
	out, errOut := d.readLogs(logCtx, resp.ID)

	d.cleanup(ctx, resp.ID, netName)
	return RunResult{Stdout: out, Stderr: errOut, ExitCode: exitCode}, nil
}

func (d *ContainerDriver) readLogs(ctx context.Context, id string) (string, string) {
	rc, err := d.docker.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", ""
	}
	defer rc.Close()
	var stdout, stderr bytes.Buffer
	_, _ = stdcopy.StdCopy(&stdout, &stderr, rc)
	return stdout.String(), stderr.String()
}

func (d *ContainerDriver) cleanup(ctx context.Context, containerID, netName string) {
	_ = d.StopAndRemoveContainer(ctx, containerID)
	d.cleanupNetwork(ctx, netName)
}

func (d *ContainerDriver) cleanupNetwork(ctx context.Context, netName string) {
	if netName == "" {
		return
	}
	_ = d.RemoveNetwork(ctx, netName)
}

// StopAndRemoveContainer satisfies registry.Engine, so pkg/registry's
// teardown primitives can drive the same docker client this driver uses,
// without pkg/registry importing pkg/runtime.
func (d *ContainerDriver) StopAndRemoveContainer(ctx context.Context, id string) error {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	timeout := 5
	_ = d.docker.ContainerStop(cctx, id, container.StopOptions{Timeout: &timeout})
	err := d.docker.ContainerRemove(cctx, id, container.RemoveOptions{Force: true})
	d.reg.RemoveContainer(id)
	return err
}

func (d *ContainerDriver) RemoveNetwork(ctx context.Context, id string) error {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := d.docker.NetworkRemove(cctx, id)
	d.reg.RemoveNetwork(id)
	return err
}

func containerHostConfig(mounts []string) *container.HostConfig {
	return &container.HostConfig{Binds: mounts, AutoRemove: false}
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// uniqueName generates a collision-free network/resource name via
// github.com/google/uuid.
func uniqueName(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
