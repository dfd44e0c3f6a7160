package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"
	"golang.org/x/sys/execabs"

	"github.com/sisaku-security/wrkflw/pkg/logging"
	"github.com/sisaku-security/wrkflw/pkg/registry"
)

// EmulationDriver runs steps as host processes inside a freshly staged
// scratch workspace, using the exec.CommandContext + execabs.LookPath
// idiom to run one workflow step, possibly backgrounding children, inside
// a staged directory tree.
type EmulationDriver struct {
	reg                *registry.Registry
	hideActionMessages bool
}

func NewEmulationDriver(reg *registry.Registry, hideActionMessages bool) *EmulationDriver {
	return &EmulationDriver{reg: reg, hideActionMessages: hideActionMessages}
}

// Available is always true: the emulation driver has no external engine to
// reach, it always degrades to "yes" so `auto` mode can fall back to it.
func (e *EmulationDriver) Available(ctx context.Context) bool { return true }

// Pull and Build are no-ops: the emulation driver has no image concept, an
// intentional fidelity trade-off so identical workflow logic runs against
// either driver.
func (e *EmulationDriver) Pull(ctx context.Context, image string) error  { return nil }
func (e *EmulationDriver) Build(ctx context.Context, path, tag string) error { return nil }

// skipFromCopy excludes hidden files and build-output directories from
// workspace staging unless explicitly required.
func skipFromCopy(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch name {
	case "target", "node_modules", "dist", "build":
		return true
	}
	return false
}

// StageWorkspace creates a fresh scratch directory, registers it, and
// copies each volume's host source into the mapped container path beneath
// it, excluding hidden/build-output entries. It returns the staged root.
func (e *EmulationDriver) StageWorkspace(prefix string, volumes []Volume) (string, error) {
	root, err := os.MkdirTemp("", prefix+"-")
	if err != nil {
		return "", err
	}
	e.reg.AddWorkspace(root)

	for _, v := range volumes {
		dest := filepath.Join(root, v.ContainerPath)
		if err := copyTree(v.HostPath, dest); err != nil {
			return root, err
		}
	}
	return root, nil
}

func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return copyFile(src, dst, info)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if skipFromCopy(e.Name()) {
			continue
		}
		if err := copyTree(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string, info os.FileInfo) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// Run execs argv as a host process inside workingDir. Argv shaping:
// `sh -c <cmd>` / `bash -{e,c,ec} <cmd>` run the shell with those flags
// directly; anything else execs argv[0] with argv[1:].
func (e *EmulationDriver) Run(ctx context.Context, img string, argv []string, env map[string]string, workingDir string, volumes []Volume) (RunResult, error) {
	argv = shapeArgv(argv)

	exe, args := resolveShellInvocation(argv)
	path, err := execabs.LookPath(exe)
	if err != nil {
		return RunResult{ExitCode: 1, Stderr: fmt.Sprintf("tool %q is not on PATH", exe)}, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	cmd := execabs.CommandContext(runCtx, path, args...)
	cmd.Dir = workingDir
	cmd.Env = append(os.Environ(), envSlice(env)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return RunResult{ExitCode: 1, Stderr: err.Error()}, nil
	}
	e.reg.AddPID(cmd.Process.Pid)
	err = cmd.Wait()
	e.reg.RemovePID(cmd.Process.Pid)

	if runCtx.Err() != nil {
		return RunResult{ExitCode: -1, Stdout: stdout.String(), Stderr: stderr.String()}, nil
	}
	if err != nil {
		return RunResult{ExitCode: exitCodeOf(err), Stdout: stdout.String(), Stderr: stderr.String()}, nil
	}
	return RunResult{ExitCode: 0, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// NotifyActionEmulated reports the "would execute GitHub action" emulation
// message, gated by WRKFLW_HIDE_ACTION_MESSAGES / --show-action-messages.
func (e *EmulationDriver) NotifyActionEmulated(ref string) {
	if e.hideActionMessages {
		return
	}
	logging.Global().Info("would execute GitHub action %s (emulation driver has no action runner)", ref)
}

func resolveShellInvocation(argv []string) (string, []string) {
	if len(argv) >= 2 {
		switch argv[0] {
		case "sh":
			if argv[1] == "-c" {
				return "sh", argv[1:]
			}
		case "bash":
			switch argv[1] {
			case "-e", "-c", "-ec":
				return "bash", argv[1:]
			}
		}
	}
	if len(argv) == 0 {
		return "true", nil
	}
	return argv[0], argv[1:]
}

func exitCodeOf(err error) int {
	type exitCoder interface{ ExitCode() int }
	if ee, ok := err.(exitCoder); ok {
		return ee.ExitCode()
	}
	return 1
}

// SplitArgv tokenizes a run: command into argv, honoring shell quoting via
// github.com/google/shlex — used by the engine to shape `run:` steps
// before Run.
func SplitArgv(cmd string) ([]string, error) {
	return shlex.Split(cmd)
}
