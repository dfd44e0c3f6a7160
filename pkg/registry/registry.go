// Package registry tracks four independently-locked sets of live
// resources — containers, networks, host processes, and ephemeral
// workspaces — plus the teardown primitives that drain them. CleanupAll
// drains the four sets concurrently; within a set, items are torn down one
// at a time (each container and network under its own timeout), and a
// tracking entry is always removed, even when its teardown fails.
package registry

import (
	"context"
	"os"
	"strconv"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sisaku-security/wrkflw/pkg/logging"
)

// Engine is the subset of ContainerRuntime the registry needs to tear down
// containers and networks. Defined here (rather than importing pkg/runtime)
// to avoid a dependency cycle: pkg/runtime constructs a Registry, so the
// Registry cannot import pkg/runtime back.
type Engine interface {
	StopAndRemoveContainer(ctx context.Context, id string) error
	RemoveNetwork(ctx context.Context, id string) error
}

type set struct {
	mu    sync.Mutex
	items map[string]bool
}

func newSet() *set { return &set{items: map[string]bool{}} }

func (s *set) add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = true
}

func (s *set) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

func (s *set) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.items))
	for id := range s.items {
		out = append(out, id)
	}
	return out
}

func (s *set) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Registry holds the four tracked-resource sets: containers, networks,
// processes (by PID), and workspaces (by absolute path). Each set is
// guarded independently; no operation acquires two of the four locks at
// once.
type Registry struct {
	containers *set
	networks   *set
	pids       *set
	workspaces *set
	engine     Engine
}

// New constructs an empty Registry. engine may be nil when only the
// emulation driver is in use (it never creates containers or networks).
func New(engine Engine) *Registry {
	return &Registry{
		containers: newSet(),
		networks:   newSet(),
		pids:       newSet(),
		workspaces: newSet(),
		engine:     engine,
	}
}

func (r *Registry) AddContainer(id string) { r.containers.add(id) }
func (r *Registry) RemoveContainer(id string) { r.containers.remove(id) }
func (r *Registry) AddNetwork(id string)   { r.networks.add(id) }
func (r *Registry) RemoveNetwork(id string) { r.networks.remove(id) }
func (r *Registry) AddPID(pid int)         { r.pids.add(strconv.Itoa(pid)) }
func (r *Registry) RemovePID(pid int)      { r.pids.remove(strconv.Itoa(pid)) }
func (r *Registry) AddWorkspace(path string) { r.workspaces.add(path) }
func (r *Registry) RemoveWorkspace(path string) { r.workspaces.remove(path) }

// Counts reports the live size of each tracked set, used by tests asserting
// cleanup idempotence.
type Counts struct {
	Containers, Networks, Processes, Workspaces int
}

func (r *Registry) Counts() Counts {
	return Counts{
		Containers: r.containers.len(),
		Networks:   r.networks.len(),
		Processes:  r.pids.len(),
		Workspaces: r.workspaces.len(),
	}
}

const perItemTimeout = 5 * time.Second

// CleanupContainers stops and removes every tracked container via the
// engine, snapshot-iterate-detach-always: the tracking entry is removed
// whether or not the engine-side teardown succeeded.
func (r *Registry) CleanupContainers(ctx context.Context) {
	if r.engine == nil {
		for _, id := range r.containers.snapshot() {
			r.containers.remove(id)
		}
		return
	}
	for _, id := range r.containers.snapshot() {
		id := id
		func() {
			defer r.containers.remove(id)
			cctx, cancel := context.WithTimeout(ctx, perItemTimeout)
			defer cancel()
			if err := r.engine.StopAndRemoveContainer(cctx, id); err != nil {
				logging.Global().Warn("cleanup: container %s: %v", id, err)
			}
		}()
	}
}

// CleanupNetworks mirrors CleanupContainers for tracked networks.
func (r *Registry) CleanupNetworks(ctx context.Context) {
	if r.engine == nil {
		for _, id := range r.networks.snapshot() {
			r.networks.remove(id)
		}
		return
	}
	for _, id := range r.networks.snapshot() {
		id := id
		func() {
			defer r.networks.remove(id)
			cctx, cancel := context.WithTimeout(ctx, perItemTimeout)
			defer cancel()
			if err := r.engine.RemoveNetwork(cctx, id); err != nil {
				logging.Global().Warn("cleanup: network %s: %v", id, err)
			}
		}()
	}
}

// CleanupProcesses sends a termination signal to every tracked PID, then a
// kill signal after a brief grace period.
func (r *Registry) CleanupProcesses(ctx context.Context) {
	for _, s := range r.pids.snapshot() {
		pid, err := strconv.Atoi(s)
		if err != nil {
			r.pids.remove(s)
			continue
		}
		func() {
			defer r.pids.remove(s)
			proc, err := os.FindProcess(pid)
			if err != nil {
				return
			}
			_ = proc.Signal(syscall.SIGTERM)
			done := make(chan struct{})
			go func() { _, _ = proc.Wait(); close(done) }()
			select {
			case <-done:
			case <-time.After(500 * time.Millisecond):
				_ = proc.Signal(syscall.SIGKILL)
			case <-ctx.Done():
				_ = proc.Signal(syscall.SIGKILL)
			}
		}()
	}
}

// CleanupWorkspaces recursively deletes every tracked scratch directory.
func (r *Registry) CleanupWorkspaces(ctx context.Context) {
	for _, path := range r.workspaces.snapshot() {
		path := path
		func() {
			defer r.workspaces.remove(path)
			if err := os.RemoveAll(path); err != nil {
				logging.Global().Warn("cleanup: workspace %s: %v", path, err)
			}
		}()
	}
}

// CleanupAll fans out to all four teardown primitives in parallel under a
// single global timeout. Errors from individual items are logged, never
// returned: cleanup failures must not prevent other cleanup or program
// exit.
func (r *Registry) CleanupAll(ctx context.Context, timeout time.Duration) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var eg errgroup.Group
	eg.Go(func() error { r.CleanupContainers(cctx); return nil })
	eg.Go(func() error { r.CleanupNetworks(cctx); return nil })
	eg.Go(func() error { r.CleanupProcesses(cctx); return nil })
	eg.Go(func() error { r.CleanupWorkspaces(cctx); return nil })
	_ = eg.Wait()
}

