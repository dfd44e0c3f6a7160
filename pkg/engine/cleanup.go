package engine

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sisaku-security/wrkflw/pkg/logging"
	"github.com/sisaku-security/wrkflw/pkg/registry"
)

// Cleanup is a single idempotent shutdown handler, callable both from a
// registered interrupt handler and from normal completion, guarded so a
// second invocation is a safe no-op.
type Cleanup struct {
	reg  *registry.Registry
	once sync.Once
}

func NewCleanup(reg *registry.Registry) *Cleanup {
	return &Cleanup{reg: reg}
}

// Run executes the coordinator's steps once: log intent, arm a hard-exit
// watchdog, call cleanupAll under a shorter timeout. Run itself returns
// normally; the signal handler installed by InstallSignalHandler exits the
// process after Run returns.
//
// hardDeadline/cleanupTimeout default to 10s/5s when zero.
func (c *Cleanup) Run(hardDeadline, cleanupTimeout time.Duration) {
	c.once.Do(func() {
		if hardDeadline <= 0 {
			hardDeadline = 10 * time.Second
		}
		if cleanupTimeout <= 0 {
			cleanupTimeout = 5 * time.Second
		}

		logging.Global().Info("shutting down, cleaning up tracked resources")

		watchdog := time.AfterFunc(hardDeadline, func() {
			os.Exit(1)
		})
		defer watchdog.Stop()

		c.reg.CleanupAll(context.Background(), cleanupTimeout)
	})
}

// InstallSignalHandler registers Run against SIGINT/SIGTERM and returns a
// stop function that cancels the handler without running cleanup. Callers
// invoke Run themselves on normal completion; both paths share the same
// idempotent Once.
func (c *Cleanup) InstallSignalHandler() (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case <-sigCh:
			c.Run(0, 0)
			os.Exit(0)
		case <-done:
		}
	}()

	return func() {
		close(done)
		signal.Stop(sigCh)
	}
}
