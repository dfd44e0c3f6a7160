package registry

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu              sync.Mutex
	stoppedContainers []string
	removedNetworks   []string
	failContainer     string
}

func (f *fakeEngine) StopAndRemoveContainer(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stoppedContainers = append(f.stoppedContainers, id)
	if id == f.failContainer {
		return assert.AnError
	}
	return nil
}

func (f *fakeEngine) RemoveNetwork(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removedNetworks = append(f.removedNetworks, id)
	return nil
}

func TestCountsReflectsTrackedResources(t *testing.T) {
	r := New(nil)
	r.AddContainer("c1")
	r.AddNetwork("n1")
	r.AddPID(123)
	r.AddWorkspace("/tmp/x")

	counts := r.Counts()
	assert.Equal(t, Counts{Containers: 1, Networks: 1, Processes: 1, Workspaces: 1}, counts)
}

func TestCleanupAllDrainsEveryTrackedSetEvenOnEngineFailure(t *testing.T) {
	eng := &fakeEngine{failContainer: "bad"}
	r := New(eng)
	r.AddContainer("good")
	r.AddContainer("bad")
	r.AddNetwork("net1")

	dir, err := os.MkdirTemp("", "wrkflw-registry-test-*")
	require.NoError(t, err)
	r.AddWorkspace(dir)

	r.CleanupAll(context.Background(), 2*time.Second)

	assert.Equal(t, Counts{}, r.Counts())
	assert.ElementsMatch(t, []string{"good", "bad"}, eng.stoppedContainers)
	assert.ElementsMatch(t, []string{"net1"}, eng.removedNetworks)
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCleanupAllWithNilEngineStillDrainsTracking(t *testing.T) {
	r := New(nil)
	r.AddContainer("c1")
	r.AddNetwork("n1")

	r.CleanupAll(context.Background(), time.Second)
	assert.Equal(t, 0, r.Counts().Containers)
	assert.Equal(t, 0, r.Counts().Networks)
}

func TestCleanupIsIdempotentOnEmptyRegistry(t *testing.T) {
	r := New(&fakeEngine{})
	r.CleanupAll(context.Background(), time.Second)
	r.CleanupAll(context.Background(), time.Second)
	assert.Equal(t, Counts{}, r.Counts())
}
