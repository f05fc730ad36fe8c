package worktree

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/swarmctl/swarm/pkg/models"
)

func TestWatchOrphansForgetsWorkspaceOnExternalRemoval(t *testing.T) {
	r := newFakeRunner()
	c, dir := newTestController(t, r)
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	workerID := "w-1"
	workerDir := filepath.Join(dir, worktreesDirName, workerID)
	if err := os.MkdirAll(workerDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	c.registerWorkspace(&models.WorkerWorkspace{WorkerID: workerID, WorktreePath: workerDir})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.WatchOrphans(ctx) }()

	// Give the watcher a moment to register before triggering the event.
	time.Sleep(50 * time.Millisecond)
	if err := os.RemoveAll(workerDir); err != nil {
		t.Fatalf("remove workerDir: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := c.Workspace(workerID); !ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for workspace to be forgotten")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WatchOrphans did not return after context cancellation")
	}
}
