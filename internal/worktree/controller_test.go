package worktree

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/swarmctl/swarm/internal/eventbus"
	"github.com/swarmctl/swarm/internal/git"
	"github.com/swarmctl/swarm/pkg/models"
)

func newTestController(t *testing.T, runner *fakeRunner) (*Controller, string) {
	t.Helper()
	dir := t.TempDir()
	c := NewWithRunner(dir, eventbus.New(), runner)
	c.SetWorkerRunnerFactory(func(string) git.Runner { return runner })
	return c, dir
}

func TestInitializeDetectsCurrentMainBranch(t *testing.T) {
	r := newFakeRunner()
	r.currentBranch = "main"
	c, _ := newTestController(t, r)

	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if c.MainBranch() != "main" {
		t.Fatalf("MainBranch() = %q, want main", c.MainBranch())
	}
}

func TestWorkspacesListsRegistered(t *testing.T) {
	r := newFakeRunner()
	c, _ := newTestController(t, r)
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if got := c.Workspaces(); len(got) != 0 {
		t.Fatalf("Workspaces() on a fresh controller = %v, want empty", got)
	}

	c.registerWorkspace(&models.WorkerWorkspace{WorkerID: "w-1"})
	c.registerWorkspace(&models.WorkerWorkspace{WorkerID: "w-2"})

	got := c.Workspaces()
	if len(got) != 2 {
		t.Fatalf("Workspaces() = %d entries, want 2", len(got))
	}
}

func TestInitializeFallsBackToLocalMaster(t *testing.T) {
	r := newFakeRunner()
	r.currentBranch = "feature/x"
	r.branches = map[string]bool{"feature/x": true, "master": true}
	c, _ := newTestController(t, r)

	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if c.MainBranch() != "master" {
		t.Fatalf("MainBranch() = %q, want master", c.MainBranch())
	}
}

func TestInitializeRequiresCommits(t *testing.T) {
	r := newFakeRunner()
	r.hasCommitsV = false
	c, _ := newTestController(t, r)

	if err := c.Initialize(context.Background()); err == nil {
		t.Fatal("expected error for uninitialized repository")
	}
}

func TestInitializeAppendsGitignoreOnce(t *testing.T) {
	r := newFakeRunner()
	c, dir := newTestController(t, r)

	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		t.Fatalf("read .gitignore: %v", err)
	}
	count := 0
	for _, line := range splitLines(string(data)) {
		if line == worktreesDirName+"/" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one .swarm-worktrees entry, got %d in %q", count, string(data))
	}
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func TestRescanExistingSkipsDirectoriesWithoutGitOrBranch(t *testing.T) {
	r := newFakeRunner()
	c, dir := newTestController(t, r)
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	worktreeDir := filepath.Join(dir, worktreesDirName)

	// Worker "alive": has .git marker and its branch exists.
	alive := filepath.Join(worktreeDir, "alive")
	if err := os.MkdirAll(alive, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(alive, ".git"), []byte("gitdir: ../.git/worktrees/alive\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r.branches[branchName("alive")] = true

	// Worker "debris": directory with no .git marker.
	debris := filepath.Join(worktreeDir, "debris")
	if err := os.MkdirAll(debris, 0o755); err != nil {
		t.Fatal(err)
	}

	recovered, err := c.rescanExisting()
	if err != nil {
		t.Fatalf("rescanExisting: %v", err)
	}
	if len(recovered) != 1 || recovered[0].WorkerID != "alive" {
		t.Fatalf("expected only 'alive' recovered, got %+v", recovered)
	}
}
