// Package worktree implements the Worktree-Isolated Concurrency Controller:
// each worker gets its own git worktree and branch, edits are boundary-gated
// and committed locally, and merges back to the main branch are serialized
// through a single mutex so the shared repository is never touched by two
// workers at once. Grounded on internal/agent's WorktreeManager (workspace
// lifecycle) and internal/merge's Handler (merge/rebase sequencing),
// generalized from per-agent-session semantics to the per-task swarm model.
package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/swarmctl/swarm/internal/asyncmutex"
	"github.com/swarmctl/swarm/internal/eventbus"
	"github.com/swarmctl/swarm/internal/git"
	"github.com/swarmctl/swarm/pkg/models"
)

// dependencyDirs are directories linked (not copied by git) into every new
// worktree so workers don't each pay the cost of a fresh install.
var dependencyDirs = []string{
	"node_modules", ".env", ".env.local", "dist", ".cache",
	".next", ".nuxt", "vendor", "venv", "__pycache__",
}

// worktreesDirName is the directory, relative to the project root, holding
// every worker's worktree.
const worktreesDirName = ".swarm-worktrees"

// mainBranchCandidates is the priority order Initialize uses to settle on
// the branch workers fork from and merge back into.
var mainBranchCandidates = []string{"main", "master"}

// Controller is the Worktree-Isolated Concurrency Controller. One Controller
// serves one project repository; it is safe for concurrent use by multiple
// workers.
type Controller struct {
	projectPath string
	worktreeDir string
	git         git.Runner
	mergeMutex  *asyncmutex.Mutex
	bus         *eventbus.Bus
	resolver    *ConflictResolver
	checkpoints *CheckpointManager

	// workerRunner builds the git.Runner used for operations scoped to a
	// worker's own worktree (as opposed to c.git, which always operates on
	// the shared main checkout). Defaults to git.NewRunner; tests override
	// it to avoid touching a real git binary.
	workerRunner func(path string) git.Runner

	mu         sync.RWMutex
	mainBranch string
	workspaces map[string]*models.WorkerWorkspace
}

// New constructs a Controller for the repository at projectPath.
func New(projectPath string, bus *eventbus.Bus) *Controller {
	return &Controller{
		projectPath:  projectPath,
		worktreeDir:  filepath.Join(projectPath, worktreesDirName),
		git:          git.NewRunner(projectPath),
		mergeMutex:   asyncmutex.New(),
		bus:          bus,
		resolver:     NewConflictResolver(),
		checkpoints:  NewCheckpointManager(git.NewRunner(projectPath)),
		workerRunner: func(path string) git.Runner { return git.NewRunner(path) },
		workspaces:   make(map[string]*models.WorkerWorkspace),
	}
}

// NewWithRunner constructs a Controller with an injected git.Runner for the
// main checkout, for tests. Per-worker worktree runners still default to
// git.NewRunner; use SetWorkerRunnerFactory to override those too.
func NewWithRunner(projectPath string, bus *eventbus.Bus, runner git.Runner) *Controller {
	c := New(projectPath, bus)
	c.git = runner
	c.checkpoints = NewCheckpointManager(runner)
	return c
}

// Checkpoints exposes the controller's CheckpointManager for callers that
// want to report or act on checkpoints left behind by a fatal merge.
func (c *Controller) Checkpoints() *CheckpointManager {
	return c.checkpoints
}

// SetWorkerRunnerFactory overrides how the controller builds a git.Runner
// scoped to an individual worker's worktree path. Exposed for tests that
// need to avoid touching a real git binary.
func (c *Controller) SetWorkerRunnerFactory(factory func(path string) git.Runner) {
	c.workerRunner = factory
}

// MainBranch returns the branch determined by Initialize.
func (c *Controller) MainBranch() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mainBranch
}

// Initialize prepares the controller: it determines the main branch,
// verifies the repository is initialized, rescans the worktree directory for
// workspaces surviving a prior run, and registers the worktree directory in
// .gitignore. It is idempotent and should be called once before any workspace
// is created.
func (c *Controller) Initialize(ctx context.Context) error {
	if !c.git.HasCommits() {
		return fmt.Errorf("worktree: repository at %s has no commits; initialize it before starting a run", c.projectPath)
	}

	branch, err := c.detectMainBranch()
	if err != nil {
		return fmt.Errorf("worktree: detect main branch: %w", err)
	}
	c.mu.Lock()
	c.mainBranch = branch
	c.mu.Unlock()

	if err := os.MkdirAll(c.worktreeDir, 0o755); err != nil {
		return fmt.Errorf("worktree: create worktree directory: %w", err)
	}

	if err := c.appendGitignore(); err != nil {
		return fmt.Errorf("worktree: update .gitignore: %w", err)
	}

	recovered, err := c.rescanExisting()
	if err != nil {
		return fmt.Errorf("worktree: rescan existing worktrees: %w", err)
	}
	c.mu.Lock()
	for _, ws := range recovered {
		c.workspaces[ws.WorkerID] = ws
	}
	c.mu.Unlock()

	return nil
}

// detectMainBranch follows the priority order from spec §4.D: the current
// branch if it's already main/master, then the remote's default branch, then
// a local main, then a local master, finally falling back to the name "main"
// if the repository has no qualifying branch at all. The fallback branch is
// not created here.
func (c *Controller) detectMainBranch() (string, error) {
	if current, err := c.git.CurrentBranch(); err == nil {
		for _, candidate := range mainBranchCandidates {
			if current == candidate {
				return current, nil
			}
		}
	}

	if ref, err := c.git.SymbolicRef("refs/remotes/origin/HEAD"); err == nil {
		name := strings.TrimPrefix(strings.TrimSpace(ref), "refs/remotes/origin/")
		if name != "" {
			if exists, _ := c.git.BranchExists(name); exists {
				return name, nil
			}
		}
	}

	for _, candidate := range mainBranchCandidates {
		if exists, _ := c.git.BranchExists(candidate); exists {
			return candidate, nil
		}
	}

	return "main", nil
}

// appendGitignore ensures the worktree directory is excluded from the main
// checkout's own status, so workers' worktrees never show up as untracked
// content in the project they're building.
func (c *Controller) appendGitignore() error {
	path := filepath.Join(c.projectPath, ".gitignore")
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if strings.Contains(string(existing), worktreesDirName) {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	entry := worktreesDirName + "/\n"
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		entry = "\n" + entry
	}
	_, err = f.WriteString(entry)
	return err
}

// rescanExisting reconstructs WorkerWorkspace records for worktree
// directories that survive from a prior run. A directory is accepted only if
// it still has a .git file (worktree marker) and its corresponding branch
// still exists; anything else is treated as debris and skipped, matching
// spec §4.D's "directory accepted only if .git file + branch exists" rule.
func (c *Controller) rescanExisting() ([]*models.WorkerWorkspace, error) {
	entries, err := os.ReadDir(c.worktreeDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []*models.WorkerWorkspace
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		workerID := entry.Name()
		dir := filepath.Join(c.worktreeDir, workerID)
		if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
			continue
		}
		branch := branchName(workerID)
		exists, err := c.git.BranchExists(branch)
		if err != nil || !exists {
			continue
		}
		info, statErr := os.Stat(dir)
		createdAt := time.Now()
		if statErr == nil {
			createdAt = info.ModTime()
		}
		out = append(out, &models.WorkerWorkspace{
			WorkerID:     workerID,
			BranchName:   branch,
			WorktreePath: dir,
			CreatedAt:    createdAt,
			Phase:        models.PhaseIdle,
		})
	}
	return out, nil
}

// branchName returns the branch name a worker's worktree is created on.
func branchName(workerID string) string {
	return "swarm/worker-" + workerID
}

// Workspace returns the currently registered workspace for workerID, if any.
func (c *Controller) Workspace(workerID string) (*models.WorkerWorkspace, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ws, ok := c.workspaces[workerID]
	return ws, ok
}

// Workspaces returns every workspace currently registered with the
// controller, for callers (the cleanup CLI path) that need to enumerate
// rather than look up a single worker.
func (c *Controller) Workspaces() []*models.WorkerWorkspace {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*models.WorkerWorkspace, 0, len(c.workspaces))
	for _, ws := range c.workspaces {
		out = append(out, ws)
	}
	return out
}

func (c *Controller) registerWorkspace(ws *models.WorkerWorkspace) {
	c.mu.Lock()
	c.workspaces[ws.WorkerID] = ws
	c.mu.Unlock()
}

func (c *Controller) forgetWorkspace(workerID string) {
	c.mu.Lock()
	delete(c.workspaces, workerID)
	c.mu.Unlock()
}

func (c *Controller) setPhase(workerID string, phase models.WorkerPhase) {
	c.mu.Lock()
	if ws, ok := c.workspaces[workerID]; ok {
		ws.Phase = phase
	}
	c.mu.Unlock()
}

func (c *Controller) publish(ctx context.Context, blueprintID string, eventType models.EventType, payload interface{}) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(ctx, models.Event{
		Type:        eventType,
		BlueprintID: blueprintID,
		Payload:     payload,
	})
}
