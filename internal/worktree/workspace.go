package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/swarmctl/swarm/pkg/models"
)

// CreateWorkspace provisions a fresh worktree and branch for workerID,
// forked from the main branch, and links the project's dependency
// directories into it. Registration happens before linking so a link
// failure (which is a warning, not fatal) never leaves an orphaned
// worktree unaccounted for.
func (c *Controller) CreateWorkspace(ctx context.Context, blueprintID, workerID string) (*models.WorkerWorkspace, error) {
	dir := filepath.Join(c.worktreeDir, workerID)
	branch := branchName(workerID)

	if err := c.teardownStale(dir, branch); err != nil {
		return nil, fmt.Errorf("worktree: teardown stale workspace for %s: %w", workerID, err)
	}

	// Best-effort: a pull failure (no remote, offline) must not block local
	// work from proceeding on the current main ref.
	_ = c.git.PullRebase()

	if err := c.git.WorktreeAddNewBranch(dir, branch); err != nil {
		return nil, fmt.Errorf("worktree: create worktree for %s: %w", workerID, err)
	}

	ws := &models.WorkerWorkspace{
		WorkerID:     workerID,
		BranchName:   branch,
		WorktreePath: dir,
		CreatedAt:    time.Now(),
		Phase:        models.PhaseIdle,
	}
	c.registerWorkspace(ws)

	c.publish(ctx, blueprintID, models.EventWorkerCreated, models.WorkerCreatedPayload{
		WorkerID: workerID, BranchName: branch, WorktreePath: dir,
	})
	c.publish(ctx, blueprintID, models.EventBranchCreated, models.BranchEventPayload{
		WorkerID: workerID, BranchName: branch, WorktreePath: dir,
	})

	for _, warning := range c.linkDependencyDirs(dir) {
		// Link failures are advisory: the worker can still run, just without
		// the shared cache (e.g. it will reinstall node_modules itself).
		c.publish(ctx, blueprintID, models.EventExecutionError, models.ExecutionErrorPayload{Message: warning})
	}

	return ws, nil
}

// teardownStale removes a leftover worktree/branch pair from a crashed prior
// run before recreating it, so WorktreeAddNewBranch never collides with
// debris on disk.
func (c *Controller) teardownStale(dir, branch string) error {
	if _, err := os.Stat(dir); err == nil {
		_ = c.git.WorktreeRemoveOptionalForce(dir, true)
		_ = os.RemoveAll(dir)
	}
	if exists, _ := c.git.BranchExists(branch); exists {
		_ = c.git.DeleteBranch(branch)
	}
	return nil
}

// linkDependencyDirs links (symlink, falling back to a recursive copy) each
// of dependencyDirs, plus any top-level directory the project's own
// .gitignore marks as ignored (build caches, coverage output, and similar
// project-specific generated directories follow the same "expensive to
// regenerate, safe to share" reasoning as node_modules), from the main
// checkout into the new worktree. Returns a human-readable warning string
// per directory that could not be linked; link failures are never fatal to
// workspace creation.
func (c *Controller) linkDependencyDirs(worktreeDir string) []string {
	var warnings []string
	for _, name := range c.linkCandidates() {
		src := filepath.Join(c.projectPath, name)
		if _, err := os.Stat(src); err != nil {
			continue // nothing to link
		}
		dst := filepath.Join(worktreeDir, name)
		if _, err := os.Lstat(dst); err == nil {
			continue // worktree already has its own copy (e.g. tracked file)
		}

		if err := os.Symlink(src, dst); err == nil {
			continue
		}
		if err := copyTree(src, dst); err != nil {
			warnings = append(warnings, fmt.Sprintf("link %s into worktree: %v", name, err))
		}
	}
	return warnings
}

// linkCandidates returns dependencyDirs plus any top-level, already-ignored
// directory in the project root, deduplicated.
func (c *Controller) linkCandidates() []string {
	candidates := append([]string{}, dependencyDirs...)
	seen := make(map[string]bool, len(candidates))
	for _, name := range candidates {
		seen[name] = true
	}

	ignore, err := gitignore.CompileIgnoreFile(filepath.Join(c.projectPath, ".gitignore"))
	if err != nil {
		return candidates // no .gitignore to consult, nothing to add
	}
	entries, err := os.ReadDir(c.projectPath)
	if err != nil {
		return candidates
	}
	for _, entry := range entries {
		if !entry.IsDir() || seen[entry.Name()] || entry.Name() == worktreesDirName {
			continue
		}
		if ignore.MatchesPath(entry.Name() + "/") {
			candidates = append(candidates, entry.Name())
			seen[entry.Name()] = true
		}
	}
	return candidates
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode())
	})
}

// ApplyChanges stages the ordered batch of file edits against workerID's
// worktree and commits them. An empty resulting tree (nothing actually
// changed) is treated as success, matching git's own "nothing to commit"
// outcome. Deletes are unstaged-then-removed so a file that was never
// committed doesn't fail `git rm`.
func (c *Controller) ApplyChanges(ctx context.Context, blueprintID, workerID string, changes []models.FileChange, summary string) error {
	ws, ok := c.Workspace(workerID)
	if !ok {
		return fmt.Errorf("worktree: no workspace registered for worker %s", workerID)
	}
	c.setPhase(workerID, models.PhaseCommitting)

	worker := c.workerRunner(ws.WorktreePath)
	for _, change := range changes {
		target := change.FilePath
		if !filepath.IsAbs(target) {
			target = filepath.Join(ws.WorktreePath, target)
		}
		switch change.Type {
		case models.ChangeDelete:
			_, _ = worker.Run("rm", "--cached", "--ignore-unmatch", change.FilePath)
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("worktree: remove %s: %w", change.FilePath, err)
			}
		case models.ChangeCreate, models.ChangeModify:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("worktree: ensure parent dir for %s: %w", change.FilePath, err)
			}
			if err := renameio.WriteFile(target, []byte(change.Content), 0o644); err != nil {
				return fmt.Errorf("worktree: write %s: %w", change.FilePath, err)
			}
			if err := worker.Add(change.FilePath); err != nil {
				return fmt.Errorf("worktree: stage %s: %w", change.FilePath, err)
			}
		}
	}

	hasChanges, err := worker.HasChanges()
	if err != nil {
		return fmt.Errorf("worktree: check status: %w", err)
	}
	if !hasChanges {
		return nil
	}

	message := commitSubject(summary, workerID, len(changes))
	if err := worker.Commit(message); err != nil {
		return fmt.Errorf("worktree: commit: %w", err)
	}

	c.publish(ctx, blueprintID, models.EventCommitCreated, models.CommitCreatedPayload{
		WorkerID: workerID, BranchName: ws.BranchName, Message: message, FilesChanged: len(changes),
	})
	return nil
}

// DestroyWorkspace removes workerID's worktree directory and branch and
// forgets its registration. Safe to call after a successful merge, a
// cancelled task, or a failed task that's being cleaned up; it tolerates a
// workspace that was already torn down.
func (c *Controller) DestroyWorkspace(ctx context.Context, blueprintID, workerID string) error {
	ws, ok := c.Workspace(workerID)
	if !ok {
		return nil
	}

	_ = c.git.WorktreeRemoveOptionalForce(ws.WorktreePath, true)
	_ = os.RemoveAll(ws.WorktreePath)
	_ = c.git.DeleteBranch(ws.BranchName)

	c.forgetWorkspace(workerID)
	c.publish(ctx, blueprintID, models.EventBranchDeleted, models.BranchEventPayload{
		WorkerID: workerID, BranchName: ws.BranchName, WorktreePath: ws.WorktreePath,
	})
	return nil
}

// commitSubject builds the exact commit subject format spec §6 requires:
// "[Swarm] <message> (Worker: <id8>, Files: <n>)", with the worker id
// truncated to 8 characters and shell-hostile characters escaped so the
// subject is always safe to pass through a shell-invoked git.
func commitSubject(message, workerID string, fileCount int) string {
	id := workerID
	if len(id) > 8 {
		id = id[:8]
	}
	escaped := strings.NewReplacer(`"`, `\"`, "$", "\\$").Replace(message)
	return "[Swarm] " + escaped + " (Worker: " + id + ", Files: " + strconv.Itoa(fileCount) + ")"
}
