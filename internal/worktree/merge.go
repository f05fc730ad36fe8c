package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/swarmctl/swarm/internal/asyncmutex"
	"github.com/swarmctl/swarm/pkg/models"
)

// MergeResult is the outcome of merging a worker's branch back into main.
type MergeResult struct {
	Success          bool
	AutoResolved     bool
	NeedsHumanReview bool
	Conflict         *models.ConflictInfo
	Err              error
}

// untrackedOverwriteFile matches a line git emits when a merge would clobber
// an untracked file, e.g. "\terror: The following untracked working tree
// files would be overwritten by merge:\n\tsrc/foo.go".
var untrackedOverwriteFile = regexp.MustCompile(`(?m)^\s+(\S.*\S)\s*$`)

// MergeWorkspace merges workerID's branch back into the main branch. The
// whole operation runs under the controller's merge mutex so the main
// checkout is never touched by two merges concurrently, matching the
// single-writer model in spec §5.
func (c *Controller) MergeWorkspace(ctx context.Context, blueprintID, workerID string) (*MergeResult, error) {
	result, err := asyncmutex.WithLock(ctx, c.mergeMutex, func(ctx context.Context) (*MergeResult, error) {
		return c.mergeLocked(ctx, blueprintID, workerID)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Controller) mergeLocked(ctx context.Context, blueprintID, workerID string) (*MergeResult, error) {
	ws, ok := c.Workspace(workerID)
	if !ok {
		return nil, fmt.Errorf("worktree: no workspace registered for worker %s", workerID)
	}
	branch := ws.BranchName
	mainBranch := c.MainBranch()

	// Step 1: the branch must exist — a worker that never committed has
	// nothing to merge.
	exists, err := c.git.BranchExists(branch)
	if err != nil {
		return nil, fmt.Errorf("worktree: check branch %s exists: %w", branch, err)
	}
	if !exists {
		return &MergeResult{Success: true}, nil
	}

	// Step 2: checkout main in the shared repository.
	if err := c.git.CheckoutBranch(mainBranch); err != nil {
		return nil, fmt.Errorf("worktree: checkout %s: %w", mainBranch, err)
	}

	// Step 3: precondition sweep for a MERGE_HEAD or unmerged entries left
	// behind by a crashed prior merge.
	if err := c.sweepPreconditions(); err != nil {
		return nil, fmt.Errorf("worktree: repository left in an unrecoverable state, reset manually: %w", err)
	}

	// Step 3.5: tag main's HEAD so a fatal outcome below can be rolled back
	// to a known-good point instead of leaving main half-merged.
	if _, err := c.checkpoints.Create(workerID, branch); err != nil {
		return nil, fmt.Errorf("worktree: checkpoint before merge: %w", err)
	}

	// Step 4: stash guard. The main checkout should normally be clean, but
	// guard against stray local edits so the merge never fails on "your
	// local changes would be overwritten".
	marker := fmt.Sprintf("swarm-merge-%s-%d", workerID, time.Now().UnixNano())
	stashed, err := c.stashIfDirty(marker)
	if err != nil {
		return nil, fmt.Errorf("worktree: stash guard: %w", err)
	}
	defer func() {
		if stashed {
			_ = c.git.StashPop()
		}
	}()

	// Step 5: attempt the merge.
	mergeErr := c.git.Merge(branch)
	if mergeErr == nil {
		_ = c.checkpoints.MarkGood(workerID)
		c.publish(ctx, blueprintID, models.EventMergeSuccess, models.MergeSuccessPayload{
			WorkerID: workerID, BranchName: branch, AutoResolved: false,
		})
		_ = c.DestroyWorkspace(ctx, blueprintID, workerID)
		return &MergeResult{Success: true}, nil
	}

	// Step 6: an untracked file the merge would overwrite. Back it up once
	// and retry exactly once.
	if backed := c.backUpOverwrittenUntracked(mergeErr.Error()); len(backed) > 0 {
		mergeErr = c.git.Merge(branch)
		if mergeErr == nil {
			_ = c.checkpoints.MarkGood(workerID)
			c.publish(ctx, blueprintID, models.EventMergeSuccess, models.MergeSuccessPayload{
				WorkerID: workerID, BranchName: branch, AutoResolved: false,
			})
			_ = c.DestroyWorkspace(ctx, blueprintID, workerID)
			return &MergeResult{Success: true}, nil
		}
	}

	// Step 7: conflict markers. Try the rule-based resolver before giving
	// up on automatic resolution.
	conflicted, _ := c.git.ConflictedFiles()
	if len(conflicted) > 0 {
		resolved, resolveErr := c.resolver.Resolve(ctx, c.projectPath, conflicted)
		if resolveErr == nil && resolved {
			if err := c.git.Commit(fmt.Sprintf("[Swarm] Auto-resolved merge conflict for %s", workerID)); err != nil {
				_ = c.git.MergeAbort()
				return c.conflictFailure(ctx, blueprintID, workerID, branch, conflicted)
			}
			_ = c.checkpoints.MarkGood(workerID)
			c.publish(ctx, blueprintID, models.EventMergeSuccess, models.MergeSuccessPayload{
				WorkerID: workerID, BranchName: branch, AutoResolved: true,
			})
			_ = c.DestroyWorkspace(ctx, blueprintID, workerID)
			return &MergeResult{Success: true, AutoResolved: true}, nil
		}

		_ = c.git.MergeAbort()
		return c.conflictFailure(ctx, blueprintID, workerID, branch, conflicted)
	}

	// Step 8: some other merge failure. Abort and surface it. The checkpoint
	// tag is left in place (MarkBad) so RollbackTo can undo main's state later.
	_ = c.git.MergeAbort()
	_ = c.checkpoints.MarkBad(workerID)
	return &MergeResult{Success: false, Err: mergeErr}, nil
}

func (c *Controller) conflictFailure(ctx context.Context, blueprintID, workerID, branch string, files []string) (*MergeResult, error) {
	_ = c.checkpoints.MarkBad(workerID)
	conflict := models.ConflictInfo{
		Files:       files,
		Description: fmt.Sprintf("merge conflict between main and %s across %d file(s) could not be resolved automatically", branch, len(files)),
	}
	c.publish(ctx, blueprintID, models.EventMergeConflict, models.MergeConflictPayload{
		WorkerID: workerID, BranchName: branch, Conflict: conflict, NeedsHumanReview: true,
	})
	return &MergeResult{Success: false, NeedsHumanReview: true, Conflict: &conflict}, nil
}

// sweepPreconditions checks for remnants of a previous crashed merge
// (MERGE_HEAD still present, or unmerged index entries) and tries to recover
// by aborting any in-progress merge and resetting to main's own HEAD. An
// error here is fatal to the affected merge per spec §7.
func (c *Controller) sweepPreconditions() error {
	if _, err := os.Stat(filepath.Join(c.projectPath, ".git", "MERGE_HEAD")); err == nil {
		if abortErr := c.git.MergeAbort(); abortErr != nil {
			if resetErr := c.git.ResetHard("HEAD"); resetErr != nil {
				return fmt.Errorf("stale MERGE_HEAD: abort failed (%v), reset failed (%v)", abortErr, resetErr)
			}
		}
	}

	unmerged, err := c.git.ConflictedFiles()
	if err == nil && len(unmerged) > 0 {
		if resetErr := c.git.ResetHard("HEAD"); resetErr != nil {
			return fmt.Errorf("stale unmerged entries %v: reset failed: %w", unmerged, resetErr)
		}
	}
	return nil
}

// stashIfDirty stashes the working tree (including untracked files) under a
// unique marker if there are local changes, reporting whether a stash was
// made so the caller knows whether to pop it afterward.
func (c *Controller) stashIfDirty(marker string) (bool, error) {
	dirty, err := c.git.HasChanges()
	if err != nil {
		return false, err
	}
	if !dirty {
		return false, nil
	}
	if err := c.git.StashPush(marker); err != nil {
		return false, err
	}
	return true, nil
}

// backUpOverwrittenUntracked parses a "would be overwritten by merge" error
// message for the offending file paths, renames each aside with a .swarm-bak
// suffix, and returns the list it moved so the caller can retry the merge.
func (c *Controller) backUpOverwrittenUntracked(errMsg string) []string {
	if !strings.Contains(errMsg, "untracked working tree files would be overwritten") {
		return nil
	}
	var moved []string
	for _, line := range strings.Split(errMsg, "\n") {
		matches := untrackedOverwriteFile.FindStringSubmatch(line)
		if matches == nil {
			continue
		}
		candidate := strings.TrimSpace(matches[1])
		if strings.HasSuffix(candidate, ":") || strings.Contains(candidate, " ") {
			continue
		}
		full := filepath.Join(c.projectPath, candidate)
		if _, statErr := os.Stat(full); statErr != nil {
			continue
		}
		if err := os.Rename(full, full+".swarm-bak"); err == nil {
			moved = append(moved, candidate)
		}
	}
	return moved
}
