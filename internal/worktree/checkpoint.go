package worktree

import (
	"fmt"
	"sync"
	"time"

	"github.com/swarmctl/swarm/internal/git"
)

// CheckpointStatus records whether a merge attempt at a checkpoint succeeded.
type CheckpointStatus int

const (
	CheckpointUnknown CheckpointStatus = iota
	CheckpointGood
	CheckpointBad
)

func (s CheckpointStatus) String() string {
	switch s {
	case CheckpointGood:
		return "good"
	case CheckpointBad:
		return "bad"
	default:
		return "unknown"
	}
}

// Checkpoint is a lightweight git tag marking main's HEAD just before a
// worker's branch was merged into it.
type Checkpoint struct {
	WorkerID  string
	TaskID    string
	CommitSHA string
	TagName   string
	CreatedAt time.Time
	Status    CheckpointStatus
}

// CheckpointManager tags main's HEAD before every merge attempt so a fatal
// merge can be rolled back to a known-good point instead of leaving the
// shared repository in a half-merged state. A good checkpoint's tag is
// removed once the merge it guarded succeeds; a bad checkpoint's tag is left
// in place for operator inspection (spec's checkpoint/rollback feature).
type CheckpointManager struct {
	repo git.Runner

	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint // workerID -> Checkpoint
}

// NewCheckpointManager builds a CheckpointManager tagging commits in repo.
func NewCheckpointManager(repo git.Runner) *CheckpointManager {
	return &CheckpointManager{repo: repo, checkpoints: make(map[string]*Checkpoint)}
}

// Create tags main's current HEAD before workerID's branch is merged into it.
func (cm *CheckpointManager) Create(workerID, taskID string) (*Checkpoint, error) {
	sha, err := cm.repo.Run("rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("worktree: checkpoint: rev-parse HEAD: %w", err)
	}

	tagName := fmt.Sprintf("swarm/checkpoint/%s", workerID)
	if exists, _ := cm.repo.TagExists(tagName); exists {
		_ = cm.repo.DeleteTag(tagName)
	}
	if err := cm.repo.Tag(tagName); err != nil {
		return nil, fmt.Errorf("worktree: checkpoint: tag %s: %w", tagName, err)
	}

	cp := &Checkpoint{
		WorkerID:  workerID,
		TaskID:    taskID,
		CommitSHA: sha,
		TagName:   tagName,
		CreatedAt: time.Now(),
		Status:    CheckpointUnknown,
	}
	cm.mu.Lock()
	cm.checkpoints[workerID] = cp
	cm.mu.Unlock()
	return cp, nil
}

// MarkGood removes workerID's checkpoint tag: the merge it guarded succeeded
// and main has already moved past it.
func (cm *CheckpointManager) MarkGood(workerID string) error {
	cm.mu.Lock()
	cp, ok := cm.checkpoints[workerID]
	if ok {
		cp.Status = CheckpointGood
	}
	cm.mu.Unlock()
	if !ok {
		return fmt.Errorf("worktree: checkpoint: no checkpoint for worker %s", workerID)
	}
	if err := cm.repo.DeleteTag(cp.TagName); err != nil {
		return fmt.Errorf("worktree: checkpoint: delete tag %s: %w", cp.TagName, err)
	}
	cm.mu.Lock()
	delete(cm.checkpoints, workerID)
	cm.mu.Unlock()
	return nil
}

// MarkBad leaves workerID's checkpoint tag in place and records the merge as
// unrecoverable, for RollbackTo and operator inspection.
func (cm *CheckpointManager) MarkBad(workerID string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cp, ok := cm.checkpoints[workerID]
	if !ok {
		return fmt.Errorf("worktree: checkpoint: no checkpoint for worker %s", workerID)
	}
	cp.Status = CheckpointBad
	return nil
}

// Get returns workerID's checkpoint, if one is still tracked.
func (cm *CheckpointManager) Get(workerID string) (*Checkpoint, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	cp, ok := cm.checkpoints[workerID]
	if !ok {
		return nil, false
	}
	cpCopy := *cp
	return &cpCopy, true
}

// RollbackTo hard-resets main to workerID's checkpoint, undoing whatever the
// guarded merge left behind. Intended for a fatal/irreparable merge failure;
// the caller is responsible for checking out main first.
func (cm *CheckpointManager) RollbackTo(workerID string) error {
	cp, ok := cm.Get(workerID)
	if !ok {
		return fmt.Errorf("worktree: checkpoint: no checkpoint for worker %s", workerID)
	}
	if err := cm.repo.ResetHard(cp.CommitSHA); err != nil {
		return fmt.Errorf("worktree: checkpoint: reset to %s: %w", cp.CommitSHA, err)
	}
	return nil
}

// Bad returns every checkpoint marked bad by a failed merge (MarkBad), whose
// tag is therefore still in place.
func (cm *CheckpointManager) Bad() []*Checkpoint {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	var out []*Checkpoint
	for _, cp := range cm.checkpoints {
		if cp.Status == CheckpointBad {
			cpCopy := *cp
			out = append(out, &cpCopy)
		}
	}
	return out
}
