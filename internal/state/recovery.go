package state

import (
	"fmt"
	"log"
	"time"

	"github.com/swarmctl/swarm/pkg/models"
)

// RecoveryManager detects and reconciles a plan left mid-run by a process
// that exited without finishing (spec §8 Scenario 6: restart mid-run).
// Unlike a subprocess-per-agent design, every worker here is a goroutine in
// the same process as the supervisor; when that process dies, every task
// still marked running died with it; there is no PID to probe.
type RecoveryManager struct {
	db *DB
}

// NewRecoveryManager creates a new RecoveryManager with the given database.
func NewRecoveryManager(db *DB) *RecoveryManager {
	return &RecoveryManager{db: db}
}

// DetectInterrupted returns the plan left behind by an unfinished run, if
// any. A plan with status pending or running that this process did not just
// create is, by definition, interrupted: nothing else advances its tasks.
func (rm *RecoveryManager) DetectInterrupted() (*models.ExecutionPlan, error) {
	plan, err := rm.db.GetActivePlan()
	if err != nil {
		return nil, fmt.Errorf("detect interrupted plan: %w", err)
	}
	return plan, nil
}

// Reconcile resets every task still marked running back to pending so the
// coordinator can reschedule it, incrementing Attempts and clearing the
// worker assignment that no longer refers to anything alive. It returns the
// worker ids those tasks were assigned to, so the caller can tell the
// Worktree Controller to destroy (or let teardownStale discard) whatever
// workspace each one left behind before the plan resumes.
func (rm *RecoveryManager) Reconcile(plan *models.ExecutionPlan) ([]string, error) {
	var orphanedWorkerIDs []string

	for _, t := range plan.Tasks {
		if t.Status != models.TaskStatusRunning {
			continue
		}

		if t.AssignedWorkerID != "" {
			orphanedWorkerIDs = append(orphanedWorkerIDs, t.AssignedWorkerID)
		}

		t.Status = models.TaskStatusPending
		t.Attempts++
		t.AssignedWorkerID = ""
		t.BranchName = ""
		t.WorktreePath = ""
		t.StartedAt = nil

		if err := rm.db.UpdateTask(plan.ID, t); err != nil {
			return nil, fmt.Errorf("reset task %s: %w", t.ID, err)
		}
		log.Printf("state: reset orphaned task %s to pending (attempt %d)", t.ID, t.Attempts)
	}

	if plan.Status == models.PlanStatusRunning {
		plan.Status = models.PlanStatusPending
		if err := rm.db.UpdatePlan(plan); err != nil {
			return nil, fmt.Errorf("reset plan %s to pending: %w", plan.ID, err)
		}
	}

	return orphanedWorkerIDs, nil
}

// Abandon marks an interrupted plan stopped rather than resuming it, for the
// "swarm cleanup" CLI path (spec §4.H's discard option). It leaves the
// plan's tasks as they are; DestroyWorkspace for any worker ids returned by
// a prior Reconcile call is still the caller's responsibility.
func (rm *RecoveryManager) Abandon(plan *models.ExecutionPlan) error {
	plan.Status = models.PlanStatusStopped
	now := time.Now()
	plan.CompletedAt = &now
	if err := rm.db.UpdatePlan(plan); err != nil {
		return fmt.Errorf("abandon plan %s: %w", plan.ID, err)
	}
	log.Printf("state: abandoned plan %s", plan.ID)
	return nil
}
