package models

import "time"

// PlanStatus tracks an ExecutionPlan's run state.
type PlanStatus string

const (
	PlanStatusPending   PlanStatus = "pending"
	PlanStatusRunning   PlanStatus = "running"
	PlanStatusPaused    PlanStatus = "paused"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusFailed    PlanStatus = "failed"
	PlanStatusStopped   PlanStatus = "stopped"
)

// ExecutionPlan is the task DAG derived from a Blueprint, mutable during
// execution.
//
// Invariant P1: for every task t, t.Dependencies is a subset of the union of
// task ids in groups strictly before g(t) in ParallelGroups.
//
// Invariant P2: a task's Status only advances monotonically except via an
// explicit retry, which resets running|failed -> pending and increments
// Attempts.
type ExecutionPlan struct {
	ID          string `json:"id"`
	BlueprintID string `json:"blueprintId"`
	Tasks       []*Task `json:"tasks"`
	// ParallelGroups is a topological layering: group i depends only on
	// tasks in groups < i; tasks within a group are mutually independent.
	ParallelGroups  [][]string `json:"parallelGroups"`
	Status          PlanStatus `json:"status"`
	EstimatedCost   float64    `json:"estimatedCost"`
	EstimatedMinutes float64   `json:"estimatedMinutes"`
	CreatedAt       time.Time  `json:"createdAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

// TaskByID returns the task with the given id, if present.
func (p *ExecutionPlan) TaskByID(id string) (*Task, bool) {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// StatusSnapshot returns a map of task id to current status, in the form
// DependenciesSatisfied takes.
func (p *ExecutionPlan) StatusSnapshot() map[string]TaskStatus {
	snap := make(map[string]TaskStatus, len(p.Tasks))
	for _, t := range p.Tasks {
		snap[t.ID] = t.Status
	}
	return snap
}

// ValidateP1 checks invariant P1: every task's dependencies must appear in a
// strictly earlier parallel group than the task itself.
func (p *ExecutionPlan) ValidateP1() error {
	groupOf := make(map[string]int, len(p.Tasks))
	for gi, group := range p.ParallelGroups {
		for _, id := range group {
			groupOf[id] = gi
		}
	}
	for _, t := range p.Tasks {
		tg, ok := groupOf[t.ID]
		if !ok {
			return &InvariantError{Invariant: "P1", Detail: "task " + t.ID + " is not placed in any parallel group"}
		}
		for _, dep := range t.Dependencies {
			dg, ok := groupOf[dep]
			if !ok {
				return &InvariantError{Invariant: "P1", Detail: "task " + t.ID + " depends on unplaced task " + dep}
			}
			if dg >= tg {
				return &InvariantError{Invariant: "P1", Detail: "task " + t.ID + " depends on " + dep + " which is not in an earlier group"}
			}
		}
	}
	return nil
}

// InvariantError reports a violated plan invariant.
type InvariantError struct {
	Invariant string
	Detail    string
}

func (e *InvariantError) Error() string {
	return "invariant " + e.Invariant + " violated: " + e.Detail
}

// Stats summarizes task status counts for a stats:update event payload.
type Stats struct {
	TotalTasks   int     `json:"totalTasks"`
	Pending      int     `json:"pending"`
	Running      int     `json:"running"`
	Completed    int     `json:"completed"`
	Failed       int     `json:"failed"`
	Skipped      int     `json:"skipped"`
	ProgressPct  float64 `json:"progressPct"`
}

// ComputeStats tallies task statuses into a Stats payload.
func ComputeStats(tasks []*Task) Stats {
	s := Stats{TotalTasks: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case TaskStatusPending:
			s.Pending++
		case TaskStatusRunning:
			s.Running++
		case TaskStatusCompleted:
			s.Completed++
		case TaskStatusFailed:
			s.Failed++
		case TaskStatusSkipped:
			s.Skipped++
		}
	}
	if s.TotalTasks > 0 {
		done := s.Completed + s.Failed + s.Skipped
		s.ProgressPct = float64(done) / float64(s.TotalTasks) * 100
	}
	return s
}
