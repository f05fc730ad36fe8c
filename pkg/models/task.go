package models

import "time"

// Complexity is a coarse sizing estimate used to pick a model tier for a
// task's worker.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Valid reports whether c is a known complexity value.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexitySimple, ComplexityMedium, ComplexityComplex:
		return true
	default:
		return false
	}
}

// TaskStatus is a node in the task status state machine described by the
// plan's invariant P2: status advances monotonically except via an explicit
// retry, which resets running|failed back to pending.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusSkipped   TaskStatus = "skipped"
)

// Valid reports whether s is a known status value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// Terminal reports whether s is a terminal state (completed, failed, or
// skipped) from which the task does not advance except via retry.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// Task is a node in the plan DAG.
type Task struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Complexity  Complexity `json:"complexity"`
	// Type is a free-form task category (e.g. "feature", "fix", "test").
	Type string `json:"type"`
	// Files lists paths this task is expected to touch, used by the
	// coordinator's collision pre-check and listed as target files in the
	// worker's prompt. The boundary checker does not consult it.
	Files []string `json:"files,omitempty"`
	// Dependencies lists task ids that must reach completed|skipped before
	// this task may be scheduled.
	Dependencies []string `json:"dependencies,omitempty"`
	// ModuleID binds this task to a Blueprint module, if any, for the
	// boundary checker's task-scoped module boundary rule.
	ModuleID string `json:"moduleId,omitempty"`

	// Execution metadata.
	Status           TaskStatus `json:"status"`
	Attempts         int        `json:"attempts"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	AssignedWorkerID string     `json:"assignedWorkerId,omitempty"`
	BranchName       string     `json:"branchName,omitempty"`
	WorktreePath     string     `json:"worktreePath,omitempty"`
	Result           *TaskResult `json:"result,omitempty"`
}

// DependenciesSatisfied reports whether every dependency of t is present in
// terminalStatuses as completed or skipped.
func (t *Task) DependenciesSatisfied(terminalStatuses map[string]TaskStatus) bool {
	for _, dep := range t.Dependencies {
		st, ok := terminalStatuses[dep]
		if !ok {
			return false
		}
		if st != TaskStatusCompleted && st != TaskStatusSkipped {
			return false
		}
	}
	return true
}

// TaskResult is the output of a Worker Agent's run on a single task.
type TaskResult struct {
	Success       bool     `json:"success"`
	FilesModified []string `json:"filesModified,omitempty"`
	Summary       string   `json:"summary"`
	Error         string   `json:"error,omitempty"`
	TestsRun      *bool    `json:"testsRun,omitempty"`
	TestsPassed   *bool    `json:"testsPassed,omitempty"`
}
