package models

import "time"

// EventType enumerates the events published on the event bus (spec §6).
type EventType string

const (
	EventPlanStarted   EventType = "plan:started"
	EventPlanCompleted EventType = "plan:completed"

	EventTaskUpdate  EventType = "task:update"
	EventStatsUpdate EventType = "stats:update"

	EventWorkerCreated        EventType = "worker:created"
	EventWorkerStatusUpdated  EventType = "worker:status-updated"
	EventWorkerAnalyzing      EventType = "worker:analyzing"
	EventWorkerAnalyzed       EventType = "worker:analyzed"
	EventWorkerStrategyDecided EventType = "worker:strategy_decided"
	EventWorkerTaskCompleted  EventType = "worker:task-completed"
	EventWorkerTaskFailed     EventType = "worker:task-failed"

	EventBranchCreated  EventType = "branch:created"
	EventBranchDeleted  EventType = "branch:deleted"
	EventBranchRollback EventType = "branch:rollback"
	EventBranchSynced   EventType = "branch:synced"

	EventCommitCreated EventType = "commit:created"

	EventMergeSuccess  EventType = "merge:success"
	EventMergeConflict EventType = "merge:conflict"

	EventExecutionPaused    EventType = "execution:paused"
	EventExecutionResumed   EventType = "execution:resumed"
	EventExecutionCompleted EventType = "execution:completed"
	EventExecutionError     EventType = "execution:error"
)

// Critical reports whether an event type must never be dropped by the event
// bus's backpressure policy (task terminal states and merge results).
func (t EventType) Critical() bool {
	switch t {
	case EventTaskUpdate,
		EventWorkerTaskCompleted, EventWorkerTaskFailed,
		EventMergeSuccess, EventMergeConflict,
		EventPlanCompleted, EventExecutionCompleted, EventExecutionError:
		return true
	default:
		return false
	}
}

// Event is a record published on the bus.
type Event struct {
	Type        EventType   `json:"type"`
	BlueprintID string      `json:"blueprintId,omitempty"`
	Payload     interface{} `json:"payload"`
	Timestamp   time.Time   `json:"timestamp"`
}

// PlanStartedPayload is the payload for EventPlanStarted.
type PlanStartedPayload struct {
	BlueprintID string `json:"blueprintId"`
	TotalTasks  int    `json:"totalTasks"`
}

// PlanCompletedPayload is the payload for EventPlanCompleted.
type PlanCompletedPayload struct {
	BlueprintID string `json:"blueprintId"`
	Success     bool   `json:"success"`
	DurationMs  int64  `json:"durationMs"`
}

// TaskUpdatePayload is the payload for EventTaskUpdate.
type TaskUpdatePayload struct {
	TaskID           string     `json:"taskId"`
	Status           TaskStatus `json:"status"`
	Attempts         int        `json:"attempts,omitempty"`
	AssignedWorkerID string     `json:"assignedWorkerId,omitempty"`
	Error            string     `json:"error,omitempty"`
}

// WorkerCreatedPayload is the payload for EventWorkerCreated.
type WorkerCreatedPayload struct {
	WorkerID     string `json:"workerId"`
	TaskID       string `json:"taskId"`
	BranchName   string `json:"branchName"`
	WorktreePath string `json:"worktreePath"`
}

// WorkerStatusUpdatedPayload is the payload for EventWorkerStatusUpdated.
type WorkerStatusUpdatedPayload struct {
	WorkerID string      `json:"workerId"`
	Phase    WorkerPhase `json:"phase"`
}

// WorkerAnalysisPayload is the payload for EventWorkerAnalyzing/EventWorkerAnalyzed.
type WorkerAnalysisPayload struct {
	WorkerID string `json:"workerId"`
	TaskID   string `json:"taskId"`
	Analysis string `json:"analysis,omitempty"`
}

// WorkerStrategyPayload is the payload for EventWorkerStrategyDecided.
type WorkerStrategyPayload struct {
	WorkerID string      `json:"workerId"`
	Strategy interface{} `json:"strategy"`
}

// WorkerTaskResultPayload is the payload for
// EventWorkerTaskCompleted/EventWorkerTaskFailed.
type WorkerTaskResultPayload struct {
	WorkerID string      `json:"workerId"`
	TaskID   string      `json:"taskId"`
	Result   *TaskResult `json:"result,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// BranchEventPayload is the payload for branch:* events.
type BranchEventPayload struct {
	WorkerID     string `json:"workerId"`
	BranchName   string `json:"branchName"`
	WorktreePath string `json:"worktreePath,omitempty"`
}

// CommitCreatedPayload is the payload for EventCommitCreated.
type CommitCreatedPayload struct {
	WorkerID     string `json:"workerId"`
	BranchName   string `json:"branchName"`
	Message      string `json:"message"`
	FilesChanged int    `json:"filesChanged"`
}

// MergeSuccessPayload is the payload for EventMergeSuccess.
type MergeSuccessPayload struct {
	WorkerID     string `json:"workerId"`
	BranchName   string `json:"branchName"`
	AutoResolved bool   `json:"autoResolved"`
}

// MergeConflictPayload is the payload for EventMergeConflict.
type MergeConflictPayload struct {
	WorkerID        string       `json:"workerId"`
	BranchName      string       `json:"branchName"`
	Conflict        ConflictInfo `json:"conflict"`
	NeedsHumanReview bool        `json:"needsHumanReview"`
}

// ExecutionStatePayload is the payload for execution:paused/resumed events.
type ExecutionStatePayload struct {
	BlueprintID string `json:"blueprintId"`
}

// ExecutionErrorPayload is the payload the Worktree Controller attaches to
// EventExecutionError for a dependency-directory link failure, which does not
// stop the run. The coordinator also publishes EventExecutionError when a run
// ends on an error; that event's payload is the error string.
type ExecutionErrorPayload struct {
	Message string `json:"message"`
	TaskID  string `json:"taskId,omitempty"`
}
