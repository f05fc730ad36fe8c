package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/swarmctl/swarm/internal/coordinator"
	"github.com/swarmctl/swarm/internal/eventbus"
	"github.com/swarmctl/swarm/pkg/models"
)

// actor owns the plan for the duration of a Supervisor's Run, per spec §9's
// design note: "the plan is mutated only by the coordinator and by
// UpdateTaskPlan tool calls ... in Go/Rust this is a single owner plus
// message channel." Every mutation from a tool call on the conversation-loop
// goroutine, and every external Snapshot call from another goroutine, is
// funneled through cmds and applied by a single loop goroutine, so the plan
// never needs its own mutex. Stop does not go through cmds: it cancels the
// conversation context directly (see stop).
type actor struct {
	plan  *models.ExecutionPlan
	bus   *eventbus.Bus
	coord *coordinator.Coordinator

	cmds chan actorCmd

	mu     sync.Mutex
	cancel context.CancelFunc
}

type actorCmdKind string

const (
	cmdAddTask      actorCmdKind = "add_task"
	cmdStartTask    actorCmdKind = "start_task"
	cmdCompleteTask actorCmdKind = "complete_task"
	cmdFailTask     actorCmdKind = "fail_task"
	cmdSkipTask     actorCmdKind = "skip_task"
	cmdDispatch     actorCmdKind = "dispatch_worker"
	cmdSnapshot     actorCmdKind = "snapshot"
)

type actorCmd struct {
	kind   actorCmdKind
	taskID string
	task   *models.Task
	reason string
	reply  chan actorReply
}

type actorReply struct {
	err    error
	result *models.TaskResult
	stats  models.Stats
}

func newActor(plan *models.ExecutionPlan, bus *eventbus.Bus, coord *coordinator.Coordinator) *actor {
	return &actor{
		plan:  plan,
		bus:   bus,
		coord: coord,
		cmds:  make(chan actorCmd),
	}
}

// onStop records the cancel function for the conversation context so Stop
// can cut the conversation short immediately rather than waiting for the
// next queued command to be processed.
func (a *actor) onStop(cancel context.CancelFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancel = cancel
}

// loop is the actor's single goroutine; it runs until ctx is cancelled.
func (a *actor) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-a.cmds:
			cmd.reply <- a.apply(ctx, cmd)
		}
	}
}

func (a *actor) send(ctx context.Context, cmd actorCmd) actorReply {
	cmd.reply = make(chan actorReply, 1)
	select {
	case a.cmds <- cmd:
	case <-ctx.Done():
		return actorReply{err: ctx.Err()}
	}
	select {
	case r := <-cmd.reply:
		return r
	case <-ctx.Done():
		return actorReply{err: ctx.Err()}
	}
}

func (a *actor) apply(ctx context.Context, cmd actorCmd) actorReply {
	switch cmd.kind {
	case cmdAddTask:
		return actorReply{err: a.addTask(cmd.task)}
	case cmdStartTask:
		return actorReply{err: a.setStatus(cmd.taskID, models.TaskStatusRunning, "")}
	case cmdCompleteTask:
		return actorReply{err: a.setStatus(cmd.taskID, models.TaskStatusCompleted, "")}
	case cmdFailTask:
		return actorReply{err: a.setStatus(cmd.taskID, models.TaskStatusFailed, cmd.reason)}
	case cmdSkipTask:
		return actorReply{err: a.setStatus(cmd.taskID, models.TaskStatusSkipped, cmd.reason)}
	case cmdDispatch:
		if a.coord == nil {
			return actorReply{err: fmt.Errorf("supervisor: no coordinator wired, cannot dispatch")}
		}
		result, err := a.coord.RunTask(ctx, cmd.taskID)
		return actorReply{result: result, err: err}
	case cmdSnapshot:
		return actorReply{stats: models.ComputeStats(a.plan.Tasks)}
	default:
		return actorReply{err: fmt.Errorf("supervisor: unknown command %q", cmd.kind)}
	}
}

// addTask appends a new task to the plan as its own trailing parallel
// group, validating that every declared dependency already exists
// somewhere in an earlier group — preserving invariant P1 for dynamically
// discovered work (spec §9).
func (a *actor) addTask(task *models.Task) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("supervisor: add_task requires a task id")
	}
	if _, exists := a.plan.TaskByID(task.ID); exists {
		return fmt.Errorf("supervisor: task %q already exists", task.ID)
	}
	known := make(map[string]bool)
	for _, g := range a.plan.ParallelGroups {
		for _, id := range g {
			known[id] = true
		}
	}
	for _, dep := range task.Dependencies {
		if !known[dep] {
			return fmt.Errorf("supervisor: add_task %q depends on unknown task %q", task.ID, dep)
		}
	}
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	a.plan.Tasks = append(a.plan.Tasks, task)
	a.plan.ParallelGroups = append(a.plan.ParallelGroups, []string{task.ID})
	a.publishTaskUpdate(task)
	return nil
}

func (a *actor) setStatus(taskID string, status models.TaskStatus, reason string) error {
	task, ok := a.plan.TaskByID(taskID)
	if !ok {
		return fmt.Errorf("supervisor: unknown task %q", taskID)
	}
	task.Status = status
	if reason != "" {
		task.Result = &models.TaskResult{Success: status == models.TaskStatusCompleted, Error: reason}
	}
	if status == models.TaskStatusCompleted {
		now := time.Now()
		task.CompletedAt = &now
	}
	a.publishTaskUpdate(task)
	return nil
}

func (a *actor) publishTaskUpdate(task *models.Task) {
	if a.bus == nil {
		return
	}
	errMsg := ""
	if task.Result != nil {
		errMsg = task.Result.Error
	}
	a.bus.Publish(context.Background(), models.Event{
		Type:        models.EventTaskUpdate,
		BlueprintID: a.plan.BlueprintID,
		Payload: models.TaskUpdatePayload{
			TaskID:           task.ID,
			Status:           task.Status,
			Attempts:         task.Attempts,
			AssignedWorkerID: task.AssignedWorkerID,
			Error:            errMsg,
		},
		Timestamp: time.Now(),
	})
}

// stop cancels the conversation context directly; the actor loop's own
// ctx.Done() case then exits without needing a queued command.
func (a *actor) stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (a *actor) shutdown() {}

// snapshot is unsynchronized and safe only once the loop goroutine is known
// to have stopped processing commands (e.g. after Run's own conversation
// has returned). Concurrent external callers must use snapshotViaChannel.
func (a *actor) snapshot() models.Stats {
	return models.ComputeStats(a.plan.Tasks)
}

// snapshotViaChannel routes through the actor loop so a concurrent reader
// never observes a plan the loop goroutine is mid-mutation on.
func (a *actor) snapshotViaChannel(ctx context.Context) (models.Stats, error) {
	reply := a.send(ctx, actorCmd{kind: cmdSnapshot})
	return reply.stats, reply.err
}

func (a *actor) terminalTaskIDs() (completed, failed []string) {
	for _, t := range a.plan.Tasks {
		switch t.Status {
		case models.TaskStatusCompleted:
			completed = append(completed, t.ID)
		case models.TaskStatusFailed:
			failed = append(failed, t.ID)
		}
	}
	return completed, failed
}
