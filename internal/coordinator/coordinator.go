// Package coordinator implements the Execution Coordinator: it walks an
// ExecutionPlan's precomputed parallel groups wave by wave, dispatching a
// bounded pool of Worker Agents per wave, merging each worker's branch back
// into main as it finishes, and cascading skips through a failed task's
// dependents.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/swarmctl/swarm/internal/eventbus"
	"github.com/swarmctl/swarm/internal/worktree"
	"github.com/swarmctl/swarm/pkg/models"
)

// TaskRunner dispatches a single task to a Worker Agent and returns its
// result. The coordinator doesn't know how to run a worker itself; it is
// handed this as a dependency so it can be tested without a real llm.Client.
type TaskRunner func(ctx context.Context, workerID string, task *models.Task, moduleRootPath string) (*models.TaskResult, error)

// Config holds the coordinator's tunables. New defaults MaxWorkers and
// MergeQueueBackpressureThreshold if left zero; SkipOnFailure is used as given.
type Config struct {
	// MaxWorkers bounds how many tasks run concurrently within a wave.
	MaxWorkers int
	// MergeQueueBackpressureThreshold caps how many merges may be
	// in-flight or queued before the coordinator stalls new dispatches.
	MergeQueueBackpressureThreshold int
	// SkipOnFailure, when true, marks a failed task's transitive dependents
	// as skipped instead of halting the whole plan. Its zero value, false,
	// stops the run after the wave in which a task fails (internal/config
	// defaults the loaded setting to true).
	SkipOnFailure bool
}

func (c *Config) setDefaults() {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 10
	}
	if c.MergeQueueBackpressureThreshold <= 0 {
		c.MergeQueueBackpressureThreshold = 8
	}
}

// Coordinator drives one Blueprint's ExecutionPlan to completion.
type Coordinator struct {
	plan      *models.ExecutionPlan
	blueprint *models.Blueprint
	wt        *worktree.Controller
	bus       *eventbus.Bus
	cfg       Config
	runTask   TaskRunner
	graph     *dependencyGraph
	pause     *pauseControl

	mu              sync.Mutex
	mergeQueueDepth int32
	aborted         bool
}

// New builds a Coordinator for plan. runTask is called once per dispatched
// task; the caller typically closes over a worker.Config to construct and
// run a worker.Worker.
func New(plan *models.ExecutionPlan, blueprint *models.Blueprint, wt *worktree.Controller, bus *eventbus.Bus, cfg Config, runTask TaskRunner) *Coordinator {
	cfg.setDefaults()
	return &Coordinator{
		plan:      plan,
		blueprint: blueprint,
		wt:        wt,
		bus:       bus,
		cfg:       cfg,
		runTask:   runTask,
		graph:     buildDependencyGraph(plan.Tasks),
		pause:     newPauseControl(),
	}
}

// Pause suspends dispatch of new tasks at the next wave or worker-slot
// boundary; tasks already running are left to finish.
func (c *Coordinator) Pause() { c.pause.Pause() }

// Resume lifts a prior Pause.
func (c *Coordinator) Resume() { c.pause.Resume() }

// Stop halts the coordinator permanently; Run returns once in-flight tasks
// in the current wave finish.
func (c *Coordinator) Stop() { c.pause.Stop() }

// Retry resets a failed or skipped task back to pending and bumps its
// attempt count, per plan invariant P2. The caller must invoke Run again to
// actually re-execute it.
func (c *Coordinator) Retry(taskID string) error {
	task, ok := c.plan.TaskByID(taskID)
	if !ok {
		return fmt.Errorf("coordinator: unknown task %q", taskID)
	}
	if task.Status != models.TaskStatusFailed && task.Status != models.TaskStatusSkipped {
		return fmt.Errorf("coordinator: task %q is %s, not failed or skipped", taskID, task.Status)
	}
	task.Status = models.TaskStatusPending
	task.Attempts++
	task.Result = nil
	task.CompletedAt = nil
	return nil
}

// Run executes every wave of the plan in order, returning once the plan
// reaches a terminal status (completed, failed, or stopped) or ctx is
// cancelled. It is safe to call Run again after Retry to resume a partially
// failed plan; tasks already in a terminal status are left untouched.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.plan.ValidateP1(); err != nil {
		return err
	}

	now := time.Now()
	if c.plan.StartedAt == nil {
		c.plan.StartedAt = &now
	}
	c.plan.Status = models.PlanStatusRunning
	c.publish(ctx, models.EventPlanStarted, models.PlanStartedPayload{
		BlueprintID: c.plan.BlueprintID,
		TotalTasks:  len(c.plan.Tasks),
	})

	sem := semaphore.NewWeighted(int64(c.cfg.MaxWorkers))

groups:
	for _, group := range c.plan.ParallelGroups {
		if err := c.pause.WaitIfPaused(ctx); err != nil {
			return c.finish(ctx, err)
		}

		collisions := newCollisionSet()
		var wg sync.WaitGroup
		for _, taskID := range group {
			task, ok := c.plan.TaskByID(taskID)
			if !ok || task.Status.Terminal() || task.Status == models.TaskStatusRunning {
				continue
			}
			if c.dependencyFailedOrSkipped(task) {
				c.markSkipped(ctx, task, "dependency not completed")
				continue
			}

			if err := sem.Acquire(ctx, 1); err != nil {
				wg.Wait()
				return c.finish(ctx, err)
			}
			if err := c.pause.WaitIfPaused(ctx); err != nil {
				sem.Release(1)
				wg.Wait()
				return c.finish(ctx, err)
			}
			c.waitForMergeCapacity(ctx)
			if err := c.waitForCollisionClear(ctx, collisions, task); err != nil {
				sem.Release(1)
				wg.Wait()
				return c.finish(ctx, err)
			}
			collisions.claim(task)

			wg.Add(1)
			go func(task *models.Task) {
				defer wg.Done()
				defer sem.Release(1)
				defer collisions.release(task)
				c.runOne(ctx, task)
			}(task)
		}
		wg.Wait()

		if c.isAborted() {
			break groups
		}
	}

	return c.finish(ctx, nil)
}

// runOne dispatches, merges, and records the outcome of a single task. It is
// also reused by RunTask for the supervisor's synchronous single-task
// dispatch path.
func (c *Coordinator) runOne(ctx context.Context, task *models.Task) {
	workerID := "w-" + task.ID
	task.Status = models.TaskStatusRunning
	task.AssignedWorkerID = workerID
	c.publishTaskUpdate(ctx, task)

	result, err := c.runTask(ctx, workerID, task, c.moduleRootPath(task))
	if err != nil {
		c.markFailed(ctx, task, err.Error())
		return
	}
	if !result.Success {
		task.Result = result
		c.markFailed(ctx, task, result.Error)
		return
	}
	task.Result = result

	c.beginMerge()
	mergeResult, mergeErr := c.wt.MergeWorkspace(ctx, c.plan.BlueprintID, workerID)
	c.endMerge()

	switch {
	case mergeErr != nil:
		c.markFailed(ctx, task, mergeErr.Error())
	case mergeResult == nil || !mergeResult.Success:
		reason := "merge failed"
		if mergeResult != nil && mergeResult.Err != nil {
			reason = mergeResult.Err.Error()
		}
		c.markFailed(ctx, task, reason)
	default:
		c.markCompleted(ctx, task)
	}
}

// RunTask dispatches a single task immediately, outside the normal wave
// loop, for the supervisor's DispatchWorker tool. It still participates in
// merge-queue backpressure and marks the task's terminal status as usual.
func (c *Coordinator) RunTask(ctx context.Context, taskID string) (*models.TaskResult, error) {
	task, ok := c.plan.TaskByID(taskID)
	if !ok {
		return nil, fmt.Errorf("coordinator: unknown task %q", taskID)
	}
	c.waitForMergeCapacity(ctx)
	c.runOne(ctx, task)
	return task.Result, nil
}

func (c *Coordinator) dependencyFailedOrSkipped(task *models.Task) bool {
	for _, dep := range task.Dependencies {
		depTask, ok := c.plan.TaskByID(dep)
		if !ok {
			continue
		}
		if depTask.Status == models.TaskStatusFailed || depTask.Status == models.TaskStatusSkipped {
			return true
		}
	}
	return false
}

func (c *Coordinator) markSkipped(ctx context.Context, task *models.Task, reason string) {
	task.Status = models.TaskStatusSkipped
	task.Result = &models.TaskResult{Success: false, Error: reason}
	c.publishTaskUpdate(ctx, task)
}

func (c *Coordinator) markFailed(ctx context.Context, task *models.Task, reason string) {
	task.Status = models.TaskStatusFailed
	if task.Result == nil {
		task.Result = &models.TaskResult{Success: false, Error: reason}
	}
	c.publishTaskUpdate(ctx, task)

	if !c.cfg.SkipOnFailure {
		c.setAborted()
		return
	}
	for _, depID := range c.graph.transitiveDependents(task.ID) {
		dep, ok := c.plan.TaskByID(depID)
		if !ok || dep.Status.Terminal() {
			continue
		}
		dep.Status = models.TaskStatusSkipped
		dep.Result = &models.TaskResult{Success: false, Error: "dependency " + task.ID + " failed"}
		c.publishTaskUpdate(ctx, dep)
	}
}

func (c *Coordinator) markCompleted(ctx context.Context, task *models.Task) {
	now := time.Now()
	task.CompletedAt = &now
	task.Status = models.TaskStatusCompleted
	c.publishTaskUpdate(ctx, task)
}

func (c *Coordinator) moduleRootPath(task *models.Task) string {
	if c.blueprint == nil || task.ModuleID == "" {
		return ""
	}
	if m, ok := c.blueprint.ModuleByID(task.ModuleID); ok {
		return m.RootPath
	}
	return ""
}

func (c *Coordinator) beginMerge() { atomic.AddInt32(&c.mergeQueueDepth, 1) }
func (c *Coordinator) endMerge()   { atomic.AddInt32(&c.mergeQueueDepth, -1) }

// waitForMergeCapacity blocks dispatch of a new worker while the merge
// queue is at or above the backpressure threshold, since a worker that
// finishes now would only pile up behind an already-saturated merge
// pipeline.
func (c *Coordinator) waitForMergeCapacity(ctx context.Context) {
	for {
		if int(atomic.LoadInt32(&c.mergeQueueDepth)) < c.cfg.MergeQueueBackpressureThreshold {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// waitForCollisionClear blocks dispatch of task while another task in the
// same wave already claims one of task's declared static-config files,
// serializing the two instead of racing their merges over a whole-file
// config neither worktree can partially isolate.
func (c *Coordinator) waitForCollisionClear(ctx context.Context, collisions *collisionSet, task *models.Task) error {
	for {
		if collisions.conflicts(task) == "" {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
}

func (c *Coordinator) setAborted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aborted = true
}

func (c *Coordinator) isAborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

func (c *Coordinator) finish(ctx context.Context, runErr error) error {
	now := time.Now()
	c.plan.CompletedAt = &now

	stats := models.ComputeStats(c.plan.Tasks)
	c.publish(ctx, models.EventStatsUpdate, stats)

	switch {
	case runErr != nil:
		c.plan.Status = models.PlanStatusStopped
		c.publish(ctx, models.EventExecutionError, runErr.Error())
		return runErr
	case stats.Failed > 0:
		c.plan.Status = models.PlanStatusFailed
	default:
		c.plan.Status = models.PlanStatusCompleted
	}

	duration := int64(0)
	if c.plan.StartedAt != nil {
		duration = now.Sub(*c.plan.StartedAt).Milliseconds()
	}
	c.publish(ctx, models.EventPlanCompleted, models.PlanCompletedPayload{
		BlueprintID: c.plan.BlueprintID,
		Success:     c.plan.Status == models.PlanStatusCompleted,
		DurationMs:  duration,
	})
	c.publish(ctx, models.EventExecutionCompleted, c.plan.Status)
	return nil
}

func (c *Coordinator) publishTaskUpdate(ctx context.Context, task *models.Task) {
	c.publish(ctx, models.EventTaskUpdate, models.TaskUpdatePayload{
		TaskID:           task.ID,
		Status:           task.Status,
		Attempts:         task.Attempts,
		AssignedWorkerID: task.AssignedWorkerID,
		Error:            errorOf(task),
	})
}

func errorOf(task *models.Task) string {
	if task.Result != nil {
		return task.Result.Error
	}
	return ""
}

func (c *Coordinator) publish(ctx context.Context, eventType models.EventType, payload interface{}) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(ctx, models.Event{
		Type:        eventType,
		BlueprintID: c.plan.BlueprintID,
		Payload:     payload,
		Timestamp:   time.Now(),
	})
}
