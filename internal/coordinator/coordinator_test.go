package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/swarmctl/swarm/internal/eventbus"
	"github.com/swarmctl/swarm/internal/git"
	"github.com/swarmctl/swarm/internal/worktree"
	"github.com/swarmctl/swarm/pkg/models"
)

func newTestController(t *testing.T, runner *fakeRunner) *worktree.Controller {
	t.Helper()
	dir := t.TempDir()
	bus := eventbus.New()
	wt := worktree.NewWithRunner(dir, bus, runner)
	wt.SetWorkerRunnerFactory(func(string) git.Runner { return runner })
	if err := wt.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return wt
}

func newPlan(blueprintID string, tasks []*models.Task, groups [][]string) *models.ExecutionPlan {
	return &models.ExecutionPlan{
		ID:             "plan-1",
		BlueprintID:    blueprintID,
		Tasks:          tasks,
		ParallelGroups: groups,
		Status:         models.PlanStatusPending,
		CreatedAt:      time.Now(),
	}
}

// scriptedRunner records every call it receives and returns canned results
// keyed by task id, defaulting to a success.
type scriptedRunner struct {
	mu      sync.Mutex
	results map[string]*models.TaskResult
	errs    map[string]error
	calls   []string
}

func (s *scriptedRunner) run(ctx context.Context, workerID string, task *models.Task, moduleRootPath string) (*models.TaskResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, task.ID)
	s.mu.Unlock()
	if err, ok := s.errs[task.ID]; ok {
		return nil, err
	}
	if res, ok := s.results[task.ID]; ok {
		return res, nil
	}
	return &models.TaskResult{Success: true, Summary: "done"}, nil
}

func TestRunCompletesAllWavesInOrder(t *testing.T) {
	runner := newFakeRunner()
	wt := newTestController(t, runner)

	tasks := []*models.Task{
		{ID: "a", Name: "a"},
		{ID: "b", Name: "b"},
		{ID: "c", Name: "c", Dependencies: []string{"a", "b"}},
	}
	plan := newPlan("bp-1", tasks, [][]string{{"a", "b"}, {"c"}})

	sr := &scriptedRunner{results: map[string]*models.TaskResult{}, errs: map[string]error{}}
	bus := eventbus.New()
	co := New(plan, nil, wt, bus, Config{}, sr.run)

	if err := co.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if plan.Status != models.PlanStatusCompleted {
		t.Fatalf("plan.Status = %s, want completed", plan.Status)
	}
	for _, task := range tasks {
		if task.Status != models.TaskStatusCompleted {
			t.Fatalf("task %s status = %s, want completed", task.ID, task.Status)
		}
	}
	if len(sr.calls) != 3 {
		t.Fatalf("expected 3 dispatches, got %d", len(sr.calls))
	}
}

func TestRunSkipsDependentsOnFailure(t *testing.T) {
	runner := newFakeRunner()
	wt := newTestController(t, runner)

	tasks := []*models.Task{
		{ID: "a", Name: "a"},
		{ID: "b", Name: "b", Dependencies: []string{"a"}},
		{ID: "c", Name: "c", Dependencies: []string{"b"}},
	}
	plan := newPlan("bp-1", tasks, [][]string{{"a"}, {"b"}, {"c"}})

	sr := &scriptedRunner{
		results: map[string]*models.TaskResult{
			"a": {Success: false, Error: "boom"},
		},
		errs: map[string]error{},
	}
	bus := eventbus.New()
	co := New(plan, nil, wt, bus, Config{SkipOnFailure: true}, sr.run)

	if err := co.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	aTask, _ := plan.TaskByID("a")
	bTask, _ := plan.TaskByID("b")
	cTask, _ := plan.TaskByID("c")
	if aTask.Status != models.TaskStatusFailed {
		t.Fatalf("a status = %s, want failed", aTask.Status)
	}
	if bTask.Status != models.TaskStatusSkipped {
		t.Fatalf("b status = %s, want skipped", bTask.Status)
	}
	if cTask.Status != models.TaskStatusSkipped {
		t.Fatalf("c status = %s, want skipped", cTask.Status)
	}
	// b and c should never have been dispatched to the runner at all.
	for _, id := range sr.calls {
		if id == "b" || id == "c" {
			t.Fatalf("task %s should not have been dispatched", id)
		}
	}
}

func TestRunHaltsWhenSkipOnFailureDisabled(t *testing.T) {
	runner := newFakeRunner()
	wt := newTestController(t, runner)

	tasks := []*models.Task{
		{ID: "a", Name: "a"},
		{ID: "b", Name: "b"},
	}
	plan := newPlan("bp-1", tasks, [][]string{{"a"}, {"b"}})

	sr := &scriptedRunner{
		results: map[string]*models.TaskResult{
			"a": {Success: false, Error: "boom"},
		},
		errs: map[string]error{},
	}
	bus := eventbus.New()
	co := New(plan, nil, wt, bus, Config{SkipOnFailure: false}, sr.run)

	if err := co.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if plan.Status != models.PlanStatusFailed {
		t.Fatalf("plan.Status = %s, want failed", plan.Status)
	}
	bTask, _ := plan.TaskByID("b")
	if bTask.Status != models.TaskStatusPending {
		t.Fatalf("b status = %s, want pending (never reached)", bTask.Status)
	}
}

func TestRetryResetsFailedTaskToPending(t *testing.T) {
	runner := newFakeRunner()
	wt := newTestController(t, runner)

	tasks := []*models.Task{{ID: "a", Name: "a", Status: models.TaskStatusFailed, Attempts: 1}}
	plan := newPlan("bp-1", tasks, [][]string{{"a"}})

	sr := &scriptedRunner{results: map[string]*models.TaskResult{}, errs: map[string]error{}}
	bus := eventbus.New()
	co := New(plan, nil, wt, bus, Config{}, sr.run)

	if err := co.Retry("a"); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	task, _ := plan.TaskByID("a")
	if task.Status != models.TaskStatusPending {
		t.Fatalf("status = %s, want pending", task.Status)
	}
	if task.Attempts != 2 {
		t.Fatalf("Attempts = %d, want 2", task.Attempts)
	}

	if err := co.Run(context.Background()); err != nil {
		t.Fatalf("Run after retry: %v", err)
	}
	if task.Status != models.TaskStatusCompleted {
		t.Fatalf("status after rerun = %s, want completed", task.Status)
	}
}

func TestPauseBlocksDispatchUntilResumed(t *testing.T) {
	runner := newFakeRunner()
	wt := newTestController(t, runner)

	tasks := []*models.Task{{ID: "a", Name: "a"}}
	plan := newPlan("bp-1", tasks, [][]string{{"a"}})

	sr := &scriptedRunner{results: map[string]*models.TaskResult{}, errs: map[string]error{}}
	bus := eventbus.New()
	co := New(plan, nil, wt, bus, Config{}, sr.run)
	co.Pause()

	done := make(chan error, 1)
	go func() { done <- co.Run(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Run returned before Resume despite Pause")
	case <-time.After(50 * time.Millisecond):
	}

	co.Resume()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not complete after Resume")
	}

	task, _ := plan.TaskByID("a")
	if task.Status != models.TaskStatusCompleted {
		t.Fatalf("status = %s, want completed", task.Status)
	}
}

func TestStopHaltsRunWithError(t *testing.T) {
	runner := newFakeRunner()
	wt := newTestController(t, runner)

	tasks := []*models.Task{{ID: "a", Name: "a"}, {ID: "b", Name: "b"}}
	plan := newPlan("bp-1", tasks, [][]string{{"a"}, {"b"}})

	sr := &scriptedRunner{results: map[string]*models.TaskResult{}, errs: map[string]error{}}
	bus := eventbus.New()
	co := New(plan, nil, wt, bus, Config{}, sr.run)
	co.Stop()

	if err := co.Run(context.Background()); err == nil {
		t.Fatal("expected Run to report the stop as an error")
	}
	if plan.Status != models.PlanStatusStopped {
		t.Fatalf("plan.Status = %s, want stopped", plan.Status)
	}
}

func TestModuleRootPathResolvesFromBlueprint(t *testing.T) {
	runner := newFakeRunner()
	wt := newTestController(t, runner)

	blueprint := &models.Blueprint{
		ID:      "bp-1",
		Modules: []models.Module{{ID: "mod-a", RootPath: "packages/api"}},
	}
	tasks := []*models.Task{{ID: "a", Name: "a", ModuleID: "mod-a"}}
	plan := newPlan("bp-1", tasks, [][]string{{"a"}})

	var gotRoot string
	sr := &scriptedRunner{results: map[string]*models.TaskResult{}, errs: map[string]error{}}
	bus := eventbus.New()
	co := New(plan, blueprint, wt, bus, Config{}, func(ctx context.Context, workerID string, task *models.Task, moduleRootPath string) (*models.TaskResult, error) {
		gotRoot = moduleRootPath
		return sr.run(ctx, workerID, task, moduleRootPath)
	})

	if err := co.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gotRoot != "packages/api" {
		t.Fatalf("moduleRootPath = %q, want %q", gotRoot, "packages/api")
	}
}
