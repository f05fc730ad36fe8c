package state

import (
	"testing"
	"time"

	"github.com/swarmctl/swarm/pkg/models"
)

func samplePlan() *models.ExecutionPlan {
	return &models.ExecutionPlan{
		ID:          "plan-1",
		BlueprintID: "bp-1",
		Status:      models.PlanStatusPending,
		ParallelGroups: [][]string{
			{"t1"},
			{"t2", "t3"},
		},
		EstimatedCost:    1.5,
		EstimatedMinutes: 30,
		CreatedAt:        time.Now().Truncate(time.Second),
		Tasks: []*models.Task{
			{ID: "t1", Name: "scaffold", Status: models.TaskStatusPending, Complexity: models.ComplexitySimple},
			{ID: "t2", Name: "build", Status: models.TaskStatusPending, Dependencies: []string{"t1"}, Files: []string{"a.go"}},
			{ID: "t3", Name: "test", Status: models.TaskStatusPending, Dependencies: []string{"t1"}},
		},
	}
}

func TestCreateAndGetPlan(t *testing.T) {
	db := setupTestDB(t)
	plan := samplePlan()

	if err := db.CreatePlan(plan); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	got, err := db.GetPlan("plan-1")
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if got == nil {
		t.Fatal("expected plan, got nil")
	}
	if got.BlueprintID != "bp-1" || got.Status != models.PlanStatusPending {
		t.Errorf("plan mismatch: %+v", got)
	}
	if len(got.ParallelGroups) != 2 || len(got.ParallelGroups[1]) != 2 {
		t.Errorf("unexpected parallel groups: %+v", got.ParallelGroups)
	}
	if len(got.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(got.Tasks))
	}

	t2, ok := got.TaskByID("t2")
	if !ok {
		t.Fatal("expected t2 to be present")
	}
	if len(t2.Dependencies) != 1 || t2.Dependencies[0] != "t1" {
		t.Errorf("t2 dependencies mismatch: %+v", t2.Dependencies)
	}
	if len(t2.Files) != 1 || t2.Files[0] != "a.go" {
		t.Errorf("t2 files mismatch: %+v", t2.Files)
	}
}

func TestGetPlan_NotFound(t *testing.T) {
	db := setupTestDB(t)
	got, err := db.GetPlan("nonexistent")
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestUpdatePlan(t *testing.T) {
	db := setupTestDB(t)
	plan := samplePlan()
	if err := db.CreatePlan(plan); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	plan.Status = models.PlanStatusRunning
	now := time.Now().Truncate(time.Second)
	plan.StartedAt = &now
	if err := db.UpdatePlan(plan); err != nil {
		t.Fatalf("UpdatePlan: %v", err)
	}

	got, err := db.GetPlan("plan-1")
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if got.Status != models.PlanStatusRunning {
		t.Errorf("status = %s, want running", got.Status)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(now) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, now)
	}
}

func TestGetActivePlan(t *testing.T) {
	db := setupTestDB(t)

	done := samplePlan()
	done.ID = "done-plan"
	done.Status = models.PlanStatusCompleted
	done.CreatedAt = time.Now().Add(-time.Hour)
	if err := db.CreatePlan(done); err != nil {
		t.Fatalf("create done plan: %v", err)
	}

	active := samplePlan()
	active.ID = "active-plan"
	active.Status = models.PlanStatusRunning
	if err := db.CreatePlan(active); err != nil {
		t.Fatalf("create active plan: %v", err)
	}

	got, err := db.GetActivePlan()
	if err != nil {
		t.Fatalf("GetActivePlan: %v", err)
	}
	if got == nil || got.ID != "active-plan" {
		t.Errorf("expected active-plan, got %+v", got)
	}
}

func TestGetActivePlan_None(t *testing.T) {
	db := setupTestDB(t)
	plan := samplePlan()
	plan.Status = models.PlanStatusCompleted
	if err := db.CreatePlan(plan); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	got, err := db.GetActivePlan()
	if err != nil {
		t.Fatalf("GetActivePlan: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestCreateAndUpdateTask(t *testing.T) {
	db := setupTestDB(t)
	plan := samplePlan()
	if err := db.CreatePlan(plan); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	newTask := &models.Task{ID: "t4", Name: "docs", Status: models.TaskStatusPending, Dependencies: []string{"t1"}}
	if err := db.CreateTask("plan-1", newTask); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	got, err := db.GetTask("plan-1", "t4")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got == nil || got.Name != "docs" {
		t.Fatalf("unexpected task: %+v", got)
	}

	got.Status = models.TaskStatusCompleted
	got.Result = &models.TaskResult{Success: true, Summary: "wrote docs"}
	if err := db.UpdateTask("plan-1", got); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}

	reloaded, err := db.GetTask("plan-1", "t4")
	if err != nil {
		t.Fatalf("GetTask after update: %v", err)
	}
	if reloaded.Status != models.TaskStatusCompleted {
		t.Errorf("status = %s, want completed", reloaded.Status)
	}
	if reloaded.Result == nil || !reloaded.Result.Success || reloaded.Result.Summary != "wrote docs" {
		t.Errorf("result mismatch: %+v", reloaded.Result)
	}
}

func TestListTasksByPlan_Empty(t *testing.T) {
	db := setupTestDB(t)
	plan := &models.ExecutionPlan{ID: "empty-plan", BlueprintID: "bp-1", Status: models.PlanStatusPending, CreatedAt: time.Now()}
	if err := db.CreatePlan(plan); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	tasks, err := db.ListTasksByPlan("empty-plan")
	if err != nil {
		t.Fatalf("ListTasksByPlan: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("expected no tasks, got %d", len(tasks))
	}
}

func TestCascadeDeletesTasksWithPlan(t *testing.T) {
	db := setupTestDB(t)
	plan := samplePlan()
	if err := db.CreatePlan(plan); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	if _, err := db.Exec("DELETE FROM plans WHERE id = ?", "plan-1"); err != nil {
		t.Fatalf("delete plan: %v", err)
	}

	tasks, err := db.ListTasksByPlan("plan-1")
	if err != nil {
		t.Fatalf("ListTasksByPlan: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("expected cascade delete to remove tasks, got %d", len(tasks))
	}
}
