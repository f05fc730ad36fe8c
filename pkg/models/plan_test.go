package models

import "testing"

func TestValidateP1(t *testing.T) {
	plan := &ExecutionPlan{
		Tasks: []*Task{
			{ID: "a"},
			{ID: "b", Dependencies: []string{"a"}},
			{ID: "c", Dependencies: []string{"a", "b"}},
		},
		ParallelGroups: [][]string{{"a"}, {"b"}, {"c"}},
	}
	if err := plan.ValidateP1(); err != nil {
		t.Fatalf("expected valid plan, got %v", err)
	}
}

func TestValidateP1ViolationSameGroup(t *testing.T) {
	plan := &ExecutionPlan{
		Tasks: []*Task{
			{ID: "a"},
			{ID: "b", Dependencies: []string{"a"}},
		},
		ParallelGroups: [][]string{{"a", "b"}},
	}
	if err := plan.ValidateP1(); err == nil {
		t.Fatal("expected P1 violation when dependency shares a group")
	}
}

func TestValidateP1ViolationUnplaced(t *testing.T) {
	plan := &ExecutionPlan{
		Tasks:          []*Task{{ID: "a"}},
		ParallelGroups: [][]string{},
	}
	if err := plan.ValidateP1(); err == nil {
		t.Fatal("expected P1 violation for unplaced task")
	}
}

func TestComputeStats(t *testing.T) {
	tasks := []*Task{
		{Status: TaskStatusCompleted},
		{Status: TaskStatusFailed},
		{Status: TaskStatusSkipped},
		{Status: TaskStatusPending},
		{Status: TaskStatusRunning},
	}
	stats := ComputeStats(tasks)
	if stats.TotalTasks != 5 || stats.Completed != 1 || stats.Failed != 1 ||
		stats.Skipped != 1 || stats.Pending != 1 || stats.Running != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.ProgressPct != 60 {
		t.Fatalf("expected progress 60%%, got %v", stats.ProgressPct)
	}
}

func TestDependenciesSatisfied(t *testing.T) {
	task := &Task{Dependencies: []string{"a", "b"}}
	statuses := map[string]TaskStatus{"a": TaskStatusCompleted, "b": TaskStatusSkipped}
	if !task.DependenciesSatisfied(statuses) {
		t.Fatal("expected dependencies satisfied")
	}
	statuses["b"] = TaskStatusFailed
	if task.DependenciesSatisfied(statuses) {
		t.Fatal("expected dependencies unsatisfied when a dep failed")
	}
}
