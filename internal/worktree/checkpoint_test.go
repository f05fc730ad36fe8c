package worktree

import "testing"

func TestCheckpointManager_CreateThenMarkGoodRemovesTag(t *testing.T) {
	runner := newFakeRunner()
	cm := NewCheckpointManager(runner)

	cp, err := cm.Create("w-1", "swarm/worker-w-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if exists, _ := runner.TagExists(cp.TagName); !exists {
		t.Fatal("expected checkpoint tag to exist after Create")
	}

	if err := cm.MarkGood("w-1"); err != nil {
		t.Fatalf("MarkGood: %v", err)
	}
	if exists, _ := runner.TagExists(cp.TagName); exists {
		t.Error("expected checkpoint tag to be removed after MarkGood")
	}
	if _, ok := cm.Get("w-1"); ok {
		t.Error("expected checkpoint to be untracked after MarkGood")
	}
}

func TestCheckpointManager_MarkBadLeavesTagInPlace(t *testing.T) {
	runner := newFakeRunner()
	cm := NewCheckpointManager(runner)

	cp, err := cm.Create("w-1", "swarm/worker-w-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := cm.MarkBad("w-1"); err != nil {
		t.Fatalf("MarkBad: %v", err)
	}

	if exists, _ := runner.TagExists(cp.TagName); !exists {
		t.Error("expected checkpoint tag to remain after MarkBad")
	}
	got, ok := cm.Get("w-1")
	if !ok || got.Status != CheckpointBad {
		t.Errorf("expected tracked bad checkpoint, got %+v, ok=%v", got, ok)
	}
	bad := cm.Bad()
	if len(bad) != 1 || bad[0].WorkerID != "w-1" {
		t.Errorf("Bad() = %+v, want one checkpoint for w-1", bad)
	}
}

func TestCheckpointManager_RollbackToResetsMain(t *testing.T) {
	runner := newFakeRunner()
	cm := NewCheckpointManager(runner)

	if _, err := cm.Create("w-1", "swarm/worker-w-1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := cm.RollbackTo("w-1"); err != nil {
		t.Fatalf("RollbackTo: %v", err)
	}
}

func TestCheckpointManager_RecreateReplacesPriorTag(t *testing.T) {
	runner := newFakeRunner()
	cm := NewCheckpointManager(runner)

	first, err := cm.Create("w-1", "task-a")
	if err != nil {
		t.Fatalf("Create (first): %v", err)
	}
	second, err := cm.Create("w-1", "task-b")
	if err != nil {
		t.Fatalf("Create (second): %v", err)
	}
	if first.TagName != second.TagName {
		t.Errorf("expected same tag name across worker reuse, got %q and %q", first.TagName, second.TagName)
	}
	got, ok := cm.Get("w-1")
	if !ok || got.TaskID != "task-b" {
		t.Errorf("expected latest checkpoint to replace the first, got %+v", got)
	}
}

func TestCheckpointManager_MarkGoodUnknownWorkerErrors(t *testing.T) {
	cm := NewCheckpointManager(newFakeRunner())
	if err := cm.MarkGood("nonexistent"); err == nil {
		t.Error("expected error marking an untracked checkpoint good")
	}
}
