package worker

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/swarmctl/swarm/internal/boundary"
	"github.com/swarmctl/swarm/internal/llm"
	"github.com/swarmctl/swarm/pkg/models"
)

// changeTracker records the FileChanges a boundaryGatedExecutor's allowed
// writes produce, read back from disk so the buffered batch always reflects
// the file's final content regardless of how many Edit calls touched it
// (spec §4.F step 3).
type changeTracker struct {
	worktreePath string

	mu      sync.Mutex
	changes []models.FileChange
	seen    map[string]int // filePath -> index into changes, for last-write-wins
}

func (t *changeTracker) record(filePath string, changeType models.ChangeType) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seen == nil {
		t.seen = make(map[string]int)
	}

	content := ""
	if changeType != models.ChangeDelete {
		data, err := os.ReadFile(resolveInWorktree(t.worktreePath, filePath))
		if err == nil {
			content = string(data)
		}
	}
	change := models.FileChange{FilePath: filePath, Type: changeType, Content: content}

	if idx, ok := t.seen[filePath]; ok {
		t.changes[idx] = change
		return
	}
	t.seen[filePath] = len(t.changes)
	t.changes = append(t.changes, change)
}

// boundaryGatedExecutor wraps an llm.Executor and gates every Write/Edit
// tool call through the Boundary Checker before delegating, per spec §4.F
// step 3: "every tool invocation ... gated by the Boundary Checker with
// role=worker and the task's moduleId ... a denied write returns an error to
// the model so it can adapt." Read/Bash/Glob/Grep pass straight through,
// since the checker always allows reads and has no opinion on Bash.
type boundaryGatedExecutor struct {
	inner   llm.Executor
	checker *boundary.Checker
	scope   *boundary.TaskScope
	tracker *changeTracker
}

func (e *boundaryGatedExecutor) Execute(ctx context.Context, name string, input json.RawMessage) llm.ToolResult {
	switch name {
	case "Write", "Edit":
		path, err := filePathFromInput(input)
		if err != nil {
			return llm.ToolResult{Content: err.Error(), IsError: true}
		}

		decision := e.checker.Check(boundary.RoleWorker, boundary.OpWrite, path, e.scope)
		if !decision.Allowed {
			return llm.ToolResult{Content: "write denied: " + decision.Reason, IsError: true}
		}

		result := e.inner.Execute(ctx, name, input)
		if !result.IsError {
			changeType := models.ChangeModify
			if name == "Write" {
				changeType = models.ChangeCreate
			}
			e.tracker.record(path, changeType)
		}
		return result

	default:
		return e.inner.Execute(ctx, name, input)
	}
}

func filePathFromInput(input json.RawMessage) (string, error) {
	var params struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return "", err
	}
	return params.FilePath, nil
}

func resolveInWorktree(worktreePath, filePath string) string {
	if filePath == "" {
		return worktreePath
	}
	if filePath[0] == '/' {
		return filePath
	}
	return worktreePath + string(os.PathSeparator) + filePath
}
