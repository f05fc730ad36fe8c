package supervisor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/swarmctl/swarm/internal/boundary"
	"github.com/swarmctl/swarm/internal/llm"
	"github.com/swarmctl/swarm/pkg/models"
)

// supervisorExecutor wraps a plain llm.ToolExecutor: Write/Edit still pass
// through the boundary checker (as RoleLead, so only rule 1's hard-forbidden
// paths can deny them — rule 3 allows every other lead write), and
// UpdateTaskPlan/DispatchWorker are intercepted and forwarded to the actor
// instead of touching the filesystem.
type supervisorExecutor struct {
	inner   llm.Executor
	checker *boundary.Checker
	actor   *actor
}

func (e *supervisorExecutor) Execute(ctx context.Context, name string, input json.RawMessage) llm.ToolResult {
	switch name {
	case "Write", "Edit":
		path, err := filePathFromInput(input)
		if err != nil {
			return llm.ToolResult{Content: err.Error(), IsError: true}
		}
		decision := e.checker.Check(boundary.RoleLead, boundary.OpWrite, path, nil)
		if !decision.Allowed {
			return llm.ToolResult{Content: "write denied: " + decision.Reason, IsError: true}
		}
		return e.inner.Execute(ctx, name, input)

	case "UpdateTaskPlan":
		return e.updateTaskPlan(ctx, input)

	case "DispatchWorker":
		return e.dispatchWorker(ctx, input)

	default:
		return e.inner.Execute(ctx, name, input)
	}
}

type updateTaskPlanInput struct {
	Action       string   `json:"action"`
	TaskID       string   `json:"taskId"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Complexity   string   `json:"complexity"`
	Dependencies []string `json:"dependencies"`
	Reason       string   `json:"reason"`
}

func (e *supervisorExecutor) updateTaskPlan(ctx context.Context, input json.RawMessage) llm.ToolResult {
	var in updateTaskPlanInput
	if err := json.Unmarshal(input, &in); err != nil {
		return llm.ToolResult{Content: "invalid UpdateTaskPlan input: " + err.Error(), IsError: true}
	}

	var cmd actorCmd
	switch in.Action {
	case "add_task":
		if in.TaskID == "" {
			return llm.ToolResult{Content: "add_task requires taskId", IsError: true}
		}
		cmd = actorCmd{kind: cmdAddTask, task: &models.Task{
			ID:           in.TaskID,
			Name:         in.Name,
			Description:  in.Description,
			Complexity:   models.Complexity(in.Complexity),
			Dependencies: in.Dependencies,
		}}
	case "start_task":
		cmd = actorCmd{kind: cmdStartTask, taskID: in.TaskID}
	case "complete_task":
		cmd = actorCmd{kind: cmdCompleteTask, taskID: in.TaskID}
	case "fail_task":
		cmd = actorCmd{kind: cmdFailTask, taskID: in.TaskID, reason: in.Reason}
	case "skip_task":
		cmd = actorCmd{kind: cmdSkipTask, taskID: in.TaskID, reason: in.Reason}
	default:
		return llm.ToolResult{Content: "unknown UpdateTaskPlan action: " + in.Action, IsError: true}
	}

	reply := e.actor.send(ctx, cmd)
	if reply.err != nil {
		return llm.ToolResult{Content: reply.err.Error(), IsError: true}
	}
	return llm.ToolResult{Content: "ok"}
}

func (e *supervisorExecutor) dispatchWorker(ctx context.Context, input json.RawMessage) llm.ToolResult {
	var in struct {
		TaskID string `json:"taskId"`
	}
	if err := json.Unmarshal(input, &in); err != nil || in.TaskID == "" {
		return llm.ToolResult{Content: "DispatchWorker requires taskId", IsError: true}
	}

	reply := e.actor.send(ctx, actorCmd{kind: cmdDispatch, taskID: in.TaskID})
	if reply.err != nil {
		return llm.ToolResult{Content: reply.err.Error(), IsError: true}
	}
	if reply.result == nil {
		return llm.ToolResult{Content: "worker produced no result", IsError: true}
	}
	summary := fmt.Sprintf("success=%v summary=%q filesModified=%v", reply.result.Success, reply.result.Summary, reply.result.FilesModified)
	if !reply.result.Success {
		summary = fmt.Sprintf("success=false error=%q", reply.result.Error)
	}
	return llm.ToolResult{Content: summary, IsError: !reply.result.Success}
}

func filePathFromInput(input json.RawMessage) (string, error) {
	var parsed struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(input, &parsed); err != nil {
		return "", fmt.Errorf("invalid tool input: %w", err)
	}
	if parsed.FilePath == "" {
		return "", fmt.Errorf("tool input missing file_path")
	}
	return parsed.FilePath, nil
}
