package supervisor

import (
	"github.com/anthropics/anthropic-sdk-go"

	"github.com/swarmctl/swarm/internal/llm"
)

// supervisorToolDefinitions returns the full tool surface spec §4.H grants
// the Lead Agent Supervisor's conversation: llm.ToolDefinitions() already
// covers "Read/Glob/Grep/Bash for exploration" plus "Write/Edit/Bash for
// direct execution" in one set, plus two supervisor-only tools for
// mutating the plan and dispatching workers.
func supervisorToolDefinitions() []anthropic.ToolUnionParam {
	tools := append([]anthropic.ToolUnionParam{}, llm.ToolDefinitions()...)
	return append(tools,
		anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name: "UpdateTaskPlan",
				Description: anthropic.String(
					"Mutate the execution plan: add a new task, or move an existing task " +
						"to started/completed/failed/skipped. Effects are immediately visible " +
						"to the coordinator and broadcast on the event bus."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"action": map[string]interface{}{
							"type":        "string",
							"enum":        []string{"add_task", "start_task", "complete_task", "fail_task", "skip_task"},
							"description": "Which plan mutation to perform",
						},
						"taskId": map[string]interface{}{
							"type":        "string",
							"description": "Id of the task to mutate, or of the new task for add_task (required for every action)",
						},
						"name": map[string]interface{}{
							"type":        "string",
							"description": "Task name (add_task only)",
						},
						"description": map[string]interface{}{
							"type":        "string",
							"description": "Task description (add_task only)",
						},
						"complexity": map[string]interface{}{
							"type":        "string",
							"enum":        []string{"simple", "medium", "complex"},
							"description": "Task complexity (add_task only)",
						},
						"dependencies": map[string]interface{}{
							"type":        "array",
							"items":       map[string]interface{}{"type": "string"},
							"description": "Ids of tasks this one depends on; each must already exist (add_task only)",
						},
						"reason": map[string]interface{}{
							"type":        "string",
							"description": "Explanation for fail_task/skip_task",
						},
					},
					Required: []string{"action"},
				},
			},
		},
		anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name: "DispatchWorker",
				Description: anthropic.String(
					"Run a Worker Agent to completion on the given task id and return its " +
						"TaskResult. Blocks until the worker finishes (analyze, decide, execute, " +
						"commit, merge); waits for merge-queue capacity like the execution " +
						"coordinator's own scheduling, but does not take one of its maxWorkers slots."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"taskId": map[string]interface{}{
							"type":        "string",
							"description": "Id of the task to dispatch to a worker",
						},
					},
					Required: []string{"taskId"},
				},
			},
		},
	)
}
