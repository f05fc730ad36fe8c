// Package worker implements the Worker Agent (spec §4.F): one worker is
// instantiated per dispatched task, runs a fixed Analyze -> Decide -> Execute
// -> Commit -> Return procedure over fresh conversation loops, and reports a
// TaskResult. Grounded structurally on
// internal/agent/executor.go's worktree-create -> run -> track -> cleanup
// shape, with the teacher's single Claude-CLI-subprocess stream replaced by
// three explicit internal/llm conversation loops to match spec §4.F's
// three-turn contract.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/swarmctl/swarm/internal/boundary"
	"github.com/swarmctl/swarm/internal/eventbus"
	"github.com/swarmctl/swarm/internal/llm"
	"github.com/swarmctl/swarm/internal/worktree"
	"github.com/swarmctl/swarm/pkg/models"
)

// conversationRunner is the subset of *llm.Loop a Worker drives. Defined as
// an interface so tests can substitute a fake that never calls the real
// Anthropic API.
type conversationRunner interface {
	Run(ctx context.Context, systemPrompt, userPrompt string, tools []anthropic.ToolUnionParam) (*llm.Result, error)
	SimpleCall(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// LoopFactory builds a conversationRunner for one conversation phase. The
// default wraps llm.New; tests override it to avoid live API calls.
type LoopFactory func(cfg llm.Config) conversationRunner

func defaultLoopFactory(cfg llm.Config) conversationRunner { return llm.New(cfg) }

// Config configures a Worker.
type Config struct {
	Client   *llm.Client
	Checker  *boundary.Checker
	Worktree *worktree.Controller
	Bus      *eventbus.Bus
	Models   models.Config
	NewLoop  LoopFactory
}

// Worker executes exactly one task over its own worktree.
type Worker struct {
	id      string
	client  *llm.Client
	checker *boundary.Checker
	wt      *worktree.Controller
	bus     *eventbus.Bus
	models  models.Config
	newLoop LoopFactory

	mu    sync.Mutex
	phase models.WorkerPhase
}

// New returns a Worker identified by id.
func New(id string, cfg Config) *Worker {
	factory := cfg.NewLoop
	if factory == nil {
		factory = defaultLoopFactory
	}
	return &Worker{
		id:      id,
		client:  cfg.Client,
		checker: cfg.Checker,
		wt:      cfg.Worktree,
		bus:     cfg.Bus,
		models:  cfg.Models,
		newLoop: factory,
		phase:   models.PhaseIdle,
	}
}

// ID returns the worker's identity.
func (w *Worker) ID() string { return w.id }

// Input is a Worker.Run invocation's contract (spec §4.F).
type Input struct {
	BlueprintID    string
	Task           *models.Task
	Brief          string
	TargetFiles    []string
	Constraints    []string
	ModuleRootPath string
	// Model is the conversation model for the Analyze/Decide turns; the
	// Decide turn's strategy.ModelSelection may override it for Execute.
	Model string
}

// strategy is the Decide turn's structured output (spec §4.F step 2).
type strategy struct {
	ShouldWriteTests bool     `json:"shouldWriteTests"`
	TestReason       string   `json:"testReason"`
	Steps            []string `json:"steps"`
	EstimatedMinutes float64  `json:"estimatedMinutes"`
	ModelSelection   string   `json:"modelSelection"`
}

// Run drives the worker's procedure end to end and returns a TaskResult.
// Run never returns an error for a task-level failure — that is reported as
// TaskResult.Success=false plus an emitted worker:task-failed event — only
// for a condition that prevented the worker from even starting (e.g.
// workspace creation failure, per spec §4.F failure semantics).
func (w *Worker) Run(ctx context.Context, in Input) (*models.TaskResult, error) {
	ws, err := w.wt.CreateWorkspace(ctx, in.BlueprintID, w.id)
	if err != nil {
		return nil, fmt.Errorf("worker: create workspace: %w", err)
	}

	result, failErr := w.execute(ctx, in, ws)
	if failErr != nil {
		w.setPhase(ctx, in.BlueprintID, models.PhaseFailed)
		if ctx.Err() != nil {
			// Cancellation: discard whatever the execute turn buffered and
			// tear the workspace down rather than leaving debris behind.
			_ = w.wt.DestroyWorkspace(context.Background(), in.BlueprintID, w.id)
			w.publish(ctx, in.BlueprintID, models.EventWorkerTaskFailed, models.WorkerTaskResultPayload{
				WorkerID: w.id, TaskID: in.Task.ID, Error: "cancelled",
			})
			return &models.TaskResult{Success: false, Error: "cancelled"}, nil
		}
		result := &models.TaskResult{Success: false, Error: failErr.Error()}
		w.publish(ctx, in.BlueprintID, models.EventWorkerTaskFailed, models.WorkerTaskResultPayload{
			WorkerID: w.id, TaskID: in.Task.ID, Error: failErr.Error(),
		})
		return result, nil
	}

	w.setPhase(ctx, in.BlueprintID, models.PhaseDone)
	w.publish(ctx, in.BlueprintID, models.EventWorkerTaskCompleted, models.WorkerTaskResultPayload{
		WorkerID: w.id, TaskID: in.Task.ID, Result: result,
	})
	return result, nil
}

// execute runs the Analyze -> Decide -> Execute -> Commit sequence. A
// non-nil error here is a task failure; the caller translates it into the
// emitted worker:task-failed event and a failed TaskResult.
func (w *Worker) execute(ctx context.Context, in Input, ws *models.WorkerWorkspace) (*models.TaskResult, error) {
	model := in.Model
	if model == "" {
		model = w.modelForComplexity(in.Task.Complexity)
	}

	analysis, err := w.analyze(ctx, in, ws, model)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	strat, err := w.decide(ctx, in, ws, model, analysis)
	if err != nil {
		return nil, fmt.Errorf("decide strategy: %w", err)
	}

	execModel := model
	if strat.ModelSelection != "" {
		execModel = strat.ModelSelection
	}

	changes, summary, err := w.runExecute(ctx, in, ws, execModel, analysis, strat)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}

	w.setPhase(ctx, in.BlueprintID, models.PhaseCommitting)
	if err := w.wt.ApplyChanges(ctx, in.BlueprintID, w.id, changes, summary); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	filesModified := make([]string, len(changes))
	for i, c := range changes {
		filesModified[i] = c.FilePath
	}
	testsRun := strat.ShouldWriteTests
	return &models.TaskResult{
		Success:       true,
		FilesModified: filesModified,
		Summary:       summary,
		TestsRun:      &testsRun,
	}, nil
}

// analyze opens a fresh read-only conversation loop over the worktree and
// asks for an exploratory summary (spec §4.F step 1).
func (w *Worker) analyze(ctx context.Context, in Input, ws *models.WorkerWorkspace, model string) (string, error) {
	w.setPhase(ctx, in.BlueprintID, models.PhaseAnalyzing)
	w.publish(ctx, in.BlueprintID, models.EventWorkerAnalyzing, models.WorkerAnalysisPayload{
		WorkerID: w.id, TaskID: in.Task.ID,
	})

	loop := w.newLoop(llm.Config{
		Client:   w.client,
		WorkDir:  ws.WorktreePath,
		Executor: llm.NewToolExecutor(ws.WorktreePath),
		Model:    model,
	})

	system := "You are a software engineering agent exploring a codebase before making changes. " +
		"Use the available read-only tools to understand the target files and their dependencies. " +
		"Finish with a concise summary of what you observed and what you'd suggest doing."
	user := analyzePrompt(in)

	res, err := loop.Run(ctx, system, user, llm.ReadOnlyToolDefinitions())
	if err != nil {
		return "", err
	}

	w.publish(ctx, in.BlueprintID, models.EventWorkerAnalyzed, models.WorkerAnalysisPayload{
		WorkerID: w.id, TaskID: in.Task.ID, Analysis: res.Output,
	})
	return res.Output, nil
}

// decide asks a second, tool-free turn for the execution strategy (spec
// §4.F step 2).
func (w *Worker) decide(ctx context.Context, in Input, ws *models.WorkerWorkspace, model, analysis string) (strategy, error) {
	w.setPhase(ctx, in.BlueprintID, models.PhaseDeciding)

	loop := w.newLoop(llm.Config{Client: w.client, WorkDir: ws.WorktreePath, Model: model})
	system := "You decide how a task should be executed. Respond with ONLY a JSON object, no other text, " +
		"matching this shape: " +
		`{"shouldWriteTests":bool,"testReason":string,"steps":[string],"estimatedMinutes":number,"modelSelection":string}`
	user := decidePrompt(in, analysis)

	raw, err := loop.SimpleCall(ctx, system, user)
	if err != nil {
		return strategy{}, err
	}

	var strat strategy
	if err := parseJSONObject(raw, &strat); err != nil {
		return strategy{}, fmt.Errorf("parse strategy: %w", err)
	}

	w.publish(ctx, in.BlueprintID, models.EventWorkerStrategyDecided, models.WorkerStrategyPayload{
		WorkerID: w.id, Strategy: strat,
	})
	return strat, nil
}

// runExecute opens the write-capable conversation loop, gated through the
// Boundary Checker, and returns the buffered FileChanges it produced plus a
// one-line summary for the commit subject (spec §4.F step 3).
func (w *Worker) runExecute(ctx context.Context, in Input, ws *models.WorkerWorkspace, model, analysis string, strat strategy) ([]models.FileChange, string, error) {
	w.setPhase(ctx, in.BlueprintID, models.PhaseExecuting)

	tracker := &changeTracker{worktreePath: ws.WorktreePath}
	gated := &boundaryGatedExecutor{
		inner:   llm.NewToolExecutor(ws.WorktreePath),
		checker: w.checker,
		scope:   &boundary.TaskScope{ModuleRootPath: in.ModuleRootPath},
		tracker: tracker,
	}

	loop := w.newLoop(llm.Config{Client: w.client, WorkDir: ws.WorktreePath, Executor: gated, Model: model})
	system := "You are a software engineering agent implementing a task. Use the available tools to make the " +
		"required changes, then stop once the task is complete. Keep changes scoped to what the task asks for."
	user := executePrompt(in, analysis, strat)

	res, err := loop.Run(ctx, system, user, llm.ToolDefinitions())
	if err != nil {
		return nil, "", err
	}

	summary := strings.TrimSpace(res.Output)
	if i := strings.LastIndex(summary, "\n"); i >= 0 {
		summary = strings.TrimSpace(summary[i+1:])
	}
	if summary == "" {
		summary = in.Task.Name
	}
	return tracker.changes, summary, nil
}

func (w *Worker) modelForComplexity(c models.Complexity) string {
	switch c {
	case models.ComplexitySimple:
		if w.models.SimpleTaskModel != "" {
			return w.models.SimpleTaskModel
		}
	case models.ComplexityComplex:
		if w.models.ComplexTaskModel != "" {
			return w.models.ComplexTaskModel
		}
	}
	if w.models.DefaultModel != "" {
		return w.models.DefaultModel
	}
	return ""
}

func (w *Worker) setPhase(ctx context.Context, blueprintID string, phase models.WorkerPhase) {
	w.mu.Lock()
	w.phase = phase
	w.mu.Unlock()
	w.publish(ctx, blueprintID, models.EventWorkerStatusUpdated, models.WorkerStatusUpdatedPayload{
		WorkerID: w.id, Phase: phase,
	})
}

// Phase returns the worker's last observed state-machine phase.
func (w *Worker) Phase() models.WorkerPhase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

func (w *Worker) publish(ctx context.Context, blueprintID string, eventType models.EventType, payload interface{}) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(ctx, models.Event{
		Type:        eventType,
		BlueprintID: blueprintID,
		Payload:     payload,
		Timestamp:   time.Now(),
	})
}

// parseJSONObject extracts the first {...} span in s and unmarshals it into
// target, tolerating a model response that wraps JSON in prose or markdown
// fences.
func parseJSONObject(s string, target interface{}) error {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return fmt.Errorf("no JSON object found in response: %s", truncate(s, 200))
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), target); err != nil {
		return fmt.Errorf("%w (response: %s)", err, truncate(s, 200))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
