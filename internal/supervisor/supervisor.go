// Package supervisor implements the Lead Agent Supervisor: a long-lived
// conversation loop that owns a run end to end, exploring the repository,
// mutating the task plan, and choosing per task whether to execute directly
// or dispatch a Worker Agent. Grounded structurally (not semantically) on
// internal/architect/controller.go's persistent functional-options loop —
// the teacher's controller audits a spec document iteratively across many
// short-lived subprocess runs, a different job from owning one continuous
// model conversation, so this is a heavy rework built around spec §9's
// actor-over-channel design note instead of the teacher's iteration loop.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/swarmctl/swarm/internal/boundary"
	"github.com/swarmctl/swarm/internal/coordinator"
	"github.com/swarmctl/swarm/internal/eventbus"
	"github.com/swarmctl/swarm/internal/llm"
	"github.com/swarmctl/swarm/pkg/models"
)

// conversationRunner is the subset of *llm.Loop the Supervisor drives,
// mirroring internal/worker's test-injection seam so a fake can stand in
// for the real SDK-backed loop.
type conversationRunner interface {
	Run(ctx context.Context, systemPrompt, userPrompt string, tools []anthropic.ToolUnionParam) (*llm.Result, error)
}

// LoopFactory builds a conversationRunner from an llm.Config.
type LoopFactory func(cfg llm.Config) conversationRunner

func defaultLoopFactory(cfg llm.Config) conversationRunner { return llm.New(cfg) }

// Config wires a Supervisor's collaborators.
type Config struct {
	Client      *llm.Client
	Checker     *boundary.Checker
	Coordinator *coordinator.Coordinator
	Bus         *eventbus.Bus
	NewLoop     LoopFactory
	// MaxIterations bounds the supervisor's single conversation turn
	// count. Zero means 200 — much larger than a Worker's default (50),
	// since one supervisor conversation spans an entire run.
	MaxIterations int
}

// Input is the Supervisor's Run contract (spec §4.H).
type Input struct {
	Blueprint   *models.Blueprint
	ProjectPath string
	Plan        *models.ExecutionPlan
}

// LeadResult is the Supervisor's Run output (spec §4.H).
type LeadResult struct {
	Success          bool     `json:"success"`
	CompletedTaskIDs []string `json:"completedTaskIds"`
	FailedTaskIDs    []string `json:"failedTaskIds"`
	Summary          string   `json:"summary"`
	DurationMs       int64    `json:"durationMs"`
}

// Supervisor drives one blueprint's run via a single persistent model
// conversation.
type Supervisor struct {
	client      *llm.Client
	checker     *boundary.Checker
	coordinator *coordinator.Coordinator
	bus         *eventbus.Bus
	newLoop     LoopFactory
	maxIter     int

	mu    sync.Mutex
	actor *actor
}

// New builds a Supervisor. cfg.Coordinator must already be constructed
// against the same plan the Supervisor is given in Run, since DispatchWorker
// forwards directly into it.
func New(cfg Config) *Supervisor {
	newLoop := cfg.NewLoop
	if newLoop == nil {
		newLoop = defaultLoopFactory
	}
	maxIter := cfg.MaxIterations
	if maxIter == 0 {
		maxIter = 200
	}
	return &Supervisor{
		client:      cfg.Client,
		checker:     cfg.Checker,
		coordinator: cfg.Coordinator,
		bus:         cfg.Bus,
		newLoop:     newLoop,
		maxIter:     maxIter,
	}
}

func (s *Supervisor) setActor(a *actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actor = a
}

func (s *Supervisor) getActor() *actor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actor
}

// Stop cancels the supervisor's conversation (spec §5's "supervisor.stop()"
// cancellation token); Run returns a partial result built from whatever
// terminal task states the plan had reached. Safe to call from any
// goroutine while Run is in flight, including before Run has started (a
// no-op in that case).
func (s *Supervisor) Stop() {
	if a := s.getActor(); a != nil {
		a.stop()
	}
}

// Snapshot returns the plan's current task-status tally. Safe to call
// concurrently with Run in flight; it is routed through the actor's
// channel rather than reading plan state directly.
func (s *Supervisor) Snapshot(ctx context.Context) (models.Stats, error) {
	a := s.getActor()
	if a == nil {
		return models.Stats{}, fmt.Errorf("supervisor: Run has not started")
	}
	return a.snapshotViaChannel(ctx)
}

// Run drives the supervisor's conversation to completion or failure.
func (s *Supervisor) Run(ctx context.Context, in Input) (*LeadResult, error) {
	start := time.Now()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a := newActor(in.Plan, s.bus, s.coordinator)
	s.setActor(a)
	go a.loop(runCtx)
	defer a.shutdown()
	a.onStop(cancel)

	exec := &supervisorExecutor{
		inner:   llm.NewToolExecutor(in.ProjectPath),
		checker: s.checker,
		actor:   a,
	}
	loop := s.newLoop(llm.Config{
		Client:        s.client,
		WorkDir:       in.ProjectPath,
		Executor:      exec,
		MaxIterations: s.maxIter,
	})

	system := systemPrompt()
	user := userPrompt(in)

	result, err := loop.Run(runCtx, system, user, supervisorToolDefinitions())
	duration := time.Since(start).Milliseconds()

	stats := a.snapshot()
	completed, failed := a.terminalTaskIDs()

	if err != nil {
		return &LeadResult{
			Success:          false,
			CompletedTaskIDs: completed,
			FailedTaskIDs:    failed,
			Summary:          fmt.Sprintf("supervisor conversation failed: %v", err),
			DurationMs:       duration,
		}, nil
	}

	summary := result.Output
	if summary == "" {
		summary = fmt.Sprintf("%d completed, %d failed, %d skipped", stats.Completed, stats.Failed, stats.Skipped)
	}
	return &LeadResult{
		Success:          stats.Failed == 0,
		CompletedTaskIDs: completed,
		FailedTaskIDs:    failed,
		Summary:          summary,
		DurationMs:       duration,
	}, nil
}
