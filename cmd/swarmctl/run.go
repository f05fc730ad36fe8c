package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/swarmctl/swarm/internal/boundary"
	"github.com/swarmctl/swarm/internal/config"
	"github.com/swarmctl/swarm/internal/coordinator"
	"github.com/swarmctl/swarm/internal/eventbus"
	"github.com/swarmctl/swarm/internal/llm"
	"github.com/swarmctl/swarm/internal/state"
	"github.com/swarmctl/swarm/internal/supervisor"
	"github.com/swarmctl/swarm/internal/worker"
	"github.com/swarmctl/swarm/internal/worktree"
	"github.com/swarmctl/swarm/pkg/models"
)

var (
	runMaxWorkers int
	runResume     bool
)

var runCmd = &cobra.Command{
	Use:   "run <blueprint-file>",
	Short: "Execute a blueprint's plan to completion",
	Long: `Run loads a confirmed Blueprint from a YAML file, builds an empty
ExecutionPlan for it, and drives the Lead Agent Supervisor's conversation
until the plan reaches a terminal state or the process is interrupted.

If a prior run against the same project was interrupted mid-flight, run
resumes it instead of starting a new plan unless --resume=false is passed.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVar(&runMaxWorkers, "max-workers", 0, "override the configured max concurrent workers (0 = use config)")
	runCmd.Flags().BoolVar(&runResume, "resume", true, "resume an interrupted plan for this project instead of starting fresh")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runMaxWorkers > 0 {
		cfg.MaxWorkers = runMaxWorkers
	}

	apiKey, err := config.GetAPIKey(cfg)
	if err != nil {
		return fmt.Errorf("resolve API key: %w", err)
	}

	blueprint, err := loadBlueprint(args[0])
	if err != nil {
		return err
	}

	db, err := state.OpenProject(blueprint.ProjectPath)
	if err != nil {
		return fmt.Errorf("open project database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	recovery := state.NewRecoveryManager(db)

	bus := eventbus.New()
	printSub := bus.Subscribe(blueprint.ID)
	defer printSub.Close()
	persistSub := bus.Subscribe(blueprint.ID)
	defer persistSub.Close()

	wt := worktree.New(blueprint.ProjectPath, bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := wt.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize worktree controller: %w", err)
	}
	go func() {
		if err := wt.WatchOrphans(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "worktree watch stopped: %v\n", err)
		}
	}()

	plan, err := resolvePlan(db, recovery, blueprint)
	if err != nil {
		return err
	}

	client, err := llm.NewClient(llm.ClientConfig{Model: cfg.DefaultModel, APIKey: apiKey})
	if err != nil {
		return fmt.Errorf("build LLM client: %w", err)
	}
	checker := boundary.NewChecker()

	workerModels := models.Config{
		MaxWorkers:       cfg.MaxWorkers,
		WorkerTimeout:    cfg.WorkerTimeout,
		DefaultModel:     cfg.DefaultModel,
		ComplexTaskModel: cfg.ComplexTaskModel,
		SimpleTaskModel:  cfg.SimpleTaskModel,
		AutoTest:         cfg.AutoTest,
		TestTimeout:      cfg.TestTimeout,
		MaxRetries:       cfg.MaxRetries,
		SkipOnFailure:    cfg.SkipOnFailure,
		UseGitBranches:   cfg.UseGitBranches,
		AutoMerge:        cfg.AutoMerge,
		MaxCost:          cfg.MaxCost,
	}

	runTask := func(ctx context.Context, workerID string, task *models.Task, moduleRootPath string) (*models.TaskResult, error) {
		w := worker.New(workerID, worker.Config{
			Client:   client,
			Checker:  checker,
			Worktree: wt,
			Bus:      bus,
			Models:   workerModels,
		})
		return w.Run(ctx, worker.Input{
			BlueprintID:    blueprint.ID,
			Task:           task,
			Brief:          task.Description,
			TargetFiles:    task.Files,
			Constraints:    blueprint.Constraints,
			ModuleRootPath: moduleRootPath,
			Model:          workerModels.DefaultModel,
		})
	}

	coord := coordinator.New(plan, blueprint, wt, bus, coordinator.Config{
		MaxWorkers:                      cfg.MaxWorkers,
		MergeQueueBackpressureThreshold: cfg.MergeQueueBackpressureThreshold,
		SkipOnFailure:                   cfg.SkipOnFailure,
	}, runTask)

	sup := supervisor.New(supervisor.Config{
		Client:      client,
		Checker:     checker,
		Coordinator: coord,
		Bus:         bus,
	})

	go printEvents(printSub)
	go persistOnEvents(db, plan, persistSub)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		color.Yellow("swarmctl: interrupt received, stopping supervisor...")
		sup.Stop()
	}()

	result, err := sup.Run(sigCtx, supervisor.Input{
		Blueprint:   blueprint,
		ProjectPath: blueprint.ProjectPath,
		Plan:        plan,
	})
	if err != nil {
		return fmt.Errorf("supervisor run: %w", err)
	}

	if err := db.UpdatePlan(plan); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to persist final plan state: %v\n", err)
	}

	printResult(result)
	if !result.Success {
		return fmt.Errorf("run completed with failed tasks: %v", result.FailedTaskIDs)
	}
	return nil
}

// resolvePlan returns the interrupted plan for this project, reconciled for
// resume, or a fresh empty plan if none exists or --resume=false was passed.
func resolvePlan(db *state.DB, recovery *state.RecoveryManager, blueprint *models.Blueprint) (*models.ExecutionPlan, error) {
	if runResume {
		interrupted, err := recovery.DetectInterrupted()
		if err != nil {
			return nil, fmt.Errorf("detect interrupted plan: %w", err)
		}
		if interrupted != nil {
			orphaned, err := recovery.Reconcile(interrupted)
			if err != nil {
				return nil, fmt.Errorf("reconcile interrupted plan: %w", err)
			}
			for _, workerID := range orphaned {
				color.Yellow("swarmctl: resuming plan %s, orphaned worker %s reset to pending", interrupted.ID, workerID)
			}
			return interrupted, nil
		}
	}

	plan := &models.ExecutionPlan{
		ID:          uuid.NewString(),
		BlueprintID: blueprint.ID,
		Status:      models.PlanStatusPending,
		CreatedAt:   time.Now(),
	}
	if err := db.CreatePlan(plan); err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	return plan, nil
}

// printEvents renders bus events as colored status lines for an operator
// watching the run in a terminal; it is not a substitute for the richer
// status snapshot `swarmctl status` reads straight from the database.
func printEvents(sub *eventbus.Subscription) {
	for evt := range sub.Events() {
		switch evt.Type {
		case models.EventTaskUpdate:
			if p, ok := evt.Payload.(models.TaskUpdatePayload); ok {
				color.Cyan("  [%s] -> %s", p.TaskID, p.Status)
			}
		case models.EventWorkerTaskFailed:
			color.Red("  worker reported task failure: %+v", evt.Payload)
		case models.EventMergeConflict:
			color.Red("  merge conflict: %+v", evt.Payload)
		case models.EventMergeSuccess:
			color.Green("  merge succeeded: %+v", evt.Payload)
		case models.EventPlanCompleted, models.EventExecutionCompleted:
			color.Green("  %s", evt.Type)
		case models.EventExecutionError:
			color.Red("  %s: %+v", evt.Type, evt.Payload)
		}
	}
}

// persistOnEvents keeps the plan's sqlite row set roughly current as tasks
// advance, so a crash mid-run leaves a reconcilable plan behind instead of
// only the stale snapshot taken at CreatePlan time.
func persistOnEvents(db *state.DB, plan *models.ExecutionPlan, sub *eventbus.Subscription) {
	for evt := range sub.Events() {
		if evt.Type != models.EventTaskUpdate {
			continue
		}
		p, ok := evt.Payload.(models.TaskUpdatePayload)
		if !ok {
			continue
		}
		task, ok := plan.TaskByID(p.TaskID)
		if !ok {
			continue
		}
		if existing, err := db.GetTask(plan.ID, task.ID); err == nil && existing == nil {
			if err := db.CreateTask(plan.ID, task); err != nil {
				fmt.Fprintf(os.Stderr, "warning: persist new task %s: %v\n", p.TaskID, err)
			}
			continue
		}
		if err := db.UpdateTask(plan.ID, task); err != nil {
			fmt.Fprintf(os.Stderr, "warning: persist task %s: %v\n", p.TaskID, err)
		}
	}
}

func printResult(r *supervisor.LeadResult) {
	if r.Success {
		color.Green("run succeeded in %dms: %s", r.DurationMs, r.Summary)
	} else {
		color.Red("run finished with failures in %dms: %s", r.DurationMs, r.Summary)
	}
	fmt.Printf("  completed: %v\n", r.CompletedTaskIDs)
	fmt.Printf("  failed:    %v\n", r.FailedTaskIDs)
}
