package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/swarmctl/swarm/internal/eventbus"
	"github.com/swarmctl/swarm/internal/state"
	"github.com/swarmctl/swarm/internal/worktree"
	"github.com/swarmctl/swarm/pkg/models"
)

var (
	cleanupForce  bool
	cleanupDryRun bool
	cleanupPlans  bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove orphaned worktrees and stale plan rows",
	Long: `Clean up git worktrees left behind by an interrupted run and, with
--plans, purge plan rows older than 30 days from the project database.

A worktree is orphaned if its task is not pending or running in the
project's active plan (or there is no active plan at all). Use this after
a crash, or after abandoning a plan with --resume=false, to reclaim disk.`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVarP(&cleanupForce, "force", "f", false, "skip the confirmation prompt")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "show what would be removed without removing it")
	cleanupCmd.Flags().BoolVar(&cleanupPlans, "plans", false, "also purge plans older than 30 days")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := state.ProjectDBPath(cwd)
	var db *state.DB
	if _, err := os.Stat(dbPath); err == nil {
		db, err = state.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	wt := worktree.New(cwd, eventbus.New())
	ctx := context.Background()
	if err := wt.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize worktree controller: %w", err)
	}

	liveWorkerIDs, err := activeWorkerIDs(db)
	if err != nil {
		return fmt.Errorf("determine active workers: %w", err)
	}

	var orphans []string
	for _, ws := range wt.Workspaces() {
		if liveWorkerIDs[ws.WorkerID] {
			continue
		}
		orphans = append(orphans, ws.WorkerID)
	}

	if len(orphans) == 0 {
		fmt.Println("No orphaned worktrees found.")
	} else {
		fmt.Printf("Found %d orphaned worktree(s): %v\n", len(orphans), orphans)
		if cleanupDryRun {
			fmt.Println("Dry run mode - no worktrees were removed.")
		} else if confirmCleanup() {
			for _, workerID := range orphans {
				if err := wt.DestroyWorkspace(ctx, "", workerID); err != nil {
					fmt.Fprintf(os.Stderr, "warning: destroy workspace %s: %v\n", workerID, err)
					continue
				}
				color.Green("Removed: %s", workerID)
			}
		} else {
			fmt.Println("Worktree cleanup cancelled.")
		}
	}

	if cleanupPlans && db != nil {
		if err := purgeOldPlans(db); err != nil {
			return err
		}
	}

	return nil
}

// activeWorkerIDs returns the set of worker ids the project's active plan
// still expects to be running, so cleanup never removes a live worker's
// worktree out from under it.
func activeWorkerIDs(db *state.DB) (map[string]bool, error) {
	live := map[string]bool{}
	if db == nil {
		return live, nil
	}
	plan, err := db.GetActivePlan()
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return live, nil
	}
	for _, t := range plan.Tasks {
		if t.AssignedWorkerID != "" &&
			(t.Status == models.TaskStatusPending || t.Status == models.TaskStatusRunning) {
			live[t.AssignedWorkerID] = true
		}
	}
	return live, nil
}

func purgeOldPlans(db *state.DB) error {
	const maxAge = 30 * 24 * time.Hour
	if cleanupDryRun {
		fmt.Println("Dry run: skipping plan purge.")
		return nil
	}
	purged, err := db.PurgeOldPlans(maxAge)
	if err != nil {
		return fmt.Errorf("purge old plans: %w", err)
	}
	if purged > 0 {
		fmt.Printf("Purged %d plan(s) older than 30 days.\n", purged)
	} else {
		fmt.Println("No plans older than 30 days found.")
	}
	return nil
}

func confirmCleanup() bool {
	if cleanupForce {
		return true
	}
	fmt.Print("Remove these worktrees? [y/N] ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
