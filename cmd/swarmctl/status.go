package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/swarmctl/swarm/internal/state"
	"github.com/swarmctl/swarm/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active plan's task state",
	Long: `Display the state of the current project's most recent pending or
running ExecutionPlan: its status, per-task progress, and which workspaces
are still checked out. Completed, failed and stopped plans are not shown.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := state.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No project database found. Run 'swarmctl run <blueprint>' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	plan, err := db.GetActivePlan()
	if err != nil {
		return fmt.Errorf("get active plan: %w", err)
	}
	if plan == nil {
		fmt.Println("No active plan. Run 'swarmctl run <blueprint>' to start one.")
		return nil
	}

	displayPlan(plan)

	workspaces, err := db.ListWorkspacesByPlan(plan.ID)
	if err != nil {
		return fmt.Errorf("list workspaces: %w", err)
	}
	displayWorkspaces(workspaces)

	return nil
}

func displayPlan(p *models.ExecutionPlan) {
	stats := models.ComputeStats(p.Tasks)
	fmt.Printf("Plan: %s (blueprint %s)\n", p.ID, p.BlueprintID)
	fmt.Printf("  Status: %s\n", p.Status)
	if p.StartedAt != nil {
		fmt.Printf("  Started: %s ago\n", formatDuration(time.Since(*p.StartedAt)))
	}
	fmt.Printf("  Tasks: %d total, %d completed, %d failed, %d skipped, %d running, %d pending (%.0f%%)\n",
		stats.TotalTasks, stats.Completed, stats.Failed, stats.Skipped, stats.Running, stats.Pending, stats.ProgressPct)

	if len(p.Tasks) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Tasks:")
	for _, t := range p.Tasks {
		statusColor := color.New(color.FgWhite)
		switch t.Status {
		case models.TaskStatusCompleted:
			statusColor = color.New(color.FgGreen)
		case models.TaskStatusFailed:
			statusColor = color.New(color.FgRed)
		case models.TaskStatusRunning:
			statusColor = color.New(color.FgCyan)
		case models.TaskStatusSkipped:
			statusColor = color.New(color.FgYellow)
		}
		extra := ""
		if t.AssignedWorkerID != "" {
			extra = fmt.Sprintf(" (worker %s)", t.AssignedWorkerID)
		}
		fmt.Printf("  %s: \"%s\" ", t.ID, t.Name)
		statusColor.Printf("%s", t.Status)
		fmt.Printf("%s\n", extra)
	}
}

func displayWorkspaces(workspaces []*models.WorkerWorkspace) {
	if len(workspaces) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Workspaces:")
	for _, ws := range workspaces {
		fmt.Printf("  %s: %s (%s)\n", ws.WorkerID, ws.WorktreePath, ws.Phase)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
