package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "swarmctl",
	Short: "Worktree-isolated multi-agent execution substrate",
	Long: `swarmctl runs a confirmed Blueprint through the swarm execution core:
a Lead Agent Supervisor conversation that decomposes work onto an
ExecutionPlan, an Execution Coordinator that dispatches Worker Agents in
parallel across isolated git worktrees, and a Boundary Checker that
confines each worker to its assigned module.

Available commands:
  run        Execute a blueprint's plan to completion
  status     Show the active plan's task state
  cleanup    Remove orphaned worktrees and stale plan rows
  version    Show version information

Use "swarmctl [command] --help" for more information about a command.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = Version()
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cleanupCmd)
}
