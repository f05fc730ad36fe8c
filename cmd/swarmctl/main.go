// Command swarmctl runs the swarm execution core against a confirmed
// Blueprint: the Lead Agent Supervisor, Execution Coordinator, and
// Worktree-Isolated Concurrency Controller described in internal/.
package main

func main() {
	Execute()
}
