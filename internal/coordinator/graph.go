package coordinator

import (
	"sync"

	"github.com/swarmctl/swarm/pkg/models"
)

// dependencyGraph tracks the live reverse-dependency structure of an
// ExecutionPlan's tasks, adapted from the teacher's DAG/topological-layering
// package. ParallelGroups already gives the Coordinator its wave layering
// (validated by models.ExecutionPlan.ValidateP1), so this graph's job here
// is narrower than the teacher's: answering "what depends on this task",
// used to cascade a skip transitively through dependents (spec §4.G failure
// policy).
type dependencyGraph struct {
	mu    sync.RWMutex
	edges map[string][]string // taskID -> ids of tasks that depend on it
}

// buildDependencyGraph indexes every task's Dependencies into a reverse map.
func buildDependencyGraph(tasks []*models.Task) *dependencyGraph {
	g := &dependencyGraph{edges: make(map[string][]string)}
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			g.edges[dep] = append(g.edges[dep], t.ID)
		}
	}
	return g
}

// dependents returns the ids of tasks that directly depend on taskID.
func (g *dependencyGraph) dependents(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[taskID]
}

// transitiveDependents returns every task id reachable by following
// dependents edges from taskID, used to cascade-skip a whole downstream
// branch of the plan when an ancestor task fails under skipOnFailure.
func (g *dependencyGraph) transitiveDependents(taskID string) []string {
	seen := make(map[string]bool)
	var walk func(string)
	var result []string
	walk = func(id string) {
		for _, dep := range g.dependents(id) {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			result = append(result, dep)
			walk(dep)
		}
	}
	walk(taskID)
	return result
}
