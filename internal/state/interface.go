// Package state provides SQLite-based persistence for swarm.
package state

import (
	"io"

	"github.com/swarmctl/swarm/pkg/models"
)

// PlanStore handles plan-level persistence operations.
type PlanStore interface {
	CreatePlan(p *models.ExecutionPlan) error
	GetPlan(id string) (*models.ExecutionPlan, error)
	UpdatePlan(p *models.ExecutionPlan) error
	GetActivePlan() (*models.ExecutionPlan, error)
}

// TaskStore handles task-level persistence operations.
type TaskStore interface {
	CreateTask(planID string, t *models.Task) error
	GetTask(planID, taskID string) (*models.Task, error)
	UpdateTask(planID string, t *models.Task) error
	ListTasksByPlan(planID string) ([]*models.Task, error)
}

// WorkspaceStore handles worker workspace persistence operations.
type WorkspaceStore interface {
	SaveWorkspace(planID string, ws *models.WorkerWorkspace) error
	GetWorkspace(workerID string) (*models.WorkerWorkspace, error)
	ListWorkspacesByPlan(planID string) ([]*models.WorkerWorkspace, error)
	DeleteWorkspace(workerID string) error
}

// Migrator handles database schema migrations.
// Separating this allows clients to depend only on migration functionality.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// StateStore defines the interface for state persistence. It composes
// focused sub-interfaces so a caller can depend on only the slice it needs
// without pulling in the concrete SQLite implementation.
type StateStore interface {
	io.Closer
	Migrator
	PlanStore
	TaskStore
	WorkspaceStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ StateStore     = (*DB)(nil)
	_ Migrator       = (*DB)(nil)
	_ PlanStore      = (*DB)(nil)
	_ TaskStore      = (*DB)(nil)
	_ WorkspaceStore = (*DB)(nil)
)
