package state

import (
	"database/sql"
	"fmt"

	"github.com/swarmctl/swarm/pkg/models"
)

// SaveWorkspace upserts a worker workspace record, so a restart can tell
// which worker id a now-running task was assigned to even if the worktree
// directory itself was already reaped.
func (db *DB) SaveWorkspace(planID string, ws *models.WorkerWorkspace) error {
	_, err := db.Exec(`
		INSERT INTO workspaces (worker_id, plan_id, branch_name, worktree_path, created_at, phase)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(worker_id) DO UPDATE SET
			plan_id = excluded.plan_id, branch_name = excluded.branch_name,
			worktree_path = excluded.worktree_path, phase = excluded.phase
	`, ws.WorkerID, planID, ws.BranchName, ws.WorktreePath, formatTime(ws.CreatedAt), string(ws.Phase))
	if err != nil {
		return fmt.Errorf("save workspace %s: %w", ws.WorkerID, err)
	}
	return nil
}

// GetWorkspace retrieves a worker's persisted workspace record, if any.
func (db *DB) GetWorkspace(workerID string) (*models.WorkerWorkspace, error) {
	row := db.QueryRow(`
		SELECT worker_id, branch_name, worktree_path, created_at, phase
		FROM workspaces WHERE worker_id = ?
	`, workerID)
	ws, err := scanWorkspace(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ws, err
}

// ListWorkspacesByPlan lists every workspace record belonging to a plan.
func (db *DB) ListWorkspacesByPlan(planID string) ([]*models.WorkerWorkspace, error) {
	rows, err := db.Query(`
		SELECT worker_id, branch_name, worktree_path, created_at, phase
		FROM workspaces WHERE plan_id = ?
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("list workspaces by plan: %w", err)
	}
	defer rows.Close()

	var out []*models.WorkerWorkspace
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, nil
}

// DeleteWorkspace removes a worker's workspace record. Safe to call on a
// worker id with no record.
func (db *DB) DeleteWorkspace(workerID string) error {
	_, err := db.Exec(`DELETE FROM workspaces WHERE worker_id = ?`, workerID)
	if err != nil {
		return fmt.Errorf("delete workspace %s: %w", workerID, err)
	}
	return nil
}

func scanWorkspace(row rowScanner) (*models.WorkerWorkspace, error) {
	var ws models.WorkerWorkspace
	var createdAt, phase string
	if err := row.Scan(&ws.WorkerID, &ws.BranchName, &ws.WorktreePath, &createdAt, &phase); err != nil {
		return nil, err
	}
	ws.CreatedAt, _ = parseTime(createdAt)
	ws.Phase = models.WorkerPhase(phase)
	return &ws, nil
}
