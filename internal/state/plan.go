package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/swarmctl/swarm/pkg/models"
)

// CreatePlan persists a plan and all of its tasks in a single transaction.
func (db *DB) CreatePlan(p *models.ExecutionPlan) error {
	groups, err := json.Marshal(p.ParallelGroups)
	if err != nil {
		return fmt.Errorf("marshal parallel groups: %w", err)
	}

	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO plans (id, blueprint_id, status, parallel_groups, estimated_cost, estimated_minutes, created_at, started_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.BlueprintID, string(p.Status), string(groups), p.EstimatedCost, p.EstimatedMinutes,
			formatTime(p.CreatedAt), formatNullableTime(p.StartedAt), formatNullableTime(p.CompletedAt))
		if err != nil {
			return fmt.Errorf("create plan: %w", err)
		}

		for _, t := range p.Tasks {
			if err := insertTask(tx, p.ID, t); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertTask(tx *sql.Tx, planID string, t *models.Task) error {
	files, _ := json.Marshal(t.Files)
	deps, _ := json.Marshal(t.Dependencies)
	result, err := marshalResult(t.Result)
	if err != nil {
		return fmt.Errorf("marshal task result: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO tasks (id, plan_id, name, description, complexity, type, files, dependencies, module_id,
			status, attempts, started_at, completed_at, assigned_worker_id, branch_name, worktree_path, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, planID, t.Name, t.Description, string(t.Complexity), t.Type, string(files), string(deps), t.ModuleID,
		string(t.Status), t.Attempts, formatNullableTime(t.StartedAt), formatNullableTime(t.CompletedAt),
		t.AssignedWorkerID, t.BranchName, t.WorktreePath, result)
	if err != nil {
		return fmt.Errorf("create task %s: %w", t.ID, err)
	}
	return nil
}

func marshalResult(r *models.TaskResult) (*string, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

// GetPlan loads a plan and all of its tasks by id. Returns nil, nil if the
// plan does not exist.
func (db *DB) GetPlan(id string) (*models.ExecutionPlan, error) {
	row := db.QueryRow(`
		SELECT id, blueprint_id, status, parallel_groups, estimated_cost, estimated_minutes, created_at, started_at, completed_at
		FROM plans WHERE id = ?
	`, id)

	var p models.ExecutionPlan
	var status, groups, createdAt string
	var startedAt, completedAt sql.NullString
	err := row.Scan(&p.ID, &p.BlueprintID, &status, &groups, &p.EstimatedCost, &p.EstimatedMinutes, &createdAt, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}

	p.Status = models.PlanStatus(status)
	if err := json.Unmarshal([]byte(groups), &p.ParallelGroups); err != nil {
		return nil, fmt.Errorf("unmarshal parallel groups: %w", err)
	}
	p.CreatedAt, _ = parseTime(createdAt)
	p.StartedAt = parseNullableTime(startedAt)
	p.CompletedAt = parseNullableTime(completedAt)

	tasks, err := db.ListTasksByPlan(id)
	if err != nil {
		return nil, err
	}
	p.Tasks = tasks

	return &p, nil
}

// UpdatePlan updates a plan's status, estimates, and timestamps. It does not
// touch the plan's tasks; use UpdateTask for those.
func (db *DB) UpdatePlan(p *models.ExecutionPlan) error {
	groups, err := json.Marshal(p.ParallelGroups)
	if err != nil {
		return fmt.Errorf("marshal parallel groups: %w", err)
	}

	_, err = db.Exec(`
		UPDATE plans SET status = ?, parallel_groups = ?, estimated_cost = ?, estimated_minutes = ?,
			started_at = ?, completed_at = ?
		WHERE id = ?
	`, string(p.Status), string(groups), p.EstimatedCost, p.EstimatedMinutes,
		formatNullableTime(p.StartedAt), formatNullableTime(p.CompletedAt), p.ID)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	return nil
}

// GetActivePlan returns the most recently created plan whose status is
// pending or running, if any.
func (db *DB) GetActivePlan() (*models.ExecutionPlan, error) {
	row := db.QueryRow(`
		SELECT id FROM plans WHERE status IN ('pending', 'running') ORDER BY created_at DESC LIMIT 1
	`)
	var id string
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get active plan: %w", err)
	}
	return db.GetPlan(id)
}

// CreateTask adds a single task to an already-persisted plan (for UpdateTaskPlan's
// add_task action, spec §4.H).
func (db *DB) CreateTask(planID string, t *models.Task) error {
	return db.Transaction(func(tx *sql.Tx) error {
		return insertTask(tx, planID, t)
	})
}

// GetTask retrieves a single task by plan id and task id.
func (db *DB) GetTask(planID, taskID string) (*models.Task, error) {
	row := db.QueryRow(`
		SELECT id, name, description, complexity, type, files, dependencies, module_id,
			status, attempts, started_at, completed_at, assigned_worker_id, branch_name, worktree_path, result
		FROM tasks WHERE plan_id = ? AND id = ?
	`, planID, taskID)
	return scanTask(row)
}

// UpdateTask persists a task's current in-memory state (status, attempts,
// assignment, result, timestamps).
func (db *DB) UpdateTask(planID string, t *models.Task) error {
	files, _ := json.Marshal(t.Files)
	deps, _ := json.Marshal(t.Dependencies)
	result, err := marshalResult(t.Result)
	if err != nil {
		return fmt.Errorf("marshal task result: %w", err)
	}

	_, err = db.Exec(`
		UPDATE tasks SET name = ?, description = ?, complexity = ?, type = ?, files = ?, dependencies = ?, module_id = ?,
			status = ?, attempts = ?, started_at = ?, completed_at = ?, assigned_worker_id = ?, branch_name = ?,
			worktree_path = ?, result = ?
		WHERE plan_id = ? AND id = ?
	`, t.Name, t.Description, string(t.Complexity), t.Type, string(files), string(deps), t.ModuleID,
		string(t.Status), t.Attempts, formatNullableTime(t.StartedAt), formatNullableTime(t.CompletedAt),
		t.AssignedWorkerID, t.BranchName, t.WorktreePath, result, planID, t.ID)
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	return nil
}

// ListTasksByPlan lists all tasks belonging to a plan, in insertion order.
func (db *DB) ListTasksByPlan(planID string) ([]*models.Task, error) {
	rows, err := db.Query(`
		SELECT id, name, description, complexity, type, files, dependencies, module_id,
			status, attempts, started_at, completed_at, assigned_worker_id, branch_name, worktree_path, result
		FROM tasks WHERE plan_id = ? ORDER BY rowid
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by plan: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var complexity, status string
	var description, typ, files, deps, moduleID, assignedWorkerID, branchName, worktreePath sql.NullString
	var startedAt, completedAt, result sql.NullString

	err := row.Scan(&t.ID, &t.Name, &description, &complexity, &typ, &files, &deps, &moduleID,
		&status, &t.Attempts, &startedAt, &completedAt, &assignedWorkerID, &branchName, &worktreePath, &result)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	t.Complexity = models.Complexity(complexity)
	t.Status = models.TaskStatus(status)
	t.Description = description.String
	t.Type = typ.String
	t.ModuleID = moduleID.String
	t.AssignedWorkerID = assignedWorkerID.String
	t.BranchName = branchName.String
	t.WorktreePath = worktreePath.String
	if files.Valid {
		json.Unmarshal([]byte(files.String), &t.Files)
	}
	if deps.Valid {
		json.Unmarshal([]byte(deps.String), &t.Dependencies)
	}
	t.StartedAt = parseNullableTime(startedAt)
	t.CompletedAt = parseNullableTime(completedAt)
	if result.Valid {
		var r models.TaskResult
		if err := json.Unmarshal([]byte(result.String), &r); err == nil {
			t.Result = &r
		}
	}

	return &t, nil
}
