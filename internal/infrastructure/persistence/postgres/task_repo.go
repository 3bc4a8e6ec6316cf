package postgres

import (
	"context"
	"fmt"

	"github.com/planboard/planboard-core/internal/domain/project"
)

// TaskRepository implements project.TaskSource for PostgreSQL.
type TaskRepository struct {
	db Querier
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db Querier) *TaskRepository {
	return &TaskRepository{db: db}
}

// TasksByProject returns all tasks of a project. An unknown project has no
// tasks.
func (r *TaskRepository) TasksByProject(ctx context.Context, projectID string) ([]project.Task, error) {
	query := `
		SELECT id, project_id, title, status, assigned_members, assignee
		FROM tasks
		WHERE project_id = $1
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks of %s: %w", projectID, err)
	}
	defer rows.Close()

	tasks := []project.Task{}
	for rows.Next() {
		var (
			t      project.Task
			status string
		)
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &status, &t.AssignedMembers, &t.Assignee); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.Status = project.Status(status)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks of %s: %w", projectID, err)
	}
	return tasks, nil
}

// Save inserts or updates a task.
func (r *TaskRepository) Save(ctx context.Context, t project.Task) error {
	assigned := t.AssignedMembers
	if assigned == nil {
		assigned = []string{}
	}

	query := `
		INSERT INTO tasks (id, project_id, title, status, assigned_members, assignee)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			project_id = EXCLUDED.project_id,
			title = EXCLUDED.title,
			status = EXCLUDED.status,
			assigned_members = EXCLUDED.assigned_members,
			assignee = EXCLUDED.assignee,
			updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, t.ID, t.ProjectID, t.Title, string(t.Status), assigned, t.Assignee)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("task %s references unknown project %s: %w", t.ID, t.ProjectID, err)
		}
		return fmt.Errorf("failed to save task %s: %w", t.ID, err)
	}
	return nil
}
