package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/planboard/planboard-core/internal/domain/project"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROJECT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProjectRepository implements project.Repository for PostgreSQL.
type ProjectRepository struct {
	db Querier
}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository(db Querier) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, name, end_date, responsibles, responsible, members`

// ListProjects returns projects with the given ids, or all projects for an
// empty list. Unknown ids are skipped.
func (r *ProjectRepository) ListProjects(ctx context.Context, ids []string) ([]project.Project, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(ids) == 0 {
		rows, err = r.db.Query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY id`)
	} else {
		rows, err = r.db.Query(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ANY($1) ORDER BY id`, ids)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []project.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}
	return projects, nil
}

// ListProjectIDs returns the ids of all projects.
func (r *ProjectRepository) ListProjectIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query project ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan project id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Save inserts or updates a project.
func (r *ProjectRepository) Save(ctx context.Context, p project.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}

	responsibles := p.Responsibles
	if responsibles == nil {
		responsibles = []project.Responsible{}
	}
	data, err := json.Marshal(responsibles)
	if err != nil {
		return fmt.Errorf("failed to marshal responsibles: %w", err)
	}

	query := `
		INSERT INTO projects (id, name, end_date, responsibles, responsible, members)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			end_date = EXCLUDED.end_date,
			responsibles = EXCLUDED.responsibles,
			responsible = EXCLUDED.responsible,
			members = EXCLUDED.members,
			updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, p.ID, p.Name, p.EndDate, data, p.Responsible, p.Members); err != nil {
		return fmt.Errorf("failed to save project %s: %w", p.ID, err)
	}
	return nil
}

func scanProject(row pgx.Row) (project.Project, error) {
	var (
		p                project.Project
		responsiblesJSON []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.EndDate, &responsiblesJSON, &p.Responsible, &p.Members); err != nil {
		return project.Project{}, fmt.Errorf("failed to scan project: %w", err)
	}

	// Malformed entries are dropped instead of failing the whole listing.
	p.Responsibles = project.DecodeResponsibles(responsiblesJSON)
	return p, nil
}
