package store

import (
	"context"
	"fmt"

	"github.com/yangwenmai/sitebook/internal/model"
)

const projectColumns = `id, name, code, address, reference_url, created_at, updated_at`

// CreateProject inserts a new project.
func (s *Store) CreateProject(ctx context.Context, p model.Project) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Code, p.Address, p.ReferenceURL, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// GetProject returns a project by id, or model.ErrNotFound.
func (s *Store) GetProject(ctx context.Context, id string) (*model.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	var p model.Project
	err := row.Scan(&p.ID, &p.Name, &p.Code, &p.Address, &p.ReferenceURL, &p.CreatedAt, &p.UpdatedAt)
	if IsNotFoundError(err) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// ListProjects returns all projects, most recently updated first.
func (s *Store) ListProjects(ctx context.Context) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Code, &p.Address, &p.ReferenceURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SearchProjects returns projects whose name or code contains query
// (case-insensitive), or whose id starts with it, most recently updated first.
func (s *Store) SearchProjects(ctx context.Context, query string, limit int) ([]model.Candidate, error) {
	if limit <= 0 {
		limit = 10
	}
	esc := escapeLike(query)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name FROM projects
		WHERE lower(name) LIKE lower(?) ESCAPE '\'
		   OR (code != '' AND lower(code) LIKE lower(?) ESCAPE '\')
		   OR lower(id) LIKE lower(?) ESCAPE '\'
		ORDER BY updated_at DESC
		LIMIT ?`,
		"%"+esc+"%", "%"+esc+"%", esc+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search projects: %w", err)
	}
	return scanCandidates(rows, model.RecordProject)
}
