package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/yangwenmai/sitebook/internal/model"
)

// Verify at compile time that Store implements all interfaces.
var (
	_ ItemReader   = (*Store)(nil)
	_ ItemWriter   = (*Store)(nil)
	_ NoteStore    = (*Store)(nil)
	_ ProjectStore = (*Store)(nil)
	_ Lookup       = (*Store)(nil)
)

// Store provides data access to the SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and initialises the schema.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// SchemaVersion reports the schema version currently applied.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	return version, err
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		s.migrateV1, // v0 → v1: projects, action items, notes
		s.migrateV2, // v1 → v2: item alias column for reference lookup
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}

	return nil
}

// migrateV1 creates the initial schema (v0 → v1).
func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		code          TEXT NOT NULL DEFAULT '',
		address       TEXT NOT NULL DEFAULT '',
		reference_url TEXT NOT NULL DEFAULT '',
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS action_items (
		id           TEXT PRIMARY KEY,
		project_id   TEXT NOT NULL REFERENCES projects(id),
		title        TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		priority     TEXT NOT NULL,
		status       TEXT NOT NULL,
		assigned_to  TEXT,
		due_date     TEXT,
		completed_at TEXT,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_items_project ON action_items(project_id, updated_at DESC);
	CREATE INDEX IF NOT EXISTS idx_items_updated ON action_items(updated_at DESC);

	CREATE TABLE IF NOT EXISTS notes (
		id         TEXT PRIMARY KEY,
		item_id    TEXT NOT NULL REFERENCES action_items(id),
		text       TEXT NOT NULL,
		author     TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notes_item ON notes(item_id, created_at ASC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// migrateV2 adds the alias column (v1 → v2).
func (s *Store) migrateV2() error {
	_, err := s.db.Exec(`ALTER TABLE action_items ADD COLUMN alias TEXT NOT NULL DEFAULT ''`)
	return err
}

// ---------------------------------------------------------------------------
// Action items
// ---------------------------------------------------------------------------

const itemColumns = `id, project_id, title, alias, description, priority, status, assigned_to, due_date, completed_at, created_at, updated_at`

// CreateItem inserts a new action item.
func (s *Store) CreateItem(ctx context.Context, item model.ActionItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO action_items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.ProjectID, item.Title, item.Alias, item.Description,
		item.Priority, item.Status, item.AssignedTo, item.DueDate, item.CompletedAt,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

// GetItem returns an item together with its notes.
func (s *Store) GetItem(ctx context.Context, id string) (*model.ItemWithNotes, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM action_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if IsNotFoundError(err) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}

	notes, err := s.ListNotes(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	return &model.ItemWithNotes{ActionItem: *item, Notes: notes}, nil
}

// FindItem returns an item without its notes.
func (s *Store) FindItem(ctx context.Context, id string) (*model.ActionItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM action_items WHERE id = ?`, id)
	return returningItem(row, "find item")
}

// ListItems returns items matching the filter, most recently updated first.
func (s *Store) ListItems(ctx context.Context, f model.ItemFilter) ([]model.ActionItem, error) {
	query := `SELECT ` + itemColumns + ` FROM action_items`
	var conditions []string
	var args []interface{}

	if f.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if len(f.Status) > 0 {
		placeholders := make([]string, len(f.Status))
		for i, st := range f.Status {
			placeholders[i] = "?"
			args = append(args, st)
		}
		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ",")+")")
	}
	if len(f.Priority) > 0 {
		placeholders := make([]string, len(f.Priority))
		for i, p := range f.Priority {
			placeholders[i] = "?"
			args = append(args, p)
		}
		conditions = append(conditions, "priority IN ("+strings.Join(placeholders, ",")+")")
	}
	if f.Query != "" {
		like := "%" + escapeLike(f.Query) + "%"
		conditions = append(conditions, `(title LIKE ? ESCAPE '\' OR alias LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY updated_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []model.ActionItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdateItemStatus sets the status and bumps updated_at. Moving to completed
// also stamps completed_at; any other status leaves it as it was.
func (s *Store) UpdateItemStatus(ctx context.Context, id string, status model.Status, at string) (*model.ActionItem, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE action_items
		SET status = ?,
		    completed_at = CASE WHEN ? = ? THEN ? ELSE completed_at END,
		    updated_at = ?
		WHERE id = ?
		RETURNING `+itemColumns,
		status, status, model.StatusCompleted, at, at, id,
	)
	return returningItem(row, "update status")
}

// UpdateItemPriority sets the priority and bumps updated_at.
func (s *Store) UpdateItemPriority(ctx context.Context, id string, priority model.Priority, at string) (*model.ActionItem, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE action_items SET priority = ?, updated_at = ? WHERE id = ? RETURNING `+itemColumns,
		priority, at, id,
	)
	return returningItem(row, "update priority")
}

// AssignItem sets the assignee and bumps updated_at.
func (s *Store) AssignItem(ctx context.Context, id, assignee, at string) (*model.ActionItem, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE action_items SET assigned_to = ?, updated_at = ? WHERE id = ? RETURNING `+itemColumns,
		assignee, at, id,
	)
	return returningItem(row, "assign")
}

// UpdateItemDueDate sets the due date and bumps updated_at.
func (s *Store) UpdateItemDueDate(ctx context.Context, id, dueDate, at string) (*model.ActionItem, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE action_items SET due_date = ?, updated_at = ? WHERE id = ? RETURNING `+itemColumns,
		dueDate, at, id,
	)
	return returningItem(row, "update due date")
}

// SearchItems returns items whose title or alias contains query
// (case-insensitive), or whose id starts with it, most recently updated first.
func (s *Store) SearchItems(ctx context.Context, query string, limit int) ([]model.Candidate, error) {
	if limit <= 0 {
		limit = 10
	}
	esc := escapeLike(query)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title FROM action_items
		WHERE lower(title) LIKE lower(?) ESCAPE '\'
		   OR (alias != '' AND lower(alias) LIKE lower(?) ESCAPE '\')
		   OR lower(id) LIKE lower(?) ESCAPE '\'
		ORDER BY updated_at DESC
		LIMIT ?`,
		"%"+esc+"%", "%"+esc+"%", esc+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	return scanCandidates(rows, model.RecordItem)
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row scanner) (*model.ActionItem, error) {
	var item model.ActionItem
	err := row.Scan(&item.ID, &item.ProjectID, &item.Title, &item.Alias, &item.Description,
		&item.Priority, &item.Status, &item.AssignedTo, &item.DueDate, &item.CompletedAt,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func returningItem(row scanner, op string) (*model.ActionItem, error) {
	item, err := scanItem(row)
	if IsNotFoundError(err) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return item, nil
}

func scanCandidates(rows *sql.Rows, kind model.RecordKind) ([]model.Candidate, error) {
	defer rows.Close()
	var out []model.Candidate
	for rows.Next() {
		c := model.Candidate{Kind: kind}
		if err := rows.Scan(&c.ID, &c.Title); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE wildcards so user text matches literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
