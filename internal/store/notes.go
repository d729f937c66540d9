package store

import (
	"context"
	"fmt"

	"github.com/yangwenmai/sitebook/internal/model"
)

// AddNote appends a note and bumps the owning item's updated_at.
// Returns model.ErrNotFound when the item does not exist.
func (s *Store) AddNote(ctx context.Context, note model.Note) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE action_items SET updated_at = ? WHERE id = ?`, note.CreatedAt, note.ItemID)
	if err != nil {
		return fmt.Errorf("touch item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO notes (id, item_id, text, author, created_at) VALUES (?, ?, ?, ?, ?)`,
		note.ID, note.ItemID, note.Text, note.Author, note.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert note: %w", err)
	}

	return tx.Commit()
}

// ListNotes returns the notes of an item, oldest first. A positive limit keeps
// only the most recent notes.
func (s *Store) ListNotes(ctx context.Context, itemID string, limit int) ([]model.Note, error) {
	query := `SELECT id, item_id, text, author, created_at FROM notes WHERE item_id = ? ORDER BY created_at ASC`
	args := []interface{}{itemID}
	if limit > 0 {
		query = `SELECT * FROM (SELECT id, item_id, text, author, created_at FROM notes WHERE item_id = ? ORDER BY created_at DESC LIMIT ?) ORDER BY created_at ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []model.Note
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.ItemID, &n.Text, &n.Author, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
