package store

import (
	"context"

	"github.com/yangwenmai/sitebook/internal/model"
)

// ItemReader provides read access to action items.
type ItemReader interface {
	GetItem(ctx context.Context, id string) (*model.ItemWithNotes, error)
	FindItem(ctx context.Context, id string) (*model.ActionItem, error)
	ListItems(ctx context.Context, f model.ItemFilter) ([]model.ActionItem, error)
}

// ItemWriter provides the typed mutations of action items.
// Every update returns the item as stored after the change, or model.ErrNotFound.
type ItemWriter interface {
	CreateItem(ctx context.Context, item model.ActionItem) error
	UpdateItemStatus(ctx context.Context, id string, status model.Status, at string) (*model.ActionItem, error)
	UpdateItemPriority(ctx context.Context, id string, priority model.Priority, at string) (*model.ActionItem, error)
	AssignItem(ctx context.Context, id, assignee, at string) (*model.ActionItem, error)
	UpdateItemDueDate(ctx context.Context, id, dueDate, at string) (*model.ActionItem, error)
}

// NoteStore provides append-only access to notes.
type NoteStore interface {
	AddNote(ctx context.Context, note model.Note) error
	ListNotes(ctx context.Context, itemID string, limit int) ([]model.Note, error)
}

// ProjectStore provides access to projects.
type ProjectStore interface {
	CreateProject(ctx context.Context, p model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context) ([]model.Project, error)
}

// Lookup ranks records whose title or alias contains a free-text query,
// most recently updated first.
type Lookup interface {
	SearchItems(ctx context.Context, query string, limit int) ([]model.Candidate, error)
	SearchProjects(ctx context.Context, query string, limit int) ([]model.Candidate, error)
}

// Repository combines every store operation for the API layer.
type Repository interface {
	ItemReader
	ItemWriter
	NoteStore
	ProjectStore
	Lookup
}

var _ Repository = (*Store)(nil)
