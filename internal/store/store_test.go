package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangwenmai/sitebook/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := New(db)
	require.NoError(t, err)
	return s
}

// stamp returns a deterministic timestamp offset from a fixed base.
func stamp(offset time.Duration) string {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	return base.Add(offset).Format(model.TimeLayout)
}

func seedProject(t *testing.T, s *Store, id, name string) model.Project {
	t.Helper()
	p := model.NewProject(id, name, "")
	require.NoError(t, s.CreateProject(context.Background(), p))
	return p
}

func seedItem(t *testing.T, s *Store, id, projectID, title string, updated time.Duration) model.ActionItem {
	t.Helper()
	item := model.NewActionItem(id, projectID, title, "desc "+id)
	item.CreatedAt = stamp(0)
	item.UpdatedAt = stamp(updated)
	require.NoError(t, s.CreateItem(context.Background(), item))
	return item
}

func TestMigrate_SetsVersion(t *testing.T) {
	s := newTestStore(t)
	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestMigrate_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = New(db)
	require.NoError(t, err)
	_, err = New(db)
	require.NoError(t, err, "re-running migrations on a current schema must be a no-op")
}

func TestCreateAndGetItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedProject(t, s, "proj-1", "Maple Street Duplex")
	seedItem(t, s, "item-1", "proj-1", "Stucco / siding", time.Minute)

	got, err := s.GetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "Stucco / siding", got.Title)
	assert.Equal(t, model.StatusOpen, got.Status)
	assert.Equal(t, model.PriorityMedium, got.Priority)
	assert.Empty(t, got.Notes)
}

func TestGetItem_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetItem(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCreateItem_UnknownProject(t *testing.T) {
	s := newTestStore(t)
	item := model.NewActionItem("item-1", "missing-project", "Framing", "")
	err := s.CreateItem(context.Background(), item)
	require.Error(t, err)
	assert.True(t, IsConstraintError(err), "want constraint error, got %v", err)
}

func TestListItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedProject(t, s, "proj-1", "Duplex")
	seedProject(t, s, "proj-2", "Warehouse")
	seedItem(t, s, "item-a", "proj-1", "Footings", 1*time.Minute)
	seedItem(t, s, "item-b", "proj-1", "Framing", 3*time.Minute)
	seedItem(t, s, "item-c", "proj-2", "Roofing", 2*time.Minute)

	all, err := s.ListItems(ctx, model.ItemFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"item-b", "item-c", "item-a"}, []string{all[0].ID, all[1].ID, all[2].ID})

	byProject, err := s.ListItems(ctx, model.ItemFilter{ProjectID: "proj-1"})
	require.NoError(t, err)
	assert.Len(t, byProject, 2)

	_, err = s.UpdateItemStatus(ctx, "item-a", model.StatusCompleted, stamp(time.Hour))
	require.NoError(t, err)
	open, err := s.ListItems(ctx, model.ItemFilter{Status: []model.Status{model.StatusOpen}})
	require.NoError(t, err)
	assert.Len(t, open, 2)

	limited, err := s.ListItems(ctx, model.ItemFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "item-a", limited[0].ID)

	queried, err := s.ListItems(ctx, model.ItemFilter{Query: "roof"})
	require.NoError(t, err)
	require.Len(t, queried, 1)
	assert.Equal(t, "item-c", queried[0].ID)
}

func TestUpdateItemStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedProject(t, s, "proj-1", "Duplex")
	seedItem(t, s, "item-1", "proj-1", "Drywall", 0)

	t.Run("completed stamps completion time", func(t *testing.T) {
		at := stamp(time.Hour)
		got, err := s.UpdateItemStatus(ctx, "item-1", model.StatusCompleted, at)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, got.Status)
		require.NotNil(t, got.CompletedAt)
		assert.Equal(t, at, *got.CompletedAt)
		assert.Equal(t, at, got.UpdatedAt)
	})

	t.Run("other status keeps completion time", func(t *testing.T) {
		got, err := s.UpdateItemStatus(ctx, "item-1", model.StatusInProgress, stamp(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, model.StatusInProgress, got.Status)
		require.NotNil(t, got.CompletedAt)
		assert.Equal(t, stamp(time.Hour), *got.CompletedAt)
		assert.Equal(t, stamp(2*time.Hour), got.UpdatedAt)
	})

	t.Run("missing item", func(t *testing.T) {
		_, err := s.UpdateItemStatus(ctx, "nope", model.StatusOpen, stamp(0))
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestSingleFieldUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedProject(t, s, "proj-1", "Duplex")
	seedItem(t, s, "item-1", "proj-1", "Windows", 0)

	got, err := s.UpdateItemPriority(ctx, "item-1", model.PriorityUrgent, stamp(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, model.PriorityUrgent, got.Priority)
	assert.Equal(t, stamp(time.Minute), got.UpdatedAt)

	got, err = s.AssignItem(ctx, "item-1", "Ramirez Glazing", stamp(2*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, "Ramirez Glazing", *got.AssignedTo)

	got, err = s.UpdateItemDueDate(ctx, "item-1", "2026-04-15", stamp(3*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, got.DueDate)
	assert.Equal(t, "2026-04-15", *got.DueDate)
	assert.Nil(t, got.CompletedAt)

	_, err = s.AssignItem(ctx, "nope", "x", stamp(0))
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestNotes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedProject(t, s, "proj-1", "Duplex")
	seedItem(t, s, "item-1", "proj-1", "Insulation", 0)

	for i := 0; i < 3; i++ {
		n := model.Note{
			ID:        fmt.Sprintf("note-%d", i),
			ItemID:    "item-1",
			Text:      fmt.Sprintf("note %d", i),
			Author:    "super",
			CreatedAt: stamp(time.Duration(i+1) * time.Minute),
		}
		require.NoError(t, s.AddNote(ctx, n))
	}

	item, err := s.GetItem(ctx, "item-1")
	require.NoError(t, err)
	require.Len(t, item.Notes, 3)
	assert.Equal(t, "note 0", item.Notes[0].Text)
	assert.Equal(t, "note 2", item.Notes[2].Text)
	assert.Equal(t, stamp(3*time.Minute), item.UpdatedAt, "adding a note bumps the item")

	recent, err := s.ListNotes(ctx, "item-1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "note 1", recent[0].Text)
	assert.Equal(t, "note 2", recent[1].Text)

	err = s.AddNote(ctx, model.NewNote("note-x", "missing", "hello", "super"))
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSearchItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedProject(t, s, "proj-1", "Duplex")
	seedItem(t, s, "aaaa1111-0000-0000-0000-000000000001", "proj-1", "Stucco / siding", 1*time.Minute)
	seedItem(t, s, "bbbb2222-0000-0000-0000-000000000002", "proj-1", "Siding trim paint", 5*time.Minute)
	seedItem(t, s, "cccc3333-0000-0000-0000-000000000003", "proj-1", "100% inspection", 2*time.Minute)

	got, err := s.SearchItems(ctx, "SIDING", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Siding trim paint", got[0].Title, "most recently updated first")
	assert.Equal(t, model.RecordItem, got[0].Kind)

	got, err = s.SearchItems(ctx, "stucco / siding", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "aaaa1111-0000-0000-0000-000000000001", got[0].ID)

	got, err = s.SearchItems(ctx, "cccc33", 10)
	require.NoError(t, err, "id prefix")
	require.Len(t, got, 1)
	assert.Equal(t, "100% inspection", got[0].Title)

	got, err = s.SearchItems(ctx, "0%", 10)
	require.NoError(t, err)
	require.Len(t, got, 1, "LIKE wildcards in the query match literally")

	got, err = s.SearchItems(ctx, "plumbing", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchItems_Alias(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedProject(t, s, "proj-1", "Duplex")
	item := model.NewActionItem("item-1", "proj-1", "Exterior plaster", "")
	item.Alias = "09-2400"
	require.NoError(t, s.CreateItem(ctx, item))

	got, err := s.SearchItems(ctx, "09-24", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Exterior plaster", got[0].Title)
}

func TestProjects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := model.NewProject("proj-1", "Maple Street Duplex", "MSD")
	p.ReferenceURL = "https://example.com/plans"
	require.NoError(t, s.CreateProject(ctx, p))

	got, err := s.GetProject(ctx, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, p, *got)

	_, err = s.GetProject(ctx, "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)

	list, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	cands, err := s.SearchProjects(ctx, "msd", 5)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "Maple Street Duplex", cands[0].Title)
	assert.Equal(t, model.RecordProject, cands[0].Kind)
}
