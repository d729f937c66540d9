package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/yangwenmai/sitebook/internal/model"
)

type fakeSource struct {
	projects []model.Project
	items    []model.ActionItem
	notes    map[string][]model.Note
	filters  []model.ItemFilter
}

func (f *fakeSource) GetProject(_ context.Context, id string) (*model.Project, error) {
	for _, p := range f.projects {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeSource) ListProjects(context.Context) ([]model.Project, error) {
	return f.projects, nil
}

func (f *fakeSource) ListItems(_ context.Context, filter model.ItemFilter) ([]model.ActionItem, error) {
	f.filters = append(f.filters, filter)
	return f.items, nil
}

func (f *fakeSource) ListNotes(_ context.Context, itemID string, _ int) ([]model.Note, error) {
	return f.notes[itemID], nil
}

type failingReader struct{}

func (failingReader) Read(context.Context, string) (*Reference, error) {
	return nil, errors.New("unreachable")
}

func newFakeSource() *fakeSource {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	assignee, due := "Dana", "2026-03-14"
	return &fakeSource{
		projects: []model.Project{{ID: "proj-1", Name: "Harbor Clinic", Code: "HCF", ReferenceURL: "https://docs.example.com/hcf"}},
		items: []model.ActionItem{{
			ID: "item-1", ProjectID: "proj-1", Title: "Stucco patch", Alias: "09-24",
			Description: "north\nelevation", Status: model.StatusInProgress, Priority: model.PriorityHigh,
			AssignedTo: &assignee, DueDate: &due,
			UpdatedAt: now.Add(-3 * time.Hour).Format(model.TimeLayout),
		}},
		notes: map[string][]model.Note{
			"item-1": {{Author: "J. Ortiz", Text: "Mesh is up.", CreatedAt: now.Add(-2 * 24 * time.Hour).Format(model.TimeLayout)}},
		},
	}
}

func fixedNow(a *ContextAssembler) {
	a.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
}

func TestContextAssembler_Build(t *testing.T) {
	src := newFakeSource()
	a := NewContextAssembler(src, zerolog.Nop(), WithItemLimit(10), WithReferenceReader(&StubReferenceReader{}))
	fixedNow(a)

	got, err := a.Build(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for _, want := range []string{
		`{"action":{"actionType":"<type>","actionData":{...}}}`,
		"- update_action_item_status: id, status, note",
		"- create_action_item: title, description, projectId, priority, assignedTo, dueDate, alias",
		"Status values: open, in_progress, completed, cancelled",
		"- [proj-1] Harbor Clinic (code HCF)",
		"- [item-1] Stucco patch (alias 09-24) | status in_progress | priority high | assigned to Dana | due 2026-03-14 | updated 3 hours ago",
		"    north elevation",
		"note by J. Ortiz, 2 days ago: Mesh is up.",
		"## Reference for Harbor Clinic: Stub reference",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q\n%s", want, got)
		}
	}
	if strings.Contains(got, "on_hold") {
		t.Error("on_hold should not be offered to the model")
	}

	want := []model.ItemFilter{{ProjectID: "proj-1", Limit: 10}}
	if diff := cmp.Diff(want, src.filters); diff != "" {
		t.Errorf("item filters mismatch (-want +got):\n%s", diff)
	}
}

func TestContextAssembler_AllProjects(t *testing.T) {
	src := newFakeSource()
	src.items = nil
	a := NewContextAssembler(src, zerolog.Nop(), WithNoteLimit(0))

	got, err := a.Build(context.Background(), "")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(got, "## Action items\n(none)") {
		t.Errorf("empty item list not marked:\n%s", got)
	}
	if strings.Contains(got, "## Reference") {
		t.Error("no reader configured, no reference expected")
	}
	if src.filters[0].ProjectID != "" {
		t.Errorf("filter project = %q, want all", src.filters[0].ProjectID)
	}
}

func TestContextAssembler_UnknownProject(t *testing.T) {
	a := NewContextAssembler(newFakeSource(), zerolog.Nop())
	_, err := a.Build(context.Background(), "nope")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestContextAssembler_ReferenceFailureIsSkipped(t *testing.T) {
	a := NewContextAssembler(newFakeSource(), zerolog.Nop(), WithReferenceReader(failingReader{}))
	got, err := a.Build(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if strings.Contains(got, "## Reference") {
		t.Error("failed reference should be left out")
	}
}

func TestHTTPReferenceReader_Read(t *testing.T) {
	body := "<html><head><title>Scope of Work</title></head><body><article><h1>Scope of Work</h1><p>" +
		strings.Repeat("Contractor shall furnish and install all gypsum board assemblies shown on the drawings. ", 8) +
		"</p></article></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	r := NewHTTPReferenceReader(time.Second, 60)
	ref, err := r.Read(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !strings.Contains(ref.Text, "gypsum") {
		t.Errorf("text = %q", ref.Text)
	}
	if !strings.HasSuffix(ref.Text, "[truncated]") {
		t.Errorf("text should be truncated to 60 runes: %q", ref.Text)
	}
	if ref.WordCount < 80 {
		t.Errorf("word count = %d", ref.WordCount)
	}
}

func TestHTTPReferenceReader_NotFound(t *testing.T) {
	fastRetry(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	r := NewHTTPReferenceReader(time.Second, 0)
	if _, err := r.Read(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error")
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("héllo", 10); got != "héllo" {
		t.Errorf("short string changed: %q", got)
	}
	if got := truncateRunes("héllo", 2); got != "hé\n... [truncated]" {
		t.Errorf("truncateRunes = %q", got)
	}
}
