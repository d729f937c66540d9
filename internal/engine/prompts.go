package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/yangwenmai/sitebook/internal/intent"
	"github.com/yangwenmai/sitebook/internal/model"
)

// ContextSource is the read side of the record store the assembler needs.
type ContextSource interface {
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context) ([]model.Project, error)
	ListItems(ctx context.Context, f model.ItemFilter) ([]model.ActionItem, error)
	ListNotes(ctx context.Context, itemID string, limit int) ([]model.Note, error)
}

// ContextAssembler builds the system prompt of a turn: the assistant's role,
// the command protocol and the current records with their identifiers.
type ContextAssembler struct {
	source    ContextSource
	reader    ReferenceReader
	itemLimit int
	noteLimit int
	now       func() time.Time
	log       zerolog.Logger
}

// AssemblerOption configures a ContextAssembler.
type AssemblerOption func(*ContextAssembler)

// WithReferenceReader lets the assembler include each project's reference
// document.
func WithReferenceReader(r ReferenceReader) AssemblerOption {
	return func(a *ContextAssembler) { a.reader = r }
}

// WithItemLimit caps the number of items listed (default 50).
func WithItemLimit(n int) AssemblerOption {
	return func(a *ContextAssembler) {
		if n > 0 {
			a.itemLimit = n
		}
	}
}

// WithNoteLimit caps the recent notes shown per item (default 3).
func WithNoteLimit(n int) AssemblerOption {
	return func(a *ContextAssembler) {
		if n >= 0 {
			a.noteLimit = n
		}
	}
}

// NewContextAssembler creates an assembler reading from src.
func NewContextAssembler(src ContextSource, log zerolog.Logger, opts ...AssemblerOption) *ContextAssembler {
	a := &ContextAssembler{
		source:    src,
		itemLimit: 50,
		noteLimit: 3,
		now:       time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Build returns the system prompt. With a projectID only that project's
// items are listed; otherwise every project and the most recently updated
// items across all of them.
func (a *ContextAssembler) Build(ctx context.Context, projectID string) (string, error) {
	var b strings.Builder
	b.WriteString(assistantRole)
	b.WriteString("\n\n")
	b.WriteString(ProtocolInstructions())

	var projects []model.Project
	if projectID != "" {
		p, err := a.source.GetProject(ctx, projectID)
		if err != nil {
			return "", fmt.Errorf("load project: %w", err)
		}
		projects = []model.Project{*p}
	} else {
		ps, err := a.source.ListProjects(ctx)
		if err != nil {
			return "", fmt.Errorf("list projects: %w", err)
		}
		projects = ps
	}

	b.WriteString("\n## Projects\n")
	if len(projects) == 0 {
		b.WriteString("(none)\n")
	}
	for _, p := range projects {
		fmt.Fprintf(&b, "- [%s] %s", p.ID, p.Name)
		if p.Code != "" {
			fmt.Fprintf(&b, " (code %s)", p.Code)
		}
		if p.Address != "" {
			fmt.Fprintf(&b, ", %s", p.Address)
		}
		b.WriteByte('\n')
	}

	items, err := a.source.ListItems(ctx, model.ItemFilter{ProjectID: projectID, Limit: a.itemLimit})
	if err != nil {
		return "", fmt.Errorf("list items: %w", err)
	}

	b.WriteString("\n## Action items\n")
	if len(items) == 0 {
		b.WriteString("(none)\n")
	}
	for _, item := range items {
		a.writeItem(&b, item)
		if a.noteLimit == 0 {
			continue
		}
		notes, err := a.source.ListNotes(ctx, item.ID, a.noteLimit)
		if err != nil {
			return "", fmt.Errorf("list notes: %w", err)
		}
		for _, n := range notes {
			fmt.Fprintf(&b, "    - note by %s, %s: %s\n", n.Author, a.relative(n.CreatedAt), oneLine(n.Text))
		}
	}

	if a.reader != nil {
		for _, p := range projects {
			if p.ReferenceURL == "" {
				continue
			}
			ref, err := a.reader.Read(ctx, p.ReferenceURL)
			if err != nil {
				a.log.Warn().Err(err).Str("project_id", p.ID).Msg("reference document unavailable")
				continue
			}
			fmt.Fprintf(&b, "\n## Reference for %s", p.Name)
			if ref.Title != "" {
				fmt.Fprintf(&b, ": %s", ref.Title)
			}
			fmt.Fprintf(&b, " (%s words)\n%s\n", humanize.Comma(int64(ref.WordCount)), ref.Text)
		}
	}

	return b.String(), nil
}

func (a *ContextAssembler) writeItem(b *strings.Builder, item model.ActionItem) {
	fmt.Fprintf(b, "- [%s] %s", item.ID, item.Title)
	if item.Alias != "" {
		fmt.Fprintf(b, " (alias %s)", item.Alias)
	}
	fmt.Fprintf(b, " | status %s | priority %s", item.Status, item.Priority)
	if item.AssignedTo != nil && *item.AssignedTo != "" {
		fmt.Fprintf(b, " | assigned to %s", *item.AssignedTo)
	}
	if item.DueDate != nil && *item.DueDate != "" {
		fmt.Fprintf(b, " | due %s", *item.DueDate)
	}
	fmt.Fprintf(b, " | updated %s\n", a.relative(item.UpdatedAt))
	if d := oneLine(item.Description); d != "" {
		fmt.Fprintf(b, "    %s\n", d)
	}
}

// relative renders a stored timestamp as "3 hours ago". Unparseable values
// are shown as stored.
func (a *ContextAssembler) relative(ts string) string {
	t, err := time.Parse(model.TimeLayout, ts)
	if err != nil {
		return ts
	}
	return humanize.RelTime(t, a.now(), "ago", "from now")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

const assistantRole = `You are the project assistant of a construction site record book. You answer questions about projects and their action items, and you can change one action item per reply when the user asks for it.`

// ProtocolInstructions describes the command payload the model may append to
// a reply.
func ProtocolInstructions() string {
	var b strings.Builder
	b.WriteString(`## Making changes
To change a record, end your reply with exactly one JSON object of this shape and nothing after it:
{"action":{"actionType":"<type>","actionData":{...}}}

Rules:
- At most one action per reply. Write your normal answer first.
- Refer to items and projects by the identifier in square brackets below. Never show identifiers to the user; use titles.
- Only include the fields listed for the action type.
- Dates use YYYY-MM-DD.

Action types and fields (required first, then optional):
`)
	for _, k := range intent.Kinds {
		fmt.Fprintf(&b, "- %s: %s\n", k, strings.Join(k.Fields(), ", "))
	}
	fmt.Fprintf(&b, "\nStatus values: %s\n", joinNames(intent.SettableStatuses()))
	fmt.Fprintf(&b, "Priority values: %s\n", joinNames(model.Priorities))
	return b.String()
}

func joinNames[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
