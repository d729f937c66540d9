package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yangwenmai/sitebook/internal/model"
)

// Mutator is the store surface commands write through.
type Mutator interface {
	FindItem(ctx context.Context, id string) (*model.ActionItem, error)
	CreateItem(ctx context.Context, item model.ActionItem) error
	UpdateItemStatus(ctx context.Context, id string, status model.Status, at string) (*model.ActionItem, error)
	UpdateItemPriority(ctx context.Context, id string, priority model.Priority, at string) (*model.ActionItem, error)
	AssignItem(ctx context.Context, id, assignee, at string) (*model.ActionItem, error)
	UpdateItemDueDate(ctx context.Context, id, dueDate, at string) (*model.ActionItem, error)
	AddNote(ctx context.Context, note model.Note) error
}

// Dispatcher applies validated commands. Each command performs exactly one
// mutation; targeted commands also append an audit note, whose failure is
// logged but does not fail the command.
type Dispatcher struct {
	resolver *Resolver
	store    Mutator
	log      zerolog.Logger
	now      func() string
	newID    func() string
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(resolver *Resolver, store Mutator, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		resolver: resolver,
		store:    store,
		log:      log,
		now:      model.Now,
		newID:    uuid.NewString,
	}
}

// Execute validates raw and dispatches the resulting command. It is the one
// entry point for mutations, shared by the chat turn and the execution
// endpoint.
func (d *Dispatcher) Execute(ctx context.Context, raw RawCommand) Outcome {
	cmd, err := Validate(raw)
	if err != nil {
		var verr *ValidationError
		fields := []string{}
		if errors.As(err, &verr) {
			fields = verr.Fields()
		}
		d.log.Warn().Str("kind", string(raw.Kind)).Strs("fields", fields).Msg("command rejected")
		return Outcome{
			Kind:    normalizeKind(string(raw.Kind)),
			Reason:  ReasonInvalid,
			Message: invalidMessage(fields),
		}
	}
	return d.Dispatch(ctx, cmd)
}

// Dispatch applies one validated command.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) Outcome {
	var out Outcome
	switch c := cmd.(type) {
	case UpdateStatus:
		out = d.updateStatus(ctx, c)
	case AddNote:
		out = d.addNote(ctx, c)
	case UpdatePriority:
		out = d.updatePriority(ctx, c)
	case Assign:
		out = d.assign(ctx, c)
	case UpdateDueDate:
		out = d.updateDueDate(ctx, c)
	case CreateItem:
		out = d.createItem(ctx, c)
	default:
		out = Outcome{Reason: ReasonInvalid, Message: "that action is not supported"}
	}
	out.Kind = cmd.Kind()

	ev := d.log.Info()
	if !out.Success {
		ev = d.log.Warn().Str("reason", string(out.Reason))
	}
	ev.Str("kind", string(out.Kind)).Str("actor", cmd.Actor()).Str("title", out.Title).Msg("command dispatched")
	return out
}

// target resolves a command's item reference and loads the item as it is
// before the change. A nil outcome means the item is ready.
func (d *Dispatcher) target(ctx context.Context, c Targeted) (*model.ActionItem, *Outcome) {
	id, err := d.resolver.ResolveItem(ctx, c.Ref())
	if err != nil {
		return nil, d.failure(err, "action item", c.Ref())
	}
	item, err := d.store.FindItem(ctx, id)
	if err != nil {
		return nil, d.failure(err, "action item", c.Ref())
	}
	return item, nil
}

func (d *Dispatcher) updateStatus(ctx context.Context, c UpdateStatus) Outcome {
	prev, fail := d.target(ctx, c)
	if fail != nil {
		return *fail
	}
	item, err := d.store.UpdateItemStatus(ctx, prev.ID, c.Status, d.now())
	if err != nil {
		return *d.failure(err, "action item", c.ItemRef)
	}

	text := fmt.Sprintf("Status changed from %s to %s by %s.", label(prev.Status), label(c.Status), c.Actor())
	if c.Note != "" {
		text += " " + c.Note
	}
	d.audit(ctx, item.ID, text, c.Actor())
	return success(item.Title, fmt.Sprintf("Marked %q as %s.", item.Title, label(c.Status)))
}

func (d *Dispatcher) addNote(ctx context.Context, c AddNote) Outcome {
	item, fail := d.target(ctx, c)
	if fail != nil {
		return *fail
	}
	note := model.NewNote(d.newID(), item.ID, c.Text, c.Actor())
	note.CreatedAt = d.now()
	if err := d.store.AddNote(ctx, note); err != nil {
		return *d.failure(err, "action item", c.ItemRef)
	}
	return success(item.Title, fmt.Sprintf("Added a note to %q.", item.Title))
}

func (d *Dispatcher) updatePriority(ctx context.Context, c UpdatePriority) Outcome {
	prev, fail := d.target(ctx, c)
	if fail != nil {
		return *fail
	}
	item, err := d.store.UpdateItemPriority(ctx, prev.ID, c.Priority, d.now())
	if err != nil {
		return *d.failure(err, "action item", c.ItemRef)
	}
	d.audit(ctx, item.ID,
		fmt.Sprintf("Priority changed from %s to %s by %s.", prev.Priority, c.Priority, c.Actor()), c.Actor())
	return success(item.Title, fmt.Sprintf("Set the priority of %q to %s.", item.Title, c.Priority))
}

func (d *Dispatcher) assign(ctx context.Context, c Assign) Outcome {
	prev, fail := d.target(ctx, c)
	if fail != nil {
		return *fail
	}
	item, err := d.store.AssignItem(ctx, prev.ID, c.Assignee, d.now())
	if err != nil {
		return *d.failure(err, "action item", c.ItemRef)
	}
	text := fmt.Sprintf("Assigned to %s by %s.", c.Assignee, c.Actor())
	if prev.AssignedTo != nil && *prev.AssignedTo != "" {
		text = fmt.Sprintf("Reassigned from %s to %s by %s.", *prev.AssignedTo, c.Assignee, c.Actor())
	}
	d.audit(ctx, item.ID, text, c.Actor())
	return success(item.Title, fmt.Sprintf("Assigned %q to %s.", item.Title, c.Assignee))
}

func (d *Dispatcher) updateDueDate(ctx context.Context, c UpdateDueDate) Outcome {
	prev, fail := d.target(ctx, c)
	if fail != nil {
		return *fail
	}
	due := NormalizeDate(c.DueDate)
	item, err := d.store.UpdateItemDueDate(ctx, prev.ID, due, d.now())
	if err != nil {
		return *d.failure(err, "action item", c.ItemRef)
	}
	text := fmt.Sprintf("Due date set to %s by %s.", due, c.Actor())
	if prev.DueDate != nil && *prev.DueDate != "" {
		text = fmt.Sprintf("Due date changed from %s to %s by %s.", *prev.DueDate, due, c.Actor())
	}
	d.audit(ctx, item.ID, text, c.Actor())
	return success(item.Title, fmt.Sprintf("Set the due date of %q to %s.", item.Title, due))
}

func (d *Dispatcher) createItem(ctx context.Context, c CreateItem) Outcome {
	projectID, err := d.resolver.ResolveProject(ctx, c.ProjectRef)
	if err != nil {
		return *d.failure(err, "project", c.ProjectRef)
	}

	item := model.NewActionItem(d.newID(), projectID, c.Title, c.Description)
	item.Priority = c.Priority
	item.Alias = c.Alias
	if c.AssignedTo != "" {
		item.AssignedTo = &c.AssignedTo
	}
	if c.DueDate != "" {
		due := NormalizeDate(c.DueDate)
		item.DueDate = &due
	}
	now := d.now()
	item.CreatedAt, item.UpdatedAt = now, now

	if err := d.store.CreateItem(ctx, item); err != nil {
		return *d.failure(err, "project", c.ProjectRef)
	}
	d.audit(ctx, item.ID, fmt.Sprintf("Created by %s.", c.Actor()), c.Actor())
	return success(item.Title, fmt.Sprintf("Created action item %q.", item.Title))
}

// audit appends a system note. A failure here does not undo the mutation.
func (d *Dispatcher) audit(ctx context.Context, itemID, text, actor string) {
	note := model.NewNote(d.newID(), itemID, text, actor)
	note.CreatedAt = d.now()
	if err := d.store.AddNote(ctx, note); err != nil {
		d.log.Error().Err(err).Msg("append audit note")
	}
}

// failure maps an error to an outcome. Lookup misses become not_found; the
// reference is only echoed when it does not look like an identifier.
func (d *Dispatcher) failure(err error, what, ref string) *Outcome {
	if errors.Is(err, model.ErrNotFound) {
		msg := fmt.Sprintf("no %s matches that reference", what)
		if !looksLikeID(ref) {
			msg = fmt.Sprintf("no %s matches %q", what, strings.TrimSpace(ref))
		}
		return &Outcome{Reason: ReasonNotFound, Message: msg}
	}
	d.log.Error().Err(err).Str("record", what).Msg("store failure")
	return &Outcome{Reason: ReasonStore, Message: "the change could not be saved"}
}

func success(title, msg string) Outcome {
	return Outcome{Success: true, Title: title, Message: msg}
}

func invalidMessage(fields []string) string {
	if len(fields) == 0 {
		return "the request was incomplete"
	}
	return "the request was incomplete or invalid (" + strings.Join(fields, ", ") + ")"
}

func label(s model.Status) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// NormalizeDate rewrites a recognizable date as YYYY-MM-DD and returns
// anything else trimmed but unchanged.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02")
}

// looksLikeID reports whether ref resembles a record identifier, canonical or
// a hex fragment of one.
func looksLikeID(ref string) bool {
	ref = strings.TrimSpace(ref)
	if IsCanonicalID(ref) || uuidPattern.MatchString(ref) {
		return true
	}
	return len(ref) >= 8 && hexFragment.MatchString(ref)
}
