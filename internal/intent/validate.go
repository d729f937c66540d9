package intent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hay-kot/criterio"

	"github.com/yangwenmai/sitebook/internal/model"
)

// ValidationError reports every field of a command that failed validation.
type ValidationError struct {
	Kind Kind
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s command: %v", e.Kind, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Fields returns the names of the offending fields in report order.
func (e *ValidationError) Fields() []string {
	var fieldErrs criterio.FieldErrors
	if !errors.As(e.Err, &fieldErrs) {
		return nil
	}
	names := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		names = append(names, fe.Field)
	}
	return names
}

var (
	errRequired      = errors.New("is required")
	errStatusOnHold  = errors.New("on_hold cannot be set by a command")
	errUnknownKind   = errors.New("is not a supported action")
	errUnknownStatus = fmt.Errorf("must be one of %s", joinValues(model.Statuses))
	errUnknownPrio   = fmt.Errorf("must be one of %s", joinValues(model.Priorities))
)

// SettableStatuses lists the statuses a command may set, in display order.
func SettableStatuses() []model.Status {
	out := make([]model.Status, 0, len(model.Statuses))
	for _, s := range model.Statuses {
		if s != model.StatusOnHold {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks a raw command against its kind's schema and builds the
// typed command. Enumerated values are case-folded and "In Progress" style
// spellings become in_progress. Nothing else is repaired.
func Validate(raw RawCommand) (Command, error) {
	kind := normalizeKind(string(raw.Kind))
	meta := Meta{ActorLabel: strings.TrimSpace(raw.Actor)}
	if meta.ActorLabel == "" {
		meta.ActorLabel = DefaultActor
	}
	f := fieldReader{fields: raw.Fields}

	var cmd Command
	switch kind {
	case KindUpdateStatus:
		status := model.Status(normalizeEnum(f.get(FieldStatus)))
		f.require(FieldID)
		switch {
		case status == "":
			f.fail(FieldStatus, errRequired)
		case status == model.StatusOnHold:
			f.fail(FieldStatus, errStatusOnHold)
		case !status.IsValid():
			f.fail(FieldStatus, errUnknownStatus)
		}
		cmd = UpdateStatus{Meta: meta, ItemRef: f.get(FieldID), Status: status, Note: f.get(FieldNote)}

	case KindAddNote:
		f.require(FieldID, FieldNote)
		cmd = AddNote{Meta: meta, ItemRef: f.get(FieldID), Text: f.get(FieldNote)}

	case KindUpdatePriority:
		f.require(FieldID)
		prio := f.priority(FieldPriority, true)
		cmd = UpdatePriority{Meta: meta, ItemRef: f.get(FieldID), Priority: prio}

	case KindAssign:
		f.require(FieldID, FieldAssignedTo)
		cmd = Assign{Meta: meta, ItemRef: f.get(FieldID), Assignee: f.get(FieldAssignedTo)}

	case KindUpdateDueDate:
		f.require(FieldID, FieldDueDate)
		cmd = UpdateDueDate{Meta: meta, ItemRef: f.get(FieldID), DueDate: f.get(FieldDueDate)}

	case KindCreateItem:
		f.require(FieldTitle, FieldDescription, FieldProjectID)
		prio := f.priority(FieldPriority, false)
		if prio == "" {
			prio = model.PriorityMedium
		}
		cmd = CreateItem{
			Meta:        meta,
			Title:       f.get(FieldTitle),
			Description: f.get(FieldDescription),
			ProjectRef:  f.get(FieldProjectID),
			Priority:    prio,
			AssignedTo:  f.get(FieldAssignedTo),
			DueDate:     f.get(FieldDueDate),
			Alias:       f.get(FieldAlias),
		}

	default:
		f.fail("actionType", errUnknownKind)
	}

	if err := f.errs.ToError(); err != nil {
		return nil, &ValidationError{Kind: kind, Err: err}
	}
	return cmd, nil
}

// fieldReader reads trimmed field values and collects field errors.
type fieldReader struct {
	fields map[string]string
	errs   criterio.FieldErrorsBuilder
}

func (r *fieldReader) get(name string) string {
	return strings.TrimSpace(r.fields[name])
}

func (r *fieldReader) fail(name string, err error) {
	r.errs = r.errs.Append(name, err)
}

func (r *fieldReader) require(names ...string) {
	for _, name := range names {
		if r.get(name) == "" {
			r.fail(name, errRequired)
		}
	}
}

func (r *fieldReader) priority(name string, required bool) model.Priority {
	p := model.Priority(normalizeEnum(r.get(name)))
	switch {
	case p == "":
		if required {
			r.fail(name, errRequired)
		}
	case !p.IsValid():
		r.fail(name, errUnknownPrio)
		return ""
	}
	return p
}

var enumReplacer = strings.NewReplacer(" ", "_", "-", "_")

// normalizeEnum folds "In Progress", "in-progress" and " IN_PROGRESS " to
// "in_progress".
func normalizeEnum(s string) string {
	return enumReplacer.Replace(strings.ToLower(strings.TrimSpace(s)))
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
