// Package intent implements the embedded command protocol: recognizing a
// trailing structured action in language-model output, validating it against
// the schema of its kind, resolving loose record references, applying exactly
// one mutation, and rewriting the reply shown to the user.
package intent

import (
	"encoding/json"
	"strings"

	"github.com/yangwenmai/sitebook/internal/model"
)

// Kind identifies one of the closed set of mutating commands.
type Kind string

// Command kinds, as they appear in the actionType field of the wire payload.
const (
	KindUpdateStatus   Kind = "update_action_item_status"
	KindAddNote        Kind = "add_action_item_note"
	KindUpdatePriority Kind = "update_action_item_priority"
	KindAssign         Kind = "assign_action_item"
	KindUpdateDueDate  Kind = "update_action_item_due_date"
	KindCreateItem     Kind = "create_action_item"
)

// DefaultActor labels commands whose issuer is not named.
const DefaultActor = "automated assistant"

// Wire field names inside actionData.
const (
	FieldID          = "id"
	FieldStatus      = "status"
	FieldNote        = "note"
	FieldPriority    = "priority"
	FieldAssignedTo  = "assignedTo"
	FieldDueDate     = "dueDate"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldProjectID   = "projectId"
	FieldAlias       = "alias"
)

// schema lists the fields of a kind. Fields outside both lists are ignored.
type schema struct {
	required []string
	optional []string
}

var schemas = map[Kind]schema{
	KindUpdateStatus:   {required: []string{FieldID, FieldStatus}, optional: []string{FieldNote}},
	KindAddNote:        {required: []string{FieldID, FieldNote}},
	KindUpdatePriority: {required: []string{FieldID, FieldPriority}},
	KindAssign:         {required: []string{FieldID, FieldAssignedTo}},
	KindUpdateDueDate:  {required: []string{FieldID, FieldDueDate}},
	KindCreateItem: {
		required: []string{FieldTitle, FieldDescription, FieldProjectID},
		optional: []string{FieldPriority, FieldAssignedTo, FieldDueDate, FieldAlias},
	},
}

// Kinds lists every known kind in a stable order.
var Kinds = []Kind{
	KindUpdateStatus,
	KindAddNote,
	KindUpdatePriority,
	KindAssign,
	KindUpdateDueDate,
	KindCreateItem,
}

// Known reports whether k is one of the supported kinds.
func (k Kind) Known() bool {
	_, ok := schemas[k]
	return ok
}

// Fields returns the required and then optional wire fields of k.
func (k Kind) Fields() []string {
	s := schemas[k]
	out := make([]string, 0, len(s.required)+len(s.optional))
	out = append(out, s.required...)
	return append(out, s.optional...)
}

// RawCommand is an extracted but not yet validated command. Field values are
// kept as text; non-string JSON values are stringified.
type RawCommand struct {
	Kind   Kind
	Fields map[string]string
	Actor  string
}

// Command is a validated command. Each kind has its own struct.
type Command interface {
	Kind() Kind
	Actor() string
}

// Targeted is implemented by commands that act on an existing action item.
type Targeted interface {
	Command
	Ref() string
}

// Meta carries what every command has in common.
type Meta struct {
	ActorLabel string
}

// Actor returns who issued the command.
func (m Meta) Actor() string { return m.ActorLabel }

// UpdateStatus moves an item to a new status.
type UpdateStatus struct {
	Meta
	ItemRef string
	Status  model.Status
	Note    string
}

func (UpdateStatus) Kind() Kind    { return KindUpdateStatus }
func (c UpdateStatus) Ref() string { return c.ItemRef }

// AddNote appends a note to an item.
type AddNote struct {
	Meta
	ItemRef string
	Text    string
}

func (AddNote) Kind() Kind    { return KindAddNote }
func (c AddNote) Ref() string { return c.ItemRef }

// UpdatePriority changes an item's priority.
type UpdatePriority struct {
	Meta
	ItemRef  string
	Priority model.Priority
}

func (UpdatePriority) Kind() Kind    { return KindUpdatePriority }
func (c UpdatePriority) Ref() string { return c.ItemRef }

// Assign sets who an item is assigned to.
type Assign struct {
	Meta
	ItemRef  string
	Assignee string
}

func (Assign) Kind() Kind    { return KindAssign }
func (c Assign) Ref() string { return c.ItemRef }

// UpdateDueDate changes an item's due date.
type UpdateDueDate struct {
	Meta
	ItemRef string
	DueDate string
}

func (UpdateDueDate) Kind() Kind    { return KindUpdateDueDate }
func (c UpdateDueDate) Ref() string { return c.ItemRef }

// CreateItem adds a new open item to a project.
type CreateItem struct {
	Meta
	Title       string
	Description string
	ProjectRef  string
	Priority    model.Priority
	AssignedTo  string
	DueDate     string
	Alias       string
}

func (CreateItem) Kind() Kind { return KindCreateItem }

// Reason classifies why a command did not take effect.
type Reason string

// Failure reasons
const (
	ReasonInvalid  Reason = "invalid"
	ReasonNotFound Reason = "not_found"
	ReasonStore    Reason = "store"
)

// Outcome is the result of executing one command. Title is the affected
// record's public title; identifiers never appear in an Outcome.
type Outcome struct {
	Kind    Kind   `json:"kind"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Title   string `json:"title,omitempty"`
	Reason  Reason `json:"reason,omitempty"`
}

// ExecuteRequest is the body accepted by the execution endpoint.
type ExecuteRequest struct {
	Action  ExecuteAction `json:"action"`
	ActorID string        `json:"actorId"`
}

// ExecuteAction is the typed action inside an ExecuteRequest.
type ExecuteAction struct {
	Type string                     `json:"type"`
	Data map[string]json.RawMessage `json:"data"`
}

// ExecuteResponse is the body returned by the execution endpoint.
type ExecuteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Raw converts the request into an unvalidated command.
func (r ExecuteRequest) Raw() RawCommand {
	return RawCommand{
		Kind:   normalizeKind(r.Action.Type),
		Fields: stringifyFields(r.Action.Data),
		Actor:  r.ActorID,
	}
}

// Response converts an outcome into the execution endpoint's response.
func Response(o Outcome) ExecuteResponse {
	resp := ExecuteResponse{Success: o.Success, Message: o.Message}
	if !o.Success {
		resp.Error = string(o.Reason)
	}
	return resp
}

func normalizeKind(s string) Kind {
	return Kind(strings.ToLower(strings.TrimSpace(s)))
}

// stringifyFields flattens decoded JSON values to text. Strings are unquoted,
// nulls are dropped and anything else keeps its JSON spelling.
func stringifyFields(data map[string]json.RawMessage) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		trimmed := strings.TrimSpace(string(v))
		if trimmed == "" || trimmed == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		out[k] = trimmed
	}
	return out
}
