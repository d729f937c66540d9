package model

import "time"

// TimeLayout is the fixed-width UTC timestamp format stored in the database.
// Fixed width keeps lexical and chronological order identical.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Now returns the current UTC time formatted with TimeLayout.
func Now() string {
	return time.Now().UTC().Format(TimeLayout)
}

// Status is the lifecycle state of an ActionItem.
type Status string

// Status constants
const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusOnHold     Status = "on_hold"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusCompleted, StatusOnHold, StatusCancelled}

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Priority ranks how urgent an ActionItem is.
type Priority string

// Priority constants
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists every valid priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// IsValid reports whether p is one of the known priorities.
func (p Priority) IsValid() bool {
	for _, v := range Priorities {
		if p == v {
			return true
		}
	}
	return false
}

// ActionItem is a unit of tracked work on a project.
type ActionItem struct {
	ID          string   `json:"id"`
	ProjectID   string   `json:"project_id"`
	Title       string   `json:"title"`
	Alias       string   `json:"alias,omitempty"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Status      Status   `json:"status"`
	AssignedTo  *string  `json:"assigned_to,omitempty"`
	DueDate     *string  `json:"due_date,omitempty"`
	CompletedAt *string  `json:"completed_at,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// ItemWithNotes is an ActionItem together with its notes, oldest first.
type ItemWithNotes struct {
	ActionItem
	Notes []Note `json:"notes"`
}

// ItemFilter holds query parameters for listing items.
type ItemFilter struct {
	ProjectID string
	Status    []Status
	Priority  []Priority
	Query     string
	Limit     int
}

// NewActionItem creates a new open ActionItem with medium priority.
func NewActionItem(id, projectID, title, description string) ActionItem {
	now := Now()
	return ActionItem{
		ID:          id,
		ProjectID:   projectID,
		Title:       title,
		Description: description,
		Priority:    PriorityMedium,
		Status:      StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ApplyStatus sets the status and stamps CompletedAt when the item becomes
// completed. Any other transition leaves CompletedAt untouched.
func (a *ActionItem) ApplyStatus(s Status, at string) {
	a.Status = s
	if s == StatusCompleted {
		a.CompletedAt = &at
	}
	a.UpdatedAt = at
}
