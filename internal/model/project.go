package model

// Project groups the action items of one construction job.
type Project struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Code         string `json:"code,omitempty"`
	Address      string `json:"address,omitempty"`
	ReferenceURL string `json:"reference_url,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// NewProject creates a Project stamped with the current time.
func NewProject(id, name, code string) Project {
	now := Now()
	return Project{
		ID:        id,
		Name:      name,
		Code:      code,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RecordKind names the kind of record a lookup candidate refers to.
type RecordKind string

// Record kinds
const (
	RecordItem    RecordKind = "item"
	RecordProject RecordKind = "project"
)

// Candidate is one ranked result of a reference lookup.
type Candidate struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	Kind  RecordKind `json:"kind"`
}
