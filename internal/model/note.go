package model

// AuthorSystem labels notes written by the record keeper itself.
const AuthorSystem = "system"

// Note is an immutable annotation attached to exactly one ActionItem.
type Note struct {
	ID        string `json:"id"`
	ItemID    string `json:"item_id"`
	Text      string `json:"text"`
	Author    string `json:"author"`
	CreatedAt string `json:"created_at"`
}

// NewNote creates a Note stamped with the current time.
func NewNote(id, itemID, text, author string) Note {
	return Note{
		ID:        id,
		ItemID:    itemID,
		Text:      text,
		Author:    author,
		CreatedAt: Now(),
	}
}
