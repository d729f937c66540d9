package engine

import "context"

// Role identifies the speaker of a chat message.
type Role string

// Chat roles
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ModelClient abstracts LLM calls. Implementations can wrap OpenAI, Claude,
// Gemini, local models, etc. Messages may start with one system message.
type ModelClient interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// ReferenceReader fetches a project's reference document and returns its
// readable text.
type ReferenceReader interface {
	Read(ctx context.Context, url string) (*Reference, error)
}

// Reference holds the readable content of a reference document.
type Reference struct {
	Title     string `json:"title,omitempty"`
	Byline    string `json:"byline,omitempty"`
	Text      string `json:"text"`
	WordCount int    `json:"word_count"`
}

// splitSystem separates a leading system message from the rest of the
// conversation, for APIs that take the system prompt out of band.
func splitSystem(messages []Message) (string, []Message) {
	if len(messages) > 0 && messages[0].Role == RoleSystem {
		return messages[0].Content, messages[1:]
	}
	return "", messages
}
