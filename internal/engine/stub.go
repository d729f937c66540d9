package engine

import (
	"context"
	"sync"
)

// StubReferenceReader returns a fixed reference document (for development/testing).
type StubReferenceReader struct{}

func (r *StubReferenceReader) Read(_ context.Context, url string) (*Reference, error) {
	return &Reference{
		Title:     "Stub reference",
		Text:      "This is a stub reference document for " + url + ". Division 03 covers cast-in-place concrete; division 09 covers finishes.",
		WordCount: 20,
	}, nil
}

// StubModelClient returns a canned reply (for development/testing). It
// records the last conversation it was given.
type StubModelClient struct {
	// Reply is returned verbatim. Empty means a fixed acknowledgement.
	Reply string

	mu   sync.Mutex
	last []Message
}

// Complete returns the canned reply.
func (m *StubModelClient) Complete(_ context.Context, messages []Message) (string, error) {
	m.mu.Lock()
	m.last = append([]Message(nil), messages...)
	m.mu.Unlock()

	if m.Reply == "" {
		return "Understood. No language model is configured, so I can't answer in detail yet.", nil
	}
	return m.Reply, nil
}

// LastMessages returns the conversation of the most recent call.
func (m *StubModelClient) LastMessages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
