package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnnotate(t *testing.T) {
	found := Extraction{State: Found, Spans: []Span{{Start: 6, End: 11}}}
	text := "Done. {...}"

	tests := []struct {
		name    string
		ex      Extraction
		outcome *Outcome
		want    string
	}{
		{
			name:    "success",
			ex:      found,
			outcome: &Outcome{Success: true, Message: `Marked "Gutters" as completed.`},
			want:    "Done.\n\n✅ Marked \"Gutters\" as completed.",
		},
		{
			name:    "not found",
			ex:      found,
			outcome: &Outcome{Reason: ReasonNotFound, Message: `no action item matches "Gutter"`},
			want:    "Done.\n\n⚠️ I couldn't complete that update: no action item matches \"Gutter\". Try again using the item's title as it appears in the list.",
		},
		{
			name:    "invalid",
			ex:      found,
			outcome: &Outcome{Reason: ReasonInvalid, Message: "the request was incomplete or invalid (status)"},
			want:    "Done.\n\n⚠️ I couldn't complete that update: the request was incomplete or invalid (status). Try rephrasing the change you want.",
		},
		{
			name:    "store",
			ex:      found,
			outcome: &Outcome{Reason: ReasonStore, Message: "the change could not be saved"},
			want:    "Done.\n\n⚠️ I couldn't complete that update: the change could not be saved. Please try again in a moment.",
		},
		{
			name:    "malformed gets no line",
			ex:      Extraction{State: Malformed, Spans: []Span{{Start: 6, End: 11}}},
			outcome: &Outcome{Success: true, Message: "ignored"},
			want:    "Done.",
		},
		{
			name: "absent is left alone",
			ex:   Extraction{State: Absent},
			want: "Done. {...}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Annotate(text, tt.ex, tt.outcome))
		})
	}
}

func TestAnnotate_PayloadOnlyReply(t *testing.T) {
	text := `{"action":{}}`
	got := Annotate(text, Extraction{State: Found, Spans: []Span{{0, len(text)}}}, &Outcome{Success: true, Message: "Done."})
	assert.Equal(t, "✅ Done.", got)
}

func TestStrip(t *testing.T) {
	assert.Equal(t, "ab", Strip("a}b}", []Span{{1, 2}, {3, 4}}))
	assert.Equal(t, "a", Strip("abc", []Span{{1, 99}}))
	assert.Equal(t, "abc", Strip("abc", nil))
}

func TestRedactIDs(t *testing.T) {
	tests := map[string]string{
		"Item 3f2a91c0-7b4e-4d2a-9c1f-0e8d6b5a4c3b is done.":         "Item is done.",
		"Gutters (id: 3F2A91C0-7B4E-4D2A-9C1F-0E8D6B5A4C3B) are in.": "Gutters are in.",
		"Ref [3f2a91c0-7b4e-4d2a-9c1f-0e8d6b5a4c3b].":                "Ref.",
		"Order 3f2a91c0 arrives Friday.":                             "Order 3f2a91c0 arrives Friday.",
		"We paid 3f2a91c0-7b4e-4d2a-9c1f-0e8d6b5a4c3b invoices.":     "We paid invoices.",
	}
	for in, want := range tests {
		assert.Equal(t, want, RedactIDs(in), in)
	}
}

func TestTidy(t *testing.T) {
	assert.Equal(t, "a\n\nb", Tidy("  a   \r\n\n\n\n\nb  \n"))
}
