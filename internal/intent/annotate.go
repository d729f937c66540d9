package intent

import (
	"regexp"
	"strings"
)

var (
	uuidPattern = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	hexFragment = regexp.MustCompile(`(?i)^[0-9a-f-]+$`)

	// redactPattern takes a UUID together with an "id:" label and brackets
	// wrapping it, so "(id: 3f2a...)" disappears whole.
	redactPattern = regexp.MustCompile(`(?i)[ \t]?[(\[]?(?:\bid[:=]?[ \t]*)?[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b[)\]]?`)

	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
)

// Confirmation and failure line prefixes.
const (
	SuccessPrefix = "✅ "
	FailurePrefix = "⚠️ I couldn't complete that update"
)

// Annotate builds the text shown to the user: every extracted span removed,
// identifiers redacted, whitespace tidied and, when a command was found, one
// line describing its outcome appended. Malformed and absent extractions get
// no line.
func Annotate(text string, ex Extraction, outcome *Outcome) string {
	display := Tidy(RedactIDs(Strip(text, ex.Spans)))
	if ex.State != Found || outcome == nil {
		return display
	}

	line := SuccessPrefix + outcome.Message
	if !outcome.Success {
		line = failureLine(*outcome)
	}
	if display == "" {
		return line
	}
	return display + "\n\n" + line
}

func failureLine(o Outcome) string {
	switch o.Reason {
	case ReasonNotFound:
		return FailurePrefix + ": " + o.Message + ". Try again using the item's title as it appears in the list."
	case ReasonInvalid:
		return FailurePrefix + ": " + o.Message + ". Try rephrasing the change you want."
	default:
		return FailurePrefix + ": " + o.Message + ". Please try again in a moment."
	}
}

// Strip removes spans from text. Spans must be sorted and non-overlapping;
// out-of-range bounds are clamped.
func Strip(text string, spans []Span) string {
	if len(spans) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	pos := 0
	for _, sp := range spans {
		start, end := clamp(sp.Start, pos, len(text)), clamp(sp.End, pos, len(text))
		b.WriteString(text[pos:start])
		pos = end
	}
	b.WriteString(text[pos:])
	return b.String()
}

// RedactIDs removes UUID-shaped identifiers from text.
func RedactIDs(text string) string {
	return redactPattern.ReplaceAllString(text, "")
}

// Tidy trims trailing spaces on each line, collapses runs of blank lines and
// trims the ends.
func Tidy(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = trailingSpace.ReplaceAllString(text, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
