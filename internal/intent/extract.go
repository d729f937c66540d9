package intent

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// State classifies what a reply carries.
type State int

const (
	// Absent means the reply holds no command and no command debris.
	Absent State = iota
	// Found means a command was recovered.
	Found
	// Malformed means the reply holds command debris that could not be recovered.
	Malformed
)

func (s State) String() string {
	switch s {
	case Found:
		return "found"
	case Malformed:
		return "malformed"
	default:
		return "absent"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Extraction is the result of scanning one reply. Spans cover every byte
// that belongs to the command or its debris, sorted and non-overlapping.
type Extraction struct {
	State  State
	Raw    *RawCommand
	Spans  []Span
	Method string
}

type recognizer struct {
	name string
	fn   func(text string) (Extraction, bool)
}

// recognizers run in order; the first that claims the text wins.
var recognizers = []recognizer{
	{name: "strict", fn: recognizeStrict},
	{name: "loose", fn: recognizeLoose},
	{name: "fields", fn: recognizeFields},
	{name: "malformed", fn: recognizeMalformed},
}

// Extract finds the trailing command in a model reply. It never fails: text
// that carries nothing recognizable yields an Absent extraction.
func Extract(text string) Extraction {
	for _, r := range recognizers {
		ex, ok := r.fn(text)
		if !ok {
			continue
		}
		ex.Method = r.name
		if ex.State == Found {
			ex.Spans = append(ex.Spans, orphanSpans(text)...)
		}
		ex.Spans = mergeSpans(ex.Spans)
		return ex
	}
	return Extraction{State: Absent}
}

// envelope is the wire shape {"action":{"actionType":...,"actionData":{...}}}.
type envelope struct {
	Action *struct {
		ActionType string                     `json:"actionType"`
		ActionData map[string]json.RawMessage `json:"actionData"`
	} `json:"action"`
}

func (e envelope) command() (*RawCommand, bool) {
	if e.Action == nil || strings.TrimSpace(e.Action.ActionType) == "" {
		return nil, false
	}
	return &RawCommand{
		Kind:   normalizeKind(e.Action.ActionType),
		Fields: stringifyFields(e.Action.ActionData),
	}, true
}

// recognizeStrict decodes balanced objects, last first, as plain JSON.
func recognizeStrict(text string) (Extraction, bool) {
	objects := scanBraces(text).objects
	for i := len(objects) - 1; i >= 0; i-- {
		span := objects[i]
		var env envelope
		if err := json.Unmarshal([]byte(text[span.Start:span.End]), &env); err != nil {
			continue
		}
		raw, ok := env.command()
		if !ok {
			continue
		}
		return Extraction{State: Found, Raw: raw, Spans: []Span{widen(text, span)}}, true
	}
	return Extraction{}, false
}

var actionMarker = regexp.MustCompile(`\{\s*["“”']?action["“”']?\s*:`)

// recognizeLoose starts at the last action marker, repairs whitespace,
// control characters and typographic quotes, and decodes the first JSON value
// found there. Anything after that value, such as surplus braces, is ignored.
func recognizeLoose(text string) (Extraction, bool) {
	locs := actionMarker.FindAllStringIndex(text, -1)
	for i := len(locs) - 1; i >= 0; i-- {
		start := locs[i][0]
		norm, offsets := normalizeLoose(text[start:])

		dec := json.NewDecoder(strings.NewReader(norm))
		var env envelope
		if err := dec.Decode(&env); err != nil {
			continue
		}
		raw, ok := env.command()
		if !ok {
			continue
		}

		consumed := int(dec.InputOffset())
		end := len(text)
		if consumed < len(offsets) {
			end = start + offsets[consumed]
		}
		return Extraction{State: Found, Raw: raw, Spans: []Span{widen(text, Span{Start: start, End: end})}}, true
	}
	return Extraction{}, false
}

// normalizeLoose collapses whitespace and control runs to one space and maps
// typographic quotes to ASCII. offsets[i] is the index in s of the rune that
// produced byte i of the result.
func normalizeLoose(s string) (string, []int) {
	var b strings.Builder
	b.Grow(len(s))
	offsets := make([]int, 0, len(s))
	lastSpace := false

	for i, r := range s {
		switch r {
		case '“', '”', '„', '″':
			r = '"'
		case '‘', '’':
			r = '\''
		}
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			if lastSpace {
				continue
			}
			r = ' '
			lastSpace = true
		} else {
			lastSpace = false
		}
		b.WriteRune(r)
		for n := utf8.RuneLen(r); n > 0; n-- {
			offsets = append(offsets, i)
		}
	}
	return b.String(), offsets
}

var (
	kindKeyPattern   = regexp.MustCompile(`(?i)["']?action_?type["']?\s*[:=]\s*["']?([a-z][a-z_ -]*)`)
	kindNamePattern  = regexp.MustCompile(`(?i)\b(` + joinKinds() + `)\b`)
	actionKeyPattern = regexp.MustCompile(`\{\s*["']?action["']?\s*:|["']action["']\s*:`)
	fieldPatterns    = compileFieldPatterns()
)

func joinKinds() string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, "|")
}

// compileFieldPatterns builds one matcher per wire field. A value is either
// a quoted string, possibly cut off by the end of the text, or a bare token.
func compileFieldPatterns() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp)
	for _, k := range Kinds {
		for _, f := range k.Fields() {
			if _, ok := out[f]; ok {
				continue
			}
			out[f] = regexp.MustCompile(`(?i)["']?\b` + regexp.QuoteMeta(f) +
				`\b["']?\s*[:=]\s*(?:"((?:[^"\\]|\\.)*)(?:"|$)|([^\s,}"][^,}\n"]*))`)
		}
	}
	return out
}

// recognizeFields locates a kind marker and pulls each field of that kind out
// on its own, so order, quoting damage and truncation of the final value do
// not matter. It succeeds only if the kind's required fields are all present.
func recognizeFields(text string) (Extraction, bool) {
	kind, markerStart, markerEnd, ok := findKindMarker(text)
	if !ok {
		return Extraction{}, false
	}

	start := markerStart
	if locs := actionKeyPattern.FindAllStringIndex(text[:markerStart], -1); len(locs) > 0 {
		start = locs[len(locs)-1][0]
	}
	for start > 0 && strings.IndexByte(`{"'`, text[start-1]) >= 0 {
		start--
	}

	region := text[start:]
	quoted := quotedSpans(region)
	fields := make(map[string]string)
	end := markerEnd
	for _, name := range kind.Fields() {
		m := firstKeyMatch(fieldPatterns[name], region, quoted)
		if m == nil {
			continue
		}
		var value string
		switch {
		case m[2] >= 0:
			value = unquoteLoose(region[m[2]:m[3]])
		case m[4] >= 0:
			value = strings.Trim(region[m[4]:m[5]], " \t\r'")
		}
		if value = strings.TrimSpace(value); value == "" {
			continue
		}
		fields[name] = value
		if e := start + m[1]; e > end {
			end = e
		}
	}

	for _, name := range schemas[kind].required {
		if _, ok := fields[name]; !ok {
			return Extraction{}, false
		}
	}

	span := widen(text, Span{Start: start, End: absorbRight(text, end)})
	return Extraction{
		State: Found,
		Raw:   &RawCommand{Kind: kind, Fields: fields},
		Spans: []Span{span},
	}, true
}

// firstKeyMatch returns the first match of re in region whose key does not
// start inside a quoted string, so key-like text within a value is skipped.
func firstKeyMatch(re *regexp.Regexp, region string, quoted []Span) []int {
	for _, m := range re.FindAllStringSubmatchIndex(region, -1) {
		if !insideString(quoted, m[0]) {
			return m
		}
	}
	return nil
}

// quotedSpans lists the double-quoted strings of s, quotes included. An
// unterminated string runs to the end of s.
func quotedSpans(s string) []Span {
	var spans []Span
	open := -1
	escape := false
	for i := 0; i < len(s); i++ {
		switch {
		case escape:
			escape = false
		case open >= 0 && s[i] == '\\':
			escape = true
		case s[i] == '"' && open < 0:
			open = i
		case s[i] == '"':
			spans = append(spans, Span{Start: open, End: i + 1})
			open = -1
		}
	}
	if open >= 0 {
		spans = append(spans, Span{Start: open, End: len(s)})
	}
	return spans
}

func insideString(quoted []Span, i int) bool {
	for _, q := range quoted {
		if i > q.Start && i < q.End {
			return true
		}
	}
	return false
}

var actionDataKeyPattern = regexp.MustCompile(`(?i)["']?action_?data["']?\s*:`)

// findKindMarker prefers the last actionType key naming a known kind, then
// the last bare kind name that sits in a brace or quote structure. A kind
// name in running prose only counts when the text also has an action or
// actionData key.
func findKindMarker(text string) (Kind, int, int, bool) {
	keyed := kindKeyPattern.FindAllStringSubmatchIndex(text, -1)
	for i := len(keyed) - 1; i >= 0; i-- {
		m := keyed[i]
		k := Kind(normalizeEnum(text[m[2]:m[3]]))
		if k.Known() {
			return k, m[0], m[1], true
		}
	}
	named := kindNamePattern.FindAllStringIndex(text, -1)
	hasActionKey := actionKeyPattern.MatchString(text) || actionDataKeyPattern.MatchString(text)
	for i := len(named) - 1; i >= 0; i-- {
		m := named[i]
		if hasActionKey || openedByStructure(text, m[0]) {
			return normalizeKind(text[m[0]:m[1]]), m[0], m[1], true
		}
	}
	return "", 0, 0, false
}

// openedByStructure reports whether the nearest non-space byte before i is a
// brace or a quote.
func openedByStructure(text string, i int) bool {
	k := skipSpaceLeft(text, i)
	return k > 0 && strings.IndexByte(`{"'`, text[k-1]) >= 0
}

func unquoteLoose(s string) string {
	if u, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return u
	}
	return strings.ReplaceAll(s, `\"`, `"`)
}

var fragmentPattern = regexp.MustCompile(`(?i)\{\s*["']?action["']?\s*:|["']action_?(?:type|data)["']?\s*:`)

// recognizeMalformed claims debris: orphan closing braces, an unclosed object
// that opens like a payload, and bare protocol markers.
func recognizeMalformed(text string) (Extraction, bool) {
	scan := scanBraces(text)
	spans := orphanSpansOf(scan)
	if scan.open >= 0 && opensPayload(text, scan.open) {
		spans = append(spans, widen(text, Span{Start: scan.open, End: len(text)}))
	}
	for _, loc := range fragmentPattern.FindAllStringIndex(text, -1) {
		spans = append(spans, fragmentSpan(text, scan, loc))
	}
	if len(spans) == 0 {
		return Extraction{}, false
	}
	return Extraction{State: Malformed, Spans: spans}, true
}

// fragmentSpan covers a protocol marker found at loc. Inside a balanced
// object the whole object goes; otherwise the marker and the value after it,
// never past the end of its line.
func fragmentSpan(text string, scan braceScan, loc []int) Span {
	for _, obj := range scan.objects {
		if loc[0] >= obj.Start && loc[0] < obj.End {
			return widen(text, obj)
		}
	}

	lineEnd := len(text)
	if n := strings.IndexByte(text[loc[1]:], '\n'); n >= 0 {
		lineEnd = loc[1] + n
	}
	end := loc[1]
	j := loc[1]
	for j < lineEnd && (text[j] == ' ' || text[j] == '\t') {
		j++
	}
	switch {
	case j == lineEnd:
	case text[j] == '"':
		end = lineEnd
		if q := strings.IndexByte(text[j+1:lineEnd], '"'); q >= 0 {
			end = j + 1 + q + 1
		}
	case text[j] == '{' || text[j] == '[':
		end = lineEnd
	default:
		end = j
		for end < lineEnd && !isSpace(text[end]) && text[end] != ',' && text[end] != '}' {
			end++
		}
	}
	return widen(text, Span{Start: loc[0], End: absorbRight(text, end)})
}

func orphanSpans(text string) []Span {
	return orphanSpansOf(scanBraces(text))
}

func orphanSpansOf(scan braceScan) []Span {
	spans := make([]Span, 0, len(scan.orphans))
	for _, i := range scan.orphans {
		spans = append(spans, Span{Start: i, End: i + 1})
	}
	return spans
}

// opensPayload reports whether the brace at i is followed by a quote or by
// nothing at all.
func opensPayload(text string, i int) bool {
	j := skipSpaceRight(text, i+1)
	return j == len(text) || text[j] == '"' || text[j] == '\''
}

var fenceOpen = regexp.MustCompile("```[A-Za-z]*$")

// widen grows a span over surplus braces next to it and over a surrounding
// code fence. Whitespace is only taken when something beyond it is.
func widen(text string, sp Span) Span {
	end := sp.End
	for {
		k := skipSpaceRight(text, end)
		if k < len(text) && text[k] == '}' {
			end = k + 1
			continue
		}
		break
	}
	if k := skipSpaceRight(text, end); strings.HasPrefix(text[k:], "```") {
		end = k + 3
	}

	start := sp.Start
	for {
		k := skipSpaceLeft(text, start)
		if k > 0 && text[k-1] == '{' {
			start = k - 1
			continue
		}
		break
	}
	if k := skipSpaceLeft(text, start); k > 0 {
		if loc := fenceOpen.FindStringIndex(text[:k]); loc != nil {
			start = loc[0]
		}
	}
	return Span{Start: start, End: end}
}

// absorbRight extends end over trailing quote, bracket and comma debris.
func absorbRight(text string, end int) int {
	j := end
	for k := end; k < len(text); k++ {
		c := text[k]
		if isSpace(c) {
			continue
		}
		if strings.IndexByte(`"'}],`, c) < 0 {
			break
		}
		j = k + 1
	}
	return j
}

func skipSpaceRight(text string, i int) int {
	for i < len(text) && isSpace(text[i]) {
		i++
	}
	return i
}

func skipSpaceLeft(text string, i int) int {
	for i > 0 && isSpace(text[i-1]) {
		i--
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// mergeSpans sorts spans and joins the ones that overlap or touch.
func mergeSpans(spans []Span) []Span {
	if len(spans) < 2 {
		return spans
	}
	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := []Span{sorted[0]}
	for _, sp := range sorted[1:] {
		last := &out[len(out)-1]
		if sp.Start <= last.End {
			if sp.End > last.End {
				last.End = sp.End
			}
			continue
		}
		out = append(out, sp)
	}
	return out
}
