package intent

// Span is a byte range [Start, End) of a model reply.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// braceScan is the brace structure of a piece of text.
type braceScan struct {
	objects []Span // balanced top-level objects
	orphans []int  // closing braces with no open object
	open    int    // start of an unclosed top-level object, or -1
}

// scanBraces walks s once and records balanced top-level objects, orphan
// closing braces and a trailing unclosed object. Quotes only open strings
// inside an object; at top level they are prose (inch marks, quotations).
func scanBraces(s string) braceScan {
	scan := braceScan{open: -1}
	var depth int
	var inString, escape bool

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}
		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				scan.open = i
			}
			depth++
		case '}':
			if depth == 0 {
				scan.orphans = append(scan.orphans, i)
				continue
			}
			depth--
			if depth == 0 {
				scan.objects = append(scan.objects, Span{Start: scan.open, End: i + 1})
				scan.open = -1
			}
		}
	}
	return scan
}
