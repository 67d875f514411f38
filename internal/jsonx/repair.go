package jsonx

import (
	"encoding/json"
	"regexp"
	"strings"
)

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// cleanup strips non-JSON decoration a model is prone to adding: line and
// block comments, trailing commas, and prose before or after the document.
func cleanup(s string) string {
	s = stripComments(s)
	s = trailingComma.ReplaceAllString(s, "$1")
	s = trimNoise(s)
	return strings.TrimSpace(s)
}

// stripComments removes // and /* */ comments outside string literals.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var inString, escaped bool
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			i += 2
			for i+1 < len(s) && !(s[i] == '*' && s[i+1] == '/') {
				i++
			}
			i++ // consume the trailing '/'
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// trimNoise cuts leading text before the first bracket and, when the
// document balances, trailing text after the matching close. An unbalanced
// document keeps its tail so the repair pass sees the full prefix.
func trimNoise(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	var (
		depth    int
		inString bool
		escaped  bool
	)
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}

// repairTruncated recovers a document cut off mid-generation. It scans
// forward recording every position where a value just completed along with
// the bracket stack at that point, then works backward appending the closers
// each candidate needs until one parses.
func repairTruncated(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return "", false
	}

	type safePoint struct {
		end   int
		stack string
	}
	var (
		points   []safePoint
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
				points = append(points, safePoint{i + 1, string(stack)})
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			points = append(points, safePoint{i + 1, string(stack)})
		case ',':
			// the value before a separator is complete
			points = append(points, safePoint{i, string(stack)})
		}
	}
	if !inString {
		// A literal at the cut is complete only when unambiguous. A trailing
		// digit may be a longer number sliced mid-token, so it does not count.
		t := strings.TrimRight(s, " \t\r\n")
		if strings.HasSuffix(t, "true") || strings.HasSuffix(t, "false") || strings.HasSuffix(t, "null") {
			points = append(points, safePoint{len(t), string(stack)})
		}
	}

	for i := len(points) - 1; i >= 0; i-- {
		p := points[i]
		prefix := strings.TrimRight(s[:p.end], " \t\r\n")
		prefix = strings.TrimSuffix(prefix, ",")
		var closers []byte
		for j := len(p.stack) - 1; j >= 0; j-- {
			if p.stack[j] == '{' {
				closers = append(closers, '}')
			} else {
				closers = append(closers, ']')
			}
		}
		candidate := prefix + string(closers)
		if json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

// completeObjects salvages the cleanly-closed top-level objects from a
// truncated array, dropping whatever the cut left unfinished.
func completeObjects(s string) []any {
	start := strings.IndexByte(s, '[')
	if start < 0 {
		return nil
	}
	var (
		out      []any
		objStart = -1
		depth    int
		inString bool
		escaped  bool
	)
	for i := start + 1; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				objStart = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && objStart >= 0 {
				var obj map[string]any
				if err := json.Unmarshal([]byte(s[objStart:i+1]), &obj); err == nil {
					out = append(out, obj)
				}
				objStart = -1
			}
		}
	}
	return out
}
