// Package jsonx recovers structured JSON from LLM completions. Model output
// routinely arrives wrapped in markdown fences, decorated with commentary, or
// truncated mid-document; Extract tries progressively more aggressive
// strategies before giving up.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

const snippetLimit = 500

// ExtractionError is returned when no strategy recovers a JSON document.
// Snippet carries the head of the offending response for diagnostics.
type ExtractionError struct {
	Reason  string
	Snippet string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("jsonx: %s: %q", e.Reason, e.Snippet)
}

func newError(reason, raw string) *ExtractionError {
	snippet := raw
	if len(snippet) > snippetLimit {
		snippet = snippet[:snippetLimit]
	}
	return &ExtractionError{Reason: reason, Snippet: snippet}
}

// Shape declares the keys a caller expects in an extracted object, mapped to
// the default value used when the model omitted the key or set it null.
type Shape map[string]any

func (s Shape) apply(obj map[string]any) map[string]any {
	out := make(map[string]any, len(s))
	for key, def := range s {
		if v, ok := obj[key]; ok && v != nil {
			out[key] = v
		} else {
			out[key] = def
		}
	}
	return out
}

// Extract recovers the first JSON object or array found in raw. Strategies,
// in order: direct parse of a fenced block, bracket-scanned candidate, or the
// whole text; then the same candidates after comment/trailing-comma cleanup;
// then truncation repair; then partial array recovery.
func Extract(raw string) (any, error) {
	if !strings.ContainsAny(raw, "{[") {
		return nil, newError("no JSON payload found", raw)
	}
	for _, cand := range candidates(raw) {
		if v, ok := tryParse(cand); ok {
			return v, nil
		}
	}
	return nil, newError("unable to recover JSON", raw)
}

// ExtractObject recovers a JSON object and normalizes it against shape:
// every declared key is present (defaulted when missing or null) and
// undeclared keys are dropped.
func ExtractObject(raw string, shape Shape) (map[string]any, error) {
	v, err := Extract(raw)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, newError("expected a JSON object", raw)
	}
	if shape == nil {
		return obj, nil
	}
	return shape.apply(obj), nil
}

// ExtractArray recovers a JSON array, including partial recovery of
// truncated arrays of objects.
func ExtractArray(raw string) ([]any, error) {
	v, err := Extract(raw)
	if err != nil {
		return nil, err
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, newError("expected a JSON array", raw)
	}
	return arr, nil
}

// DecodeObject extracts a JSON object from raw and unmarshals it into out.
// Missing fields keep their zero values, which serve as defaults.
func DecodeObject(raw string, out any) error {
	v, err := Extract(raw)
	if err != nil {
		return err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return newError("expected a JSON object", raw)
	}
	buf, err := json.Marshal(obj)
	if err != nil {
		return eris.Wrap(err, "jsonx: remarshal object")
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return eris.Wrap(err, "jsonx: decode object")
	}
	return nil
}

func tryParse(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	if v, ok := parseDocument(s); ok {
		return v, true
	}
	cleaned := cleanup(s)
	if v, ok := parseDocument(cleaned); ok {
		return v, true
	}
	if repaired, ok := repairTruncated(cleaned); ok {
		if v, ok := parseDocument(repaired); ok {
			return v, true
		}
	}
	if strings.HasPrefix(strings.TrimSpace(cleaned), "[") {
		if objs := completeObjects(cleaned); len(objs) > 0 {
			return objs, true
		}
	}
	return nil, false
}

// parseDocument accepts only objects and arrays; bare scalars are not
// considered a recovered document.
func parseDocument(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, true
	}
	return nil, false
}

// candidates yields substrings of raw worth parsing, most specific first.
func candidates(raw string) []string {
	var out []string
	if fenced, ok := fencedBlock(raw, "```json"); ok {
		out = append(out, fenced)
	}
	if fenced, ok := fencedBlock(raw, "```"); ok {
		out = append(out, fenced)
	}
	if scanned, ok := bracketScan(raw); ok {
		out = append(out, scanned)
	}
	out = append(out, raw)
	return out
}

// fencedBlock returns the content of the first code fence opened by marker.
// An unterminated fence yields everything to the end of input.
func fencedBlock(raw, marker string) (string, bool) {
	start := strings.Index(raw, marker)
	if start < 0 {
		return "", false
	}
	body := raw[start+len(marker):]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && marker == "```" {
		// skip a language tag on the opening line
		firstLine := strings.TrimSpace(body[:nl])
		if firstLine != "" && !strings.ContainsAny(firstLine, "{[") {
			body = body[nl+1:]
		}
	}
	if end := strings.Index(body, "```"); end >= 0 {
		return body[:end], true
	}
	return body, true
}

// bracketScan finds the outermost balanced {...} or [...] in raw, aware of
// string literals and escapes. Returns the earliest-starting candidate.
func bracketScan(raw string) (string, bool) {
	start := -1
	for i := 0; i < len(raw); i++ {
		if raw[i] == '{' || raw[i] == '[' {
			start = i
			break
		}
	}
	if start < 0 {
		return "", false
	}
	var (
		depth    int
		inString bool
		escaped  bool
	)
	for i := start; i < len(raw); i++ {
		c := raw[i]
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
				return raw[start : i+1], true
			}
		}
	}
	// unbalanced: hand the tail to the repair path
	return raw[start:], true
}
