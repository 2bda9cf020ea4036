package workflow

import (
	"encoding/json"
	"strings"
)

// Sanitize extracts the first JSON object from raw model output. When the
// output contains a code fence only the first fenced block is parsed, and a
// broken block fails even if later text holds valid JSON. Unfenced output is
// scanned for the first '{' that starts a complete object. Every failure is
// a MalformedOutputError.
func Sanitize(raw string) (json.RawMessage, error) {
	text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "\ufeff"))
	if text == "" {
		return nil, MalformedOutputError{Reason: "empty response"}
	}

	if body, ok := firstFencedBlock(text); ok {
		return objectAt(body, strings.IndexByte(body, '{'))
	}
	return firstObject(text)
}

// firstFencedBlock returns the body of the first ``` or ~~~ block. An
// unterminated block yields everything after its opening line.
func firstFencedBlock(s string) (string, bool) {
	start, fence := -1, ""
	for _, f := range []string{"```", "~~~"} {
		if i := strings.Index(s, f); i != -1 && (start == -1 || i < start) {
			start, fence = i, f
		}
	}
	if start == -1 {
		return "", false
	}
	rest := s[start+len(fence):]
	nl := strings.IndexByte(rest, '\n')
	if nl == -1 {
		return "", false
	}
	rest = rest[nl+1:]
	if end := strings.Index(rest, fence); end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest), true
}

// objectAt decodes the JSON object starting at byte i of s.
func objectAt(s string, i int) (json.RawMessage, error) {
	if i < 0 {
		return nil, MalformedOutputError{Reason: "no JSON object found"}
	}
	var v json.RawMessage
	if err := json.NewDecoder(strings.NewReader(s[i:])).Decode(&v); err != nil {
		return nil, MalformedOutputError{Reason: "invalid JSON", Err: err}
	}
	return v, nil
}

// firstObject decodes exactly one JSON value starting at the first '{' that
// begins a valid object. Anything after the object is ignored.
func firstObject(s string) (json.RawMessage, error) {
	var lastErr error
	offset := 0
	for offset < len(s) {
		i := strings.IndexByte(s[offset:], '{')
		if i == -1 {
			break
		}
		offset += i
		v, err := objectAt(s, offset)
		if err == nil {
			return v, nil
		}
		lastErr = err
		offset++
	}
	if lastErr == nil {
		return nil, MalformedOutputError{Reason: "no JSON object found"}
	}
	return nil, lastErr
}
