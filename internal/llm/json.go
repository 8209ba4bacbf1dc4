package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSONObject is returned when no balanced JSON object can be found.
var ErrNoJSONObject = errors.New("no JSON object found in response")

// Parsed is the result of validating untrusted model output into T.
// Exactly one of the two states holds: OK with Value populated, or
// Malformed with Err explaining why.
type Parsed[T any] struct {
	Value T
	OK    bool
	Err   error
}

// Malformed reports whether the payload could not be decoded.
func (p Parsed[T]) Malformed() bool {
	return !p.OK
}

// Decode parses raw model output into T. It tries a direct parse of the
// content, then of the content with markdown fences removed, then of the
// first balanced JSON object in the text.
func Decode[T any](raw string) Parsed[T] {
	var v T

	candidates := []string{raw, stripMarkdownCodeBlocks(raw)}
	for _, c := range candidates {
		if err := json.Unmarshal([]byte(c), &v); err == nil {
			return Parsed[T]{Value: v, OK: true}
		}
		v = *new(T)
	}

	obj, err := ExtractJSON(raw)
	if err != nil {
		return Parsed[T]{Err: err}
	}
	if err := json.Unmarshal([]byte(obj), &v); err != nil {
		return Parsed[T]{Err: err}
	}
	return Parsed[T]{Value: v, OK: true}
}

// ExtractJSON returns the first balanced JSON object found in s. Braces
// inside string literals are ignored. The object must be valid JSON.
func ExtractJSON(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	for start != -1 {
		if end := balancedEnd(s, start); end != -1 {
			candidate := s[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}
	return "", ErrNoJSONObject
}

// balancedEnd returns the index of the brace closing the object opened at
// start, or -1 if the text ends first.
func balancedEnd(s string, start int) int {
	depth := 0
	inString := false
	escaped := false

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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// stripMarkdownCodeBlocks removes markdown code block markers from a string.
func stripMarkdownCodeBlocks(s string) string {
	s = strings.TrimSpace(s)
	if cut, found := strings.CutPrefix(s, "```json"); found {
		s = cut
	} else if cut, found := strings.CutPrefix(s, "```"); found {
		s = cut
	}
	if cut, found := strings.CutSuffix(s, "```"); found {
		s = cut
	}
	return strings.TrimSpace(s)
}
