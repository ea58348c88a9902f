package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// SchemaValidator validates a parsed struct after JSON extraction.
// Returns nil if valid, or a descriptive error if invalid.
type SchemaValidator[T any] func(T) error

// Stage names where in a model reply DecodeJSON found the object.
type Stage string

const (
	StageRaw       Stage = "raw"
	StageFenced    Stage = "fenced"
	StageBraceSpan Stage = "brace_span"
)

// ErrNotObject is returned when the reply is well-formed JSON whose top-level
// value is an array, string or number. Plans and verdicts are always objects.
var ErrNotObject = errors.New("top-level JSON value is not an object")

// Decoded is a value decoded from a model reply and how it was located.
type Decoded[T any] struct {
	Value T
	Stage Stage
	// Cleaned is set when comments, trailing commas or bare decimals had to be
	// rewritten before the object parsed.
	Cleaned bool
}

var jsonFence = regexp.MustCompile("(?s)```(?:json|JSON)?[ \t]*\r?\n(.*?)```")

// DecodeJSON locates the JSON object in raw model output and decodes it into
// T. Stages are tried in order: the whole reply, the first fenced block, then
// the first balanced {...} span in the surrounding prose. Each candidate is
// parsed strictly first and then once more after clean-up.
func DecodeJSON[T any](raw string, validator SchemaValidator[T]) (Decoded[T], error) {
	var out Decoded[T]

	text := strings.TrimSpace(raw)
	if text == "" {
		return out, fmt.Errorf("%w: no JSON object found in response", ErrInvalidOutput)
	}

	type candidate struct {
		stage Stage
		body  string
	}
	var candidates []candidate
	if text[0] == '{' {
		candidates = append(candidates, candidate{StageRaw, text})
	} else if err := rejectNonObject(text); err != nil {
		return out, err
	}
	if m := jsonFence.FindStringSubmatch(text); m != nil {
		body := strings.TrimSpace(m[1])
		if err := rejectNonObject(body); err != nil {
			return out, err
		}
		candidates = append(candidates, candidate{StageFenced, body})
	}
	if span := objectSpan(text); span != "" {
		candidates = append(candidates, candidate{StageBraceSpan, span})
	}
	if len(candidates) == 0 {
		return out, fmt.Errorf("%w: no JSON object found in response", ErrInvalidOutput)
	}

	var lastErr error
	for _, c := range candidates {
		v, cleaned, err := decodeObject[T](c.body)
		if err != nil {
			lastErr = err
			continue
		}
		if validator != nil {
			if err := validator(v); err != nil {
				return out, fmt.Errorf("%w: validation failed: %v", ErrInvalidOutput, err)
			}
		}
		return Decoded[T]{Value: v, Stage: c.stage, Cleaned: cleaned}, nil
	}
	return out, fmt.Errorf("%w: %v", ErrInvalidOutput, lastErr)
}

// ExtractJSON is DecodeJSON for callers that do not need the stage.
func ExtractJSON[T any](raw string, validator SchemaValidator[T]) (T, error) {
	d, err := DecodeJSON(raw, validator)
	return d.Value, err
}

func rejectNonObject(s string) error {
	if s == "" || s[0] == '{' || !json.Valid([]byte(s)) {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidOutput, ErrNotObject)
}

func decodeObject[T any](body string) (T, bool, error) {
	var v T
	strictErr := json.Unmarshal([]byte(body), &v)
	if strictErr == nil {
		return v, false, nil
	}
	cleaned, changed := cleanJSON(body)
	if !changed {
		return v, false, strictErr
	}
	var retry T
	if err := json.Unmarshal([]byte(cleaned), &retry); err != nil {
		return retry, false, err
	}
	return retry, true, nil
}

// literal tracks whether the scan position is inside a JSON string.
type literal struct{ inString, escaped bool }

// structural advances over c and reports whether c sits outside any string
// literal and is not a quote.
func (l *literal) structural(c byte) bool {
	switch {
	case l.escaped:
		l.escaped = false
		return false
	case l.inString && c == '\\':
		l.escaped = true
		return false
	case c == '"':
		l.inString = !l.inString
		return false
	}
	return !l.inString
}

// objectSpan returns the first balanced {...} in s, or "" if none closes.
func objectSpan(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	var lit literal
	depth := 0
	for i := start; i < len(s); i++ {
		if !lit.structural(s[i]) {
			continue
		}
		switch s[i] {
		case '{':
			depth++
		case '}':
			if depth--; depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// cleanJSON rewrites the near-JSON models produce: // and /* */ comments are
// dropped, trailing commas before } or ] are removed and ".5" becomes "0.5".
// It reports whether anything changed.
func cleanJSON(s string) (string, bool) {
	out := make([]byte, 0, len(s)+8)
	var lit literal
	changed := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if !lit.structural(c) {
			out = append(out, c)
			continue
		}
		switch {
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i+1 < len(s) && s[i+1] != '\n' {
				i++
			}
			changed = true
			continue
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				i = len(s)
			} else {
				i += 2 + end + 1
			}
			changed = true
			continue
		case c == '}' || c == ']':
			if j := lastNonSpace(out); j >= 0 && out[j] == ',' {
				out = append(out[:j], out[j+1:]...)
				changed = true
			}
		case c == '.' && i+1 < len(s) && isDigit(s[i+1]):
			if j := lastNonSpace(out); j < 0 || strings.IndexByte(":,[{-", out[j]) >= 0 {
				out = append(out, '0')
				changed = true
			}
		}
		out = append(out, c)
	}
	return string(out), changed
}

func lastNonSpace(b []byte) int {
	for i := len(b) - 1; i >= 0; i-- {
		switch b[i] {
		case ' ', '\n', '\r', '\t':
		default:
			return i
		}
	}
	return -1
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

var (
	htmlFence    = regexp.MustCompile("(?s)```(?:html)?\\s*\n(.*?)```")
	htmlDocument = regexp.MustCompile(`(?is)(<!doctype html.*?</html>|<html.*?</html>)`)
)

// ExtractHTML returns the HTML document embedded in raw model output. It
// prefers a fenced block, then a bare <html> document, and fails when
// neither is present.
func ExtractHTML(raw string) (string, error) {
	if m := htmlFence.FindStringSubmatch(raw); m != nil {
		if doc := htmlDocument.FindString(m[1]); doc != "" {
			return strings.TrimSpace(doc), nil
		}
	}
	if doc := htmlDocument.FindString(raw); doc != "" {
		return strings.TrimSpace(doc), nil
	}
	return "", fmt.Errorf("%w: no HTML document found in response", ErrInvalidOutput)
}
