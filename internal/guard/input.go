package guard

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMaxInputLength is the character limit applied when the caller passes
// a non-positive maxLength.
const DefaultMaxInputLength = 10000

// InputGuardResult is the verdict for one raw submission.
type InputGuardResult struct {
	IsSafe          bool     `json:"isSafe"`
	BlockedPatterns []string `json:"blockedPatterns"`
	SanitizedInput  string   `json:"sanitizedInput,omitempty"`
	Reason          string   `json:"reason,omitempty"`

	// SuspiciousKeywords are reported for logging only.
	SuspiciousKeywords []string `json:"-"`
}

// Sanitized reports whether low-severity patterns were stripped.
func (r InputGuardResult) Sanitized() bool {
	return r.IsSafe && len(r.BlockedPatterns) > 0
}

// InputGuard screens free text before it reaches the generator. It is
// stateless and safe for concurrent use.
type InputGuard struct {
	patterns []Pattern
	keywords []string
}

// InputOption customizes an InputGuard.
type InputOption func(*InputGuard)

// WithPatterns replaces the pattern table.
func WithPatterns(p []Pattern) InputOption {
	return func(g *InputGuard) { g.patterns = p }
}

// WithSuspiciousKeywords replaces the keyword list.
func WithSuspiciousKeywords(k []string) InputOption {
	return func(g *InputGuard) { g.keywords = k }
}

// NewInputGuard creates a guard with the default pattern table.
func NewInputGuard(opts ...InputOption) *InputGuard {
	g := &InputGuard{
		patterns: DefaultPatterns,
		keywords: DefaultSuspiciousKeywords,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check validates raw against the length limit and the pattern table.
func (g *InputGuard) Check(raw string, maxLength int) InputGuardResult {
	if maxLength <= 0 {
		maxLength = DefaultMaxInputLength
	}

	result := InputGuardResult{BlockedPatterns: []string{}}

	if strings.TrimSpace(raw) == "" {
		result.Reason = "input cannot be empty"
		return result
	}
	if utf8.RuneCountInString(raw) > maxLength {
		result.Reason = fmt.Sprintf("input too long (max %d characters)", maxLength)
		return result
	}

	normalized := Normalize(raw)
	if normalized == "" {
		result.Reason = "input cannot be empty"
		return result
	}

	var high, low []Pattern
	for _, p := range g.patterns {
		if !p.Match(normalized) {
			continue
		}
		result.BlockedPatterns = append(result.BlockedPatterns, p.ID)
		if p.Severity == SeverityHigh {
			high = append(high, p)
		} else {
			low = append(low, p)
		}
	}

	for _, kw := range g.keywords {
		if strings.Contains(normalized, strings.ToLower(kw)) {
			result.SuspiciousKeywords = append(result.SuspiciousKeywords, kw)
		}
	}

	if len(high) > 0 {
		result.Reason = "blocked: suspicious pattern detected"
		return result
	}

	sanitized := stripInvisible(raw)
	for _, p := range low {
		sanitized = p.Strip(sanitized)
	}
	if len(low) > 0 {
		sanitized = tidyLines(sanitized)
	}
	if sanitized == "" {
		result.Reason = "input is empty after sanitization"
		return result
	}
	if joined := g.matchHigh(Normalize(sanitized)); len(joined) > 0 {
		result.BlockedPatterns = append(result.BlockedPatterns, joined...)
		result.Reason = "blocked: suspicious pattern detected"
		return result
	}

	result.IsSafe = true
	result.SanitizedInput = sanitized
	return result
}

// matchHigh returns the ids of high-severity families matching normalized.
// Stripping low-severity markup can join the pieces of an injection, so the
// sanitized text goes through this once more.
func (g *InputGuard) matchHigh(normalized string) []string {
	var ids []string
	for _, p := range g.patterns {
		if p.Severity == SeverityHigh && p.Match(normalized) {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
