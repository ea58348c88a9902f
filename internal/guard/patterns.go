package guard

import "regexp"

// Severity decides whether a matched pattern blocks the input or is stripped.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityHigh
)

func (s Severity) String() string {
	if s == SeverityHigh {
		return "high"
	}
	return "low"
}

// Pattern is a named family of expressions. Matching runs against normalized
// text, so expressions are written lower-case with \s+ between words.
type Pattern struct {
	ID       string
	Severity Severity
	exprs    []*regexp.Regexp
}

// NewPattern compiles a pattern family. It panics on invalid expressions and is
// meant for package-level tables.
func NewPattern(id string, sev Severity, exprs ...string) Pattern {
	p := Pattern{ID: id, Severity: sev}
	for _, e := range exprs {
		p.exprs = append(p.exprs, regexp.MustCompile(`(?is)`+e))
	}
	return p
}

// Match reports whether any expression of the family matches s.
func (p Pattern) Match(s string) bool {
	for _, re := range p.exprs {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// Strip removes every occurrence of the family from s.
func (p Pattern) Strip(s string) string {
	for _, re := range p.exprs {
		s = re.ReplaceAllString(s, " ")
	}
	return s
}

// DefaultPatterns is the built-in pattern table. High-severity families halt
// the pipeline; low-severity families are stripped from the input.
var DefaultPatterns = []Pattern{
	NewPattern("prompt.ignore_instructions", SeverityHigh,
		`\bignore\s+(?:all\s+|any\s+|the\s+|your\s+)*(?:previous|prior|above|earlier|preceding|system)\s+(?:instructions?|prompts?|rules?|messages?)`,
		`\bignore\s+all\s+(?:instructions?|rules?)`,
		`bỏ\s+qua\s+(?:tất\s+cả\s+)?(?:các\s+|mọi\s+)?(?:hướng\s+dẫn|chỉ\s+dẫn|yêu\s+cầu)\s+(?:trước|ở\s+trên|phía\s+trên)`,
	),
	NewPattern("prompt.disregard", SeverityHigh,
		`\bdisregard\s+(?:all\s+|any\s+|the\s+|your\s+)*(?:previous|prior|above|earlier|instructions?|rules?)`,
	),
	NewPattern("prompt.forget", SeverityHigh,
		`\bforget\s+(?:everything|all)\s+(?:above|before|you\s+(?:were|have\s+been)\s+told)`,
		`\bforget\s+(?:your|the|all|previous)\s+(?:previous\s+|prior\s+)?(?:instructions?|rules?|prompts?)`,
	),
	NewPattern("prompt.role_override", SeverityHigh,
		`\byou\s+are\s+now\s+(?:a|an|the|my|in)\b`,
		`\bfrom\s+now\s+on,?\s+you\s+(?:are|will\s+act|must\s+act)\b`,
		`bây\s+giờ\s+bạn\s+là`,
	),
	NewPattern("prompt.new_instructions", SeverityHigh,
		`\bnew\s+instructions?\s*:`,
	),
	NewPattern("prompt.system_prompt", SeverityHigh,
		`\bsystem\s*prompt\s*:`,
		`\[\s*(?:system|inst)\s*\]`,
		`<\|?\s*(?:system|im_start|im_end)\s*\|?>`,
	),
	NewPattern("prompt.exfiltrate_config", SeverityHigh,
		`\b(?:reveal|show|print|display|repeat|output|dump|tell\s+me)\s+(?:me\s+)?(?:your|the)\s+(?:system\s+prompt|(?:initial\s+|hidden\s+|original\s+|system\s+)?instructions|configuration|config|api\s*[_-]?keys?|environment\s+variables|secrets?)`,
	),
	NewPattern("code.script_tag", SeverityHigh, `<\s*/?\s*script\b[^>]*>`),
	NewPattern("code.iframe_tag", SeverityHigh, `<\s*(?:iframe|object|embed)\b[^>]*>`),
	NewPattern("code.javascript_uri", SeverityHigh, `\bjavascript\s*:`),
	NewPattern("code.event_handler", SeverityHigh, `\bon(?:load|error|click|mouseover|mouseenter|focus|blur|submit|change|input|keydown|keyup)\s*=`),
	NewPattern("code.eval", SeverityHigh, `\beval\s*\(`),
	NewPattern("path.traversal", SeverityHigh, `\.\./`, `\.\.\\`),
	NewPattern("path.sensitive_file", SeverityHigh, `/etc/(?:passwd|shadow|hosts)\b`, `/bin/(?:sh|bash|zsh)\b`),
	NewPattern("sql.injection", SeverityHigh,
		`\bdrop\s+(?:table|database)\b`,
		`\bunion\s+(?:all\s+)?select\b`,
		`;\s*(?:delete|insert|update|alter|truncate)\s`,
		`'\s*or\s+'?1'?\s*=\s*'?1`,
	),

	NewPattern("prompt.act_as", SeverityLow, `\bact\s+as\s+(?:if\s+you\s+(?:are|were)\b|an?\b)`),
	NewPattern("prompt.pretend", SeverityLow, `\bpretend\s+(?:to\s+be|you(?:'re|\s+are))\b`),
	NewPattern("prompt.roleplay", SeverityLow, `\brole\s*-?\s*play\s+as\b`),
	NewPattern("markup.html_comment", SeverityLow, `<!--.*?-->`),
	NewPattern("markup.code_fence", SeverityLow, "```+"),
	NewPattern("markup.template_braces", SeverityLow, `\{\{|\}\}`),
}

// DefaultSuspiciousKeywords are logged for abuse monitoring but never block.
var DefaultSuspiciousKeywords = []string{
	"password", "secret", "api_key", "token",
	"admin", "root", "sudo", "hack", "exploit",
	"inject", "bypass", "override",
}
