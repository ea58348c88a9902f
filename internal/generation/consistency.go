package generation

import (
	"fmt"
	"strings"

	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
	"golang.org/x/net/html"
)

// CheckConsistency compares an HTML rendering with the plan it was made from.
// Plan subjects missing from the document and subject-card headings naming
// no plan subject are reported. The plan stays the source of truth.
func CheckConsistency(p *domain.StudyPlan, doc string) []string {
	if p == nil || strings.TrimSpace(doc) == "" {
		return nil
	}
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return []string{fmt.Sprintf("html could not be parsed: %v", err)}
	}

	var text strings.Builder
	var headings []string
	walk(root, func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			text.WriteString(n.Data)
			text.WriteByte(' ')
		case html.ElementNode:
			if n.Data == "h3" {
				headings = append(headings, strings.TrimSpace(textOf(n)))
			}
		}
	})
	body := strings.ToLower(text.String())

	var warnings []string
	names := make(map[string]bool, len(p.Subjects))
	for _, s := range p.Subjects {
		name := strings.ToLower(strings.TrimSpace(s.Name))
		names[name] = true
		if name != "" && !strings.Contains(body, name) {
			warnings = append(warnings, fmt.Sprintf("subject %q is missing from the html", s.Name))
		}
	}
	for _, h := range headings {
		if h != "" && !names[strings.ToLower(h)] && !mentionsAny(h, names) {
			warnings = append(warnings, fmt.Sprintf("html heading %q names no subject of the plan", h))
		}
	}
	return warnings
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func textOf(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return b.String()
}

func mentionsAny(heading string, names map[string]bool) bool {
	h := strings.ToLower(heading)
	for name := range names {
		if name != "" && strings.Contains(h, name) {
			return true
		}
	}
	return false
}
