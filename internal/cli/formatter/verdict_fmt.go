package formatter

import (
	"fmt"
	"strings"

	"github.com/maisonhai3/AI-planning-for-students/internal/contract"
	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
	"github.com/maisonhai3/AI-planning-for-students/internal/guard"
)

// FormatScreening renders the input guard verdict and, for safe input, the
// router tier.
func FormatScreening(res guard.InputGuardResult, route *domain.RouterOutput) string {
	var b strings.Builder
	b.WriteString(Header("Input guard") + "\n")
	switch {
	case !res.IsSafe:
		b.WriteString(StyleRed.Render("✖ blocked") + "  " + Dim(res.Reason) + "\n")
	case res.Sanitized():
		b.WriteString(StyleYellow.Render("● sanitized") + "\n")
	default:
		b.WriteString(StyleGreen.Render("✔ safe") + "\n")
	}
	if len(res.BlockedPatterns) > 0 {
		b.WriteString(BulletList(StyleRed, "•", res.BlockedPatterns))
	}
	if len(res.SuspiciousKeywords) > 0 {
		b.WriteString(Dim("suspicious: "+strings.Join(res.SuspiciousKeywords, ", ")) + "\n")
	}

	if route != nil {
		b.WriteString("\n" + Header("Router") + "\n")
		b.WriteString(DifficultyBadge(route.Difficulty))
		if route.Degraded {
			b.WriteString("  " + StyleYellow.Render("(degraded)"))
		}
		b.WriteString("\n")
		if route.Reasoning != "" {
			b.WriteString(Dim(route.Reasoning) + "\n")
		}
	}
	return b.String()
}

// FormatRepair renders an output guard verdict with its rule trace.
func FormatRepair(res guard.OutputGuardResult) string {
	var b strings.Builder
	b.WriteString(Header("Output guard") + "\n")
	switch {
	case res.IsValid && len(res.FixedFields) > 0:
		b.WriteString(StyleYellow.Render("✔ valid after repair") + "\n")
	case res.IsValid:
		b.WriteString(StyleGreen.Render("✔ valid") + "\n")
	case !res.Decoded:
		b.WriteString(StyleRed.Render("✖ not decodable") + "\n")
	default:
		b.WriteString(StyleRed.Render("✖ unrepairable") + "\n")
	}
	if res.Extraction != "" {
		b.WriteString(Dim("decoded from "+string(res.Extraction)+" payload") + "\n")
	}

	if len(res.Trace) > 0 {
		rows := make([][]string, 0, len(res.Trace))
		for _, t := range res.Trace {
			rows = append(rows, []string{t.Rule, ruleStatus(t), Dim(strings.Join(t.Fields, ", "))})
		}
		b.WriteString("\n" + RenderTable([]string{"Rule", "Result", "Fields"}, rows))
	}
	if len(res.Warnings) > 0 {
		b.WriteString("\n" + StyleYellow.Render("Warnings") + "\n")
		b.WriteString(BulletList(StyleYellow, "!", res.Warnings))
	}
	if len(res.Errors) > 0 {
		b.WriteString("\n" + StyleRed.Render("Errors") + "\n")
		b.WriteString(BulletList(StyleRed, "✖", res.Errors))
	}
	return b.String()
}

func ruleStatus(t guard.RuleTrace) string {
	switch {
	case t.Skipped:
		return Dim("skipped")
	case len(t.Errors) > 0:
		return StyleRed.Render("failed")
	case len(t.Fields) > 0:
		return StyleYellow.Render("repaired")
	default:
		return StyleGreen.Render("ok")
	}
}

// FormatMeta renders how a generated plan was produced.
func FormatMeta(m contract.GenerateMeta) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s  %s  %s\n",
		DifficultyBadge(m.Difficulty),
		Dim(fmt.Sprintf("%d attempt(s) · %dms", m.Attempts, m.DurationMs)),
		Dim(m.PromptID),
	))
	if m.Refined {
		b.WriteString(StylePurple.Render("refined") + "\n")
	}
	if len(m.FixedFields) > 0 {
		b.WriteString(Dim("repaired: "+strings.Join(m.FixedFields, ", ")) + "\n")
	}
	b.WriteString(BulletList(StyleYellow, "!", m.Warnings))
	return b.String()
}

// FormatError renders a pipeline failure with its stable code.
func FormatError(pe *contract.PipelineError) string {
	return StyleRed.Render("✖ "+string(pe.Code)) + "  " + pe.Message
}
