package formatter

import (
	"fmt"
	"strings"

	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
)

// FormatPlan renders a study plan as a terminal report.
func FormatPlan(p *domain.StudyPlan) string {
	var b strings.Builder

	title := Bold(p.Title)
	if p.ID != "" {
		title += "  " + TruncID(p.ID)
	}
	b.WriteString(title + "\n")
	b.WriteString(Dim(fmt.Sprintf("%s → %s · %s/week", p.StartDate, p.EndDate, FormatHours(p.WeeklyHours))))
	b.WriteString("\n")
	if p.Summary != "" {
		b.WriteString("\n" + StyleFg.Render(p.Summary) + "\n")
	}

	if len(p.Subjects) > 0 {
		b.WriteString("\n" + Header("Subjects") + "\n")
		rows := make([][]string, 0, len(p.Subjects))
		for _, s := range p.Subjects {
			rows = append(rows, []string{
				StyleFg.Render(s.Name),
				PriorityBadge(s.Priority),
				FormatHours(s.TotalHours),
				Dim(strings.Join(s.Topics, ", ")),
			})
		}
		b.WriteString(RenderTable([]string{"Subject", "Priority", "Hours", "Topics"}, rows))
	}

	if len(p.DailySchedules) > 0 {
		b.WriteString("\n" + Header("Schedule") + "\n")
		for _, day := range p.DailySchedules {
			b.WriteString(fmt.Sprintf("%s %s\n", StyleBlue.Render(day.Date), Dim(day.DayOfWeek)))
			for _, s := range day.Sessions {
				line := fmt.Sprintf("  %s-%s  %s  %s", s.StartTime, s.EndTime, StyleFg.Render(s.Subject), ActivityLabel(s.ActivityType))
				if s.Topic != "" {
					line += Dim(" · " + s.Topic)
				}
				b.WriteString(line + "\n")
			}
			if day.Notes != "" {
				b.WriteString("  " + Dim(day.Notes) + "\n")
			}
		}
	}

	if len(p.Milestones) > 0 {
		b.WriteString("\n" + Header("Milestones") + "\n")
		for i, m := range p.Milestones {
			b.WriteString(fmt.Sprintf("%s %s %s  %s\n", CheckMark(m.Completed), Dim(fmt.Sprintf("%d.", i)), StyleBlue.Render(m.Date), m.Title))
			if len(m.Subjects) > 0 {
				b.WriteString("    " + Dim(strings.Join(m.Subjects, ", ")) + "\n")
			}
		}
		b.WriteString(RenderProgress(MilestoneProgress(p.Milestones), 20) + "\n")
	}

	if len(p.Tips) > 0 {
		b.WriteString("\n" + Header("Tips") + "\n")
		b.WriteString(BulletList(StyleYellow, "•", p.Tips))
	}
	return b.String()
}
