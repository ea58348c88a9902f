package guard

import (
	"strings"
	"testing"

	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
	"github.com/stretchr/testify/assert"
)

func errStrings(errs []error) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}

func containsMsg(errs []error, msg string) bool {
	for _, e := range errs {
		if strings.Contains(e.Error(), msg) {
			return true
		}
	}
	return false
}

func TestValidatePlan_Valid(t *testing.T) {
	assert.Empty(t, ValidatePlan(validPlan()))
}

func TestValidatePlan_EnglishWeekdayAccepted(t *testing.T) {
	p := validPlan()
	p.DailySchedules[0].DayOfWeek = "monday"
	assert.Empty(t, ValidatePlan(p))
}

func TestValidatePlan_Violations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *domain.StudyPlan)
		wantMsg string
	}{
		{"missing title", func(p *domain.StudyPlan) { p.Title = " " }, "title is required"},
		{"bad start", func(p *domain.StudyPlan) { p.StartDate = "2025-02-30" }, "startDate: invalid date"},
		{"end before start", func(p *domain.StudyPlan) { p.EndDate = "2025-03-01" }, "must not be before startDate"},
		{"no subjects", func(p *domain.StudyPlan) { p.Subjects = nil }, "at least one subject is required"},
		{"empty subject name", func(p *domain.StudyPlan) { p.Subjects[1].Name = "" }, "subjects[1].name is required"},
		{"duplicate subject", func(p *domain.StudyPlan) { p.Subjects[1].Name = "Toán" }, `duplicate subject "Toán"`},
		{"missing hours", func(p *domain.StudyPlan) { p.Subjects[0].TotalHours = nil }, "subjects[0].totalHours is required"},
		{"negative hours", func(p *domain.StudyPlan) { p.Subjects[0].TotalHours = domain.FloatPtr(-1) }, "must be non-negative"},
		{"bad priority", func(p *domain.StudyPlan) { p.Subjects[0].Priority = "urgent" }, `subjects[0].priority: invalid value "urgent"`},
		{"no topics", func(p *domain.StudyPlan) { p.Subjects[1].Topics = nil }, "subjects[1].topics: at least one topic is required"},
		{"bad deadline kind", func(p *domain.StudyPlan) { p.Subjects[0].Deadlines[0].Type = "essay" }, "deadlines[0].type"},
		{"bad deadline date", func(p *domain.StudyPlan) { p.Subjects[0].Deadlines[0].DueDate = "soon" }, "deadlines[0].dueDate"},
		{"schedule outside range", func(p *domain.StudyPlan) {
			p.DailySchedules[1].Date = "2025-03-17"
			p.DailySchedules[1].DayOfWeek = "Thứ Hai"
		}, "outside the plan range"},
		{"schedule out of order", func(p *domain.StudyPlan) {
			p.DailySchedules[0], p.DailySchedules[1] = p.DailySchedules[1], p.DailySchedules[0]
		}, "must be after the previous entry"},
		{"weekday mismatch", func(p *domain.StudyPlan) { p.DailySchedules[0].DayOfWeek = "Thứ Ba" }, "does not match date"},
		{"bad activity", func(p *domain.StudyPlan) { p.DailySchedules[0].Sessions[0].ActivityType = "nap" }, "activityType"},
		{"start after end", func(p *domain.StudyPlan) { p.DailySchedules[1].Sessions[0].EndTime = "18:00" }, "must be before endTime"},
		{"bad clock", func(p *domain.StudyPlan) { p.DailySchedules[1].Sessions[0].StartTime = "25:00" }, "startTime: invalid time"},
		{"overlap", func(p *domain.StudyPlan) { p.DailySchedules[0].Sessions[1].StartTime = "20:00" }, "dailySchedules[0].sessions[1] overlaps sessions[0]"},
		{"unknown milestone subject", func(p *domain.StudyPlan) { p.Milestones[0].Subjects = []string{"Hoá"} }, `unknown subject "Hoá"`},
		{"milestone without title", func(p *domain.StudyPlan) { p.Milestones[0].Title = "" }, "milestones[0].title is required"},
		{"missing weekly hours", func(p *domain.StudyPlan) { p.WeeklyHours = nil }, "weeklyHours is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPlan()
			tt.mutate(p)
			errs := ValidatePlan(p)
			assert.True(t, containsMsg(errs, tt.wantMsg), "expected %q in %v", tt.wantMsg, errStrings(errs))
		})
	}
}

func TestValidatePlan_DeadlineMayExceedRange(t *testing.T) {
	p := validPlan()
	p.Subjects[0].Deadlines[0].DueDate = "2026-01-01"
	assert.Empty(t, ValidatePlan(p))
}

func TestValidatePlan_ReportsAllViolations(t *testing.T) {
	p := validPlan()
	p.Title = ""
	p.WeeklyHours = nil
	p.Milestones[0].Subjects = []string{"Hoá"}
	assert.Len(t, ValidatePlan(p), 3)
}

func TestValidatePlan_DoesNotMutate(t *testing.T) {
	p := validPlan()
	p.DailySchedules[0].DayOfWeek = "Thứ Ba"
	before := p.Clone()
	ValidatePlan(p)
	assert.Equal(t, before, p)
}
