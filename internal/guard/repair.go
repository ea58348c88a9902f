package guard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
)

// Repair rule names, in application order.
const (
	RuleWeekday           = "weekday"
	RuleScheduleOrder     = "schedule_order"
	RuleSessionOverlap    = "session_overlap"
	RuleMilestoneSubjects = "milestone_subjects"
	RuleClampHours        = "clamp_hours"
	RuleScheduleRange     = "schedule_range"
)

// Field names reported in OutputGuardResult.FixedFields.
const (
	FieldDayOfWeek         = "dailySchedules.dayOfWeek"
	FieldScheduleDate      = "dailySchedules.date"
	FieldSessions          = "dailySchedules.sessions"
	FieldMilestoneSubjects = "milestones.subjects"
	FieldTotalHours        = "subjects.totalHours"
	FieldWeeklyHours       = "weeklyHours"
	FieldDailySchedules    = "dailySchedules"
)

const lastMinuteOfDay = 23*60 + 59

// RepairConfig toggles rules and picks the locale of rewritten weekday labels.
type RepairConfig struct {
	Disabled map[string]bool
	Locale   domain.WeekdayLocale
}

// RuleOutcome is what one rule did to a plan.
type RuleOutcome struct {
	Fields   []string
	Warnings []string
	Errors   []string
}

func (o RuleOutcome) applied() bool { return len(o.Fields) > 0 }

// RepairRule is a named, pure transformation. Apply must not mutate its input;
// it returns a new plan when it changes anything.
type RepairRule struct {
	Name  string
	Apply func(p *domain.StudyPlan, cfg RepairConfig) (*domain.StudyPlan, RuleOutcome)
}

// RuleTrace records one rule's run for diagnostics.
type RuleTrace struct {
	Rule     string   `json:"rule"`
	Skipped  bool     `json:"skipped,omitempty"`
	Fields   []string `json:"fields,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// DefaultRules is the fixed repair sequence.
var DefaultRules = []RepairRule{
	{Name: RuleWeekday, Apply: repairWeekday},
	{Name: RuleScheduleOrder, Apply: repairScheduleOrder},
	{Name: RuleSessionOverlap, Apply: repairSessionOverlap},
	{Name: RuleMilestoneSubjects, Apply: repairMilestoneSubjects},
	{Name: RuleClampHours, Apply: repairClampHours},
	{Name: RuleScheduleRange, Apply: repairScheduleRange},
}

// RuleNames returns the names of DefaultRules in order.
func RuleNames() []string {
	names := make([]string, len(DefaultRules))
	for i, r := range DefaultRules {
		names[i] = r.Name
	}
	return names
}

func repairWeekday(p *domain.StudyPlan, cfg RepairConfig) (*domain.StudyPlan, RuleOutcome) {
	var out RuleOutcome
	next := p.Clone()
	for i, d := range next.DailySchedules {
		date, err := domain.ParseDate(d.Date)
		if err != nil || domain.WeekdayMatches(date, d.DayOfWeek) {
			continue
		}
		next.DailySchedules[i].DayOfWeek = domain.WeekdayLabel(date, cfg.Locale)
		out.Fields = []string{FieldDayOfWeek}
	}
	if !out.applied() {
		return p, out
	}
	return next, out
}

func repairScheduleOrder(p *domain.StudyPlan, _ RepairConfig) (*domain.StudyPlan, RuleOutcome) {
	var out RuleOutcome
	next := p.Clone()

	type keyed struct {
		day   domain.DailySchedule
		valid bool
		key   string
	}
	entries := make([]keyed, len(next.DailySchedules))
	for i, d := range next.DailySchedules {
		_, err := domain.ParseDate(d.Date)
		entries[i] = keyed{day: d, valid: err == nil, key: d.Date}
	}

	// YYYY-MM-DD sorts lexically; unparseable dates keep their relative order at the end.
	less := func(a, b int) bool {
		return lessEntry(entries[a].valid, entries[a].key, entries[b].valid, entries[b].key)
	}
	sorted := sort.SliceIsSorted(entries, less)
	sort.SliceStable(entries, less)

	merged := make([]domain.DailySchedule, 0, len(entries))
	for _, e := range entries {
		if n := len(merged); n > 0 && e.valid && merged[n-1].Date == e.day.Date {
			last := &merged[n-1]
			last.Sessions = append(last.Sessions, e.day.Sessions...)
			if e.day.Notes != "" {
				last.Notes = strings.TrimSpace(strings.Join([]string{last.Notes, e.day.Notes}, " "))
			}
			out.Warnings = append(out.Warnings, fmt.Sprintf("merged duplicate schedule for %s", e.day.Date))
			continue
		}
		merged = append(merged, e.day)
	}

	if sorted && len(out.Warnings) == 0 {
		return p, RuleOutcome{}
	}
	next.DailySchedules = merged
	out.Fields = []string{FieldScheduleDate}
	return next, out
}

func lessEntry(validA bool, keyA string, validB bool, keyB string) bool {
	if validA != validB {
		return validA
	}
	if !validA {
		return false
	}
	return keyA < keyB
}

type timedSession struct {
	session    domain.StudySession
	start, end int
}

func repairSessionOverlap(p *domain.StudyPlan, _ RepairConfig) (*domain.StudyPlan, RuleOutcome) {
	var out RuleOutcome
	next := p.Clone()

	for i, d := range next.DailySchedules {
		sessions, changed, err := shiftOverlaps(d.Sessions)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("dailySchedules[%d] (%s): %v", i, d.Date, err))
			continue
		}
		if changed {
			next.DailySchedules[i].Sessions = sessions
			out.Fields = []string{FieldSessions}
		}
	}
	if !out.applied() {
		return p, out
	}
	return next, out
}

// shiftOverlaps moves each session that starts before its predecessor ends to
// start at the predecessor's end, keeping its duration. A shift that runs past
// the following session's start or past midnight makes the day unrepairable.
// Days with unparseable times are left for validation to report.
func shiftOverlaps(in []domain.StudySession) ([]domain.StudySession, bool, error) {
	timed := make([]timedSession, 0, len(in))
	for _, s := range in {
		start, errS := domain.ParseClock(s.StartTime)
		end, errE := domain.ParseClock(s.EndTime)
		if errS != nil || errE != nil || start >= end {
			return in, false, nil
		}
		timed = append(timed, timedSession{session: s, start: start, end: end})
	}
	sort.SliceStable(timed, func(a, b int) bool { return timed[a].start < timed[b].start })

	changed := false
	for k := 1; k < len(timed); k++ {
		prevEnd := timed[k-1].end
		if timed[k].start >= prevEnd {
			continue
		}
		duration := timed[k].end - timed[k].start
		newStart, newEnd := prevEnd, prevEnd+duration
		if newEnd > lastMinuteOfDay {
			return in, false, fmt.Errorf("shifting %s-%s runs past the end of the day", timed[k].session.StartTime, timed[k].session.EndTime)
		}
		if k+1 < len(timed) && newEnd > timed[k+1].start {
			return in, false, fmt.Errorf("shifting %s-%s collides with the session at %s", timed[k].session.StartTime, timed[k].session.EndTime, timed[k+1].session.StartTime)
		}
		timed[k].start, timed[k].end = newStart, newEnd
		timed[k].session.StartTime = domain.FormatClock(newStart)
		timed[k].session.EndTime = domain.FormatClock(newEnd)
		changed = true
	}
	if !changed {
		return in, false, nil
	}

	out := make([]domain.StudySession, len(timed))
	for i, t := range timed {
		out[i] = t.session
	}
	return out, true, nil
}

func repairMilestoneSubjects(p *domain.StudyPlan, _ RepairConfig) (*domain.StudyPlan, RuleOutcome) {
	var out RuleOutcome
	next := p.Clone()
	names := next.SubjectNames()

	for i, m := range next.Milestones {
		kept := make([]string, 0, len(m.Subjects))
		for _, name := range m.Subjects {
			if names[name] {
				kept = append(kept, name)
				continue
			}
			out.Warnings = append(out.Warnings, fmt.Sprintf("milestones[%d]: dropped unknown subject %q", i, name))
		}
		if len(kept) != len(m.Subjects) {
			next.Milestones[i].Subjects = kept
			out.Fields = []string{FieldMilestoneSubjects}
		}
	}
	if !out.applied() {
		return p, out
	}
	return next, out
}

func repairClampHours(p *domain.StudyPlan, _ RepairConfig) (*domain.StudyPlan, RuleOutcome) {
	var out RuleOutcome
	next := p.Clone()

	clamped := false
	for i, s := range next.Subjects {
		if s.TotalHours == nil || *s.TotalHours < 0 {
			next.Subjects[i].TotalHours = domain.FloatPtr(0)
			clamped = true
		}
	}
	if clamped {
		out.Fields = append(out.Fields, FieldTotalHours)
	}
	if next.WeeklyHours == nil || *next.WeeklyHours < 0 {
		next.WeeklyHours = domain.FloatPtr(0)
		out.Fields = append(out.Fields, FieldWeeklyHours)
	}
	if !out.applied() {
		return p, out
	}
	return next, out
}

func repairScheduleRange(p *domain.StudyPlan, _ RepairConfig) (*domain.StudyPlan, RuleOutcome) {
	var out RuleOutcome
	start, errS := domain.ParseDate(p.StartDate)
	end, errE := domain.ParseDate(p.EndDate)
	if errS != nil || errE != nil || end.Before(start) {
		return p, out
	}

	next := p.Clone()
	kept := make([]domain.DailySchedule, 0, len(next.DailySchedules))
	for _, d := range next.DailySchedules {
		date, err := domain.ParseDate(d.Date)
		if err == nil && (date.Before(start) || date.After(end)) {
			out.Warnings = append(out.Warnings, fmt.Sprintf("dropped schedule for %s outside %s..%s", d.Date, p.StartDate, p.EndDate))
			continue
		}
		kept = append(kept, d)
	}
	if len(kept) == len(next.DailySchedules) {
		return p, RuleOutcome{}
	}
	next.DailySchedules = kept
	out.Fields = []string{FieldDailySchedules}
	return next, out
}
