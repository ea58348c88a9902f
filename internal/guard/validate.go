package guard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
)

// ValidatePlan checks every plan invariant and returns all violations found.
// It never mutates p.
func ValidatePlan(p *domain.StudyPlan) []error {
	var errs []error

	if strings.TrimSpace(p.Title) == "" {
		errs = append(errs, fmt.Errorf("title is required"))
	}

	start, end, rangeErrs := validateRange(p)
	errs = append(errs, rangeErrs...)
	rangeOK := len(rangeErrs) == 0

	names := make(map[string]bool)
	errs = append(errs, validateSubjects(p.Subjects, names)...)
	errs = append(errs, validateSchedules(p.DailySchedules, start, end, rangeOK)...)
	errs = append(errs, validateMilestones(p.Milestones, names)...)

	if p.WeeklyHours == nil {
		errs = append(errs, fmt.Errorf("weeklyHours is required"))
	} else if *p.WeeklyHours < 0 {
		errs = append(errs, fmt.Errorf("weeklyHours must be non-negative, got %g", *p.WeeklyHours))
	}

	return errs
}

func validateRange(p *domain.StudyPlan) (time.Time, time.Time, []error) {
	var errs []error
	start, startErr := domain.ParseDate(p.StartDate)
	if startErr != nil {
		errs = append(errs, fmt.Errorf("startDate: %v", startErr))
	}
	end, endErr := domain.ParseDate(p.EndDate)
	if endErr != nil {
		errs = append(errs, fmt.Errorf("endDate: %v", endErr))
	}
	if startErr == nil && endErr == nil && end.Before(start) {
		errs = append(errs, fmt.Errorf("endDate %q must not be before startDate %q", p.EndDate, p.StartDate))
	}
	return start, end, errs
}

func validateSubjects(subjects []domain.Subject, names map[string]bool) []error {
	var errs []error

	if len(subjects) == 0 {
		errs = append(errs, fmt.Errorf("subjects: at least one subject is required"))
	}

	for i, s := range subjects {
		prefix := fmt.Sprintf("subjects[%d]", i)

		if strings.TrimSpace(s.Name) == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else if names[s.Name] {
			errs = append(errs, fmt.Errorf("%s.name: duplicate subject %q", prefix, s.Name))
		} else {
			names[s.Name] = true
		}

		if s.TotalHours == nil {
			errs = append(errs, fmt.Errorf("%s.totalHours is required", prefix))
		} else if *s.TotalHours < 0 {
			errs = append(errs, fmt.Errorf("%s.totalHours must be non-negative, got %g", prefix, *s.TotalHours))
		}

		if !domain.ValidPriorities[s.Priority] {
			errs = append(errs, fmt.Errorf("%s.priority: invalid value %q", prefix, s.Priority))
		}

		if len(s.Topics) == 0 {
			errs = append(errs, fmt.Errorf("%s.topics: at least one topic is required", prefix))
		}
		for j, topic := range s.Topics {
			if strings.TrimSpace(topic) == "" {
				errs = append(errs, fmt.Errorf("%s.topics[%d] is empty", prefix, j))
			}
		}

		for j, d := range s.Deadlines {
			dp := fmt.Sprintf("%s.deadlines[%d]", prefix, j)
			if strings.TrimSpace(d.Topic) == "" {
				errs = append(errs, fmt.Errorf("%s.topic is required", dp))
			}
			if _, err := domain.ParseDate(d.DueDate); err != nil {
				errs = append(errs, fmt.Errorf("%s.dueDate: %v", dp, err))
			}
			if !domain.ValidDeadlineKinds[d.Type] {
				errs = append(errs, fmt.Errorf("%s.type: invalid value %q", dp, d.Type))
			}
		}
	}

	return errs
}

func validateSchedules(days []domain.DailySchedule, start, end time.Time, rangeOK bool) []error {
	var errs []error
	var prev time.Time
	havePrev := false

	for i, d := range days {
		prefix := fmt.Sprintf("dailySchedules[%d]", i)

		date, err := domain.ParseDate(d.Date)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s.date: %v", prefix, err))
			havePrev = false
		} else {
			if rangeOK && (date.Before(start) || date.After(end)) {
				errs = append(errs, fmt.Errorf("%s.date %q is outside the plan range", prefix, d.Date))
			}
			if havePrev && !date.After(prev) {
				errs = append(errs, fmt.Errorf("%s.date %q must be after the previous entry", prefix, d.Date))
			}
			if !domain.WeekdayMatches(date, d.DayOfWeek) {
				errs = append(errs, fmt.Errorf("%s.dayOfWeek %q does not match date %q", prefix, d.DayOfWeek, d.Date))
			}
			prev = date
			havePrev = true
		}

		errs = append(errs, validateSessions(prefix, d.Sessions)...)
	}

	return errs
}

type clockSpan struct {
	start, end int
	index      int
}

func validateSessions(prefix string, sessions []domain.StudySession) []error {
	var errs []error
	spans := make([]clockSpan, 0, len(sessions))

	for j, s := range sessions {
		sp := fmt.Sprintf("%s.sessions[%d]", prefix, j)

		if !domain.ValidActivityTypes[s.ActivityType] {
			errs = append(errs, fmt.Errorf("%s.activityType: invalid value %q", sp, s.ActivityType))
		}

		startMin, startErr := domain.ParseClock(s.StartTime)
		if startErr != nil {
			errs = append(errs, fmt.Errorf("%s.startTime: %v", sp, startErr))
		}
		endMin, endErr := domain.ParseClock(s.EndTime)
		if endErr != nil {
			errs = append(errs, fmt.Errorf("%s.endTime: %v", sp, endErr))
		}
		if startErr != nil || endErr != nil {
			continue
		}
		if startMin >= endMin {
			errs = append(errs, fmt.Errorf("%s: startTime %s must be before endTime %s", sp, s.StartTime, s.EndTime))
			continue
		}
		spans = append(spans, clockSpan{start: startMin, end: endMin, index: j})
	}

	sort.SliceStable(spans, func(a, b int) bool { return spans[a].start < spans[b].start })
	for k := 1; k < len(spans); k++ {
		if spans[k].start < spans[k-1].end {
			errs = append(errs, fmt.Errorf("%s.sessions[%d] overlaps sessions[%d]", prefix, spans[k].index, spans[k-1].index))
		}
	}

	return errs
}

func validateMilestones(milestones []domain.Milestone, names map[string]bool) []error {
	var errs []error
	for i, m := range milestones {
		prefix := fmt.Sprintf("milestones[%d]", i)
		if _, err := domain.ParseDate(m.Date); err != nil {
			errs = append(errs, fmt.Errorf("%s.date: %v", prefix, err))
		}
		if strings.TrimSpace(m.Title) == "" {
			errs = append(errs, fmt.Errorf("%s.title is required", prefix))
		}
		for j, name := range m.Subjects {
			if !names[name] {
				errs = append(errs, fmt.Errorf("%s.subjects[%d]: unknown subject %q", prefix, j, name))
			}
		}
	}
	return errs
}
