package domain

import "time"

// StudySession is one time block inside a day. Times are "HH:MM" (24h).
type StudySession struct {
	StartTime    string       `json:"startTime"`
	EndTime      string       `json:"endTime"`
	Subject      string       `json:"subject"`
	Topic        string       `json:"topic"`
	ActivityType ActivityType `json:"activityType"`
	Description  string       `json:"description,omitempty"`
}

// DailySchedule holds the sessions of a single calendar date.
type DailySchedule struct {
	Date      string         `json:"date"`
	DayOfWeek string         `json:"dayOfWeek"`
	Sessions  []StudySession `json:"sessions"`
	Notes     string         `json:"notes,omitempty"`
}

// SubjectDeadline binds a topic to a due date. The due date may fall outside
// the plan's range.
type SubjectDeadline struct {
	Topic   string       `json:"topic"`
	DueDate string       `json:"dueDate"`
	Type    DeadlineKind `json:"type"`
}

type Subject struct {
	Name       string            `json:"name"`
	TotalHours *float64          `json:"totalHours"`
	Priority   Priority          `json:"priority"`
	Topics     []string          `json:"topics"`
	Deadlines  []SubjectDeadline `json:"deadlines,omitempty"`
}

type Milestone struct {
	Date        string   `json:"date"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Subjects    []string `json:"subjects"`
	Completed   bool     `json:"completed,omitempty"`
}

// StudyPlan is the root artifact. ID is empty until the plan is persisted.
type StudyPlan struct {
	ID             string          `json:"id,omitempty"`
	Title          string          `json:"title"`
	Summary        string          `json:"summary"`
	StartDate      string          `json:"startDate"`
	EndDate        string          `json:"endDate"`
	Subjects       []Subject       `json:"subjects"`
	DailySchedules []DailySchedule `json:"dailySchedules"`
	Milestones     []Milestone     `json:"milestones"`
	WeeklyHours    *float64        `json:"weeklyHours"`
	Tips           []string        `json:"tips"`
	CreatedAt      *time.Time      `json:"createdAt,omitempty"`
	UpdatedAt      *time.Time      `json:"updatedAt,omitempty"`
}

// SubjectNames returns the set of subject names declared by the plan.
func (p *StudyPlan) SubjectNames() map[string]bool {
	names := make(map[string]bool, len(p.Subjects))
	for _, s := range p.Subjects {
		names[s.Name] = true
	}
	return names
}

// Hours returns the weekly hours figure, treating a missing value as zero.
func (p *StudyPlan) Hours() float64 {
	return Float64FromPtrWithDefault(0, p.WeeklyHours)
}

// Clone returns a deep copy. Pipeline stages never share a plan by reference.
func (p *StudyPlan) Clone() *StudyPlan {
	if p == nil {
		return nil
	}
	out := *p
	out.WeeklyHours = cloneFloat(p.WeeklyHours)
	out.CreatedAt = cloneTime(p.CreatedAt)
	out.UpdatedAt = cloneTime(p.UpdatedAt)
	out.Tips = cloneStrings(p.Tips)

	if p.Subjects != nil {
		out.Subjects = make([]Subject, len(p.Subjects))
		for i, s := range p.Subjects {
			s.TotalHours = cloneFloat(s.TotalHours)
			s.Topics = cloneStrings(s.Topics)
			if s.Deadlines != nil {
				s.Deadlines = append([]SubjectDeadline(nil), s.Deadlines...)
			}
			out.Subjects[i] = s
		}
	}
	if p.DailySchedules != nil {
		out.DailySchedules = make([]DailySchedule, len(p.DailySchedules))
		for i, d := range p.DailySchedules {
			if d.Sessions != nil {
				d.Sessions = append([]StudySession(nil), d.Sessions...)
			}
			out.DailySchedules[i] = d
		}
	}
	if p.Milestones != nil {
		out.Milestones = make([]Milestone, len(p.Milestones))
		for i, m := range p.Milestones {
			m.Subjects = cloneStrings(m.Subjects)
			out.Milestones[i] = m
		}
	}
	return &out
}

// RouterOutput is the router's immutable verdict.
type RouterOutput struct {
	Difficulty Difficulty `json:"difficulty"`
	Reasoning  string     `json:"reasoning"`
	Degraded   bool       `json:"-"`
}

// PlanRecord is a persisted plan together with its rendered HTML.
type PlanRecord struct {
	Plan      StudyPlan
	HTML      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Feedback struct {
	ID        string
	PlanID    string
	Action    FeedbackAction
	Rating    *int
	Comment   string
	CreatedAt time.Time
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
