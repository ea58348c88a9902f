package testutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
)

// Plan options
type PlanOption func(*domain.StudyPlan)

func WithTitle(title string) PlanOption {
	return func(p *domain.StudyPlan) {
		p.Title = title
	}
}

func WithRange(start, end string) PlanOption {
	return func(p *domain.StudyPlan) {
		p.StartDate = start
		p.EndDate = end
	}
}

func WithSchedule(days ...domain.DailySchedule) PlanOption {
	return func(p *domain.StudyPlan) {
		p.DailySchedules = days
	}
}

func WithMilestones(ms ...domain.Milestone) PlanOption {
	return func(p *domain.StudyPlan) {
		p.Milestones = ms
	}
}

func WithID(id string) PlanOption {
	return func(p *domain.StudyPlan) {
		p.ID = id
	}
}

// NewTestPlan returns a valid one-week plan, Monday 2025-03-10 through
// Sunday 2025-03-16, with subjects Toán and Lý.
func NewTestPlan(opts ...PlanOption) *domain.StudyPlan {
	p := &domain.StudyPlan{
		Title:     "Ôn thi giữa kỳ",
		Summary:   "Một tuần ôn Toán và Lý",
		StartDate: "2025-03-10",
		EndDate:   "2025-03-16",
		Subjects: []domain.Subject{
			{
				Name:       "Toán",
				TotalHours: domain.FloatPtr(6),
				Priority:   domain.PriorityHigh,
				Topics:     []string{"Đạo hàm", "Tích phân"},
				Deadlines: []domain.SubjectDeadline{
					{Topic: "Tích phân", DueDate: "2025-03-20", Type: domain.DeadlineExam},
				},
			},
			{
				Name:       "Lý",
				TotalHours: domain.FloatPtr(3),
				Priority:   domain.PriorityMedium,
				Topics:     []string{"Dao động"},
			},
		},
		DailySchedules: []domain.DailySchedule{
			{
				Date:      "2025-03-10",
				DayOfWeek: "Thứ Hai",
				Sessions: []domain.StudySession{
					{StartTime: "19:00", EndTime: "20:30", Subject: "Toán", Topic: "Đạo hàm", ActivityType: domain.ActivityStudy},
				},
			},
			{
				Date:      "2025-03-12",
				DayOfWeek: "Thứ Tư",
				Sessions: []domain.StudySession{
					{StartTime: "19:00", EndTime: "20:00", Subject: "Lý", Topic: "Dao động", ActivityType: domain.ActivityPractice},
				},
			},
		},
		Milestones: []domain.Milestone{
			{Date: "2025-03-16", Title: "Hoàn thành đạo hàm", Description: "Làm xong bài tập", Subjects: []string{"Toán"}},
		},
		WeeklyHours: domain.FloatPtr(9),
		Tips:        []string{"Ngủ đủ giấc"},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewTestRecord wraps a plan with a fresh id and timestamps, as the store
// would.
func NewTestRecord(opts ...PlanOption) *domain.PlanRecord {
	now := time.Now().UTC().Truncate(time.Second)
	p := NewTestPlan(append([]PlanOption{WithID(uuid.NewString())}, opts...)...)
	p.CreatedAt = &now
	p.UpdatedAt = &now
	return &domain.PlanRecord{
		Plan:      *p,
		HTML:      "<!DOCTYPE html><html><body><h1>" + p.Title + "</h1></body></html>",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PlanJSON marshals p as a generator would return it.
func PlanJSON(t testing.TB, p *domain.StudyPlan) string {
	t.Helper()
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal plan: %v", err)
	}
	return string(b)
}
