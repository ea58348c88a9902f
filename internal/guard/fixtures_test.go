package guard

import (
	"encoding/json"
	"testing"

	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
	"github.com/stretchr/testify/require"
)

// validPlan covers Monday 2025-03-10 through Sunday 2025-03-16.
func validPlan() *domain.StudyPlan {
	return &domain.StudyPlan{
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
					{StartTime: "20:30", EndTime: "20:45", Subject: "", Topic: "Nghỉ", ActivityType: domain.ActivityBreak},
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
}

func planJSON(t *testing.T, p *domain.StudyPlan) string {
	t.Helper()
	b, err := json.Marshal(p)
	require.NoError(t, err)
	return string(b)
}
