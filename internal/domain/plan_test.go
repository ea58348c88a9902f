package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func samplePlan() *StudyPlan {
	return &StudyPlan{
		Title:     "Ôn thi",
		StartDate: "2025-03-10",
		EndDate:   "2025-03-12",
		Subjects: []Subject{{
			Name:       "Toán",
			TotalHours: FloatPtr(6),
			Priority:   PriorityHigh,
			Topics:     []string{"Đạo hàm"},
			Deadlines:  []SubjectDeadline{{Topic: "Đạo hàm", DueDate: "2025-03-12", Type: DeadlineExam}},
		}},
		DailySchedules: []DailySchedule{{
			Date:      "2025-03-10",
			DayOfWeek: "Thứ Hai",
			Sessions:  []StudySession{{StartTime: "08:00", EndTime: "09:00", Subject: "Toán", Topic: "Đạo hàm", ActivityType: ActivityStudy}},
		}},
		Milestones:  []Milestone{{Date: "2025-03-12", Title: "Thi", Subjects: []string{"Toán"}}},
		WeeklyHours: FloatPtr(6),
		Tips:        []string{"Ngủ đủ giấc"},
	}
}

func TestStudyPlan_CloneIsIndependent(t *testing.T) {
	orig := samplePlan()
	cp := orig.Clone()
	assert.Equal(t, orig, cp)

	cp.Subjects[0].Topics[0] = "changed"
	*cp.Subjects[0].TotalHours = 99
	cp.DailySchedules[0].Sessions[0].StartTime = "10:00"
	cp.Milestones[0].Subjects[0] = "Lý"
	*cp.WeeklyHours = 1
	cp.Tips[0] = "x"

	assert.Equal(t, "Đạo hàm", orig.Subjects[0].Topics[0])
	assert.Equal(t, 6.0, *orig.Subjects[0].TotalHours)
	assert.Equal(t, "08:00", orig.DailySchedules[0].Sessions[0].StartTime)
	assert.Equal(t, "Toán", orig.Milestones[0].Subjects[0])
	assert.Equal(t, 6.0, *orig.WeeklyHours)
	assert.Equal(t, "Ngủ đủ giấc", orig.Tips[0])
}

func TestStudyPlan_CloneNil(t *testing.T) {
	var p *StudyPlan
	assert.Nil(t, p.Clone())
}

func TestStudyPlan_Hours(t *testing.T) {
	p := samplePlan()
	assert.Equal(t, 6.0, p.Hours())
	p.WeeklyHours = nil
	assert.Equal(t, 0.0, p.Hours())
}

func TestDifficulty_Valid(t *testing.T) {
	assert.True(t, DifficultyEasy.Valid())
	assert.True(t, DifficultyHard.Valid())
	assert.False(t, Difficulty("medium").Valid())
}
