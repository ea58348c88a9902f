package prompts

// PlanFormatInstructions describes the plan JSON the planner and refiner must
// return.
const PlanFormatInstructions = `Return ONE JSON object with exactly these fields:
{
  "title": string,
  "summary": string,
  "startDate": "YYYY-MM-DD",
  "endDate": "YYYY-MM-DD",
  "subjects": [{
    "name": string,
    "totalHours": number >= 0,
    "priority": "high" | "medium" | "low",
    "topics": [string, ...at least one],
    "deadlines": [{"topic": string, "dueDate": "YYYY-MM-DD", "type": "exam" | "assignment" | "project" | "quiz"}]
  }],
  "dailySchedules": [{
    "date": "YYYY-MM-DD",
    "dayOfWeek": string,
    "sessions": [{
      "startTime": "HH:MM",
      "endTime": "HH:MM",
      "subject": string,
      "topic": string,
      "activityType": "study" | "review" | "practice" | "break",
      "description": string
    }],
    "notes": string
  }],
  "milestones": [{"date": "YYYY-MM-DD", "title": string, "description": string, "subjects": [subject names]}],
  "weeklyHours": number >= 0,
  "tips": [string]
}
Milestone subjects must name subjects declared in "subjects".`

// Depth hints appended to the planner system prompt per difficulty tier.
const (
	DepthEasy = "Keep the plan compact: cover the requested period with a simple, regular rhythm."
	DepthHard = "This request is complex. Resolve conflicting deadlines explicitly, prioritise by due date and weight, " +
		"and add buffer days before every exam."
)
