package domain

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ValidPriorities is the canonical set of accepted subject priorities.
var ValidPriorities = map[Priority]bool{
	PriorityHigh: true, PriorityMedium: true, PriorityLow: true,
}

type DeadlineKind string

const (
	DeadlineExam       DeadlineKind = "exam"
	DeadlineAssignment DeadlineKind = "assignment"
	DeadlineProject    DeadlineKind = "project"
	DeadlineQuiz       DeadlineKind = "quiz"
)

// ValidDeadlineKinds is the canonical set of accepted deadline kinds.
var ValidDeadlineKinds = map[DeadlineKind]bool{
	DeadlineExam: true, DeadlineAssignment: true, DeadlineProject: true, DeadlineQuiz: true,
}

type ActivityType string

const (
	ActivityStudy    ActivityType = "study"
	ActivityReview   ActivityType = "review"
	ActivityPractice ActivityType = "practice"
	ActivityBreak    ActivityType = "break"
)

// ValidActivityTypes is the canonical set of accepted session activity types.
var ValidActivityTypes = map[ActivityType]bool{
	ActivityStudy: true, ActivityReview: true, ActivityPractice: true, ActivityBreak: true,
}

// Difficulty is the router's coarse classification of an input.
type Difficulty string

const (
	DifficultyEasy Difficulty = "easy"
	DifficultyHard Difficulty = "hard"
)

// Valid reports whether d is a known tier.
func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyHard
}

type FeedbackAction string

const (
	FeedbackSave       FeedbackAction = "save"
	FeedbackRegenerate FeedbackAction = "regenerate"
	FeedbackShare      FeedbackAction = "share"
	FeedbackRate       FeedbackAction = "rate"
)

// ValidFeedbackActions is the canonical set of accepted feedback actions.
var ValidFeedbackActions = map[FeedbackAction]bool{
	FeedbackSave: true, FeedbackRegenerate: true, FeedbackShare: true, FeedbackRate: true,
}
