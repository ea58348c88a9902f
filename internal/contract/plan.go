package contract

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
)

const (
	MaxCommentLength = 1000
	MinRating        = 1
	MaxRating        = 5
)

type GenerateRequest struct {
	Input string `json:"input"`
}

func (r GenerateRequest) Validate() error {
	if strings.TrimSpace(r.Input) == "" {
		return NewError(ErrInvalidRequest, "input is required", nil)
	}
	return nil
}

// GenerateMeta describes how a plan was produced.
type GenerateMeta struct {
	Difficulty      domain.Difficulty `json:"difficulty"`
	RouterReasoning string            `json:"router_reasoning,omitempty"`
	Attempts        int               `json:"attempts"`
	Refined         bool              `json:"refined,omitempty"`
	FixedFields     []string          `json:"fixed_fields,omitempty"`
	Warnings        []string          `json:"warnings,omitempty"`
	PromptID        string            `json:"prompt_id,omitempty"`
	DurationMs      int64             `json:"duration_ms"`
}

type GenerateResponse struct {
	Success bool              `json:"success"`
	Plan    *domain.StudyPlan `json:"plan"`
	HTML    string            `json:"html"`
	Meta    *GenerateMeta     `json:"meta,omitempty"`
}

type SavePlanRequest struct {
	Plan *domain.StudyPlan `json:"plan"`
	HTML string            `json:"html"`
}

func (r SavePlanRequest) Validate() error {
	if r.Plan == nil {
		return NewError(ErrInvalidRequest, "plan is required", nil)
	}
	return nil
}

type SavePlanResponse struct {
	Success     bool      `json:"success"`
	ID          string    `json:"id"`
	ShareURL    string    `json:"share_url"`
	SavedAt     time.Time `json:"saved_at"`
	FixedFields []string  `json:"fixed_fields,omitempty"`
}

type GetPlanResponse struct {
	Success   bool              `json:"success"`
	ID        string            `json:"id"`
	Plan      *domain.StudyPlan `json:"plan"`
	HTML      string            `json:"html"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// MilestoneRequest toggles the completion flag of one milestone.
type MilestoneRequest struct {
	Completed *bool `json:"completed"`
}

func (r MilestoneRequest) Validate() error {
	if r.Completed == nil {
		return NewError(ErrInvalidRequest, "completed is required", nil)
	}
	return nil
}

type FeedbackRequest struct {
	PlanID  string                `json:"plan_id"`
	Action  domain.FeedbackAction `json:"action"`
	Rating  *int                  `json:"rating,omitempty"`
	Comment string                `json:"comment,omitempty"`
}

// Validate checks the request shape. Plan existence is checked by the store.
func (r FeedbackRequest) Validate() error {
	if strings.TrimSpace(r.PlanID) == "" || r.Action == "" {
		return NewError(ErrInvalidRequest, "plan_id and action are required", nil)
	}
	if !domain.ValidFeedbackActions[r.Action] {
		return NewError(ErrInvalidRequest, "action must be one of: save, regenerate, share, rate", nil)
	}
	if r.Rating != nil && (*r.Rating < MinRating || *r.Rating > MaxRating) {
		return NewError(ErrInvalidRequest, "rating must be between 1 and 5", nil)
	}
	if r.Action == domain.FeedbackRate && r.Rating == nil {
		return NewError(ErrInvalidRequest, "rating is required for action rate", nil)
	}
	if utf8.RuneCountInString(r.Comment) > MaxCommentLength {
		return NewError(ErrInvalidRequest, "comment must be at most 1000 characters", nil)
	}
	return nil
}

type FeedbackResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

type FeedbackItem struct {
	ID        string                `json:"id"`
	Action    domain.FeedbackAction `json:"action"`
	Rating    *int                  `json:"rating,omitempty"`
	Comment   string                `json:"comment,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

type FeedbackListResponse struct {
	Success  bool           `json:"success"`
	PlanID   string         `json:"plan_id"`
	Feedback []FeedbackItem `json:"feedback"`
}

// NewFeedbackItems converts stored feedback to its wire shape.
func NewFeedbackItems(list []*domain.Feedback) []FeedbackItem {
	items := make([]FeedbackItem, 0, len(list))
	for _, f := range list {
		items = append(items, FeedbackItem{
			ID:        f.ID,
			Action:    f.Action,
			Rating:    f.Rating,
			Comment:   f.Comment,
			CreatedAt: f.CreatedAt,
		})
	}
	return items
}

type HealthResponse struct {
	Status         string `json:"status"`
	Service        string `json:"service"`
	Version        string `json:"version"`
	Store          string `json:"store"`
	ModelAvailable bool   `json:"model_available"`
}
