package repository

import (
	"context"
	"errors"
	"time"

	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
)

var (
	// ErrNotFound is returned when a plan (or the plan a feedback entry
	// refers to) does not exist.
	ErrNotFound = errors.New("not found")
	// ErrMilestoneNotFound is returned for a milestone index outside the plan.
	ErrMilestoneNotFound = errors.New("milestone not found")
	// ErrConflict is returned when a plan id is already taken.
	ErrConflict = errors.New("already exists")
)

// PlanRepo stores validated plans. Stored plans are trusted on read and are
// never re-validated.
type PlanRepo interface {
	// Create writes rec atomically. rec.Plan.ID must be set.
	Create(ctx context.Context, rec *domain.PlanRecord) error
	GetByID(ctx context.Context, id string) (*domain.PlanRecord, error)
	// SetMilestoneCompleted flips one milestone's completed flag and returns
	// the updated record.
	SetMilestoneCompleted(ctx context.Context, id string, index int, completed bool, at time.Time) (*domain.PlanRecord, error)
}

type FeedbackRepo interface {
	// Create stores fb. It fails with ErrNotFound when fb.PlanID is unknown.
	Create(ctx context.Context, fb *domain.Feedback) error
	ListByPlan(ctx context.Context, planID string) ([]*domain.Feedback, error)
}
