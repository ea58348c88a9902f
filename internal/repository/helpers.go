package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
)

const timeLayout = time.RFC3339Nano

// encodePlan serializes the plan body. Identity and timestamps live in their
// own columns or fields and are stripped from the document.
func encodePlan(p *domain.StudyPlan) ([]byte, error) {
	body := p.Clone()
	body.ID = ""
	body.CreatedAt = nil
	body.UpdatedAt = nil
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding plan: %w", err)
	}
	return data, nil
}

// decodePlan rebuilds a record from a stored document.
func decodePlan(id string, data []byte, html string, createdAt, updatedAt time.Time) (*domain.PlanRecord, error) {
	var p domain.StudyPlan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding plan %s: %w", id, err)
	}
	p.ID = id
	p.CreatedAt = &createdAt
	p.UpdatedAt = &updatedAt
	return &domain.PlanRecord{Plan: p, HTML: html, CreatedAt: createdAt, UpdatedAt: updatedAt}, nil
}

// setMilestone applies a completion toggle to rec in place.
func setMilestone(rec *domain.PlanRecord, index int, completed bool, at time.Time) error {
	if index < 0 || index >= len(rec.Plan.Milestones) {
		return fmt.Errorf("plan %s milestone %d: %w", rec.Plan.ID, index, ErrMilestoneNotFound)
	}
	rec.Plan.Milestones[index].Completed = completed
	at = at.UTC()
	rec.UpdatedAt = at
	rec.Plan.UpdatedAt = &at
	return nil
}

// cloneRecord deep-copies rec so callers never share plan state with a store.
func cloneRecord(rec *domain.PlanRecord) *domain.PlanRecord {
	out := *rec
	out.Plan = *rec.Plan.Clone()
	return &out
}

func cloneFeedback(fb *domain.Feedback) *domain.Feedback {
	out := *fb
	if fb.Rating != nil {
		r := *fb.Rating
		out.Rating = &r
	}
	return &out
}

// nullableIntToValue converts a *int to a value suitable for SQL storage.
// Returns nil (SQL NULL) if the pointer is nil, otherwise returns the int value.
func nullableIntToValue(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
