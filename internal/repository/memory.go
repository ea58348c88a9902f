package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
)

// MemoryStore keeps plans and feedback in process memory. It implements both
// PlanRepo and FeedbackRepo through Plans and Feedback.
type MemoryStore struct {
	mu       sync.RWMutex
	plans    map[string]*domain.PlanRecord
	feedback map[string][]*domain.Feedback
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans:    make(map[string]*domain.PlanRecord),
		feedback: make(map[string][]*domain.Feedback),
	}
}

// Plans returns the PlanRepo view of the store.
func (s *MemoryStore) Plans() PlanRepo { return memoryPlans{s} }

// Feedback returns the FeedbackRepo view of the store.
func (s *MemoryStore) Feedback() FeedbackRepo { return memoryFeedback{s} }

type memoryPlans struct{ s *MemoryStore }

func (m memoryPlans) Create(_ context.Context, rec *domain.PlanRecord) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.plans[rec.Plan.ID]; ok {
		return fmt.Errorf("plan %s: %w", rec.Plan.ID, ErrConflict)
	}
	m.s.plans[rec.Plan.ID] = cloneRecord(rec)
	return nil
}

func (m memoryPlans) GetByID(_ context.Context, id string) (*domain.PlanRecord, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	rec, ok := m.s.plans[id]
	if !ok {
		return nil, fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	return cloneRecord(rec), nil
}

func (m memoryPlans) SetMilestoneCompleted(_ context.Context, id string, index int, completed bool, at time.Time) (*domain.PlanRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	rec, ok := m.s.plans[id]
	if !ok {
		return nil, fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	next := cloneRecord(rec)
	if err := setMilestone(next, index, completed, at); err != nil {
		return nil, err
	}
	m.s.plans[id] = next
	return cloneRecord(next), nil
}

type memoryFeedback struct{ s *MemoryStore }

func (m memoryFeedback) Create(_ context.Context, fb *domain.Feedback) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.plans[fb.PlanID]; !ok {
		return fmt.Errorf("plan %s: %w", fb.PlanID, ErrNotFound)
	}
	m.s.feedback[fb.PlanID] = append(m.s.feedback[fb.PlanID], cloneFeedback(fb))
	return nil
}

func (m memoryFeedback) ListByPlan(_ context.Context, planID string) ([]*domain.Feedback, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	out := make([]*domain.Feedback, 0, len(m.s.feedback[planID]))
	for _, fb := range m.s.feedback[planID] {
		out = append(out, cloneFeedback(fb))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
