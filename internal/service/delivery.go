package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maisonhai3/AI-planning-for-students/internal/contract"
	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
	"github.com/maisonhai3/AI-planning-for-students/internal/guard"
	"github.com/maisonhai3/AI-planning-for-students/internal/logging"
	"github.com/maisonhai3/AI-planning-for-students/internal/repository"
	"go.uber.org/zap"
)

// Saved is the result of persisting a plan.
type Saved struct {
	ID          string
	ShareURL    string
	SavedAt     time.Time
	FixedFields []string
}

// DeliveryService persists and serves guarded plans and records feedback.
type DeliveryService struct {
	plans     repository.PlanRepo
	feedback  repository.FeedbackRepo
	guard     *guard.OutputGuard
	renderer  HTMLRenderer
	shareBase string
	newID     func() string
	opts      options
	observer  UseCaseObserver
}

// NewDeliveryService builds the gateway. shareBase prefixes share URLs, e.g.
// "https://planner.example.com".
func NewDeliveryService(
	plans repository.PlanRepo,
	feedback repository.FeedbackRepo,
	og *guard.OutputGuard,
	renderer HTMLRenderer,
	shareBase string,
	opts ...Option,
) *DeliveryService {
	o := buildOptions(opts)
	return &DeliveryService{
		plans:     plans,
		feedback:  feedback,
		guard:     og,
		renderer:  renderer,
		shareBase: strings.TrimRight(shareBase, "/"),
		newID:     uuid.NewString,
		opts:      o,
		observer:  useCaseObserverOrNoop(o.observers),
	}
}

// ShareURL returns the public link of a plan.
func (s *DeliveryService) ShareURL(id string) string {
	return s.shareBase + "/plans/" + id
}

// Persist stores plan under a new id. Client-supplied plans are untrusted, so
// the Output Guard runs again before anything is written; an empty html is
// rendered from the guarded plan.
func (s *DeliveryService) Persist(ctx context.Context, plan *domain.StudyPlan, html string) (saved *Saved, err error) {
	start := s.opts.now()
	defer func() { s.observe(ctx, "delivery.persist", start, err, nil) }()

	if plan == nil {
		return nil, contract.NewError(contract.ErrInvalidRequest, "plan is required", nil)
	}
	log := logging.FromContext(ctx, s.opts.log)

	res := s.guard.Check(plan)
	if !res.IsValid {
		log.Warn("rejected plan on save", zap.Strings("errors", res.Errors))
		return nil, contract.NewError(contract.ErrInvalidPlan, "Kế hoạch không hợp lệ: "+strings.Join(res.Errors, "; "), nil)
	}
	guarded := res.ParsedPlan
	if len(res.FixedFields) > 0 {
		log.Info("plan repaired on save", zap.Strings("fixed_fields", res.FixedFields))
	}

	if strings.TrimSpace(html) == "" {
		html, err = s.renderer.Render(guarded)
		if err != nil {
			return nil, contract.NewError(contract.ErrInternalError, "", fmt.Errorf("render plan: %w", err))
		}
	}

	now := s.opts.now().UTC()
	guarded.ID = s.newID()
	guarded.CreatedAt = &now
	guarded.UpdatedAt = &now
	rec := &domain.PlanRecord{Plan: *guarded, HTML: html, CreatedAt: now, UpdatedAt: now}

	if err := s.plans.Create(ctx, rec); err != nil {
		return nil, contract.NewError(contract.ErrPersistenceFailed, "", fmt.Errorf("create plan: %w", err))
	}
	return &Saved{
		ID:          guarded.ID,
		ShareURL:    s.ShareURL(guarded.ID),
		SavedAt:     now,
		FixedFields: res.FixedFields,
	}, nil
}

// Retrieve returns a stored plan as written. Stored plans are not re-validated.
func (s *DeliveryService) Retrieve(ctx context.Context, id string) (rec *domain.PlanRecord, err error) {
	start := s.opts.now()
	defer func() { s.observe(ctx, "delivery.retrieve", start, err, nil) }()

	rec, err = s.plans.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("get plan", err)
	}
	return rec, nil
}

// SetMilestone toggles the completed flag of the milestone at index.
func (s *DeliveryService) SetMilestone(ctx context.Context, id string, index int, completed bool) (rec *domain.PlanRecord, err error) {
	start := s.opts.now()
	defer func() {
		s.observe(ctx, "delivery.set_milestone", start, err, map[string]any{"index": index, "completed": completed})
	}()

	rec, err = s.plans.SetMilestoneCompleted(ctx, id, index, completed, s.opts.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrMilestoneNotFound) {
			return nil, contract.NewError(contract.ErrNotFound, "Không tìm thấy mốc.", err)
		}
		return nil, storeError("set milestone", err)
	}
	return rec, nil
}

// RecordFeedback validates and stores one feedback event.
func (s *DeliveryService) RecordFeedback(ctx context.Context, req contract.FeedbackRequest) (fb *domain.Feedback, err error) {
	start := s.opts.now()
	defer func() {
		s.observe(ctx, "delivery.feedback", start, err, map[string]any{"action": string(req.Action)})
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	fb = &domain.Feedback{
		ID:        s.newID(),
		PlanID:    strings.TrimSpace(req.PlanID),
		Action:    req.Action,
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(req.Comment),
		CreatedAt: s.opts.now().UTC(),
	}
	if err := s.feedback.Create(ctx, fb); err != nil {
		return nil, storeError("record feedback", err)
	}
	s.opts.metrics.Feedback(string(req.Action))
	return fb, nil
}

// ListFeedback returns the feedback of a plan, oldest first.
func (s *DeliveryService) ListFeedback(ctx context.Context, planID string) ([]*domain.Feedback, error) {
	if _, err := s.plans.GetByID(ctx, planID); err != nil {
		return nil, storeError("get plan", err)
	}
	list, err := s.feedback.ListByPlan(ctx, planID)
	if err != nil {
		return nil, storeError("list feedback", err)
	}
	return list, nil
}

func (s *DeliveryService) observe(ctx context.Context, name string, start time.Time, err error, fields map[string]any) {
	event := UseCaseEvent{
		Name:      name,
		Duration:  s.opts.now().Sub(start),
		Success:   err == nil,
		Fields:    fields,
		StartedAt: start,
	}
	if err != nil {
		event.Err = err
		event.Code = string(contract.AsPipelineError(err).Code)
	}
	s.observer.ObserveUseCase(ctx, event)
}

func storeError(op string, err error) *contract.PipelineError {
	if errors.Is(err, repository.ErrNotFound) {
		return contract.NewError(contract.ErrNotFound, "", err)
	}
	return contract.NewError(contract.ErrPersistenceFailed, "", fmt.Errorf("%s: %w", op, err))
}
