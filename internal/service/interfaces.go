package service

import (
	"context"
	"time"

	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
	"github.com/maisonhai3/AI-planning-for-students/internal/generation"
	"github.com/maisonhai3/AI-planning-for-students/internal/metrics"
	"go.uber.org/zap"
)

// Classifier assigns a difficulty tier to sanitized input.
type Classifier interface {
	Classify(ctx context.Context, input string) domain.RouterOutput
}

// PlanGenerator turns sanitized input into a guarded plan.
type PlanGenerator interface {
	Generate(ctx context.Context, input string, difficulty domain.Difficulty) (*generation.Result, error)
}

// HTMLRenderer renders a plan when the client did not supply HTML.
type HTMLRenderer interface {
	Render(p *domain.StudyPlan) (string, error)
}

type options struct {
	log       *zap.Logger
	metrics   *metrics.Metrics
	observers []UseCaseObserver
	now       func() time.Time
}

// Option customizes a service.
type Option func(*options)

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithObserver installs a use-case observer. The first non-nil observer wins.
func WithObserver(obs UseCaseObserver) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	return o
}
