// Package router assigns a difficulty tier to sanitized input.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
	"github.com/maisonhai3/AI-planning-for-students/internal/llm"
	"github.com/maisonhai3/AI-planning-for-students/internal/logging"
	"github.com/maisonhai3/AI-planning-for-students/internal/metrics"
	"github.com/maisonhai3/AI-planning-for-students/internal/prompts"
	"go.uber.org/zap"
)

// Mode selects how inputs are classified.
type Mode string

const (
	ModeHeuristic Mode = "heuristic"
	ModeModel     Mode = "model"
)

// Config controls the router.
type Config struct {
	Mode      Mode `koanf:"mode"`
	Threshold int  `koanf:"threshold"`
}

// DefaultConfig classifies locally with the default threshold.
func DefaultConfig() Config {
	return Config{Mode: ModeHeuristic, Threshold: DefaultThreshold}
}

// Validate rejects unknown modes.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeHeuristic, ModeModel, "":
		return nil
	}
	return fmt.Errorf("router.mode: unsupported value %q (want heuristic or model)", c.Mode)
}

// Router classifies inputs. It never returns an error: when the model call
// fails it falls back to the hard tier and marks the verdict degraded.
type Router struct {
	cfg     Config
	client  llm.LLMClient
	catalog *prompts.Catalog
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option customizes a Router.
type Option func(*Router)

// WithClient sets the model used in ModeModel.
func WithClient(c llm.LLMClient) Option { return func(r *Router) { r.client = c } }

// WithCatalog replaces the prompt catalog.
func WithCatalog(c *prompts.Catalog) Option { return func(r *Router) { r.catalog = c } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(r *Router) { r.log = l } }

// WithMetrics sets the collectors.
func WithMetrics(m *metrics.Metrics) Option { return func(r *Router) { r.metrics = m } }

// WithClock overrides time.Now, used to resolve day/month dates.
func WithClock(now func() time.Time) Option { return func(r *Router) { r.now = now } }

// New creates a Router.
func New(cfg Config, opts ...Option) *Router {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeHeuristic
	}
	r := &Router{cfg: cfg, log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.catalog == nil {
		r.catalog = prompts.Default()
	}
	return r
}

// Classify returns the tier for input.
func (r *Router) Classify(ctx context.Context, input string) domain.RouterOutput {
	var out domain.RouterOutput
	if r.cfg.Mode == ModeModel {
		out = r.classifyWithModel(ctx, input)
	} else {
		out = r.classifyHeuristic(input)
	}
	r.metrics.RouterDecision(string(out.Difficulty), out.Degraded)
	return out
}

func (r *Router) classifyHeuristic(input string) domain.RouterOutput {
	sig := Measure(input, r.now())
	d := domain.DifficultyEasy
	if sig.Score() >= r.cfg.Threshold {
		d = domain.DifficultyHard
	}
	return domain.RouterOutput{Difficulty: d, Reasoning: sig.Reasoning(r.cfg.Threshold)}
}

type modelVerdict struct {
	Difficulty domain.Difficulty `json:"difficulty"`
	Complexity domain.Difficulty `json:"complexity"`
	Confidence float64           `json:"confidence"`
	Reasoning  string            `json:"reasoning"`
	Reason     string            `json:"reason"`
}

func (v modelVerdict) tier() domain.Difficulty {
	tier := domain.CoalesceStr(string(v.Difficulty), string(v.Complexity))
	return domain.Difficulty(strings.ToLower(strings.TrimSpace(tier)))
}

func validVerdict(v modelVerdict) error {
	if !v.tier().Valid() {
		return fmt.Errorf("difficulty must be easy or hard, got %q", v.tier())
	}
	return nil
}

func (r *Router) classifyWithModel(ctx context.Context, input string) domain.RouterOutput {
	log := logging.FromContext(ctx, r.log)
	if r.client == nil {
		log.Warn("router model mode without client, failing open")
		return degraded("classifier not configured")
	}

	system, user, err := r.catalog.Render(prompts.Router, map[string]any{"user_input": input})
	if err != nil {
		log.Error("router prompt", zap.Error(err))
		return degraded("classifier prompt unavailable")
	}

	resp, err := r.client.Generate(ctx, llm.GenerateRequest{
		Task:         llm.TaskRoute,
		SystemPrompt: system,
		UserPrompt:   user,
		JSON:         true,
	})
	if err != nil {
		log.Warn("router classification failed, failing open", zap.String("error_code", llm.ErrorCode(err)), zap.Error(err))
		return degraded("classifier unavailable")
	}

	v, err := llm.ExtractJSON(resp.Text, validVerdict)
	if err != nil {
		log.Warn("router returned unusable verdict, failing open", zap.Error(err))
		return degraded("classifier answer unusable")
	}
	return domain.RouterOutput{
		Difficulty: v.tier(),
		Reasoning:  domain.CoalesceStr(v.Reasoning, v.Reason),
	}
}

func degraded(why string) domain.RouterOutput {
	return domain.RouterOutput{
		Difficulty: domain.DifficultyHard,
		Reasoning:  why + "; defaulting to hard",
		Degraded:   true,
	}
}
