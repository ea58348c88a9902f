// Package generation turns sanitized input into a guarded plan and its HTML.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
	"github.com/maisonhai3/AI-planning-for-students/internal/guard"
	"github.com/maisonhai3/AI-planning-for-students/internal/llm"
	"github.com/maisonhai3/AI-planning-for-students/internal/logging"
	"github.com/maisonhai3/AI-planning-for-students/internal/metrics"
	"github.com/maisonhai3/AI-planning-for-students/internal/prompts"
	"github.com/maisonhai3/AI-planning-for-students/internal/render"
	"go.uber.org/zap"
)

const maxReasonRunes = 600

// Result is a guarded plan plus its HTML rendering.
type Result struct {
	Plan       *domain.StudyPlan
	HTML       string
	Difficulty domain.Difficulty
	Attempts   int
	Refined    bool
	// FixedFields and RepairWarnings come from the Output Guard run that
	// produced Plan.
	FixedFields    []string
	RepairWarnings []string
	// QualityWarnings lists disagreements between Plan and HTML.
	QualityWarnings []string
	PromptID        string
}

// Generator runs the planner prompt with bounded, sequential retries. It
// never returns a plan that did not pass the Output Guard.
type Generator struct {
	cfg      Config
	client   llm.LLMClient
	guard    *guard.OutputGuard
	catalog  *prompts.Catalog
	renderer *render.Renderer
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	wait     func(ctx context.Context, d time.Duration) error
}

// Option customizes a Generator.
type Option func(*Generator)

// WithCatalog replaces the prompt catalog.
func WithCatalog(c *prompts.Catalog) Option { return func(g *Generator) { g.catalog = c } }

// WithRenderer replaces the HTML renderer.
func WithRenderer(r *render.Renderer) Option { return func(g *Generator) { g.renderer = r } }

// WithOutputGuard replaces the Output Guard applied to every payload.
func WithOutputGuard(og *guard.OutputGuard) Option { return func(g *Generator) { g.guard = og } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(g *Generator) { g.log = l } }

// WithMetrics sets the collectors.
func WithMetrics(m *metrics.Metrics) Option { return func(g *Generator) { g.metrics = m } }

// WithClock overrides time.Now for the prompt's current date.
func WithClock(now func() time.Time) Option { return func(g *Generator) { g.now = now } }

func withWait(wait func(context.Context, time.Duration) error) Option {
	return func(g *Generator) { g.wait = wait }
}

// New creates a Generator. cfg must be valid.
func New(cfg Config, client llm.LLMClient, opts ...Option) *Generator {
	g := &Generator{
		cfg:    cfg,
		client: client,
		log:    zap.NewNop(),
		now:    time.Now,
		wait:   sleepCtx,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.guard == nil {
		g.guard = guard.NewOutputGuard()
	}
	if g.catalog == nil {
		g.catalog = prompts.Default()
	}
	if g.renderer == nil {
		g.renderer = render.New(render.WithClock(g.now))
	}
	return g
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Generate produces a guarded plan for input at the given tier. A caller
// cancelling ctx abandons the in-flight attempt and returns ctx's error.
func (g *Generator) Generate(ctx context.Context, input string, difficulty domain.Difficulty) (*Result, error) {
	log := logging.FromContext(ctx, g.log)
	strat := g.cfg.strategyFor(difficulty)

	tmpl, err := g.catalog.Get(prompts.Planner)
	if err != nil {
		return nil, err
	}
	system, user, err := tmpl.Render(map[string]any{
		"user_input":          input,
		"current_date":        g.now().Format("2006-01-02"),
		"study_hours_per_day": strconv.FormatFloat(g.cfg.StudyHoursPerDay, 'f', -1, 64),
		"available_days":      g.cfg.AvailableDays,
		"format_instructions": prompts.PlanFormatInstructions,
		"depth":               strat.depth,
	})
	if err != nil {
		return nil, fmt.Errorf("planner prompt: %w", err)
	}

	res, attempts, err := g.attempt(ctx, log, strat, system, user)
	if err != nil {
		return nil, err
	}

	out := &Result{
		Plan:           res.ParsedPlan,
		Difficulty:     strat.difficulty,
		Attempts:       attempts,
		FixedFields:    res.FixedFields,
		RepairWarnings: res.Warnings,
		PromptID:       tmpl.ID(),
	}
	g.metrics.Repaired(res.FixedFields)
	if len(res.Warnings) > 0 {
		log.Info("plan repaired with warnings", zap.Strings("fixed_fields", res.FixedFields), zap.Strings("warnings", res.Warnings))
	}

	if strat.refine && len(res.FixedFields) > 0 {
		if refined, ok := g.refine(ctx, log, strat, input, out.Plan); ok {
			out.Plan = refined.ParsedPlan
			out.FixedFields = refined.FixedFields
			out.RepairWarnings = refined.Warnings
			out.Refined = true
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out.HTML = g.html(ctx, log, out.Plan)
	out.QualityWarnings = CheckConsistency(out.Plan, out.HTML)
	for _, w := range out.QualityWarnings {
		log.Warn("plan/html disagreement", zap.String("warning", w))
	}
	return out, nil
}

// attempt runs the planner call until the Output Guard accepts a payload or
// the attempt budget is spent.
func (g *Generator) attempt(ctx context.Context, log *zap.Logger, strat strategy, system, user string) (guard.OutputGuardResult, int, error) {
	failure := &Failure{}
	prompt := user

	for n := 1; n <= g.cfg.MaxAttempts; n++ {
		if n > 1 {
			if err := g.wait(ctx, g.cfg.backoff(n)); err != nil {
				return guard.OutputGuardResult{}, n - 1, fmt.Errorf("generation abandoned: %w", err)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.attemptTimeout())
		resp, err := g.client.Generate(attemptCtx, llm.GenerateRequest{
			Task:         llm.TaskPlan,
			SystemPrompt: system,
			UserPrompt:   prompt,
			Model:        strat.model,
			MaxTokens:    &strat.maxTokens,
			JSON:         true,
		})
		timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				g.metrics.GenerationAttempt("cancelled")
				return guard.OutputGuardResult{}, n, fmt.Errorf("generation abandoned: %w", ctx.Err())
			}
			code := llm.ErrorCode(err)
			if timedOut {
				code = llm.ErrorCode(llm.ErrTimeout)
				err = fmt.Errorf("%w: attempt exceeded %s", llm.ErrTimeout, g.cfg.attemptTimeout())
			}
			failure.Attempts = append(failure.Attempts, AttemptFailure{Attempt: n, Code: code, Reason: truncate(err.Error())})
			failure.Unrepairable = false
			failure.cause = err
			g.metrics.GenerationAttempt("error")
			log.Warn("generation attempt failed",
				zap.Int("attempt", n),
				zap.String("difficulty", string(strat.difficulty)),
				zap.String("error_code", code),
				zap.Error(err))

			if errors.Is(err, llm.ErrSafetyBlocked) {
				return guard.OutputGuardResult{}, n, failure
			}
			prompt = g.retryPrompt(user, err.Error())
			continue
		}

		res := g.guard.ValidateAndRepair(resp.Text)
		if res.IsValid {
			g.metrics.GenerationAttempt("ok")
			log.Debug("generation attempt accepted",
				zap.Int("attempt", n),
				zap.String("model", resp.Model),
				zap.Int64("latency_ms", resp.LatencyMs),
				zap.Strings("fixed_fields", res.FixedFields))
			return res, n, nil
		}

		reason := strings.Join(res.Errors, "; ")
		code := "INVALID_OUTPUT"
		if res.Decoded {
			code = "UNREPAIRABLE"
			failure.Unrepairable = true
			failure.Trace = traceLines(res)
			g.metrics.GenerationAttempt("unrepairable")
		} else {
			failure.Unrepairable = false
			g.metrics.GenerationAttempt("invalid")
		}
		failure.Attempts = append(failure.Attempts, AttemptFailure{Attempt: n, Code: code, Reason: truncate(reason)})
		failure.cause = nil
		log.Warn("generation attempt rejected by output guard",
			zap.Int("attempt", n),
			zap.String("difficulty", string(strat.difficulty)),
			zap.String("error_code", code),
			zap.Strings("errors", res.Errors),
			zap.Strings("trace", failure.Trace),
			logging.Preview("payload_preview", resp.Text, 200))
		prompt = g.retryPrompt(user, reason)
	}

	log.Error("generation exhausted attempts",
		zap.Int("attempts", len(failure.Attempts)),
		zap.Bool("unrepairable", failure.Unrepairable),
		zap.Strings("trace", failure.Trace))
	return guard.OutputGuardResult{}, len(failure.Attempts), failure
}

// retryPrompt appends the previous failure to the original user prompt.
func (g *Generator) retryPrompt(user, reason string) string {
	_, suffix, err := g.catalog.Render(prompts.Retry, map[string]any{"previous_error": truncate(reason)})
	if err != nil {
		g.log.Warn("retry prompt unavailable, retrying with original prompt", zap.Error(err))
		return user
	}
	return user + suffix
}

// refine asks the model to improve a plan once. Any failure keeps the
// original plan.
func (g *Generator) refine(ctx context.Context, log *zap.Logger, strat strategy, input string, plan *domain.StudyPlan) (guard.OutputGuardResult, bool) {
	data, err := json.Marshal(plan)
	if err != nil {
		return guard.OutputGuardResult{}, false
	}
	system, user, err := g.catalog.Render(prompts.Refiner, map[string]any{
		"user_input":          input,
		"plan_json":           string(data),
		"format_instructions": prompts.PlanFormatInstructions,
	})
	if err != nil {
		log.Warn("refiner prompt unavailable", zap.Error(err))
		return guard.OutputGuardResult{}, false
	}

	attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.attemptTimeout())
	defer cancel()
	resp, err := g.client.Generate(attemptCtx, llm.GenerateRequest{
		Task:         llm.TaskRefine,
		SystemPrompt: system,
		UserPrompt:   user,
		Model:        strat.model,
		MaxTokens:    &strat.maxTokens,
		JSON:         true,
	})
	if err != nil {
		log.Info("refinement skipped", zap.String("error_code", llm.ErrorCode(err)), zap.Error(err))
		return guard.OutputGuardResult{}, false
	}
	res := g.guard.ValidateAndRepair(resp.Text)
	if !res.IsValid {
		log.Info("refinement rejected by output guard", zap.Strings("errors", res.Errors))
		return guard.OutputGuardResult{}, false
	}
	if res.ParsedPlan.StartDate != plan.StartDate || res.ParsedPlan.EndDate != plan.EndDate {
		log.Info("refinement changed the date range, keeping draft")
		return guard.OutputGuardResult{}, false
	}
	return res, true
}

// html renders the plan. Model output that is unusable falls back to the
// server-side template.
func (g *Generator) html(ctx context.Context, log *zap.Logger, plan *domain.StudyPlan) string {
	if g.cfg.HTMLMode == HTMLModel {
		doc, err := g.modelHTML(ctx, plan)
		if err == nil {
			return doc
		}
		log.Warn("model html unusable, rendering template", zap.String("error_code", llm.ErrorCode(err)), zap.Error(err))
	}
	doc, err := g.renderer.Render(plan)
	if err != nil {
		// The template is embedded and parsed at startup; this only fails on
		// a programming error.
		log.Error("render plan", zap.Error(err))
		return ""
	}
	return doc
}

func (g *Generator) modelHTML(ctx context.Context, plan *domain.StudyPlan) (string, error) {
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return "", err
	}
	system, user, err := g.catalog.Render(prompts.Coder, map[string]any{
		"plan_json": string(data),
		"theme":     g.cfg.Theme,
		"layout":    g.cfg.Layout,
	})
	if err != nil {
		return "", err
	}
	attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.attemptTimeout())
	defer cancel()
	resp, err := g.client.Generate(attemptCtx, llm.GenerateRequest{
		Task:         llm.TaskRender,
		SystemPrompt: system,
		UserPrompt:   user,
	})
	if err != nil {
		return "", err
	}
	return llm.ExtractHTML(resp.Text)
}

func traceLines(res guard.OutputGuardResult) []string {
	var lines []string
	for _, t := range res.Trace {
		switch {
		case t.Skipped:
			lines = append(lines, t.Rule+": skipped")
		case len(t.Errors) > 0:
			lines = append(lines, t.Rule+": "+strings.Join(t.Errors, "; "))
		case len(t.Fields) > 0:
			lines = append(lines, t.Rule+": fixed "+strings.Join(t.Fields, ","))
		}
	}
	return lines
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxReasonRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxReasonRunes]) + "…"
}
