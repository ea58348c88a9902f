package service

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/maisonhai3/AI-planning-for-students/internal/contract"
	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
	"github.com/maisonhai3/AI-planning-for-students/internal/generation"
	"github.com/maisonhai3/AI-planning-for-students/internal/guard"
	"github.com/maisonhai3/AI-planning-for-students/internal/llm"
	"github.com/maisonhai3/AI-planning-for-students/internal/logging"
	"go.uber.org/zap"
)

// Screening is the outcome of the input guard and, for safe input, the router.
type Screening struct {
	Guard guard.InputGuardResult
	Route *domain.RouterOutput
}

// Generated is a guarded plan ready to be returned to the client. It carries
// no identity; ids are assigned by DeliveryService.Persist.
type Generated struct {
	*generation.Result
	Route domain.RouterOutput
}

// Meta summarizes how the plan was produced. Repair and quality warnings are
// merged.
func (g *Generated) Meta(elapsed time.Duration) contract.GenerateMeta {
	warnings := make([]string, 0, len(g.RepairWarnings)+len(g.QualityWarnings))
	warnings = append(append(warnings, g.RepairWarnings...), g.QualityWarnings...)
	return contract.GenerateMeta{
		Difficulty:      g.Difficulty,
		RouterReasoning: g.Route.Reasoning,
		Attempts:        g.Attempts,
		Refined:         g.Refined,
		FixedFields:     g.FixedFields,
		Warnings:        warnings,
		PromptID:        g.PromptID,
		DurationMs:      elapsed.Milliseconds(),
	}
}

// PipelineService runs Input Guard, Router and Generator for one request.
// It holds no per-request state and is safe for concurrent use.
type PipelineService struct {
	inputGuard *guard.InputGuard
	router     Classifier
	generator  PlanGenerator
	maxInput   int
	opts       options
	observer   UseCaseObserver
}

// NewPipelineService wires the pipeline stages. maxInput is the input length
// limit in characters; non-positive selects the guard default.
func NewPipelineService(ig *guard.InputGuard, r Classifier, g PlanGenerator, maxInput int, opts ...Option) *PipelineService {
	o := buildOptions(opts)
	return &PipelineService{
		inputGuard: ig,
		router:     r,
		generator:  g,
		maxInput:   maxInput,
		opts:       o,
		observer:   useCaseObserverOrNoop(o.observers),
	}
}

// Screen runs the input guard and, when the input is safe, the router.
func (s *PipelineService) Screen(ctx context.Context, input string) Screening {
	log := logging.FromContext(ctx, s.opts.log)
	verdict := s.checkInput(log, input)
	out := Screening{Guard: verdict}
	if verdict.IsSafe {
		route := s.classify(ctx, log, verdict.SanitizedInput)
		out.Route = &route
	}
	return out
}

// Generate produces a guarded plan from raw user input. Every failure is a
// *contract.PipelineError.
func (s *PipelineService) Generate(ctx context.Context, input string) (*Generated, error) {
	start := s.opts.now()
	log := logging.FromContext(ctx, s.opts.log)

	out, err := s.generate(ctx, log, input)

	code := "OK"
	fields := map[string]any{"input_runes": utf8.RuneCountInString(input)}
	var pe *contract.PipelineError
	if err != nil {
		pe = contract.AsPipelineError(err)
		code = string(pe.Code)
	} else {
		fields["difficulty"] = string(out.Difficulty)
		fields["attempts"] = out.Attempts
	}
	elapsed := s.opts.now().Sub(start)
	s.opts.metrics.Pipeline(code, elapsed)
	s.observer.ObserveUseCase(ctx, UseCaseEvent{
		Name:      "pipeline.generate",
		Duration:  elapsed,
		Success:   err == nil,
		Code:      code,
		Err:       err,
		Fields:    fields,
		StartedAt: start,
	})
	if err != nil {
		return nil, pe
	}
	return out, nil
}

func (s *PipelineService) generate(ctx context.Context, log *zap.Logger, input string) (*Generated, error) {
	verdict := s.checkInput(log, input)
	if !verdict.IsSafe {
		return nil, contract.NewError(contract.ErrInputRejected, verdict.Reason, nil)
	}

	route := s.classify(ctx, log, verdict.SanitizedInput)

	res, err := s.generator.Generate(ctx, verdict.SanitizedInput, route.Difficulty)
	if err != nil {
		return nil, s.generationError(log, err)
	}
	return &Generated{Result: res, Route: route}, nil
}

func (s *PipelineService) checkInput(log *zap.Logger, input string) guard.InputGuardResult {
	verdict := s.inputGuard.Check(input, s.maxInput)
	if len(verdict.SuspiciousKeywords) > 0 {
		log.Info("suspicious keywords in input", zap.Strings("keywords", verdict.SuspiciousKeywords))
	}
	switch {
	case !verdict.IsSafe:
		s.opts.metrics.InputGuard("blocked")
		log.Warn("input blocked",
			zap.String("error_code", string(contract.ErrInputRejected)),
			zap.Strings("patterns", verdict.BlockedPatterns),
			zap.String("reason", verdict.Reason),
			zap.Int("input_runes", utf8.RuneCountInString(input)))
	case verdict.Sanitized():
		s.opts.metrics.InputGuard("sanitized")
		log.Info("input sanitized", zap.Strings("patterns", verdict.BlockedPatterns))
	default:
		s.opts.metrics.InputGuard("clean")
	}
	return verdict
}

func (s *PipelineService) classify(ctx context.Context, log *zap.Logger, input string) domain.RouterOutput {
	route := s.router.Classify(ctx, input)
	if route.Degraded {
		log.Warn("classification degraded",
			zap.String("error_code", string(contract.ErrClassificationDegraded)),
			zap.String("difficulty", string(route.Difficulty)),
			zap.String("reasoning", route.Reasoning))
	}
	return route
}

// generationError maps a generator failure to its pipeline code.
func (s *PipelineService) generationError(log *zap.Logger, err error) *contract.PipelineError {
	var failure *generation.Failure
	if errors.As(err, &failure) {
		fields := []zap.Field{zap.Any("attempts", failure.Attempts)}
		if failure.Unrepairable {
			fields = append(fields, zap.Strings("repair_trace", failure.Trace))
		}
		log.Error("plan generation failed", fields...)
	}

	switch {
	case errors.Is(err, llm.ErrSafetyBlocked):
		return contract.NewError(contract.ErrSafetyBlocked, "", err)
	case errors.Is(err, generation.ErrOutputUnrepairable):
		return contract.NewError(contract.ErrOutputUnrepairable, "", err)
	default:
		return contract.NewError(contract.ErrGenerationFailed, "", err)
	}
}
