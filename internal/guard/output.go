package guard

import (
	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
	"github.com/maisonhai3/AI-planning-for-students/internal/llm"
)

// OutputGuardResult is the verdict on one generator payload. ParsedPlan is set
// only when IsValid is true.
type OutputGuardResult struct {
	IsValid     bool              `json:"isValid"`
	ParsedPlan  *domain.StudyPlan `json:"parsedPlan,omitempty"`
	FixedFields []string          `json:"fixedFields"`
	Errors      []string          `json:"errors"`
	Warnings    []string          `json:"warnings,omitempty"`
	Trace       []RuleTrace       `json:"trace,omitempty"`

	// Extraction is where in the payload the plan object was found.
	Extraction llm.Stage `json:"extraction,omitempty"`

	// Decoded reports whether the payload was structurally parseable.
	Decoded bool `json:"-"`
}

// WarnCleanedJSON is reported when the payload only parsed after comments,
// trailing commas or bare decimals were rewritten.
const WarnCleanedJSON = "payload needed JSON clean-up before it parsed"

// OutputGuard validates generator payloads and applies the repair rules.
// It holds no mutable state and is safe for concurrent use.
type OutputGuard struct {
	rules []RepairRule
	cfg   RepairConfig
}

// OutputOption customizes an OutputGuard.
type OutputOption func(*OutputGuard)

// WithDisabledRules turns off the named repair rules.
func WithDisabledRules(names ...string) OutputOption {
	return func(g *OutputGuard) {
		if g.cfg.Disabled == nil {
			g.cfg.Disabled = make(map[string]bool, len(names))
		}
		for _, n := range names {
			g.cfg.Disabled[n] = true
		}
	}
}

// WithLocale sets the language of rewritten weekday labels.
func WithLocale(l domain.WeekdayLocale) OutputOption {
	return func(g *OutputGuard) { g.cfg.Locale = l }
}

// WithRules replaces the repair sequence.
func WithRules(rules []RepairRule) OutputOption {
	return func(g *OutputGuard) { g.rules = rules }
}

// NewOutputGuard creates a guard running DefaultRules with Vietnamese labels.
func NewOutputGuard(opts ...OutputOption) *OutputGuard {
	g := &OutputGuard{
		rules: DefaultRules,
		cfg:   RepairConfig{Locale: domain.LocaleVietnamese},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ValidateAndRepair decodes raw generator output into a plan, repairs what
// the rules can fix and re-validates the result once.
func (g *OutputGuard) ValidateAndRepair(raw string) OutputGuardResult {
	dec, err := llm.DecodeJSON[domain.StudyPlan](raw, nil)
	if err != nil {
		return OutputGuardResult{
			FixedFields: []string{},
			Errors:      []string{err.Error()},
		}
	}
	plan := dec.Value
	// Identity belongs to the store, never to the generator.
	plan.ID = ""
	plan.CreatedAt = nil
	plan.UpdatedAt = nil

	res := g.repair(&plan)
	res.Extraction = dec.Stage
	if dec.Cleaned {
		res.Warnings = append([]string{WarnCleanedJSON}, res.Warnings...)
	}
	return res
}

// Check runs repair and validation on an already decoded plan. p is not
// modified.
func (g *OutputGuard) Check(p *domain.StudyPlan) OutputGuardResult {
	if p == nil {
		return OutputGuardResult{FixedFields: []string{}, Errors: []string{"plan is required"}}
	}
	return g.repair(p.Clone())
}

func (g *OutputGuard) repair(p *domain.StudyPlan) OutputGuardResult {
	res := OutputGuardResult{
		Decoded:     true,
		FixedFields: []string{},
		Errors:      []string{},
	}

	seen := make(map[string]bool)
	current := p
	for _, rule := range g.rules {
		if g.cfg.Disabled[rule.Name] {
			res.Trace = append(res.Trace, RuleTrace{Rule: rule.Name, Skipped: true})
			continue
		}
		next, outcome := rule.Apply(current, g.cfg)
		current = next
		res.Trace = append(res.Trace, RuleTrace{
			Rule:     rule.Name,
			Fields:   outcome.Fields,
			Warnings: outcome.Warnings,
			Errors:   outcome.Errors,
		})
		for _, f := range outcome.Fields {
			if !seen[f] {
				seen[f] = true
				res.FixedFields = append(res.FixedFields, f)
			}
		}
		res.Warnings = append(res.Warnings, outcome.Warnings...)
	}

	if errs := ValidatePlan(current); len(errs) > 0 {
		for _, e := range errs {
			res.Errors = append(res.Errors, e.Error())
		}
		return res
	}

	res.IsValid = true
	res.ParsedPlan = current
	return res
}
