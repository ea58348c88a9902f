// Package render turns a validated plan into a standalone HTML document.
package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
)

//go:embed plan.html.tmpl
var planTemplate string

const (
	defaultMaxDays   = 7
	defaultMaxTopics = 5
)

var tipIcons = []string{"💡", "🎯", "📝", "🧠", "⚡", "🌟", "🔑", "✨"}

var funcs = template.FuncMap{
	"hours":    formatHours,
	"hoursPtr": func(f *float64) string { return formatHours(domain.Float64FromPtrWithDefault(0, f)) },
	"icon":     func(i int) string { return tipIcons[i%len(tipIcons)] },
	"sub":      func(a, b int) int { return a - b },
}

// Renderer renders plans with the embedded template. It is safe for
// concurrent use.
type Renderer struct {
	tmpl      *template.Template
	maxDays   int
	maxTopics int
	now       func() time.Time
}

// Option customizes a Renderer.
type Option func(*Renderer)

// WithMaxDays limits how many schedule days appear in the table. Zero shows all.
func WithMaxDays(n int) Option { return func(r *Renderer) { r.maxDays = n } }

// WithClock overrides the footer timestamp source.
func WithClock(now func() time.Time) Option { return func(r *Renderer) { r.now = now } }

// New parses the embedded template.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		tmpl:      template.Must(template.New("plan").Funcs(funcs).Parse(planTemplate)),
		maxDays:   defaultMaxDays,
		maxTopics: defaultMaxTopics,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type view struct {
	Plan        *domain.StudyPlan
	Days        []domain.DailySchedule
	Truncated   bool
	MaxTopics   int
	GeneratedAt string
}

// Render produces the HTML document for p. All plan text is escaped.
func (r *Renderer) Render(p *domain.StudyPlan) (string, error) {
	if p == nil {
		return "", fmt.Errorf("render: plan is required")
	}
	days := p.DailySchedules
	truncated := false
	if r.maxDays > 0 && len(days) > r.maxDays {
		days, truncated = days[:r.maxDays], true
	}

	var buf bytes.Buffer
	err := r.tmpl.Execute(&buf, view{
		Plan:        p,
		Days:        days,
		Truncated:   truncated,
		MaxTopics:   r.maxTopics,
		GeneratedAt: r.now().Format("02/01/2006 15:04"),
	})
	if err != nil {
		return "", fmt.Errorf("render plan: %w", err)
	}
	return buf.String(), nil
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}
