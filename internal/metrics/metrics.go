// Package metrics exposes Prometheus collectors for the planning pipeline.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/maisonhai3/AI-planning-for-students/internal/llm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline collectors. All names are prefixed "planner_".
type Metrics struct {
	InputGuardTotal     *prometheus.CounterVec
	RouterDecisions     *prometheus.CounterVec
	GenerationAttempts  *prometheus.CounterVec
	RepairsTotal        *prometheus.CounterVec
	PipelineDuration    *prometheus.HistogramVec
	LLMCallsTotal       *prometheus.CounterVec
	LLMLatency          *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	FeedbackTotal       *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		InputGuardTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_input_guard_total",
			Help: "Input guard verdicts",
		}, []string{"outcome"}), // safe, sanitized, blocked

		RouterDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_router_decisions_total",
			Help: "Router classifications by tier",
		}, []string{"difficulty", "degraded"}),

		GenerationAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_generation_attempts_total",
			Help: "Plan generation attempts by outcome",
		}, []string{"outcome"}), // ok, llm_error, unparseable, invalid

		RepairsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_output_guard_repairs_total",
			Help: "Fields auto-repaired by the output guard",
		}, []string{"field"}),

		PipelineDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "planner_pipeline_duration_seconds",
			Help:    "End-to-end generation latency",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"code"}),

		LLMCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_llm_calls_total",
			Help: "Model calls by task and status",
		}, []string{"task", "status"}),

		LLMLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "planner_llm_latency_seconds",
			Help:    "Model call latency",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"task"}),

		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),

		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "planner_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		FeedbackTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_feedback_total",
			Help: "Feedback events by action",
		}, []string{"action"}),
	}
}

func (m *Metrics) InputGuard(outcome string) {
	if m == nil {
		return
	}
	m.InputGuardTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RouterDecision(difficulty string, degraded bool) {
	if m == nil {
		return
	}
	m.RouterDecisions.WithLabelValues(difficulty, strconv.FormatBool(degraded)).Inc()
}

func (m *Metrics) GenerationAttempt(outcome string) {
	if m == nil {
		return
	}
	m.GenerationAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Repaired(fields []string) {
	if m == nil {
		return
	}
	for _, f := range fields {
		m.RepairsTotal.WithLabelValues(f).Inc()
	}
}

// Pipeline records a finished generation; code is "OK" or the error code.
func (m *Metrics) Pipeline(code string, d time.Duration) {
	if m == nil {
		return
	}
	m.PipelineDuration.WithLabelValues(code).Observe(d.Seconds())
}

func (m *Metrics) HTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) Feedback(action string) {
	if m == nil {
		return
	}
	m.FeedbackTotal.WithLabelValues(action).Inc()
}

// OnCallComplete implements llm.Observer.
func (m *Metrics) OnCallComplete(e llm.LLMCallEvent) {
	if m == nil {
		return
	}
	status := "ok"
	if !e.Success {
		status = e.ErrorCode
	}
	m.LLMCallsTotal.WithLabelValues(string(e.Task), status).Inc()
	m.LLMLatency.WithLabelValues(string(e.Task)).Observe(float64(e.LatencyMs) / 1000)
}

var _ llm.Observer = (*Metrics)(nil)
