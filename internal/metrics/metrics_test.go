package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/maisonhai3/AI-planning-for-students/internal/llm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.InputGuard("blocked")
	m.InputGuard("blocked")
	m.RouterDecision("hard", true)
	m.Repaired([]string{"dailySchedules", "weeklyHours"})
	m.Feedback("rate")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.InputGuardTotal.WithLabelValues("blocked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RouterDecisions.WithLabelValues("hard", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RepairsTotal.WithLabelValues("weeklyHours")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedbackTotal.WithLabelValues("rate")))
}

func TestMetrics_LLMObserver(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.OnCallComplete(llm.LLMCallEvent{Task: llm.TaskPlan, Success: true, LatencyMs: 1200})
	m.OnCallComplete(llm.LLMCallEvent{Task: llm.TaskPlan, Success: false, ErrorCode: "TIMEOUT"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCallsTotal.WithLabelValues("plan", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCallsTotal.WithLabelValues("plan", "TIMEOUT")))
}

func TestMetrics_HistogramExposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.HTTPRequest("GET", "/api/v1/plans/:id/", 404, 3*time.Millisecond)

	expected := `
# HELP planner_http_requests_total HTTP requests by route and status
# TYPE planner_http_requests_total counter
planner_http_requests_total{method="GET",route="/api/v1/plans/:id/",status="404"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "planner_http_requests_total"))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.InputGuard("safe")
		m.RouterDecision("easy", false)
		m.GenerationAttempt("ok")
		m.Repaired([]string{"x"})
		m.Pipeline("OK", time.Second)
		m.HTTPRequest("GET", "/", 200, time.Millisecond)
		m.Feedback("save")
		m.OnCallComplete(llm.LLMCallEvent{})
	})
}
