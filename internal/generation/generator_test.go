package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
	"github.com/maisonhai3/AI-planning-for-students/internal/llm"
	"github.com/maisonhai3/AI-planning-for-students/internal/logging"
	"github.com/maisonhai3/AI-planning-for-students/internal/metrics"
	"github.com/maisonhai3/AI-planning-for-students/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zapcore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var today = func() time.Time { return time.Date(2025, 3, 9, 9, 0, 0, 0, time.UTC) }

type waits struct {
	mu sync.Mutex
	d  []time.Duration
}

func (w *waits) record(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	w.d = append(w.d, d)
	w.mu.Unlock()
	return ctx.Err()
}

func newGenerator(t *testing.T, cfg Config, client llm.LLMClient, opts ...Option) (*Generator, *waits) {
	t.Helper()
	require.NoError(t, cfg.Validate())
	w := &waits{}
	opts = append([]Option{WithClock(today), withWait(w.record)}, opts...)
	return New(cfg, client, opts...), w
}

func TestGenerate_FirstAttemptAccepted(t *testing.T) {
	client := testutil.NewScriptedLLM(testutil.Text(testutil.PlanJSON(t, testutil.NewTestPlan())))
	g, w := newGenerator(t, DefaultConfig(), client)

	res, err := g.Generate(context.Background(), "Tuần sau tôi có bài kiểm tra Toán", domain.DifficultyEasy)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "Ôn thi giữa kỳ", res.Plan.Title)
	assert.Empty(t, res.Plan.ID)
	assert.Empty(t, res.FixedFields)
	assert.False(t, res.Refined)
	assert.Contains(t, res.HTML, "<h3>Toán</h3>")
	assert.Empty(t, res.QualityWarnings)
	assert.Equal(t, "planner@v3", res.PromptID)
	assert.Empty(t, w.d)

	reqs := client.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, llm.TaskPlan, reqs[0].Task)
	assert.True(t, reqs[0].JSON)
	assert.Empty(t, reqs[0].Model)
	require.NotNil(t, reqs[0].MaxTokens)
	assert.Equal(t, 8192, *reqs[0].MaxTokens)
	assert.Contains(t, reqs[0].UserPrompt, "Tuần sau tôi có bài kiểm tra Toán")
	assert.Contains(t, reqs[0].UserPrompt, "2025-03-09")
	assert.Contains(t, reqs[0].SystemPrompt, `"dailySchedules"`)
}

func TestGenerate_RetriesWithPreviousError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	client := testutil.NewScriptedLLM(
		testutil.Text("Xin lỗi, tôi không thể giúp."),
		testutil.Text(testutil.PlanJSON(t, testutil.NewTestPlan())),
	)
	g, w := newGenerator(t, DefaultConfig(), client, WithMetrics(m))

	res, err := g.Generate(context.Background(), "ôn Toán", domain.DifficultyEasy)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, w.d)

	reqs := client.Requests()
	require.Len(t, reqs, 2)
	assert.NotContains(t, reqs[0].UserPrompt, "previous answer could not be used")
	assert.Contains(t, reqs[1].UserPrompt, "previous answer could not be used")
	assert.Contains(t, reqs[1].UserPrompt, "no JSON object found")
	assert.True(t, strings.HasPrefix(reqs[1].UserPrompt, reqs[0].UserPrompt))

	assert.Equal(t, 1.0, promtest.ToFloat64(m.GenerationAttempts.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.GenerationAttempts.WithLabelValues("ok")))
}

func TestGenerate_EmptyPayloadExhaustsAttempts(t *testing.T) {
	client := testutil.NewScriptedLLM(testutil.Text(""))
	g, w := newGenerator(t, DefaultConfig(), client)

	res, err := g.Generate(context.Background(), "ôn Toán", domain.DifficultyEasy)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.NotErrorIs(t, err, ErrOutputUnrepairable)
	assert.Equal(t, 3, client.Calls())
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, w.d)

	var f *Failure
	require.ErrorAs(t, err, &f)
	require.Len(t, f.Attempts, 3)
	assert.Equal(t, "INVALID_OUTPUT", f.Attempts[2].Code)
}

func TestGenerate_ProviderErrorsExhaustAttempts(t *testing.T) {
	client := testutil.NewScriptedLLM(testutil.Fail(llm.ErrEmptyResponse))
	g, _ := newGenerator(t, DefaultConfig(), client)

	_, err := g.Generate(context.Background(), "ôn Toán", domain.DifficultyEasy)

	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
	assert.Equal(t, 3, client.Calls())
}

func TestGenerate_UnrepairableOutput(t *testing.T) {
	tl := logging.NewTestLogger()
	broken := testutil.NewTestPlan(testutil.WithTitle(""))
	client := testutil.NewScriptedLLM(testutil.Text(testutil.PlanJSON(t, broken)))
	g, _ := newGenerator(t, DefaultConfig(), client, WithLogger(tl.Logger))

	_, err := g.Generate(context.Background(), "ôn Toán", domain.DifficultyEasy)

	assert.ErrorIs(t, err, ErrOutputUnrepairable)
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.True(t, f.Unrepairable)
	assert.Contains(t, f.Error(), "title is required")
	tl.AssertLogged(t, zapcore.ErrorLevel, "generation exhausted attempts")
}

func TestGenerate_LastAttemptDecidesFailureKind(t *testing.T) {
	broken := testutil.NewTestPlan(testutil.WithTitle(""))
	client := testutil.NewScriptedLLM(
		testutil.Text(testutil.PlanJSON(t, broken)),
		testutil.Text(testutil.PlanJSON(t, broken)),
		testutil.Text(""),
	)
	g, _ := newGenerator(t, DefaultConfig(), client)

	_, err := g.Generate(context.Background(), "ôn Toán", domain.DifficultyEasy)
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestGenerate_SafetyBlockStopsImmediately(t *testing.T) {
	client := testutil.NewScriptedLLM(testutil.Fail(llm.ErrSafetyBlocked))
	g, _ := newGenerator(t, DefaultConfig(), client)

	_, err := g.Generate(context.Background(), "ôn Toán", domain.DifficultyEasy)

	assert.ErrorIs(t, err, llm.ErrSafetyBlocked)
	assert.Equal(t, 1, client.Calls())
}

func TestGenerate_HardTierBudgetAndRefinement(t *testing.T) {
	draft := testutil.NewTestPlan()
	draft.DailySchedules[0].DayOfWeek = "Thứ Ba"
	refined := testutil.NewTestPlan(testutil.WithTitle("Kế hoạch đã tinh chỉnh"))

	client := testutil.NewScriptedLLM(
		testutil.Text(testutil.PlanJSON(t, draft)),
		testutil.Text(testutil.PlanJSON(t, refined)),
	)
	cfg := DefaultConfig()
	cfg.HardModel = "gemini-2.5-pro"
	g, _ := newGenerator(t, cfg, client)

	res, err := g.Generate(context.Background(), "ôn Toán", domain.DifficultyHard)
	require.NoError(t, err)

	assert.True(t, res.Refined)
	assert.Equal(t, "Kế hoạch đã tinh chỉnh", res.Plan.Title)
	assert.Empty(t, res.FixedFields)

	reqs := client.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "gemini-2.5-pro", reqs[0].Model)
	assert.Equal(t, 16384, *reqs[0].MaxTokens)
	assert.Equal(t, llm.TaskRefine, reqs[1].Task)
	assert.Contains(t, reqs[1].UserPrompt, `"dayOfWeek":"Thứ Hai"`)
}

func TestGenerate_RefinementFailureKeepsDraft(t *testing.T) {
	draft := testutil.NewTestPlan()
	draft.DailySchedules[0].DayOfWeek = "Thứ Ba"

	client := testutil.NewScriptedLLM(
		testutil.Text(testutil.PlanJSON(t, draft)),
		testutil.Fail(llm.ErrTimeout),
	)
	g, _ := newGenerator(t, DefaultConfig(), client)

	res, err := g.Generate(context.Background(), "ôn Toán", domain.DifficultyHard)
	require.NoError(t, err)

	assert.False(t, res.Refined)
	assert.Equal(t, []string{"dailySchedules.dayOfWeek"}, res.FixedFields)
	assert.Equal(t, "Thứ Hai", res.Plan.DailySchedules[0].DayOfWeek)
}

func TestGenerate_EasyTierNeverRefines(t *testing.T) {
	draft := testutil.NewTestPlan()
	draft.DailySchedules[0].DayOfWeek = "Thứ Ba"
	client := testutil.NewScriptedLLM(testutil.Text(testutil.PlanJSON(t, draft)))
	g, _ := newGenerator(t, DefaultConfig(), client)

	res, err := g.Generate(context.Background(), "ôn Toán", domain.DifficultyEasy)
	require.NoError(t, err)
	assert.Equal(t, 1, client.Calls())
	assert.False(t, res.Refined)
}

func TestGenerate_CallerCancelAbandonsAttempt(t *testing.T) {
	g, _ := newGenerator(t, DefaultConfig(), testutil.BlockingLLM{})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	_, err := g.Generate(ctx, "ôn Toán", domain.DifficultyEasy)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestGenerate_AttemptTimeoutCountsAsFailedAttempt(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AttemptTimeoutMs = 20
	g, _ := newGenerator(t, cfg, testutil.BlockingLLM{})

	_, err := g.Generate(context.Background(), "ôn Toán", domain.DifficultyEasy)

	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorIs(t, err, llm.ErrTimeout)
	var f *Failure
	require.ErrorAs(t, err, &f)
	require.Len(t, f.Attempts, 3)
	for _, a := range f.Attempts {
		assert.Equal(t, "TIMEOUT", a.Code)
	}
}

func TestGenerate_BackoffHonoursCancellation(t *testing.T) {
	client := testutil.NewScriptedLLM(testutil.Text(""))
	ctx, cancel := context.WithCancel(context.Background())
	g := New(DefaultConfig(), client, WithClock(today), withWait(func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}))

	_, err := g.Generate(ctx, "ôn Toán", domain.DifficultyEasy)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, client.Calls())
}

func TestGenerate_ModelHTML(t *testing.T) {
	doc := "<!DOCTYPE html>\n<html><body><h3>Toán</h3><h3>Lý</h3></body></html>"
	client := testutil.NewScriptedLLM(
		testutil.Text(testutil.PlanJSON(t, testutil.NewTestPlan())),
		testutil.Text("```html\n"+doc+"\n```"),
	)
	cfg := DefaultConfig()
	cfg.HTMLMode = HTMLModel
	g, _ := newGenerator(t, cfg, client)

	res, err := g.Generate(context.Background(), "ôn Toán", domain.DifficultyEasy)
	require.NoError(t, err)

	assert.Equal(t, doc, res.HTML)
	assert.Empty(t, res.QualityWarnings)
	reqs := client.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, llm.TaskRender, reqs[1].Task)
	assert.Contains(t, reqs[1].UserPrompt, "theme: modern")
}

func TestGenerate_ModelHTMLFallsBackToTemplate(t *testing.T) {
	client := testutil.NewScriptedLLM(
		testutil.Text(testutil.PlanJSON(t, testutil.NewTestPlan())),
		testutil.Text("<div>không phải tài liệu</div>"),
	)
	cfg := DefaultConfig()
	cfg.HTMLMode = HTMLModel
	g, _ := newGenerator(t, cfg, client)

	res, err := g.Generate(context.Background(), "ôn Toán", domain.DifficultyEasy)
	require.NoError(t, err)
	assert.Contains(t, res.HTML, "Lịch học chi tiết")
}

func TestGenerate_HTMLDisagreementIsOnlyAWarning(t *testing.T) {
	tl := logging.NewTestLogger()
	client := testutil.NewScriptedLLM(
		testutil.Text(testutil.PlanJSON(t, testutil.NewTestPlan())),
		testutil.Text("<html><body><h3>Toán</h3><h3>Hoá học</h3></body></html>"),
	)
	cfg := DefaultConfig()
	cfg.HTMLMode = HTMLModel
	g, _ := newGenerator(t, cfg, client, WithLogger(tl.Logger))

	res, err := g.Generate(context.Background(), "ôn Toán", domain.DifficultyEasy)
	require.NoError(t, err)

	assert.Equal(t, []string{
		`subject "Lý" is missing from the html`,
		`html heading "Hoá học" names no subject of the plan`,
	}, res.QualityWarnings)
	tl.AssertLogged(t, zapcore.WarnLevel, "plan/html disagreement")
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.MaxAttempts = 0
	assert.ErrorContains(t, cfg.Validate(), "max_attempts")

	cfg = DefaultConfig()
	cfg.HTMLMode = "pdf"
	assert.ErrorContains(t, cfg.Validate(), "html_mode")
}

func TestConfig_Backoff(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, time.Duration(0), cfg.backoff(1))
	assert.Equal(t, 500*time.Millisecond, cfg.backoff(2))
	assert.Equal(t, time.Second, cfg.backoff(3))
	assert.Equal(t, 2*time.Second, cfg.backoff(4))
}

func TestFailure_Unwrap(t *testing.T) {
	f := &Failure{Attempts: []AttemptFailure{{Attempt: 1, Reason: "boom"}}, cause: llm.ErrUnavailable}
	assert.True(t, errors.Is(f, ErrGenerationFailed))
	assert.True(t, errors.Is(f, llm.ErrUnavailable))
	assert.Equal(t, "generation failed after 1 attempts: attempt 1: boom", f.Error())
}
