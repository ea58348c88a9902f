package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(endpoint string) LLMConfig {
	return LLMConfig{
		Provider:  ProviderOllama,
		Endpoint:  endpoint,
		Model:     "llama3.2",
		TimeoutMs: 2000,
		Tasks: map[TaskType]TaskConfig{
			TaskPlan:  {Temperature: 0.4, MaxTokens: 8192},
			TaskRoute: {Temperature: 0, MaxTokens: 128, Model: "qwen2.5:0.5b"},
		},
	}
}

func newTestClient(t *testing.T, cfg LLMConfig, obs Observer) *client {
	t.Helper()
	c := newClient(cfg, newOllamaBackend(cfg), obs)
	c.sleep = func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
	return c
}

func ollamaOK(t *testing.T, text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(ollamaResponse{Model: "llama3.2", Response: text}))
	}
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := NewClient(context.Background(), LLMConfig{Provider: ProviderGemini, TimeoutMs: 1000}, nil)
	assert.ErrorContains(t, err, "llm.api_key is required")

	_, err = NewClient(context.Background(), LLMConfig{Provider: "claude", TimeoutMs: 1000}, nil)
	assert.ErrorContains(t, err, "unsupported value")
}

func TestNewClient_Ollama(t *testing.T) {
	srv := httptest.NewServer(ollamaOK(t, "ok"))
	defer srv.Close()

	c, err := NewClient(context.Background(), testConfig(srv.URL), nil)
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), GenerateRequest{Task: TaskPlan, UserPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
}

func TestClient_Generate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req.Model)
		assert.False(t, req.Stream)
		assert.Equal(t, "json", req.Format)
		assert.Equal(t, "system prompt", req.System)
		assert.Equal(t, "user prompt", req.Prompt)
		assert.Equal(t, 8192, req.Options.NumPredict)

		ollamaOK(t, `{"title":"Kế hoạch"}`)(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, testConfig(srv.URL), nil)
	resp, err := c.Generate(context.Background(), GenerateRequest{
		Task:         TaskPlan,
		SystemPrompt: "system prompt",
		UserPrompt:   "user prompt",
		JSON:         true,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"title":"Kế hoạch"}`, resp.Text)
	assert.Equal(t, "llama3.2", resp.Model)
	assert.GreaterOrEqual(t, resp.LatencyMs, int64(0))
}

func TestClient_Generate_TaskModelAndOverride(t *testing.T) {
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		models = append(models, req.Model)
		ollamaOK(t, "ok")(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, testConfig(srv.URL), nil)
	_, err := c.Generate(context.Background(), GenerateRequest{Task: TaskRoute, UserPrompt: "x"})
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), GenerateRequest{Task: TaskRoute, UserPrompt: "x", Model: "big"})
	require.NoError(t, err)

	assert.Equal(t, []string{"qwen2.5:0.5b", "big"}, models)
}

func TestClient_Generate_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Tasks[TaskPlan] = TaskConfig{TimeoutMs: 50}

	var captured LLMCallEvent
	obs := &captureObserver{fn: func(e LLMCallEvent) { captured = e }}
	c := newTestClient(t, cfg, obs)

	_, err := c.Generate(context.Background(), GenerateRequest{Task: TaskPlan, UserPrompt: "test"})

	assert.ErrorIs(t, err, ErrTimeout)
	assert.False(t, captured.Success)
	assert.Equal(t, "TIMEOUT", captured.ErrorCode)
}

func TestClient_Generate_CallerCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the server only notices a client disconnect once the body is consumed
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	c := newTestClient(t, testConfig(srv.URL), nil)
	_, err := c.Generate(ctx, GenerateRequest{Task: TaskPlan, UserPrompt: "test"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestClient_Generate_Unavailable(t *testing.T) {
	c := newTestClient(t, testConfig("http://127.0.0.1:1"), nil) // nothing listening
	_, err := c.Generate(context.Background(), GenerateRequest{Task: TaskPlan, UserPrompt: "test"})

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "UNAVAILABLE", ErrorCode(err))
}

func TestClient_Generate_RetryOnTransientError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("internal error"))
			return
		}
		ollamaOK(t, "ok")(w, r)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 1

	resp, err := newTestClient(t, cfg, nil).Generate(context.Background(), GenerateRequest{Task: TaskPlan, UserPrompt: "test"})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestClient_Generate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	_, err := newTestClient(t, cfg, nil).Generate(context.Background(), GenerateRequest{Task: TaskPlan, UserPrompt: "test"})
	assert.ErrorContains(t, err, "status 400")

	cfg.MaxRetries = 2
	_, err = newTestClient(t, cfg, nil).Generate(context.Background(), GenerateRequest{Task: TaskPlan, UserPrompt: "test"})
	assert.ErrorIs(t, err, ErrRetryExhausted)
}

func TestClient_Generate_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(ollamaOK(t, "  \n"))
	defer srv.Close()

	_, err := newTestClient(t, testConfig(srv.URL), nil).Generate(context.Background(), GenerateRequest{Task: TaskPlan, UserPrompt: "x"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

type scriptedBackend struct {
	calls atomic.Int32
	errs  []error
}

func (b *scriptedBackend) complete(context.Context, completion) (string, error) {
	n := int(b.calls.Add(1)) - 1
	if n < len(b.errs) && b.errs[n] != nil {
		return "", b.errs[n]
	}
	return "ok", nil
}

func (b *scriptedBackend) ping(context.Context) bool { return true }

func TestClient_Generate_SafetyBlockNotRetried(t *testing.T) {
	b := &scriptedBackend{errs: []error{ErrSafetyBlocked}}
	cfg := testConfig("")
	cfg.MaxRetries = 3

	_, err := newClient(cfg, b, nil).Generate(context.Background(), GenerateRequest{Task: TaskPlan, UserPrompt: "x"})

	assert.ErrorIs(t, err, ErrSafetyBlocked)
	assert.Equal(t, int32(1), b.calls.Load())
}

func TestClient_Generate_RateLimited(t *testing.T) {
	b := &scriptedBackend{}
	cfg := testConfig("")
	cfg.RatePerSecond = 0.001
	cfg.Burst = 1
	cfg.Tasks[TaskPlan] = TaskConfig{TimeoutMs: 50}
	c := newClient(cfg, b, nil)

	_, err := c.Generate(context.Background(), GenerateRequest{Task: TaskPlan, UserPrompt: "x"})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), GenerateRequest{Task: TaskPlan, UserPrompt: "x"})
	assert.Error(t, err)
	assert.Equal(t, int32(1), b.calls.Load())
}

func TestClient_Available(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	assert.True(t, newTestClient(t, testConfig(srv.URL), nil).Available(context.Background()))
	assert.False(t, newTestClient(t, testConfig("http://127.0.0.1:1"), nil).Available(context.Background()))
}

func TestClient_ObserverCalled(t *testing.T) {
	srv := httptest.NewServer(ollamaOK(t, "ok"))
	defer srv.Close()

	var captured LLMCallEvent
	obs := &captureObserver{fn: func(e LLMCallEvent) { captured = e }}

	_, err := newTestClient(t, testConfig(srv.URL), obs).Generate(context.Background(), GenerateRequest{
		Task:       TaskRoute,
		UserPrompt: "test",
	})

	require.NoError(t, err)
	assert.Equal(t, TaskRoute, captured.Task)
	assert.Equal(t, "qwen2.5:0.5b", captured.Model)
	assert.True(t, captured.Success)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, "SAFETY_BLOCKED", ErrorCode(ErrSafetyBlocked))
	assert.Equal(t, "UNKNOWN", ErrorCode(errors.New("boom")))
}

type captureObserver struct {
	fn func(LLMCallEvent)
}

func (o *captureObserver) OnCallComplete(e LLMCallEvent) { o.fn(e) }
