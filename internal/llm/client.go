package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// GenerateRequest holds the parameters for an LLM generation call.
type GenerateRequest struct {
	Task         TaskType
	SystemPrompt string
	UserPrompt   string
	Model        string   // empty uses the task or global model
	Temperature  *float64 // nil uses task default
	MaxTokens    *int     // nil uses task default
	JSON         bool     // ask the backend for a JSON-only answer
}

// GenerateResponse holds the result of an LLM generation call.
type GenerateResponse struct {
	Text      string
	Model     string
	LatencyMs int64
}

// LLMClient provides access to a language model for text generation.
type LLMClient interface {
	// Generate sends a prompt and returns the raw text response.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// Available checks whether the backend is reachable.
	Available(ctx context.Context) bool
}

// completion is one provider round trip, after parameters are resolved.
type completion struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
	JSON         bool
}

// backend is the provider-specific half of a client.
type backend interface {
	complete(ctx context.Context, c completion) (string, error)
	ping(ctx context.Context) bool
}

const defaultBaseBackoff = 250 * time.Millisecond

// client wraps a backend with rate limiting, per-task timeouts, transport
// retries and call observation.
type client struct {
	cfg      LLMConfig
	backend  backend
	limiter  *rate.Limiter
	observer Observer
	sleep    func(time.Duration) <-chan time.Time
}

// NewClient builds the client for cfg.Provider.
func NewClient(ctx context.Context, cfg LLMConfig, observer Observer) (LLMClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		b   backend
		err error
	)
	switch cfg.Provider {
	case ProviderGemini:
		b, err = newGeminiBackend(ctx, cfg)
	case ProviderOpenAI:
		b, err = newOpenAIBackend(cfg)
	case ProviderOllama:
		b = newOllamaBackend(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", cfg.Provider, err)
	}
	return newClient(cfg, b, observer), nil
}

func newClient(cfg LLMConfig, b backend, observer Observer) *client {
	if observer == nil {
		observer = NoopObserver{}
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return &client{
		cfg:      cfg,
		backend:  b,
		limiter:  limiter,
		observer: observer,
		sleep:    time.After,
	}
}

func (c *client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	start := time.Now()
	model := c.cfg.ModelFor(req.Task, req.Model)
	temp, maxTok := c.cfg.params(req)

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.TaskTimeout(req.Task))
	defer cancel()

	text, err := c.call(callCtx, completion{
		Model:        model,
		SystemPrompt: req.SystemPrompt,
		UserPrompt:   req.UserPrompt,
		Temperature:  temp,
		MaxTokens:    maxTok,
		JSON:         req.JSON,
	})
	latency := time.Since(start).Milliseconds()

	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		switch {
		case ctx.Err() != nil:
			err = fmt.Errorf("llm call abandoned: %w", ctx.Err())
		case callCtx.Err() != nil:
			err = ErrTimeout
		}
		c.observer.OnCallComplete(LLMCallEvent{
			Task:      req.Task,
			Model:     model,
			LatencyMs: latency,
			Success:   false,
			ErrorCode: ErrorCode(err),
		})
		return nil, err
	}

	c.observer.OnCallComplete(LLMCallEvent{
		Task:      req.Task,
		Model:     model,
		LatencyMs: latency,
		Success:   true,
	})
	return &GenerateResponse{Text: text, Model: model, LatencyMs: latency}, nil
}

func (c *client) call(ctx context.Context, comp completion) (string, error) {
	var lastErr error
	attempts := 1 + c.cfg.MaxRetries

	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-c.sleep(defaultBaseBackoff * time.Duration(1<<(i-1))):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limiter: %w", err)
			}
		}

		text, err := c.backend.complete(ctx, comp)
		if err == nil {
			return text, nil
		}
		lastErr = err

		// Don't retry on cancellation, timeout or a safety refusal
		if ctx.Err() != nil || errors.Is(err, ErrSafetyBlocked) {
			return "", err
		}
	}

	if isConnectionError(lastErr) {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
	}
	if attempts > 1 {
		return "", fmt.Errorf("%w: %v", ErrRetryExhausted, lastErr)
	}
	return "", lastErr
}

func (c *client) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.backend.ping(ctx)
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var netErr *net.OpError
	return errors.As(err, &netErr)
}
