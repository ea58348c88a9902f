package llm

import (
	"fmt"
	"time"
)

// TaskType identifies the kind of LLM task being performed.
type TaskType string

const (
	TaskRoute  TaskType = "route"
	TaskPlan   TaskType = "plan"
	TaskRender TaskType = "render"
	TaskRefine TaskType = "refine"
)

// Provider names a model backend.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

// TaskConfig holds per-task LLM parameters.
type TaskConfig struct {
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
	TimeoutMs   int     `koanf:"timeout_ms"` // overrides global if > 0
	Model       string  `koanf:"model"`      // overrides global if set
}

// LLMConfig holds all configuration for the LLM subsystem.
type LLMConfig struct {
	Provider   Provider `koanf:"provider"`
	LogCalls   bool     `koanf:"log_calls"`
	Endpoint   string   `koanf:"endpoint"`
	APIKey     string   `koanf:"api_key"`
	Model      string   `koanf:"model"`
	TimeoutMs  int      `koanf:"timeout_ms"`
	MaxRetries int      `koanf:"max_retries"`

	// RatePerSecond and Burst bound outbound calls. Zero disables limiting.
	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`

	Tasks map[TaskType]TaskConfig `koanf:"tasks"`
}

// DefaultConfig returns an LLMConfig with sensible defaults for Gemini.
// Transport retries are off; the generator owns retry policy.
func DefaultConfig() LLMConfig {
	return LLMConfig{
		Provider:      ProviderGemini,
		Model:         "gemini-2.5-flash",
		TimeoutMs:     30000,
		MaxRetries:    0,
		RatePerSecond: 2,
		Burst:         4,
		Tasks: map[TaskType]TaskConfig{
			TaskRoute:  {Temperature: 0.0, MaxTokens: 256, TimeoutMs: 8000, Model: "gemini-2.5-flash-lite"},
			TaskPlan:   {Temperature: 0.4, MaxTokens: 8192},
			TaskRender: {Temperature: 0.3, MaxTokens: 16384},
			TaskRefine: {Temperature: 0.2, MaxTokens: 8192},
		},
	}
}

// Validate checks provider-specific requirements.
func (c LLMConfig) Validate() error {
	switch c.Provider {
	case ProviderGemini:
		if c.APIKey == "" {
			return fmt.Errorf("llm.api_key is required for provider %q", c.Provider)
		}
	case ProviderOpenAI:
		if c.APIKey == "" && c.Endpoint == "" {
			return fmt.Errorf("llm.api_key or llm.endpoint is required for provider %q", c.Provider)
		}
	case ProviderOllama:
		if c.Endpoint == "" {
			return fmt.Errorf("llm.endpoint is required for provider %q", c.Provider)
		}
	default:
		return fmt.Errorf("llm.provider: unsupported value %q", c.Provider)
	}
	if c.TimeoutMs <= 0 {
		return fmt.Errorf("llm.timeout_ms must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must be non-negative")
	}
	return nil
}

// TaskTimeout returns the effective timeout for a given task type.
// Uses the task-specific timeout if set, otherwise the global timeout.
func (c LLMConfig) TaskTimeout(task TaskType) time.Duration {
	if tc, ok := c.Tasks[task]; ok && tc.TimeoutMs > 0 {
		return time.Duration(tc.TimeoutMs) * time.Millisecond
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// ModelFor returns the model for a task, honoring a per-request override.
func (c LLMConfig) ModelFor(task TaskType, override string) string {
	if override != "" {
		return override
	}
	if tc, ok := c.Tasks[task]; ok && tc.Model != "" {
		return tc.Model
	}
	return c.Model
}

// params resolves temperature and token budget for req.
func (c LLMConfig) params(req GenerateRequest) (float64, int) {
	taskCfg := c.Tasks[req.Task]
	temp := taskCfg.Temperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	maxTok := taskCfg.MaxTokens
	if req.MaxTokens != nil {
		maxTok = *req.MaxTokens
	}
	return temp, maxTok
}
