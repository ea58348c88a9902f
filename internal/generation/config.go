package generation

import (
	"fmt"
	"time"

	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
	"github.com/maisonhai3/AI-planning-for-students/internal/prompts"
)

// HTMLMode selects how the HTML artifact is produced.
type HTMLMode string

const (
	HTMLTemplate HTMLMode = "template"
	HTMLModel    HTMLMode = "model"
)

// Config controls the retrying generator.
type Config struct {
	MaxAttempts      int      `koanf:"max_attempts"`
	AttemptTimeoutMs int      `koanf:"attempt_timeout_ms"`
	BackoffBaseMs    int      `koanf:"backoff_base_ms"`
	HTMLMode         HTMLMode `koanf:"html_mode"`
	Refine           bool     `koanf:"refine"`

	EasyModel     string `koanf:"easy_model"`
	HardModel     string `koanf:"hard_model"`
	EasyMaxTokens int    `koanf:"easy_max_tokens"`
	HardMaxTokens int    `koanf:"hard_max_tokens"`

	StudyHoursPerDay float64 `koanf:"study_hours_per_day"`
	AvailableDays    string  `koanf:"available_days"`
	Theme            string  `koanf:"theme"`
	Layout           string  `koanf:"layout"`
}

// DefaultConfig returns the generator defaults: 3 attempts of at most 30s
// each, backoff starting at 500ms.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      3,
		AttemptTimeoutMs: 30000,
		BackoffBaseMs:    500,
		HTMLMode:         HTMLTemplate,
		Refine:           true,
		EasyMaxTokens:    8192,
		HardMaxTokens:    16384,
		StudyHoursPerDay: 3,
		AvailableDays:    "Thứ Hai - Chủ Nhật",
		Theme:            "modern",
		Layout:           "timeline",
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.MaxAttempts < 1:
		return fmt.Errorf("generator.max_attempts must be at least 1, got %d", c.MaxAttempts)
	case c.AttemptTimeoutMs <= 0:
		return fmt.Errorf("generator.attempt_timeout_ms must be positive, got %d", c.AttemptTimeoutMs)
	case c.BackoffBaseMs < 0:
		return fmt.Errorf("generator.backoff_base_ms must not be negative, got %d", c.BackoffBaseMs)
	case c.HTMLMode != HTMLTemplate && c.HTMLMode != HTMLModel:
		return fmt.Errorf("generator.html_mode: unsupported value %q (want template or model)", c.HTMLMode)
	case c.EasyMaxTokens <= 0 || c.HardMaxTokens <= 0:
		return fmt.Errorf("generator token budgets must be positive")
	case c.StudyHoursPerDay < 0:
		return fmt.Errorf("generator.study_hours_per_day must not be negative")
	}
	return nil
}

func (c Config) attemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutMs) * time.Millisecond
}

// backoff is the wait before attempt n (n >= 2): base, 2*base, 4*base...
func (c Config) backoff(n int) time.Duration {
	if n < 2 {
		return 0
	}
	return time.Duration(c.BackoffBaseMs) * time.Millisecond << (n - 2)
}

// strategy is the per-tier generation budget.
type strategy struct {
	difficulty domain.Difficulty
	model      string
	maxTokens  int
	depth      string
	refine     bool
}

func (c Config) strategyFor(d domain.Difficulty) strategy {
	if d == domain.DifficultyHard {
		return strategy{difficulty: d, model: c.HardModel, maxTokens: c.HardMaxTokens, depth: prompts.DepthHard, refine: c.Refine}
	}
	return strategy{difficulty: domain.DifficultyEasy, model: c.EasyModel, maxTokens: c.EasyMaxTokens, depth: prompts.DepthEasy}
}
