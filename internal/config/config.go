// Package config assembles the planner configuration from defaults, an
// optional YAML file and PLANNER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/maisonhai3/AI-planning-for-students/internal/api"
	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
	"github.com/maisonhai3/AI-planning-for-students/internal/generation"
	"github.com/maisonhai3/AI-planning-for-students/internal/guard"
	"github.com/maisonhai3/AI-planning-for-students/internal/llm"
	"github.com/maisonhai3/AI-planning-for-students/internal/logging"
	"github.com/maisonhai3/AI-planning-for-students/internal/repository"
	"github.com/maisonhai3/AI-planning-for-students/internal/router"
	"go.uber.org/zap"
)

// Model names used when the provider's model is not configured.
const (
	GeminiEasyModel = "gemini-2.5-flash"
	GeminiHardModel = "gemini-2.5-pro"
	OllamaModel     = "llama3.1"
	OpenAIModel     = "gpt-4o-mini"
)

// Config holds the complete planner configuration.
type Config struct {
	Server    api.Config        `koanf:"server"`
	Log       logging.Config    `koanf:"log"`
	LLM       llm.LLMConfig     `koanf:"llm"`
	Guard     GuardConfig       `koanf:"guard"`
	Router    router.Config     `koanf:"router"`
	Generator generation.Config `koanf:"generator"`
	Repair    RepairConfig      `koanf:"repair"`
	Store     repository.Config `koanf:"store"`
}

// GuardConfig controls the input guard.
type GuardConfig struct {
	MaxInputLength     int      `koanf:"max_input_length"`
	SuspiciousKeywords []string `koanf:"suspicious_keywords"`
}

// RepairConfig controls the output guard's repair rules.
type RepairConfig struct {
	DisabledRules []string `koanf:"disabled_rules"`
	Locale        string   `koanf:"locale"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: api.DefaultConfig(),
		Log:    logging.DefaultConfig(),
		LLM:    llm.DefaultConfig(),
		Guard: GuardConfig{
			MaxInputLength:     guard.DefaultMaxInputLength,
			SuspiciousKeywords: slices.Clone(guard.DefaultSuspiciousKeywords),
		},
		Router:    router.DefaultConfig(),
		Generator: generation.DefaultConfig(),
		Repair:    RepairConfig{Locale: string(domain.LocaleVietnamese)},
		Store:     repository.DefaultConfig(),
	}
}

// Validate checks every section and joins the failures.
func (c Config) Validate() error {
	return errors.Join(
		c.Server.Validate(),
		c.Log.Validate(),
		c.LLM.Validate(),
		c.Guard.Validate(),
		c.Router.Validate(),
		c.Generator.Validate(),
		c.Repair.Validate(),
		c.Store.Validate(),
	)
}

// ValidateOffline checks every section except llm.
func (c Config) ValidateOffline() error {
	return errors.Join(
		c.Server.Validate(),
		c.Log.Validate(),
		c.Guard.Validate(),
		c.Router.Validate(),
		c.Generator.Validate(),
		c.Repair.Validate(),
		c.Store.Validate(),
	)
}

// Validate checks the input length limit.
func (c GuardConfig) Validate() error {
	if c.MaxInputLength <= 0 {
		return fmt.Errorf("guard.max_input_length must be positive, got %d", c.MaxInputLength)
	}
	return nil
}

// InputGuard builds the configured input guard.
func (c GuardConfig) InputGuard() *guard.InputGuard {
	if c.SuspiciousKeywords == nil {
		return guard.NewInputGuard()
	}
	return guard.NewInputGuard(guard.WithSuspiciousKeywords(c.SuspiciousKeywords))
}

// Validate rejects unknown rule names and locales.
func (c RepairConfig) Validate() error {
	known := guard.RuleNames()
	for _, name := range c.DisabledRules {
		if !slices.Contains(known, name) {
			return fmt.Errorf("repair.disabled_rules: unknown rule %q (known: %v)", name, known)
		}
	}
	switch domain.WeekdayLocale(c.Locale) {
	case domain.LocaleVietnamese, domain.LocaleEnglish, "":
	default:
		return fmt.Errorf("repair.locale: unsupported value %q (want vi or en)", c.Locale)
	}
	return nil
}

// OutputGuard builds the configured output guard.
func (c RepairConfig) OutputGuard() *guard.OutputGuard {
	opts := []guard.OutputOption{guard.WithDisabledRules(c.DisabledRules...)}
	if c.Locale != "" {
		opts = append(opts, guard.WithLocale(domain.WeekdayLocale(c.Locale)))
	}
	return guard.NewOutputGuard(opts...)
}

// applyDefaults fills values that depend on other sections.
func applyDefaults(cfg *Config) {
	switch cfg.LLM.Provider {
	case llm.ProviderGemini:
		if cfg.Generator.EasyModel == "" {
			cfg.Generator.EasyModel = GeminiEasyModel
		}
		if cfg.Generator.HardModel == "" {
			cfg.Generator.HardModel = GeminiHardModel
		}
	case llm.ProviderOllama:
		replaceGeminiModels(&cfg.LLM, OllamaModel)
	case llm.ProviderOpenAI:
		replaceGeminiModels(&cfg.LLM, OpenAIModel)
	}
	if cfg.Guard.MaxInputLength == 0 {
		cfg.Guard.MaxInputLength = guard.DefaultMaxInputLength
	}
	if cfg.Router.Threshold <= 0 {
		cfg.Router.Threshold = router.DefaultThreshold
	}
}

// replaceGeminiModels swaps the built-in gemini model names for model, keeping
// any name the user configured.
func replaceGeminiModels(c *llm.LLMConfig, model string) {
	def := llm.DefaultConfig()
	if c.Model == "" || c.Model == def.Model {
		c.Model = model
	}
	for task, tc := range c.Tasks {
		if tc.Model != "" && tc.Model == def.Tasks[task].Model {
			tc.Model = ""
			c.Tasks[task] = tc
		}
	}
}

// LogFields summarizes the configuration for the startup log. Secrets and
// DSNs are redacted.
func (c Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("addr", fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)),
		zap.String("llm_provider", string(c.LLM.Provider)),
		zap.String("llm_model", c.LLM.Model),
		zap.Bool("llm_api_key_set", c.LLM.APIKey != ""),
		zap.String("router_mode", string(c.Router.Mode)),
		zap.String("easy_model", c.Generator.EasyModel),
		zap.String("hard_model", c.Generator.HardModel),
		zap.Int("max_attempts", c.Generator.MaxAttempts),
		zap.String("html_mode", string(c.Generator.HTMLMode)),
		zap.Strings("disabled_repair_rules", c.Repair.DisabledRules),
		zap.String("store_backend", string(c.Store.Backend)),
	}
}
