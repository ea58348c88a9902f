package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "PLANNER_"
	// EnvConfigPath names the YAML file when --config is not given.
	EnvConfigPath = EnvPrefix + "CONFIG"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// LoadOption customizes Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	offline bool
}

// Offline skips llm validation, for commands that never call a model.
func Offline() LoadOption { return func(o *loadOptions) { o.offline = true } }

// listKeys are split on commas when set from the environment.
var listKeys = map[string]bool{
	"server.cors_origins":       true,
	"guard.suspicious_keywords": true,
	"repair.disabled_rules":     true,
}

// Load builds the configuration.
//
// Precedence (highest to lowest):
//  1. Environment variables (PLANNER_SERVER_PORT, PLANNER_LLM_API_KEY, ...)
//  2. YAML file at path, or at $PLANNER_CONFIG when path is empty
//  3. Defaults
//
// Environment names map to keys by splitting on the first underscore after
// the prefix:
//
//	PLANNER_SERVER_PORT        -> server.port
//	PLANNER_LLM_API_KEY        -> llm.api_key
//	PLANNER_STORE_SQLITE_PATH  -> store.sqlite_path
//
// A missing file is an error only when a path was given explicitly.
func Load(path string, opts ...LoadOption) (*Config, error) {
	o := loadOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		content, err := readConfigFile(path)
		switch {
		case os.IsNotExist(err) && !explicit:
		case err != nil:
			return nil, err
		default:
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)

	validate := cfg.Validate
	if o.offline {
		validate = cfg.ValidateOffline
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// readConfigFile reads path, refusing files over maxConfigFileSize.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// envKey maps PLANNER_SECTION_FIELD_NAME to section.field_name. The config
// path variable itself is skipped.
func envKey(name, value string) (string, interface{}) {
	if name == EnvConfigPath {
		return "", nil
	}
	lower := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return "", nil
	}
	key := section + "." + field
	if listKeys[key] {
		return key, splitList(value)
	}
	return key, value
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
