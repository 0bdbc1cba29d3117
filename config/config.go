// Package config loads settings for the rehearsal CLI: defaults, then an
// optional YAML file, then REHEARSAL_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names accepted in llm.provider.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config is the CLI configuration: backend, retry policy and logging.
// Load fills it from a YAML file and REHEARSAL_* environment overrides.
type Config struct {
	LLM struct {
		Provider     string        `yaml:"provider"`
		Model        string        `yaml:"model"`
		BaseURL      string        `yaml:"base_url"`
		GeminiKey    string        `yaml:"gemini_api_key"`
		OpenAIKey    string        `yaml:"openai_api_key"`
		AnthropicKey string        `yaml:"anthropic_api_key"`
		Temperature  float32       `yaml:"temperature"`
		Timeout      time.Duration `yaml:"timeout"`
		JSONMode     bool          `yaml:"json_mode"`
	} `yaml:"llm"`
	Retry struct {
		MaxAttempts    int           `yaml:"max_attempts"`
		Delay          time.Duration `yaml:"delay"`
		AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	} `yaml:"retry"`
	Log LogConfig `yaml:"log"`
}

// LogConfig selects the CLI logger level and encoding.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"` // console encoding instead of JSON
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	cfg.LLM.Provider = ProviderGemini
	cfg.LLM.Timeout = 60 * time.Second
	cfg.LLM.JSONMode = true
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.Delay = 2 * time.Second
	cfg.Retry.AttemptTimeout = 60 * time.Second
	cfg.Log.Level = "info"
	return cfg
}

// Load reads path (a missing file is not an error), applies the
// environment, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, err
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate fails on settings the CLI cannot start with.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown llm.provider %q (want gemini, openai or anthropic)", c.LLM.Provider)
	}
	if c.APIKey() == "" {
		return fmt.Errorf("missing llm.%s_api_key (or REHEARSAL_%s_API_KEY)",
			c.LLM.Provider, strings.ToUpper(c.LLM.Provider))
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be at least 1")
	}
	if c.Retry.Delay < 0 {
		return errors.New("retry.delay must not be negative")
	}
	return nil
}

// APIKey returns the credential for the selected provider.
func (c Config) APIKey() string {
	switch c.LLM.Provider {
	case ProviderGemini:
		return c.LLM.GeminiKey
	case ProviderOpenAI:
		return c.LLM.OpenAIKey
	case ProviderAnthropic:
		return c.LLM.AnthropicKey
	}
	return ""
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REHEARSAL_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("REHEARSAL_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("REHEARSAL_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("REHEARSAL_GEMINI_API_KEY"); v != "" {
		cfg.LLM.GeminiKey = v
	}
	if v := os.Getenv("REHEARSAL_OPENAI_API_KEY"); v != "" {
		cfg.LLM.OpenAIKey = v
	}
	if v := os.Getenv("REHEARSAL_ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.AnthropicKey = v
	}
	if v := os.Getenv("REHEARSAL_LLM_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(f)
		}
	}
	if v := os.Getenv("REHEARSAL_LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LLM.Timeout = d
		}
	}
	if v := os.Getenv("REHEARSAL_LLM_JSON_MODE"); v != "" {
		cfg.LLM.JSONMode = parseBool(v, cfg.LLM.JSONMode)
	}
	if v := os.Getenv("REHEARSAL_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retry.MaxAttempts = n
		}
	}
	if v := os.Getenv("REHEARSAL_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retry.Delay = d
		}
	}
	if v := os.Getenv("REHEARSAL_RETRY_ATTEMPT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retry.AttemptTimeout = d
		}
	}
	if v := os.Getenv("REHEARSAL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("REHEARSAL_LOG_DEVELOPMENT"); v != "" {
		cfg.Log.Development = parseBool(v, cfg.Log.Development)
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
