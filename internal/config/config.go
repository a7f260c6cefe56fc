// Package config provides configuration management for the citation ranker.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the citation ranker.
type Config struct {
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// LLM contains LLM client settings for citation scoring.
	LLM LLMConfig `mapstructure:"llm"`
	// Scorer contains the citation scoring pass settings.
	Scorer ScorerConfig `mapstructure:"scorer"`
	// Pipeline contains ranking pipeline settings.
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	// Artifacts contains model artifact locations.
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection.
	Enabled bool `mapstructure:"enabled"`
	// Namespace is the metric name prefix.
	Namespace string `mapstructure:"namespace"`
}

// LLMConfig holds LLM client configuration.
type LLMConfig struct {
	// Provider is the LLM provider (openai, anthropic).
	Provider string `mapstructure:"provider"`
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second (0 disables limiting).
	RateLimit float64 `mapstructure:"rate_limit"`
	// RateBurst is the burst size for the rate limiter.
	RateBurst int `mapstructure:"rate_burst"`
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig `mapstructure:"openai"`
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
}

// OpenAIConfig holds OpenAI-specific settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key (loaded from CITERANK_LLM_OPENAI_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the OpenAI model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the OpenAI API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic-specific settings.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key (loaded from CITERANK_LLM_ANTHROPIC_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the Anthropic model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the Anthropic API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// ScorerConfig holds citation scoring pass settings.
type ScorerConfig struct {
	// Concurrency bounds simultaneous in-flight LLM requests.
	Concurrency int `mapstructure:"concurrency"`
	// MaxAttempts is the per-item retry budget.
	MaxAttempts int `mapstructure:"max_attempts"`
	// MaxChars is the character budget for scoring input text.
	MaxChars int `mapstructure:"max_chars"`
	// ProgressEvery is the completion-logging cadence.
	ProgressEvery int `mapstructure:"progress_every"`
	// CachePath is the path to the append-only JSONL score cache.
	CachePath string `mapstructure:"cache_path"`
}

// PipelineConfig holds ranking pipeline settings.
type PipelineConfig struct {
	// TopK is the number of recalled papers that receive a rank.
	TopK int `mapstructure:"top_k"`
}

// ArtifactsConfig holds model artifact locations.
type ArtifactsConfig struct {
	// Dir is the directory containing the trained model artifact files.
	Dir string `mapstructure:"dir"`
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("CITERANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/citation-ranker")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.LLM.OpenAI.APIKey = os.Getenv("CITERANK_LLM_OPENAI_API_KEY")
	cfg.LLM.Anthropic.APIKey = os.Getenv("CITERANK_LLM_ANTHROPIC_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "citation_ranker")

	// LLM defaults
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.rate_limit", 0.0)
	v.SetDefault("llm.rate_burst", 1)
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("llm.openai.model", "gpt-4.1-nano")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.anthropic.model", "claude-3-5-haiku-20241022")
	v.SetDefault("llm.anthropic.base_url", "https://api.anthropic.com")

	// Scorer defaults
	v.SetDefault("scorer.concurrency", 12)
	v.SetDefault("scorer.max_attempts", 6)
	v.SetDefault("scorer.max_chars", 2000)
	v.SetDefault("scorer.progress_every", 50)
	v.SetDefault("scorer.cache_path", "data/llm_scores.jsonl")

	// Pipeline defaults
	v.SetDefault("pipeline.top_k", 20)

	// Artifacts defaults
	v.SetDefault("artifacts.dir", "models")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate scorer config
	if c.Scorer.Concurrency <= 0 {
		return fmt.Errorf("scorer concurrency must be positive")
	}
	if c.Scorer.MaxAttempts <= 0 {
		return fmt.Errorf("scorer max_attempts must be positive")
	}
	if c.Scorer.MaxChars <= 0 {
		return fmt.Errorf("scorer max_chars must be positive")
	}
	if c.Scorer.CachePath == "" {
		return fmt.Errorf("scorer cache_path is required")
	}

	// Validate pipeline config
	if c.Pipeline.TopK <= 0 {
		return fmt.Errorf("pipeline top_k must be positive")
	}

	// Validate artifacts config
	if c.Artifacts.Dir == "" {
		return fmt.Errorf("artifacts dir is required")
	}

	// Validate that the configured LLM provider has its required API key set.
	switch strings.ToLower(c.LLM.Provider) {
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires CITERANK_LLM_OPENAI_API_KEY to be set", c.LLM.Provider)
		}
	case "anthropic":
		if c.LLM.Anthropic.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires CITERANK_LLM_ANTHROPIC_API_KEY to be set", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}

	return nil
}

// ClientSettings returns the provider-specific model, base URL, and API key
// for the configured provider.
func (c *LLMConfig) ClientSettings() (model, baseURL, apiKey string) {
	switch strings.ToLower(c.Provider) {
	case "anthropic":
		return c.Anthropic.Model, c.Anthropic.BaseURL, c.Anthropic.APIKey
	default:
		return c.OpenAI.Model, c.OpenAI.BaseURL, c.OpenAI.APIKey
	}
}
