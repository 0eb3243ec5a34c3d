// Package config handles configuration loading and management for Lilli.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Lilli.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Routing  RoutingConfig  `mapstructure:"routing"`
	Session  SessionConfig  `mapstructure:"session"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Store    StoreConfig    `mapstructure:"store"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Shop     ShopConfig     `mapstructure:"shop"`
}

// LLMConfig holds the text-completion backend settings.
type LLMConfig struct {
	// Provider is anthropic, openai, or offline.
	Provider        string        `mapstructure:"provider"`
	// Model is the provider's model name. Empty uses the provider default.
	Model           string        `mapstructure:"model"`
	AnthropicAPIKey string        `mapstructure:"anthropic_api_key"`
	OpenAIAPIKey    string        `mapstructure:"openai_api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	Bedrock         bool          `mapstructure:"bedrock"`
	AWSRegion       string        `mapstructure:"aws_region"`
	AWSProfile      string        `mapstructure:"aws_profile"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Retries         int           `mapstructure:"retries"`
	RetryBase       time.Duration `mapstructure:"retry_base"`
}

// RoutingConfig holds classifier and dispatcher policy.
type RoutingConfig struct {
	LowConfidenceThreshold float64 `mapstructure:"low_confidence_threshold"`
	FallbackConfidenceCap  float64 `mapstructure:"fallback_confidence_cap"`
	// FallbackHandler and ClarificationHandler default to the catalog's.
	FallbackHandler      string `mapstructure:"fallback_handler"`
	ClarificationHandler string `mapstructure:"clarification_handler"`
	HistoryTurns         int    `mapstructure:"history_turns"`
}

// SessionConfig holds conversation window settings.
type SessionConfig struct {
	WindowSize  int           `mapstructure:"window_size"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// CatalogConfig points at a handler catalog file. Empty uses the built-in one.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// StoreConfig selects the snapshot store backend.
type StoreConfig struct {
	// Type is memory, sqlite, or redis.
	Type          string        `mapstructure:"type"`
	SQLitePath    string        `mapstructure:"sqlite_path"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	RedisTTL      time.Duration `mapstructure:"redis_ttl"`
}

// DispatchConfig holds handler execution settings.
type DispatchConfig struct {
	Parallel       bool          `mapstructure:"parallel"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
}

// LogConfig holds debug log settings. An empty path disables the log.
type LogConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig holds metrics export settings. An empty path disables export.
type MetricsConfig struct {
	Path string `mapstructure:"path"`
}

// ShopConfig holds the records the lookup tools answer from.
type ShopConfig struct {
	// DataPath is a YAML file of products, customers, and orders. Empty
	// uses the built-in sample records.
	DataPath string `mapstructure:"data_path"`
	// ToolSteps bounds the tool calls a handler makes per turn.
	ToolSteps int `mapstructure:"tool_steps"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, OPENAI_API_KEY, OPENAI_BASE_URL, LILLI_*)
// 2. Project config (.lilli.yaml in current directory or parent)
// 3. User config (~/.config/lilli/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	bindEnv(v)

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.LLM.AnthropicAPIKey = expandEnv(cfg.LLM.AnthropicAPIKey)
	cfg.LLM.OpenAIAPIKey = expandEnv(cfg.LLM.OpenAIAPIKey)
	cfg.Store.RedisPassword = expandEnv(cfg.Store.RedisPassword)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnv maps environment variables onto config keys. Every key can be set
// as LILLI_<SECTION>_<KEY>; provider credentials also use their usual names.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("LILLI")
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	v.BindEnv("llm.anthropic_api_key", "LILLI_LLM_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	v.BindEnv("llm.openai_api_key", "LILLI_LLM_OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("llm.base_url", "LILLI_LLM_BASE_URL", "OPENAI_BASE_URL")
}

// Validate checks values that would otherwise fail deep inside a turn.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderOffline:
	default:
		return fmt.Errorf("llm.provider: unknown provider %q", c.LLM.Provider)
	}
	switch c.Store.Type {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("store.type: unknown store %q", c.Store.Type)
	}
	if c.Routing.LowConfidenceThreshold < 0 || c.Routing.LowConfidenceThreshold > 1 {
		return fmt.Errorf("routing.low_confidence_threshold: %v is outside [0, 1]", c.Routing.LowConfidenceThreshold)
	}
	if c.Routing.FallbackConfidenceCap < 0 || c.Routing.FallbackConfidenceCap > 1 {
		return fmt.Errorf("routing.fallback_confidence_cap: %v is outside [0, 1]", c.Routing.FallbackConfidenceCap)
	}
	if c.Session.WindowSize < 1 {
		return fmt.Errorf("session.window_size: must be at least 1, got %d", c.Session.WindowSize)
	}
	if c.Shop.ToolSteps < 0 {
		return fmt.Errorf("shop.tool_steps: must not be negative, got %d", c.Shop.ToolSteps)
	}
	return nil
}

// Save writes the current configuration to the user config file.
// API keys are written as given; prefer ${VAR} references.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("llm.provider", cfg.LLM.Provider)
	v.Set("llm.model", cfg.LLM.Model)
	v.Set("llm.anthropic_api_key", cfg.LLM.AnthropicAPIKey)
	v.Set("llm.openai_api_key", cfg.LLM.OpenAIAPIKey)
	v.Set("llm.base_url", cfg.LLM.BaseURL)
	v.Set("llm.bedrock", cfg.LLM.Bedrock)
	v.Set("llm.aws_region", cfg.LLM.AWSRegion)
	v.Set("llm.aws_profile", cfg.LLM.AWSProfile)
	v.Set("llm.max_tokens", cfg.LLM.MaxTokens)
	v.Set("llm.timeout", cfg.LLM.Timeout.String())
	v.Set("llm.retries", cfg.LLM.Retries)
	v.Set("llm.retry_base", cfg.LLM.RetryBase.String())
	v.Set("routing.low_confidence_threshold", cfg.Routing.LowConfidenceThreshold)
	v.Set("routing.fallback_confidence_cap", cfg.Routing.FallbackConfidenceCap)
	v.Set("routing.fallback_handler", cfg.Routing.FallbackHandler)
	v.Set("routing.clarification_handler", cfg.Routing.ClarificationHandler)
	v.Set("routing.history_turns", cfg.Routing.HistoryTurns)
	v.Set("session.window_size", cfg.Session.WindowSize)
	v.Set("session.idle_timeout", cfg.Session.IdleTimeout.String())
	v.Set("catalog.path", cfg.Catalog.Path)
	v.Set("store.type", cfg.Store.Type)
	v.Set("store.sqlite_path", cfg.Store.SQLitePath)
	v.Set("store.redis_addr", cfg.Store.RedisAddr)
	v.Set("store.redis_password", cfg.Store.RedisPassword)
	v.Set("store.redis_db", cfg.Store.RedisDB)
	v.Set("store.redis_ttl", cfg.Store.RedisTTL.String())
	v.Set("dispatch.parallel", cfg.Dispatch.Parallel)
	v.Set("dispatch.handler_timeout", cfg.Dispatch.HandlerTimeout.String())
	v.Set("log.path", cfg.Log.Path)
	v.Set("metrics.path", cfg.Metrics.Path)
	v.Set("shop.data_path", cfg.Shop.DataPath)
	v.Set("shop.tool_steps", cfg.Shop.ToolSteps)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.anthropic_api_key", "")
	v.SetDefault("llm.openai_api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.bedrock", false)
	v.SetDefault("llm.aws_region", "")
	v.SetDefault("llm.aws_profile", "")
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.timeout", d.LLM.Timeout.String())
	v.SetDefault("llm.retries", d.LLM.Retries)
	v.SetDefault("llm.retry_base", d.LLM.RetryBase.String())

	v.SetDefault("routing.low_confidence_threshold", d.Routing.LowConfidenceThreshold)
	v.SetDefault("routing.fallback_confidence_cap", d.Routing.FallbackConfidenceCap)
	v.SetDefault("routing.fallback_handler", d.Routing.FallbackHandler)
	v.SetDefault("routing.clarification_handler", d.Routing.ClarificationHandler)
	v.SetDefault("routing.history_turns", d.Routing.HistoryTurns)

	v.SetDefault("session.window_size", d.Session.WindowSize)
	v.SetDefault("session.idle_timeout", d.Session.IdleTimeout.String())

	v.SetDefault("catalog.path", "")

	v.SetDefault("store.type", d.Store.Type)
	v.SetDefault("store.sqlite_path", "")
	v.SetDefault("store.redis_addr", d.Store.RedisAddr)
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_ttl", d.Store.RedisTTL.String())

	v.SetDefault("dispatch.parallel", false)
	v.SetDefault("dispatch.handler_timeout", d.Dispatch.HandlerTimeout.String())

	v.SetDefault("log.path", "")
	v.SetDefault("metrics.path", "")

	v.SetDefault("shop.data_path", "")
	v.SetDefault("shop.tool_steps", d.Shop.ToolSteps)
}

// getUserConfigDir returns the XDG config directory for Lilli.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "lilli")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "lilli")
	}
	return filepath.Join(home, ".config", "lilli")
}

// findProjectConfig searches for .lilli.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".lilli.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  ProviderAnthropic,
			MaxTokens: 1024,
			Timeout:   30 * time.Second,
			Retries:   2,
			RetryBase: 500 * time.Millisecond,
		},
		Routing: RoutingConfig{
			LowConfidenceThreshold: 0.5,
			FallbackConfidenceCap:  0.5,
			HistoryTurns:           5,
		},
		Session: SessionConfig{
			WindowSize:  10,
			IdleTimeout: 30 * time.Minute,
		},
		Store: StoreConfig{
			Type:      "sqlite",
			RedisAddr: "localhost:6379",
			RedisTTL:  24 * time.Hour,
		},
		Dispatch: DispatchConfig{
			HandlerTimeout: 45 * time.Second,
		},
		Shop: ShopConfig{
			ToolSteps: 4,
		},
	}
}
