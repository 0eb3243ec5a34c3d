package config

import (
	"errors"
	"os"
	"strings"
)

// Supported completion providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOffline   = "offline"
)

// ErrNoAPIKey is returned when the selected provider has no API key.
var ErrNoAPIKey = errors.New("no API key configured")

// envReplacer maps nested keys such as llm.base_url onto LILLI_LLM_BASE_URL.
var envReplacer = strings.NewReplacer(".", "_")

// GetAPIKey returns the API key for the configured provider.
// It checks in order: environment variable, config file.
// The offline provider needs no key and always succeeds.
func GetAPIKey(cfg *Config) (string, error) {
	if cfg == nil {
		return "", ErrNoAPIKey
	}
	switch cfg.LLM.Provider {
	case ProviderOffline:
		return "", nil
	case ProviderOpenAI:
		return lookupKey("OPENAI_API_KEY", cfg.LLM.OpenAIAPIKey)
	default:
		if cfg.LLM.Bedrock {
			return "", nil
		}
		return lookupKey("ANTHROPIC_API_KEY", cfg.LLM.AnthropicAPIKey)
	}
}

func lookupKey(envName, configured string) (string, error) {
	if key := os.Getenv(envName); key != "" {
		return key, nil
	}
	if configured != "" {
		// Expand any remaining env var references
		key := os.ExpandEnv(configured)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, nil
		}
	}
	return "", ErrNoAPIKey
}

// ValidateAPIKey performs basic validation on an API key for the provider.
// It checks format but does not verify the key with the provider.
func ValidateAPIKey(provider, key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	switch provider {
	case ProviderAnthropic:
		if !strings.HasPrefix(key, "sk-ant-") {
			return errors.New("invalid API key format: expected 'sk-ant-' prefix")
		}
	case ProviderOpenAI:
		// OpenAI-compatible endpoints issue keys in many formats.
	}

	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}

	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the provider's API key was sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	if cfg == nil {
		return KeySourceNone
	}

	envName, configured := "ANTHROPIC_API_KEY", cfg.LLM.AnthropicAPIKey
	if cfg.LLM.Provider == ProviderOpenAI {
		envName, configured = "OPENAI_API_KEY", cfg.LLM.OpenAIAPIKey
	}

	if os.Getenv(envName) != "" {
		return KeySourceEnv
	}

	if configured != "" {
		key := os.ExpandEnv(configured)
		if key != "" && !strings.HasPrefix(key, "${") {
			return KeySourceConfig
		}
	}

	return KeySourceNone
}
