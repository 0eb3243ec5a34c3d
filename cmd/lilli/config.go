package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryanmello/lilli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Lilli configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/lilli/config.yaml
Project-specific overrides can be placed in .lilli.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch len(args) {
		case 0:
			return displayAllConfig(out, cfg)
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, value)
			return nil
		default:
			if err := setConfigValue(cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			fmt.Fprintf(out, "Set %s = %s\n", args[0], args[1])
			return nil
		}
	},
}

// configKeys lists every key in display order.
var configKeys = []string{
	"llm.provider",
	"llm.model",
	"llm.anthropic_api_key",
	"llm.openai_api_key",
	"llm.base_url",
	"llm.bedrock",
	"llm.aws_region",
	"llm.aws_profile",
	"llm.max_tokens",
	"llm.timeout",
	"llm.retries",
	"llm.retry_base",
	"routing.low_confidence_threshold",
	"routing.fallback_confidence_cap",
	"routing.fallback_handler",
	"routing.clarification_handler",
	"routing.history_turns",
	"session.window_size",
	"session.idle_timeout",
	"catalog.path",
	"store.type",
	"store.sqlite_path",
	"store.redis_addr",
	"store.redis_db",
	"store.redis_ttl",
	"dispatch.parallel",
	"dispatch.handler_timeout",
	"log.path",
	"metrics.path",
	"shop.data_path",
	"shop.tool_steps",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(out io.Writer, cfg *config.Config) error {
	for _, key := range configKeys {
		value, err := getConfigValue(cfg, key)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %s\n", key, value)
	}
	return nil
}

// getConfigValue retrieves a configuration value by dot-notation key.
// API keys are masked.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "llm.provider":
		return cfg.LLM.Provider, nil
	case "llm.model":
		return orDefault(cfg.LLM.Model), nil
	case "llm.anthropic_api_key":
		return config.MaskAPIKey(cfg.LLM.AnthropicAPIKey), nil
	case "llm.openai_api_key":
		return config.MaskAPIKey(cfg.LLM.OpenAIAPIKey), nil
	case "llm.base_url":
		return orDefault(cfg.LLM.BaseURL), nil
	case "llm.bedrock":
		return strconv.FormatBool(cfg.LLM.Bedrock), nil
	case "llm.aws_region":
		return orDefault(cfg.LLM.AWSRegion), nil
	case "llm.aws_profile":
		return orDefault(cfg.LLM.AWSProfile), nil
	case "llm.max_tokens":
		return strconv.Itoa(cfg.LLM.MaxTokens), nil
	case "llm.timeout":
		return cfg.LLM.Timeout.String(), nil
	case "llm.retries":
		return strconv.Itoa(cfg.LLM.Retries), nil
	case "llm.retry_base":
		return cfg.LLM.RetryBase.String(), nil
	case "routing.low_confidence_threshold":
		return formatFloat(cfg.Routing.LowConfidenceThreshold), nil
	case "routing.fallback_confidence_cap":
		return formatFloat(cfg.Routing.FallbackConfidenceCap), nil
	case "routing.fallback_handler":
		return orDefault(cfg.Routing.FallbackHandler), nil
	case "routing.clarification_handler":
		return orDefault(cfg.Routing.ClarificationHandler), nil
	case "routing.history_turns":
		return strconv.Itoa(cfg.Routing.HistoryTurns), nil
	case "session.window_size":
		return strconv.Itoa(cfg.Session.WindowSize), nil
	case "session.idle_timeout":
		return cfg.Session.IdleTimeout.String(), nil
	case "catalog.path":
		return orDefault(cfg.Catalog.Path), nil
	case "store.type":
		return cfg.Store.Type, nil
	case "store.sqlite_path":
		return orDefault(cfg.Store.SQLitePath), nil
	case "store.redis_addr":
		return cfg.Store.RedisAddr, nil
	case "store.redis_db":
		return strconv.Itoa(cfg.Store.RedisDB), nil
	case "store.redis_ttl":
		return cfg.Store.RedisTTL.String(), nil
	case "dispatch.parallel":
		return strconv.FormatBool(cfg.Dispatch.Parallel), nil
	case "dispatch.handler_timeout":
		return cfg.Dispatch.HandlerTimeout.String(), nil
	case "log.path":
		return orDefault(cfg.Log.Path), nil
	case "metrics.path":
		return orDefault(cfg.Metrics.Path), nil
	case "shop.data_path":
		return orDefault(cfg.Shop.DataPath), nil
	case "shop.tool_steps":
		return strconv.Itoa(cfg.Shop.ToolSteps), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	var err error
	switch strings.ToLower(key) {
	case "llm.provider":
		cfg.LLM.Provider = value
	case "llm.model":
		cfg.LLM.Model = value
	case "llm.anthropic_api_key":
		cfg.LLM.AnthropicAPIKey = value
	case "llm.openai_api_key":
		cfg.LLM.OpenAIAPIKey = value
	case "llm.base_url":
		cfg.LLM.BaseURL = value
	case "llm.bedrock":
		cfg.LLM.Bedrock, err = parseBool(key, value)
	case "llm.aws_region":
		cfg.LLM.AWSRegion = value
	case "llm.aws_profile":
		cfg.LLM.AWSProfile = value
	case "llm.max_tokens":
		cfg.LLM.MaxTokens, err = parseInt(key, value)
	case "llm.timeout":
		cfg.LLM.Timeout, err = parseDuration(key, value)
	case "llm.retries":
		cfg.LLM.Retries, err = parseInt(key, value)
	case "llm.retry_base":
		cfg.LLM.RetryBase, err = parseDuration(key, value)
	case "routing.low_confidence_threshold":
		cfg.Routing.LowConfidenceThreshold, err = parseFloat(key, value)
	case "routing.fallback_confidence_cap":
		cfg.Routing.FallbackConfidenceCap, err = parseFloat(key, value)
	case "routing.fallback_handler":
		cfg.Routing.FallbackHandler = value
	case "routing.clarification_handler":
		cfg.Routing.ClarificationHandler = value
	case "routing.history_turns":
		cfg.Routing.HistoryTurns, err = parseInt(key, value)
	case "session.window_size":
		cfg.Session.WindowSize, err = parseInt(key, value)
	case "session.idle_timeout":
		cfg.Session.IdleTimeout, err = parseDuration(key, value)
	case "catalog.path":
		cfg.Catalog.Path = value
	case "store.type":
		cfg.Store.Type = value
	case "store.sqlite_path":
		cfg.Store.SQLitePath = value
	case "store.redis_addr":
		cfg.Store.RedisAddr = value
	case "store.redis_db":
		cfg.Store.RedisDB, err = parseInt(key, value)
	case "store.redis_ttl":
		cfg.Store.RedisTTL, err = parseDuration(key, value)
	case "dispatch.parallel":
		cfg.Dispatch.Parallel, err = parseBool(key, value)
	case "dispatch.handler_timeout":
		cfg.Dispatch.HandlerTimeout, err = parseDuration(key, value)
	case "log.path":
		cfg.Log.Path = value
	case "metrics.path":
		cfg.Metrics.Path = value
	case "shop.data_path":
		cfg.Shop.DataPath = value
	case "shop.tool_steps":
		cfg.Shop.ToolSteps, err = parseInt(key, value)
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return err
}

func orDefault(s string) string {
	if s == "" {
		return "(default)"
	}
	return s
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for %s: %w", key, err)
	}
	return b, nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return n, nil
}

func parseFloat(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return f, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}
