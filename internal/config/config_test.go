package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.LLM.Provider != ProviderAnthropic {
		t.Errorf("expected default provider 'anthropic', got %q", cfg.LLM.Provider)
	}

	if cfg.Routing.LowConfidenceThreshold != 0.5 {
		t.Errorf("expected low confidence threshold 0.5, got %v", cfg.Routing.LowConfidenceThreshold)
	}

	if cfg.Routing.FallbackHandler != "" || cfg.Routing.ClarificationHandler != "" {
		t.Errorf("expected routing handlers to default to the catalog's, got %+v", cfg.Routing)
	}

	if cfg.Session.WindowSize != 10 {
		t.Errorf("expected window size 10, got %d", cfg.Session.WindowSize)
	}

	if cfg.Store.Type != "sqlite" {
		t.Errorf("expected store type 'sqlite', got %q", cfg.Store.Type)
	}

	if cfg.Store.RedisTTL != 24*time.Hour {
		t.Errorf("expected redis ttl 24h, got %v", cfg.Store.RedisTTL)
	}

	if cfg.Dispatch.Parallel {
		t.Error("expected dispatch.parallel to be false")
	}

	if cfg.Shop.ToolSteps != 4 || cfg.Shop.DataPath != "" {
		t.Errorf("unexpected shop defaults: %+v", cfg.Shop)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
llm:
  provider: openai
  model: gpt-4o
  openai_api_key: test-key
  base_url: http://localhost:8000/v1
  timeout: 10s
routing:
  low_confidence_threshold: 0.6
  history_turns: 3
session:
  window_size: 4
store:
  type: redis
  redis_addr: redis:6379
  redis_ttl: 1h
dispatch:
  parallel: true
  handler_timeout: 5s
shop:
  data_path: /srv/lilli/shop.yaml
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.LLM.Provider != ProviderOpenAI {
		t.Errorf("expected provider 'openai', got %q", cfg.LLM.Provider)
	}

	if cfg.LLM.OpenAIAPIKey != "test-key" {
		t.Errorf("expected openai_api_key 'test-key', got %q", cfg.LLM.OpenAIAPIKey)
	}

	if cfg.LLM.BaseURL != "http://localhost:8000/v1" {
		t.Errorf("expected base_url, got %q", cfg.LLM.BaseURL)
	}

	if cfg.LLM.Timeout != 10*time.Second {
		t.Errorf("expected timeout 10s, got %v", cfg.LLM.Timeout)
	}

	if cfg.Routing.LowConfidenceThreshold != 0.6 {
		t.Errorf("expected threshold 0.6, got %v", cfg.Routing.LowConfidenceThreshold)
	}

	if cfg.Routing.HistoryTurns != 3 {
		t.Errorf("expected history turns 3, got %d", cfg.Routing.HistoryTurns)
	}

	// Unset keys keep their defaults.
	if cfg.Routing.FallbackConfidenceCap != 0.5 {
		t.Errorf("expected default fallback cap 0.5, got %v", cfg.Routing.FallbackConfidenceCap)
	}

	if cfg.Session.WindowSize != 4 {
		t.Errorf("expected window size 4, got %d", cfg.Session.WindowSize)
	}

	if cfg.Store.Type != "redis" || cfg.Store.RedisAddr != "redis:6379" || cfg.Store.RedisTTL != time.Hour {
		t.Errorf("unexpected store config: %+v", cfg.Store)
	}

	if !cfg.Dispatch.Parallel || cfg.Dispatch.HandlerTimeout != 5*time.Second {
		t.Errorf("unexpected dispatch config: %+v", cfg.Dispatch)
	}

	if cfg.Shop.DataPath != "/srv/lilli/shop.yaml" || cfg.Shop.ToolSteps != 4 {
		t.Errorf("unexpected shop config: %+v", cfg.Shop)
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown provider", "llm:\n  provider: parrot\n", "llm.provider"},
		{"unknown store", "store:\n  type: floppy\n", "store.type"},
		{"threshold out of range", "routing:\n  low_confidence_threshold: 1.5\n", "low_confidence_threshold"},
		{"cap out of range", "routing:\n  fallback_confidence_cap: -0.1\n", "fallback_confidence_cap"},
		{"empty window", "session:\n  window_size: 0\n", "window_size"},
		{"negative tool steps", "shop:\n  tool_steps: -1\n", "shop.tool_steps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write config file: %v", err)
			}

			_, err := LoadFromPath(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_Precedence(t *testing.T) {
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_BASE_URL", "")

	userDir := filepath.Join(configHome, "lilli")
	if err := os.MkdirAll(userDir, 0700); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	userConfig := `
session:
  window_size: 6
routing:
  history_turns: 2
store:
  type: memory
`
	if err := os.WriteFile(filepath.Join(userDir, "config.yaml"), []byte(userConfig), 0644); err != nil {
		t.Fatalf("failed to write user config: %v", err)
	}

	projectDir := t.TempDir()
	projectConfig := `
session:
  window_size: 8
`
	if err := os.WriteFile(filepath.Join(projectDir, ".lilli.yaml"), []byte(projectConfig), 0644); err != nil {
		t.Fatalf("failed to write project config: %v", err)
	}
	t.Chdir(projectDir)

	t.Setenv("LILLI_ROUTING_HISTORY_TURNS", "9")
	t.Setenv("OPENAI_BASE_URL", "http://proxy.local/v1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Session.WindowSize != 8 {
		t.Errorf("project config should override user config: window size %d", cfg.Session.WindowSize)
	}
	if cfg.Store.Type != "memory" {
		t.Errorf("user config value lost: store type %q", cfg.Store.Type)
	}
	if cfg.Routing.HistoryTurns != 9 {
		t.Errorf("environment should override files: history turns %d", cfg.Routing.HistoryTurns)
	}
	if cfg.LLM.BaseURL != "http://proxy.local/v1" {
		t.Errorf("expected base url from OPENAI_BASE_URL, got %q", cfg.LLM.BaseURL)
	}
}

func TestSaveAndReload(t *testing.T) {
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)

	cfg := Default()
	cfg.LLM.Provider = ProviderOffline
	cfg.Session.WindowSize = 3
	cfg.Store.Type = "memory"
	cfg.Dispatch.HandlerTimeout = 7 * time.Second
	cfg.Shop.ToolSteps = 2

	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.LLM.Provider != ProviderOffline || loaded.Session.WindowSize != 3 {
		t.Errorf("unexpected reloaded config: %+v", loaded)
	}
	if loaded.Dispatch.HandlerTimeout != 7*time.Second {
		t.Errorf("expected handler timeout 7s, got %v", loaded.Dispatch.HandlerTimeout)
	}
	if loaded.Shop.ToolSteps != 2 {
		t.Errorf("expected tool steps 2, got %d", loaded.Shop.ToolSteps)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")

	result := expandEnv("${TEST_VAR}")
	if result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}

	result = expandEnv("prefix-${TEST_VAR}-suffix")
	if result != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	dir := getUserConfigDir()
	expected := "/custom/config/lilli"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}
