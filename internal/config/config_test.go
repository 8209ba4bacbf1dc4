package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Engine.MaxConcurrent != 3 {
		t.Errorf("expected max_concurrent 3, got %d", cfg.Engine.MaxConcurrent)
	}
	if cfg.Engine.AgentLoadLimit != 2 {
		t.Errorf("expected agents_per_default_slot 2, got %d", cfg.Engine.AgentLoadLimit)
	}
	if cfg.Engine.StaleFactor != 2 || cfg.Engine.AtRiskWarnings != 3 {
		t.Errorf("unexpected monitor defaults: %+v", cfg.Engine)
	}
	if cfg.Defaults.CheckInterval != "*/30 * * * *" || !cfg.Defaults.AutoAssign {
		t.Errorf("unexpected project defaults: %+v", cfg.Defaults)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("TEST_FOREMAN_KEY", "sk-ant-from-env-reference")
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, configPath, `
anthropic:
  api_key: ${TEST_FOREMAN_KEY}
  use_bedrock: true
  aws_region: eu-west-1
engine:
  max_concurrent: 5
  stale_factor: 1.5
defaults:
  auto_replan: true
  check_interval: "@hourly"
  default_agent_ids: [builder, reviewer]
agents:
  - builder
  - reviewer
`)

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "sk-ant-from-env-reference" {
		t.Errorf("api_key = %q, want expanded reference", cfg.Anthropic.APIKey)
	}
	if !cfg.Anthropic.UseBedrock || cfg.Anthropic.AWSRegion != "eu-west-1" {
		t.Errorf("anthropic = %+v", cfg.Anthropic)
	}
	if cfg.Engine.MaxConcurrent != 5 || cfg.Engine.StaleFactor != 1.5 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Engine.QueueSize != 64 {
		t.Errorf("queue_size should keep its default, got %d", cfg.Engine.QueueSize)
	}
	if !cfg.Defaults.AutoReplan || cfg.Defaults.CheckInterval != "@hourly" {
		t.Errorf("defaults = %+v", cfg.Defaults)
	}
	if !reflect.DeepEqual(cfg.Defaults.DefaultAgentIDs, []string{"builder", "reviewer"}) {
		t.Errorf("default_agent_ids = %v", cfg.Defaults.DefaultAgentIDs)
	}
	if !reflect.DeepEqual(cfg.Agents, []string{"builder", "reviewer"}) {
		t.Errorf("agents = %v", cfg.Agents)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad cron", "defaults:\n  check_interval: \"whenever\"\n"},
		{"zero concurrency", "engine:\n  max_concurrent: 0\n"},
		{"blank agent", "agents: [\"  \"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeFile(t, path, tt.content)
			_, err := LoadFromPath(path)
			if err == nil || !strings.Contains(err.Error(), "invalid config") {
				t.Errorf("expected invalid config error, got %v", err)
			}
		})
	}
}

func TestLoadLayering(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	root := t.TempDir()
	userDir := filepath.Join(root, "xdg", "foreman")
	writeFile(t, filepath.Join(userDir, "config.yaml"), `
anthropic:
  model: user-model
engine:
  queue_size: 10
  event_buffer: 5
`)
	repo := filepath.Join(root, "repo")
	writeFile(t, filepath.Join(repo, ProjectConfigName), `
engine:
  queue_size: 20
`)
	start := filepath.Join(repo, "cmd", "deep")
	if err := os.MkdirAll(start, 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FOREMAN_ENGINE_EVENT_BUFFER", "42")

	cfg, err := load(userDir, start)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Anthropic.Model != "user-model" {
		t.Errorf("model = %q, want user config value", cfg.Anthropic.Model)
	}
	if cfg.Engine.QueueSize != 20 {
		t.Errorf("queue_size = %d, want project override 20", cfg.Engine.QueueSize)
	}
	if cfg.Engine.EventBuffer != 42 {
		t.Errorf("event_buffer = %d, want env override 42", cfg.Engine.EventBuffer)
	}
}

func TestLoadAPIKeyFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env-key")
	cfg, err := load(filepath.Join(t.TempDir(), "missing"), t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-env-key" {
		t.Errorf("api_key = %q", cfg.Anthropic.APIKey)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Anthropic.Model = "saved-model"
	cfg.Engine.MaxConcurrent = 9
	cfg.Defaults.DefaultAgentIDs = []string{"a1"}
	cfg.Agents = []string{"a1", "a2"}

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if !reflect.DeepEqual(loaded, cfg) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, cfg)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	if dir := getUserConfigDir(); dir != "/custom/config/foreman" {
		t.Errorf("expected /custom/config/foreman, got %q", dir)
	}
	if path := GetUserConfigPath(); path != "/custom/config/foreman/config.yaml" {
		t.Errorf("GetUserConfigPath() = %q", path)
	}
}

func TestFindProjectConfig(t *testing.T) {
	root := t.TempDir()
	if got := FindProjectConfig(root); got != "" {
		t.Errorf("expected no project config, got %q", got)
	}

	writeFile(t, filepath.Join(root, ProjectConfigName), ProjectTemplate)
	deep := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(deep, 0755); err != nil {
		t.Fatal(err)
	}
	if got := FindProjectConfig(deep); got != filepath.Join(root, ProjectConfigName) {
		t.Errorf("FindProjectConfig() = %q", got)
	}
}

func TestProjectTemplateLoads(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	path := filepath.Join(t.TempDir(), ProjectConfigName)
	writeFile(t, path, ProjectTemplate)
	if _, err := LoadFromPath(path); err != nil {
		t.Errorf("template should load cleanly: %v", err)
	}
}
