// Package config handles configuration loading and management for foreman.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/foreman/internal/validation"
	"github.com/ShayCichocki/foreman/pkg/models"
)

// ProjectConfigName is the per-directory override file.
const ProjectConfigName = ".foreman.yaml"

// Config holds all configuration for foreman.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Engine    EngineConfig    `mapstructure:"engine"`
	// Defaults are the settings given to new projects.
	Defaults models.ProjectSettings `mapstructure:"defaults"`
	// Agents is the registry of agent ids for the in-process execution service.
	Agents []string `mapstructure:"agents" validate:"dive,nonempty"`
}

// AnthropicConfig holds planning model settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
	MaxTokens  int    `mapstructure:"max_tokens" validate:"gte=0"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// Path of the SQLite database. Empty means the XDG data directory.
	Path string `mapstructure:"path"`
}

// EngineConfig holds engine tuning knobs.
type EngineConfig struct {
	// MaxConcurrent applies to projects whose settings do not set a limit.
	MaxConcurrent int `mapstructure:"max_concurrent" validate:"gte=1"`
	QueueSize     int `mapstructure:"queue_size" validate:"gte=1"`
	EventBuffer   int `mapstructure:"event_buffer" validate:"gte=0"`
	// AgentLoadLimit caps tracked executions per default agent.
	AgentLoadLimit int     `mapstructure:"agents_per_default_slot" validate:"gte=1"`
	StaleFactor    float64 `mapstructure:"stale_factor" validate:"gt=0"`
	AtRiskWarnings int     `mapstructure:"at_risk_warnings" validate:"gte=1"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, FOREMAN_*)
// 2. Project config (.foreman.yaml in current directory or parent)
// 3. User config (~/.config/foreman/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return load(getUserConfigDir(), cwd)
}

func load(userConfigDir, startDir string) (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := FindProjectConfig(startDir); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	return decode(v)
}

// LoadFromPath loads configuration from a single file over the defaults.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("foreman")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY", "FOREMAN_ANTHROPIC_API_KEY")
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	cfg.Storage.Path = os.ExpandEnv(cfg.Storage.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its validate tags.
func (c *Config) Validate() error {
	if err := validation.Struct(nil, c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	return SaveTo(cfg, GetUserConfigPath())
}

// SaveTo writes the configuration to path, creating its directory.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("storage.path", cfg.Storage.Path)
	v.Set("engine.max_concurrent", cfg.Engine.MaxConcurrent)
	v.Set("engine.queue_size", cfg.Engine.QueueSize)
	v.Set("engine.event_buffer", cfg.Engine.EventBuffer)
	v.Set("engine.agents_per_default_slot", cfg.Engine.AgentLoadLimit)
	v.Set("engine.stale_factor", cfg.Engine.StaleFactor)
	v.Set("engine.at_risk_warnings", cfg.Engine.AtRiskWarnings)
	v.Set("defaults.auto_assign", cfg.Defaults.AutoAssign)
	v.Set("defaults.auto_replan", cfg.Defaults.AutoReplan)
	v.Set("defaults.check_interval", cfg.Defaults.CheckInterval)
	v.Set("defaults.default_agent_ids", cfg.Defaults.DefaultAgentIDs)
	v.Set("defaults.max_concurrent_tasks", cfg.Defaults.MaxConcurrentTasks)
	v.Set("defaults.notify_on_milestone", cfg.Defaults.NotifyOnMilestone)
	v.Set("agents", cfg.Agents)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("anthropic.api_key", d.Anthropic.APIKey)
	v.SetDefault("anthropic.model", d.Anthropic.Model)
	v.SetDefault("anthropic.use_bedrock", d.Anthropic.UseBedrock)
	v.SetDefault("anthropic.aws_region", d.Anthropic.AWSRegion)
	v.SetDefault("anthropic.aws_profile", d.Anthropic.AWSProfile)
	v.SetDefault("anthropic.max_tokens", d.Anthropic.MaxTokens)

	v.SetDefault("storage.path", d.Storage.Path)

	v.SetDefault("engine.max_concurrent", d.Engine.MaxConcurrent)
	v.SetDefault("engine.queue_size", d.Engine.QueueSize)
	v.SetDefault("engine.event_buffer", d.Engine.EventBuffer)
	v.SetDefault("engine.agents_per_default_slot", d.Engine.AgentLoadLimit)
	v.SetDefault("engine.stale_factor", d.Engine.StaleFactor)
	v.SetDefault("engine.at_risk_warnings", d.Engine.AtRiskWarnings)

	v.SetDefault("defaults.auto_assign", d.Defaults.AutoAssign)
	v.SetDefault("defaults.auto_replan", d.Defaults.AutoReplan)
	v.SetDefault("defaults.check_interval", d.Defaults.CheckInterval)
	v.SetDefault("defaults.default_agent_ids", []string{})
	v.SetDefault("defaults.max_concurrent_tasks", d.Defaults.MaxConcurrentTasks)
	v.SetDefault("defaults.notify_on_milestone", d.Defaults.NotifyOnMilestone)

	v.SetDefault("agents", d.Agents)
}

// getUserConfigDir returns the XDG config directory for foreman.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "foreman")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "foreman")
	}
	return filepath.Join(home, ".config", "foreman")
}

// FindProjectConfig searches for .foreman.yaml in dir and its parents.
func FindProjectConfig(dir string) string {
	for {
		configPath := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
		},
		Engine: EngineConfig{
			MaxConcurrent:  3,
			QueueSize:      64,
			EventBuffer:    100,
			AgentLoadLimit: 2,
			StaleFactor:    2,
			AtRiskWarnings: 3,
		},
		Defaults: models.DefaultProjectSettings(),
		Agents:   []string{"agent-1"},
	}
}

// ProjectTemplate is written by `foreman init`.
const ProjectTemplate = `# foreman project configuration
anthropic:
  # api_key: ${ANTHROPIC_API_KEY}
  model: claude-sonnet-4-20250514
  use_bedrock: false

engine:
  max_concurrent: 3
  stale_factor: 2

defaults:
  auto_assign: true
  auto_replan: false
  check_interval: "*/30 * * * *"
  max_concurrent_tasks: 3
  notify_on_milestone: true

agents:
  - agent-1
`
