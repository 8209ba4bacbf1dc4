package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/foreman/internal/config"
	"github.com/ShayCichocki/foreman/internal/state"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Display the configuration after layering defaults, the user config,
the nearest .foreman.yaml and the environment.

User configuration is stored at ~/.config/foreman/config.yaml.
Project overrides can be placed in .foreman.yaml.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Print(formatConfig(cfg))
	return nil
}

func formatConfig(cfg *config.Config) string {
	key, source, _ := config.APIKey(cfg)

	var b strings.Builder
	line := func(k string, v any) { fmt.Fprintf(&b, "%s: %v\n", k, v) }

	line("anthropic.api_key", fmt.Sprintf("%s (%s)", config.MaskAPIKey(key), source))
	line("anthropic.model", cfg.Anthropic.Model)
	line("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	if cfg.Anthropic.UseBedrock {
		line("anthropic.aws_region", cfg.Anthropic.AWSRegion)
		line("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	}
	line("anthropic.max_tokens", cfg.Anthropic.MaxTokens)

	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = state.DefaultDBPath() + " (default)"
	}
	line("storage.path", dbPath)

	line("engine.max_concurrent", cfg.Engine.MaxConcurrent)
	line("engine.queue_size", cfg.Engine.QueueSize)
	line("engine.event_buffer", cfg.Engine.EventBuffer)
	line("engine.agents_per_default_slot", cfg.Engine.AgentLoadLimit)
	line("engine.stale_factor", cfg.Engine.StaleFactor)
	line("engine.at_risk_warnings", cfg.Engine.AtRiskWarnings)

	line("defaults.auto_assign", cfg.Defaults.AutoAssign)
	line("defaults.auto_replan", cfg.Defaults.AutoReplan)
	line("defaults.check_interval", cfg.Defaults.CheckInterval)
	line("defaults.default_agent_ids", strings.Join(cfg.Defaults.DefaultAgentIDs, ","))
	line("defaults.max_concurrent_tasks", cfg.Defaults.MaxConcurrentTasks)
	line("defaults.notify_on_milestone", cfg.Defaults.NotifyOnMilestone)
	line("agents", strings.Join(cfg.Agents, ","))

	fmt.Fprintf(&b, "\nuser config: %s\n", config.GetUserConfigPath())
	return b.String()
}
