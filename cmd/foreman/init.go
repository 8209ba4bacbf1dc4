package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/foreman/internal/config"
	"github.com/ShayCichocki/foreman/internal/signals"
	"github.com/ShayCichocki/foreman/internal/state"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize foreman for a directory",
	Long: `Create the foreman data directory and write a .foreman.yaml project
configuration into the target directory.

Examples:
  foreman init              # Initialize current directory
  foreman init ./myproject  # Initialize specific directory
  foreman init --force      # Overwrite an existing .foreman.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing project configuration")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}
	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolve directory: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	dataDir := state.DataDir()
	for _, dir := range []string{dataDir, signals.Dir(dataDir), filepath.Join(dataDir, "logs"), filepath.Join(dataDir, "runs")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	fmt.Printf("%s data directory %s\n", color.GreenString("✓"), dataDir)

	configPath := filepath.Join(absPath, config.ProjectConfigName)
	if _, err := os.Stat(configPath); err == nil && !initForce {
		fmt.Printf("%s %s already exists (use --force to overwrite)\n", color.YellowString("!"), configPath)
		return nil
	}
	if err := os.WriteFile(configPath, []byte(config.ProjectTemplate), 0644); err != nil {
		return fmt.Errorf("write %s: %w", configPath, err)
	}
	fmt.Printf("%s wrote %s\n", color.GreenString("✓"), configPath)

	fmt.Printf("\n%s foreman initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next: describe a project in a YAML file and run `foreman create -f project.yaml --plan`.")
	return nil
}
