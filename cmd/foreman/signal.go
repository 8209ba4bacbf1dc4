package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/foreman/internal/signals"
	"github.com/ShayCichocki/foreman/internal/state"
)

var signalCmd = &cobra.Command{
	Use:   "signal <pause|check|replan> <project-id> [blocker...]",
	Short: "Steer a running 'foreman run'",
	Long: `Drop a signal file for the process running a project.

  pause   stop dispatching; running tasks finish
  check   run a health check now and print the report
  replan  revise the remaining plan around the given blocker`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSignal,
}

func runSignal(cmd *cobra.Command, args []string) error {
	kind := signals.Kind(args[0])
	payload := strings.Join(args[2:], " ")
	if kind == signals.Replan && strings.TrimSpace(payload) == "" {
		return fmt.Errorf("replan needs a blocker description")
	}

	dataDir := state.DataDir()
	if _, running := lockHolder(runLockPath(dataDir, args[1])); !running {
		fmt.Println(color.YellowString("No run is active for %s; the signal is dropped when a run starts.", args[1]))
	}
	if err := signals.Send(signals.Dir(dataDir), kind, args[1], payload); err != nil {
		return err
	}
	fmt.Printf("%s sent %s to %s\n", color.GreenString("✓"), kind, args[1])
	return nil
}
