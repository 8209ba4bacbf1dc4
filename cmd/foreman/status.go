package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/foreman/pkg/models"
)

var (
	statusJSON  bool
	statusPlan  bool
	searchLimit int
)

var statusCmd = &cobra.Command{
	Use:   "status [project-id]",
	Short: "Show project status",
	Long: `Without an id, list every project. With an id, show task counts,
milestone progress, monitoring state and the last health report.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var reportCmd = &cobra.Command{
	Use:   "report <project-id>",
	Short: "Run a health check now",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

var searchCmd = &cobra.Command{
	Use:   "search <project-id> <query>",
	Short: "Find tasks by text",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSearch,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the status snapshot as JSON")
	statusCmd.Flags().BoolVar(&statusPlan, "plan", false, "Also print the task list")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum number of results")
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return runList(cmd, args)
	}

	a, err := newApp(modeOffline)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	snap, err := a.mgr.GetProjectStatus(ctx, args[0])
	if err != nil {
		return err
	}
	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	fmt.Println(renderStatus(snap))

	if statusPlan {
		p, err := a.mgr.GetProject(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(renderPlan(p))
	}
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	// The qualitative assessment is optional, so a missing key only skips it.
	a, err := newApp(modeOffline)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.ensureNotRunning(args[0]); err != nil {
		return fmt.Errorf("%w (signal: foreman signal check %s)", err, args[0])
	}

	report, err := a.mgr.GetProjectReport(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Println(renderReport(report))
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp(modeOffline)
	if err != nil {
		return err
	}
	defer a.close()

	query := strings.Join(args[1:], " ")
	tasks, err := a.mgr.SearchTasks(cmd.Context(), args[0], query, searchLimit)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Printf("No tasks match %q.\n", query)
		return nil
	}
	for _, t := range tasks {
		printTaskLine(t)
	}
	return nil
}

func printTaskLine(t *models.Task) {
	fmt.Printf("%-36s  %-11s  %s\n", t.ID, taskStatusString(t.Status), t.Title)
}
