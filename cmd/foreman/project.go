package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/foreman/internal/manager"
	"github.com/ShayCichocki/foreman/pkg/models"
)

var (
	createFile      string
	createName      string
	createGoals     []string
	createPlan      bool
	planConstraints []string
	planEstimate    bool
	planPrioritize  bool
	replanBlocker   string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a project from goals",
	Long: `Create a project in planning status.

A project file is YAML (or JSON):

  name: Launch site
  description: Public marketing site
  goals:
    - description: Ship the landing page
      success_criteria: Page live on the production domain
    - description: Collect signups
  settings:
    auto_assign: true
    check_interval: "*/30 * * * *"
    max_concurrent_tasks: 2

Goals are listed most important first.`,
	RunE: runCreate,
}

var importCmd = &cobra.Command{
	Use:   "import <project.json>",
	Short: "Restore a complete project exported with `foreman export`",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export <project-id>",
	Short: "Print a project as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var planCmd = &cobra.Command{
	Use:   "plan <project-id>",
	Short: "Generate a plan from the project goals",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlan,
}

var replanCmd = &cobra.Command{
	Use:   "replan <project-id>",
	Short: "Revise the remaining plan around a blocker",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplan,
}

var pauseCmd = &cobra.Command{
	Use:   "pause <project-id>",
	Short: "Pause a project that is not being run",
	Long: `Pause a project and stop its scheduled health checks.

To pause a project a 'foreman run' is driving, use 'foreman signal pause <id>'.`,
	Args: cobra.ExactArgs(1),
	RunE: runPause,
}

func init() {
	createCmd.Flags().StringVarP(&createFile, "file", "f", "", "Project file (YAML or JSON)")
	createCmd.Flags().StringVar(&createName, "name", "", "Project name (without a file)")
	createCmd.Flags().StringArrayVar(&createGoals, "goal", nil, "Goal description, repeatable, most important first")
	createCmd.Flags().BoolVar(&createPlan, "plan", false, "Generate the plan right away")

	planCmd.Flags().StringArrayVar(&planConstraints, "constraint", nil, "Planning constraint, repeatable")
	planCmd.Flags().BoolVar(&planEstimate, "estimate", false, "Run an extra estimation pass over the plan")
	planCmd.Flags().BoolVar(&planPrioritize, "prioritize", false, "Run an extra prioritization pass over the plan")

	replanCmd.Flags().StringVar(&replanBlocker, "blocker", "", "What is blocking the project")
	_ = replanCmd.MarkFlagRequired("blocker")
}

func readCreateRequest() (manager.CreateProjectRequest, error) {
	var req manager.CreateProjectRequest
	if createFile != "" {
		data, err := os.ReadFile(createFile)
		if err != nil {
			return req, fmt.Errorf("read project file: %w", err)
		}
		if err := yaml.Unmarshal(data, &req); err != nil {
			return req, fmt.Errorf("parse project file %s: %w", createFile, err)
		}
	}
	if createName != "" {
		req.Name = createName
	}
	for _, g := range createGoals {
		req.Goals = append(req.Goals, manager.GoalInput{Description: g})
	}
	return req, nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	req, err := readCreateRequest()
	if err != nil {
		return err
	}

	mode := modeOffline
	if createPlan {
		mode = modePlanning
	}
	a, err := newApp(mode)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	p, err := a.mgr.CreateProject(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("%s created project %s (%s)\n", color.GreenString("✓"), p.Name, p.ID)

	if createPlan {
		return generatePlan(ctx, a, p.ID)
	}
	fmt.Printf("Next: foreman plan %s\n", p.ID)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read export: %w", err)
	}
	var p models.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse export %s: %w", args[0], err)
	}

	a, err := newApp(modeOffline)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.ensureNotRunning(p.ID); err != nil {
		return err
	}

	imported, err := a.mgr.ImportProject(cmd.Context(), &p)
	if err != nil {
		return err
	}
	fmt.Printf("%s imported %s (%s) with %d task(s)\n", color.GreenString("✓"), imported.Name, imported.ID, len(imported.Tasks()))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := newApp(modeOffline)
	if err != nil {
		return err
	}
	defer a.close()

	p, err := a.mgr.GetProject(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp(modeOffline)
	if err != nil {
		return err
	}
	defer a.close()

	projects, err := a.mgr.ListProjects(cmd.Context())
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Println("No projects. Run 'foreman create' to start one.")
		return nil
	}
	for _, p := range projects {
		done := 0
		for _, t := range p.Tasks() {
			if t.Status == models.TaskStatusDone {
				done++
			}
		}
		fmt.Printf("%-36s  %-10s  %3d/%-3d  %s\n", p.ID, p.Status, done, len(p.Tasks()), p.Name)
	}
	return nil
}

func generatePlan(ctx context.Context, a *app, projectID string) error {
	if err := a.ensureNotRunning(projectID); err != nil {
		return err
	}
	plan, err := a.mgr.GeneratePlan(ctx, projectID, planConstraints)
	if err != nil {
		return err
	}
	if len(plan.Tasks) == 0 {
		fmt.Println(color.YellowString("The planning model returned no usable tasks; try again or add constraints."))
		return nil
	}
	if planEstimate {
		if err := a.mgr.EstimatePlan(ctx, projectID); err != nil {
			return err
		}
	}
	if planPrioritize {
		if err := a.mgr.PrioritizePlan(ctx, projectID, planConstraints); err != nil {
			return err
		}
	}

	p, err := a.mgr.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	fmt.Println(renderPlan(p))
	fmt.Printf("\nNext: foreman run %s\n", projectID)
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	a, err := newApp(modePlanning)
	if err != nil {
		return err
	}
	defer a.close()
	return generatePlan(cmd.Context(), a, args[0])
}

func runReplan(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(replanBlocker) == "" {
		return fmt.Errorf("--blocker must describe what is blocking the project")
	}
	a, err := newApp(modePlanning)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.ensureNotRunning(args[0]); err != nil {
		return err
	}

	ctx := cmd.Context()
	if _, err := a.mgr.ReplanProject(ctx, args[0], replanBlocker); err != nil {
		return err
	}
	p, err := a.mgr.GetProject(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(renderPlan(p))
	return nil
}

func runPause(cmd *cobra.Command, args []string) error {
	a, err := newApp(modeOffline)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.ensureNotRunning(args[0]); err != nil {
		return err
	}
	if err := a.mgr.PauseProject(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("%s paused %s; 'foreman run %s' resumes it\n", color.GreenString("✓"), args[0], args[0])
	return nil
}
