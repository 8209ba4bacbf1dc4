package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/foreman/internal/events"
	"github.com/ShayCichocki/foreman/internal/manager"
	"github.com/ShayCichocki/foreman/internal/signals"
	"github.com/ShayCichocki/foreman/pkg/models"
)

var runPoll time.Duration

var runCmd = &cobra.Command{
	Use:   "run <project-id>",
	Short: "Execute a project's plan until it completes",
	Long: `Activate the project, dispatch ready tasks to agents and keep
applying their results until every task is done or cancelled.

A paused project is resumed. The run stops when the project completes,
when nothing is running and nothing more can start, or on interrupt.
While it runs, 'foreman signal pause|check|replan <id>' steers it.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().DurationVar(&runPoll, "poll", time.Second, "How often to check whether the run can make progress")
}

func runRun(cmd *cobra.Command, args []string) error {
	projectID := args[0]

	a, err := newApp(modeRunner)
	if err != nil {
		return err
	}
	defer a.close()

	release, err := acquireRunLock(a.dataDir, projectID)
	if err != nil {
		return err
	}
	defer release()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := a.mgr.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if p.Status == models.ProjectStatusCompleted {
		fmt.Printf("%s %s is already completed\n", color.GreenString("✓"), p.Name)
		return nil
	}
	if err := a.recoverOrphans(ctx, p); err != nil {
		return err
	}

	w, err := signals.New(signals.Dir(a.dataDir), projectID, a.signalHandlers(), a.logger)
	if err != nil {
		log.Printf("[foreman] WARNING: signal files disabled: %v", err)
	} else {
		go w.Run(ctx)
	}
	a.sched.Start()

	completed := make(chan struct{})
	go a.printEvents(projectID, completed)

	loopErr := make(chan error, 1)
	go func() { loopErr <- a.mgr.Run(ctx) }()

	var started int
	if p.Status == models.ProjectStatusPaused {
		started, err = a.mgr.ResumeProject(ctx, projectID)
	} else {
		started, err = a.mgr.ExecutePlan(ctx, projectID)
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s running %s: %d task(s) dispatched\n", color.CyanString("▶"), p.Name, started)

	tick := time.NewTicker(runPoll)
	defer tick.Stop()
	for {
		select {
		case <-completed:
			fmt.Printf("%s %s completed\n", color.GreenString("✓"), p.Name)
			return nil
		case <-ctx.Done():
			fmt.Println(color.YellowString("Interrupted; returning running tasks to the pool."))
			a.cancelRunning(projectID)
			return nil
		case err := <-loopErr:
			if err != nil && ctx.Err() == nil {
				return err
			}
		case <-tick.C:
			if msg, done := a.stalled(ctx, projectID); done {
				fmt.Println(msg)
				return nil
			}
		}
	}
}

// recoverOrphans returns tasks left in_progress by an earlier run that
// ended without their results to the pool.
func (a *app) recoverOrphans(ctx context.Context, p *models.Project) error {
	for _, t := range p.Tasks() {
		if t.Status != models.TaskStatusInProgress || a.orch.Tracking(t.AssignedExecutionID) {
			continue
		}
		note := fmt.Sprintf("Execution %s was lost when the previous run stopped.", t.AssignedExecutionID)
		if _, err := a.mgr.UpdateTask(ctx, p.ID, t.ID, manager.TaskUpdate{
			Status:   models.TaskStatusPending,
			Note:     note,
			NoteType: models.NoteTypeObservation,
		}); err != nil {
			return fmt.Errorf("recover task %s: %w", t.ID, err)
		}
		a.logger.Log("[foreman] %s/%s: recovered orphaned execution", p.ID, t.ID)
	}
	return nil
}

// cancelRunning cancels every tracked execution so the store does not
// keep tasks in_progress without a runner.
func (a *app) cancelRunning(projectID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, e := range a.orch.Executions(projectID) {
		if err := a.mgr.CancelTask(ctx, projectID, e.TaskID); err != nil {
			a.logger.Log("[foreman] cancel %s: %v", e.TaskID, err)
		}
	}
}

// stalled reports whether the run can no longer make progress on its own.
func (a *app) stalled(ctx context.Context, projectID string) (string, bool) {
	snap, err := a.mgr.GetProjectStatus(ctx, projectID)
	if err != nil {
		a.logger.Log("[foreman] status %s: %v", projectID, err)
		return "", false
	}
	if len(snap.Executions) > 0 || snap.TaskCounts[models.TaskStatusInProgress] > 0 {
		return "", false
	}

	switch snap.Status {
	case models.ProjectStatusPaused:
		return color.YellowString("Project paused; 'foreman run %s' resumes it.", projectID), true
	case models.ProjectStatusCompleted:
		return color.GreenString("✓ project completed"), true
	}

	p, err := a.mgr.GetProject(ctx, projectID)
	if err != nil {
		return "", false
	}
	blocked := snap.TaskCounts[models.TaskStatusBlocked]
	if blocked > 0 && p.Settings.AutoReplan && snap.Monitoring && !snap.Degraded {
		// A scheduled health check will request a replan.
		return "", false
	}
	ready := len(a.orch.GetReadyTasks(p))
	return color.YellowString("Nothing running: %d ready, %d blocked, %d pending. Resolve blockers or replan, then run again.",
		ready, blocked, snap.TaskCounts[models.TaskStatusPending]), true
}

func (a *app) signalHandlers() map[signals.Kind]signals.Handler {
	return map[signals.Kind]signals.Handler{
		signals.Pause: func(ctx context.Context, projectID, _ string) error {
			fmt.Println(color.YellowString("Pause requested; running tasks finish, nothing new starts."))
			return a.mgr.PauseProject(ctx, projectID)
		},
		signals.Check: func(ctx context.Context, projectID, _ string) error {
			report, err := a.mgr.GetProjectReport(ctx, projectID)
			if err != nil {
				return err
			}
			fmt.Println(renderReport(report))
			return nil
		},
		signals.Replan: func(ctx context.Context, projectID, blocker string) error {
			fmt.Printf("%s replanning around: %s\n", color.MagentaString("↻"), blocker)
			_, err := a.mgr.ReplanProject(ctx, projectID, blocker)
			return err
		},
	}
}

// printEvents echoes engine events for projectID and closes completed when
// the project finishes. It returns when the emitter is closed.
func (a *app) printEvents(projectID string, completed chan<- struct{}) {
	closed := false
	for e := range a.emitter.Events() {
		if e.ProjectID != projectID {
			continue
		}
		ts := dimStyle.Render(e.Timestamp.Format("15:04:05"))
		switch e.Type {
		case events.EventTaskStatusChanged:
			fmt.Printf("%s %s %s -> %s\n", ts, e.TaskID, e.OldStatus, taskStatusString(models.TaskStatus(e.NewStatus)))
		case events.EventMilestoneReached:
			fmt.Printf("%s %s milestone reached: %s\n", ts, color.GreenString("◆"), e.Message)
		case events.EventProjectHealthUpdate:
			if r, ok := e.Payload.(*models.HealthReport); ok {
				printHealthLine(r)
			}
		case events.EventProjectCompleted:
			if !closed {
				close(completed)
				closed = true
			}
		}
	}
}
