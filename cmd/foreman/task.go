package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/foreman/internal/manager"
	"github.com/ShayCichocki/foreman/pkg/models"
)

var (
	taskStatus   string
	taskNote     string
	taskNoteType string
	taskOutput   string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Edit individual tasks",
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <project-id> <task-id>",
	Short: "Change a task's status or add a note",
	Long: `Apply a direct edit to one task.

Allowed status changes:
  pending      -> ready, cancelled
  ready        -> pending, cancelled
  in_progress  -> done, blocked, pending, cancelled
  blocked      -> pending, ready, cancelled`,
	Args: cobra.ExactArgs(2),
	RunE: runTaskUpdate,
}

var taskAssignCmd = &cobra.Command{
	Use:   "assign <project-id> <task-id> <agent-id>",
	Short: "Pin a task to an agent",
	Args:  cobra.ExactArgs(3),
	RunE:  runTaskAssign,
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel <project-id> <task-id>",
	Short: "Cancel a running task and return it to pending",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskCancel,
}

func init() {
	taskUpdateCmd.Flags().StringVar(&taskStatus, "status", "", "New status")
	taskUpdateCmd.Flags().StringVar(&taskNote, "note", "", "Note to append")
	taskUpdateCmd.Flags().StringVar(&taskNoteType, "note-type", "", "comment, observation, blocker or resolution")
	taskUpdateCmd.Flags().StringVar(&taskOutput, "output", "", "Task output, usually with --status done")

	taskCmd.AddCommand(taskUpdateCmd)
	taskCmd.AddCommand(taskAssignCmd)
	taskCmd.AddCommand(taskCancelCmd)
}

func runTaskUpdate(cmd *cobra.Command, args []string) error {
	switch models.NoteType(taskNoteType) {
	case "", models.NoteTypeComment, models.NoteTypeObservation, models.NoteTypeBlocker, models.NoteTypeResolution:
	default:
		return fmt.Errorf("unknown note type %q", taskNoteType)
	}

	a, err := newApp(modeOffline)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.ensureNotRunning(args[0]); err != nil {
		return err
	}

	t, err := a.mgr.UpdateTask(cmd.Context(), args[0], args[1], manager.TaskUpdate{
		Status:   models.TaskStatus(taskStatus),
		Note:     taskNote,
		NoteType: models.NoteType(taskNoteType),
		Output:   taskOutput,
	})
	if err != nil {
		return err
	}
	fmt.Printf("%s ", color.GreenString("✓"))
	printTaskLine(t)
	return nil
}

func runTaskAssign(cmd *cobra.Command, args []string) error {
	a, err := newApp(modeOffline)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.ensureNotRunning(args[0]); err != nil {
		return err
	}

	if _, err := a.mgr.AssignTask(cmd.Context(), args[0], args[1], args[2]); err != nil {
		return err
	}
	fmt.Printf("%s %s pinned to %s; it starts on the next run\n", color.GreenString("✓"), args[1], args[2])
	return nil
}

func runTaskCancel(cmd *cobra.Command, args []string) error {
	a, err := newApp(modeOffline)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.ensureNotRunning(args[0]); err != nil {
		return err
	}

	if err := a.mgr.CancelTask(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("%s %s returned to pending\n", color.GreenString("✓"), args[1])
	return nil
}
