package manager

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/foreman/internal/events"
	"github.com/ShayCichocki/foreman/internal/orchestrator"
	"github.com/ShayCichocki/foreman/pkg/models"
)

// userTransitions lists the status changes a caller may request directly.
// Dispatch (to in_progress) only happens through the orchestrator.
var userTransitions = map[models.TaskStatus][]models.TaskStatus{
	models.TaskStatusPending:    {models.TaskStatusReady, models.TaskStatusCancelled},
	models.TaskStatusReady:      {models.TaskStatusPending, models.TaskStatusCancelled},
	models.TaskStatusInProgress: {models.TaskStatusDone, models.TaskStatusBlocked, models.TaskStatusPending, models.TaskStatusCancelled},
	models.TaskStatusBlocked:    {models.TaskStatusPending, models.TaskStatusReady, models.TaskStatusCancelled},
}

func allowed(from, to models.TaskStatus) bool {
	for _, s := range userTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TaskUpdate is a direct edit of one task. Zero fields are left unchanged.
type TaskUpdate struct {
	Status models.TaskStatus
	// Note is appended as a user note of NoteType (comment by default).
	Note     string
	NoteType models.NoteType
	// Output replaces the task output; it is usually set with Status done.
	Output string
}

// UpdateTask applies a caller edit. Marking a task done on an active
// project cascades a dispatch pass. Leaving in_progress cancels the
// tracked execution.
func (m *Manager) UpdateTask(ctx context.Context, projectID, taskID string, u TaskUpdate) (*models.Task, error) {
	unlock := m.lock(projectID)
	defer unlock()

	p, t, err := m.load(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}

	old := t.Status
	if u.Status != "" && u.Status != old {
		if !u.Status.Valid() || !allowed(old, u.Status) {
			return nil, fmt.Errorf("task %s %s -> %s: %w", taskID, old, u.Status, ErrInvalidTransition)
		}
	}

	changing := u.Status != "" && u.Status != old
	blockerNote := ""
	if note := strings.TrimSpace(u.Note); note != "" {
		noteType := u.NoteType
		if noteType == "" {
			noteType = models.NoteTypeComment
			if changing && u.Status == models.TaskStatusBlocked {
				noteType = models.NoteTypeBlocker
			}
		}
		t.AddNote(models.NoteAuthorUser, noteType, note, m.now())
	} else if changing && u.Status == models.TaskStatusBlocked {
		blockerNote = "Marked blocked by user."
	}
	if u.Output != "" {
		t.Output = u.Output
	}

	if changing {
		if old == models.TaskStatusInProgress && t.AssignedExecutionID != "" {
			if err := m.orch.CancelTask(ctx, t.AssignedExecutionID); err != nil {
				m.logger.Log("[manager] %s/%s: %v", p.ID, t.ID, err)
			}
			t.AssignedExecutionID = ""
		}
		m.applyStatus(p, t, u.Status, t.Output, blockerNote)
	}

	if err := m.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if changing && u.Status.Terminal() {
		if err := m.afterTerminal(ctx, p, u.Status); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AssignTask pins a dispatchable task to an agent. On an active project
// a dispatch pass follows, so the task starts right away when it is ready
// and a slot is free. It reports whether the task is now running.
func (m *Manager) AssignTask(ctx context.Context, projectID, taskID, agentID string) (bool, error) {
	unlock := m.lock(projectID)
	defer unlock()

	p, t, err := m.load(ctx, projectID, taskID)
	if err != nil {
		return false, err
	}
	if !t.Status.Dispatchable() {
		return false, fmt.Errorf("assign task %s while %s: %w", taskID, t.Status, ErrInvalidTransition)
	}

	t.AssignedAgentID = agentID
	t.AgentPinned = true
	t.AddNote(models.NoteAuthorUser, models.NoteTypeObservation, "Assigned to agent "+agentID+".", m.now())
	if p.Status == models.ProjectStatusActive {
		if _, err := m.dispatch(ctx, p); err != nil {
			return false, err
		}
	} else if err := m.store.Save(ctx, p); err != nil {
		return false, fmt.Errorf("assign task: %w", err)
	}
	return t.Status == models.TaskStatusInProgress, nil
}

// CancelTask cancels the running execution of a task and returns the task
// to pending. The execution service error, if any, is logged.
func (m *Manager) CancelTask(ctx context.Context, projectID, taskID string) error {
	unlock := m.lock(projectID)
	defer unlock()

	p, t, err := m.load(ctx, projectID, taskID)
	if err != nil {
		return err
	}
	if t.Status != models.TaskStatusInProgress {
		return fmt.Errorf("cancel task %s while %s: %w", taskID, t.Status, ErrInvalidTransition)
	}

	if t.AssignedExecutionID != "" {
		if err := m.orch.CancelTask(ctx, t.AssignedExecutionID); err != nil {
			m.logger.Log("[manager] %s/%s: %v", p.ID, t.ID, err)
		}
	}
	t.AssignedExecutionID = ""
	m.applyStatus(p, t, models.TaskStatusPending, "", "")

	if err := m.store.Save(ctx, p); err != nil {
		return fmt.Errorf("cancel task: %w", err)
	}
	return nil
}

// SearchTasks finds tasks in a project by text.
func (m *Manager) SearchTasks(ctx context.Context, projectID, query string, limit int) ([]*models.Task, error) {
	unlock := m.lock(projectID)
	defer unlock()

	p, _, err := m.load(ctx, projectID, "")
	if err != nil {
		return nil, err
	}
	found := m.store.SearchTasks(ctx, p, query, limit)
	out := make([]*models.Task, len(found))
	for i, t := range found {
		out[i] = t.Clone()
	}
	return out, nil
}

// HandleTaskStatusChange applies an execution outcome to the persisted
// task. Changes for a task no longer running that execution are ignored.
// A completion on an active project cascades another dispatch pass and a
// completion check.
func (m *Manager) HandleTaskStatusChange(ctx context.Context, c orchestrator.StatusChange) error {
	unlock := m.lock(c.ProjectID)
	defer unlock()

	p, t, err := m.load(ctx, c.ProjectID, c.TaskID)
	if err != nil {
		return fmt.Errorf("status change for execution %s: %w", c.ExecutionID, err)
	}

	if t.Status != c.Old || (t.AssignedExecutionID != "" && t.AssignedExecutionID != c.ExecutionID) {
		m.logger.Log("[manager] %s/%s: stale change from %s ignored (task is %s)", p.ID, t.ID, c.ExecutionID, t.Status)
		return nil
	}

	if c.New != models.TaskStatusDone {
		t.AssignedExecutionID = ""
	}
	blockerNote := ""
	if c.New == models.TaskStatusBlocked {
		reason := strings.TrimSpace(c.Error)
		if reason == "" {
			reason = "no error message"
		}
		blockerNote = fmt.Sprintf("Execution %s failed: %s", c.ExecutionID, reason)
	}
	m.applyStatus(p, t, c.New, c.Result, blockerNote)
	if err := m.store.Save(ctx, p); err != nil {
		return fmt.Errorf("apply status change: %w", err)
	}

	if c.New == models.TaskStatusDone {
		return m.afterTerminal(ctx, p, c.New)
	}
	return nil
}

// applyStatus moves t to next and records the side effects of the
// transition. A task leaving in_progress unfinished forgets an agent the
// orchestrator picked, so the next dispatch selects again. blockerNote, when set, is logged on the task as a blocker.
// It does not persist.
func (m *Manager) applyStatus(p *models.Project, t *models.Task, next models.TaskStatus, result, blockerNote string) {
	old := t.Status
	now := m.now()
	t.Status = next
	if old == models.TaskStatusInProgress && next != models.TaskStatusDone && !t.AgentPinned {
		t.AssignedAgentID = ""
	}

	switch next {
	case models.TaskStatusDone:
		t.CompletedAt = &now
		if result != "" {
			t.Output = result
		}
	case models.TaskStatusBlocked:
		if blockerNote != "" {
			t.AddNote(models.NoteAuthorAI, models.NoteTypeBlocker, blockerNote, now)
		}
	case models.TaskStatusPending, models.TaskStatusReady:
		if old == models.TaskStatusInProgress {
			t.StartedAt = nil
			t.AddNote(models.NoteAuthorAI, models.NoteTypeObservation, "Execution cancelled; task returned to the ready pool.", now)
		}
	}

	m.emitTaskStatus(p, t, old)
	m.logger.Log("[manager] %s/%s: %s -> %s", p.ID, t.ID, old, next)
}

// afterTerminal runs once a task reached done or cancelled and the change
// is persisted. On an active project a done task cascades a dispatch pass
// when auto-assignment is on; milestones are rolled up and project
// completion is checked.
func (m *Manager) afterTerminal(ctx context.Context, p *models.Project, status models.TaskStatus) error {
	if p.Status != models.ProjectStatusActive {
		return nil
	}

	if status == models.TaskStatusDone && p.Settings.AutoAssign {
		m.orch.DispatchReadyTasks(ctx, p)
	}
	m.mon.RollUpMilestones(p)

	if allTerminal(p.Tasks()) {
		m.complete(ctx, p)
	}
	if err := m.store.Save(ctx, p); err != nil {
		return fmt.Errorf("persist cascade: %w", err)
	}
	return nil
}

func allTerminal(tasks []*models.Task) bool {
	if len(tasks) == 0 {
		return false
	}
	for _, t := range tasks {
		if !t.Status.Terminal() {
			return false
		}
	}
	return true
}

func (m *Manager) complete(ctx context.Context, p *models.Project) {
	p.Status = models.ProjectStatusCompleted
	m.mon.StopMonitoring(ctx, p.ID)

	m.emitter.Emit(events.Event{
		Type:      events.EventProjectCompleted,
		ProjectID: p.ID,
		Message:   p.Name,
		Timestamp: m.now(),
	})
	m.notifier.Notify(events.Notification{
		Title:    "Project completed",
		Message:  fmt.Sprintf("%s: every task is done or cancelled", p.Name),
		Type:     events.NotificationSuccess,
		Priority: "normal",
		Category: "project",
		Source:   "foreman",
	})
	m.logger.Log("[manager] %s: completed", p.ID)
}
