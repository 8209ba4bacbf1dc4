// Package orchestrator dispatches ready tasks to agents under a
// per-project concurrency limit and turns execution events into task
// status changes.
//
// The orchestrator mutates the tasks of the project it is handed but never
// persists them; the caller owns persistence and must not dispatch the same
// project from two goroutines at once.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ShayCichocki/foreman/internal/events"
	"github.com/ShayCichocki/foreman/internal/graph"
	"github.com/ShayCichocki/foreman/internal/logging"
	"github.com/ShayCichocki/foreman/pkg/models"
)

// Orchestrator is the execution orchestrator.
type Orchestrator struct {
	exec     ExecutionService
	registry AgentRegistry
	tracker  *executionTracker
	changes  chan StatusChange

	maxConcurrent  int
	queueSize      int
	agentLoadLimit int

	logger  *logging.DebugLogger
	emitter *events.Emitter
	now     func() time.Time
}

// New creates an orchestrator. registry may be nil, in which case only
// explicit and default agents are used.
func New(exec ExecutionService, registry AgentRegistry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		exec:           exec,
		registry:       registry,
		tracker:        newExecutionTracker(),
		maxConcurrent:  DefaultMaxConcurrent,
		queueSize:      DefaultQueueSize,
		agentLoadLimit: DefaultAgentLoadLimit,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.changes = make(chan StatusChange, o.queueSize)
	return o
}

// Changes returns the queue of status changes derived from execution events.
func (o *Orchestrator) Changes() <-chan StatusChange {
	return o.changes
}

// GetReadyTasks returns the project's dispatchable frontier in list order.
func (o *Orchestrator) GetReadyTasks(p *models.Project) []*models.Task {
	return graph.Ready(p.Tasks())
}

// ActiveCount returns the number of tracked executions for a project.
func (o *Orchestrator) ActiveCount(projectID string) int {
	return o.tracker.countForProject(projectID)
}

// Executions returns the tracked executions for a project, oldest first.
func (o *Orchestrator) Executions(projectID string) []Execution {
	return o.tracker.forProject(projectID)
}

// Tracking reports whether executionID is an in-flight execution.
func (o *Orchestrator) Tracking(executionID string) bool {
	_, ok := o.tracker.get(executionID)
	return ok
}

// Restore re-seeds tracking with executions a host persisted earlier.
func (o *Orchestrator) Restore(executions []Execution) {
	for _, e := range executions {
		o.tracker.track(e)
	}
	if len(executions) > 0 {
		o.logger.Log("[orchestrator] restored %d tracked executions", len(executions))
	}
}

// limitFor returns the concurrency limit that applies to a project.
func (o *Orchestrator) limitFor(p *models.Project) int {
	if p.Settings.MaxConcurrentTasks > 0 {
		return p.Settings.MaxConcurrentTasks
	}
	return o.maxConcurrent
}

// DispatchReadyTasks dispatches up to the available slots of the ready
// frontier and returns how many were started. Ready tasks beyond the free
// slots are left untouched. Priority is not consulted; tasks go in list
// order.
func (o *Orchestrator) DispatchReadyTasks(ctx context.Context, p *models.Project) int {
	ready := o.GetReadyTasks(p)
	if len(ready) == 0 {
		return 0
	}

	slots := o.limitFor(p) - o.ActiveCount(p.ID)
	if slots <= 0 {
		o.logger.Log("[orchestrator] %s: no free slots (%d ready)", p.ID, len(ready))
		return 0
	}
	if len(ready) > slots {
		ready = ready[:slots]
	}

	dispatched := 0
	for _, task := range ready {
		agentID := ""
		if task.AgentPinned {
			agentID = task.AssignedAgentID
		}
		if agentID == "" {
			agentID = o.SelectAgent(ctx, task, p)
		}
		if agentID == "" {
			continue
		}
		if o.AssignAndDispatch(ctx, p, task, agentID) {
			dispatched++
		}
	}

	o.logger.Log("[orchestrator] %s: dispatched %d of %d candidates", p.ID, dispatched, len(ready))
	return dispatched
}

// SelectAgent picks an agent for task. Default agents are tried in order and
// the first under the load limit wins; otherwise the registry's first agent
// is used. When nothing is available it appends a note to the task and
// returns "".
func (o *Orchestrator) SelectAgent(ctx context.Context, task *models.Task, p *models.Project) string {
	for _, id := range p.Settings.DefaultAgentIDs {
		if o.tracker.countForAgent(id) < o.agentLoadLimit {
			return id
		}
	}

	if o.registry != nil {
		agents, err := o.registry.List(ctx)
		if err != nil {
			log.Printf("[orchestrator] WARNING: agent registry unavailable: %v", err)
			o.logger.Log("[orchestrator] agent registry error: %v", err)
		} else if len(agents) > 0 {
			return agents[0].ID
		}
	}

	task.AddNote(models.NoteAuthorAI, models.NoteTypeObservation,
		"No agent available for dispatch; task left pending.", o.now())
	o.logger.Log("[orchestrator] %s/%s: no agent available", p.ID, task.ID)
	return ""
}

// AssignAndDispatch starts task on agentID. On success the task moves to
// in_progress and is tracked. On failure a blocker note is added, the
// status is left unchanged and false is returned.
func (o *Orchestrator) AssignAndDispatch(ctx context.Context, p *models.Project, task *models.Task, agentID string) bool {
	execID, err := o.exec.StartTask(ctx, StartRequest{
		AgentID:        agentID,
		ConversationID: p.ConversationID,
		Message:        buildTaskPrompt(p, task),
		Metadata: map[string]string{
			MetaProjectID: p.ID,
			MetaTaskID:    task.ID,
		},
	})
	if err != nil {
		task.AddNote(models.NoteAuthorAI, models.NoteTypeBlocker,
			fmt.Sprintf("Dispatch to agent %s failed: %v", agentID, err), o.now())
		o.logger.Log("[orchestrator] %s/%s: dispatch to %s failed: %v", p.ID, task.ID, agentID, err)
		return false
	}

	now := o.now()
	o.tracker.track(Execution{
		ID:           execID,
		ProjectID:    p.ID,
		TaskID:       task.ID,
		AgentID:      agentID,
		DispatchedAt: now,
	})

	old := task.Status
	task.Status = models.TaskStatusInProgress
	task.AssignedAgentID = agentID
	task.AssignedExecutionID = execID
	task.StartedAt = &now
	task.AddNote(models.NoteAuthorAI, models.NoteTypeObservation,
		fmt.Sprintf("Dispatched to agent %s (execution %s).", agentID, execID), now)

	o.emitter.Emit(events.Event{
		Type:      events.EventTaskStatusChanged,
		ProjectID: p.ID,
		TaskID:    task.ID,
		OldStatus: string(old),
		NewStatus: string(models.TaskStatusInProgress),
		Timestamp: now,
	})
	o.logger.Log("[orchestrator] %s/%s: %s -> in_progress on %s (%s)", p.ID, task.ID, old, agentID, execID)
	return true
}

// HandleExecutionUpdate turns a terminal execution event into a
// StatusChange on the Changes queue. Non-terminal and unknown statuses are
// logged and ignored, as are handles that are not tracked. It returns
// ctx.Err() if ctx is cancelled while the queue is full.
func (o *Orchestrator) HandleExecutionUpdate(ctx context.Context, u ExecutionUpdate) error {
	var next models.TaskStatus
	switch u.Status {
	case ExecutionCompleted:
		next = models.TaskStatusDone
	case ExecutionError, ExecutionFailed:
		next = models.TaskStatusBlocked
	case ExecutionCancelled:
		next = models.TaskStatusPending
	case ExecutionRunning:
		return nil
	default:
		o.logger.Log("[orchestrator] execution %s: ignoring unknown status %q", u.TaskID, u.Status)
		return nil
	}

	e, ok := o.tracker.untrack(u.TaskID)
	if !ok {
		o.logger.Log("[orchestrator] execution %s: untracked handle, %s ignored", u.TaskID, u.Status)
		return nil
	}

	change := StatusChange{
		ProjectID:   e.ProjectID,
		TaskID:      e.TaskID,
		ExecutionID: e.ID,
		AgentID:     e.AgentID,
		Old:         models.TaskStatusInProgress,
		New:         next,
		Result:      u.Result,
		Error:       u.Error,
	}

	select {
	case o.changes <- change:
		o.logger.Log("[orchestrator] %s/%s: queued in_progress -> %s", e.ProjectID, e.TaskID, next)
		return nil
	case <-ctx.Done():
		// Not delivered: keep the execution tracked.
		o.tracker.track(e)
		return ctx.Err()
	}
}

// HandleExecutionMessage logs streamed execution output.
func (o *Orchestrator) HandleExecutionMessage(m ExecutionMessage) {
	e, ok := o.tracker.get(m.TaskID)
	if !ok {
		o.logger.Log("[orchestrator] message from untracked execution %s", m.TaskID)
		return
	}
	o.logger.Log("[orchestrator] %s/%s: %s", e.ProjectID, e.TaskID, truncate(m.Content, 200))
}

// CancelTask asks the execution service to cancel and stops tracking the
// execution whatever the service answers. The service error is returned
// for the caller to log.
func (o *Orchestrator) CancelTask(ctx context.Context, executionID string) error {
	err := o.exec.CancelTask(ctx, executionID)
	o.tracker.untrack(executionID)
	if err != nil {
		o.logger.Log("[orchestrator] cancel %s: %v", executionID, err)
		return fmt.Errorf("cancel execution %s: %w", executionID, err)
	}
	return nil
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
