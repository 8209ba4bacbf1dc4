package models

import (
	"strings"
	"time"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is waiting on dependencies or a slot.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusReady indicates every dependency is done and the task can be dispatched.
	TaskStatusReady TaskStatus = "ready"
	// TaskStatusInProgress indicates an agent is working on the task.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusBlocked indicates the last execution failed. Leaving this
	// state requires a replan or an explicit user transition.
	TaskStatusBlocked TaskStatus = "blocked"
	// TaskStatusDone indicates the task completed successfully.
	TaskStatusDone TaskStatus = "done"
	// TaskStatusCancelled is terminal. Tasks are never deleted.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusReady, TaskStatusInProgress,
		TaskStatusBlocked, TaskStatusDone, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Dispatchable reports whether a task in this status may be handed to an agent.
func (s TaskStatus) Dispatchable() bool {
	return s == TaskStatusPending || s == TaskStatusReady
}

// Terminal reports whether the status ends the task's lifecycle for
// project completion purposes.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusDone || s == TaskStatusCancelled
}

// Priority is the relative urgency of a task.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Valid returns true if the priority is a known value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// ParsePriority normalizes a free-form priority string.
// The second return value is false when the input is not a known level.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	return p, p.Valid()
}

// NoteAuthor identifies who wrote a note.
type NoteAuthor string

const (
	NoteAuthorUser NoteAuthor = "user"
	NoteAuthorAI   NoteAuthor = "ai"
)

// NoteType classifies a note.
type NoteType string

const (
	NoteTypeComment     NoteType = "comment"
	NoteTypeObservation NoteType = "observation"
	NoteTypeBlocker     NoteType = "blocker"
	NoteTypeResolution  NoteType = "resolution"
)

// Note is one entry in a task's append-only log.
type Note struct {
	ID        string     `json:"id"`
	Author    NoteAuthor `json:"author"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Type      NoteType   `json:"type"`
}

// Task represents a unit of work in a plan.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Priority is the relative urgency of the task.
	Priority Priority `json:"priority"`
	// EstimatedEffort is a free-form magnitude such as "2h" or "1d".
	EstimatedEffort string `json:"estimated_effort,omitempty"`
	// DependsOn lists task IDs that must be done before this task.
	DependsOn []string `json:"depends_on,omitempty"`
	// BlockedBy is derived: the IDs of tasks that depend on this one.
	BlockedBy []string `json:"blocked_by,omitempty"`
	// Tags are free-form labels.
	Tags []string `json:"tags,omitempty"`
	// AcceptanceCriteria defines the criteria for task completion.
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
	// Notes is the append-only log for this task.
	Notes []Note `json:"notes,omitempty"`
	// Subtasks are nested tasks of the same shape.
	Subtasks []*Task `json:"subtasks,omitempty"`
	// AssignedAgentID is the agent chosen for this task.
	AssignedAgentID string `json:"assigned_agent_id,omitempty"`
	// AgentPinned is set when a user chose AssignedAgentID. Unpinned
	// choices are dropped whenever the task leaves in_progress unfinished.
	AgentPinned bool `json:"agent_pinned,omitempty"`
	// AssignedExecutionID is the execution handle of the current dispatch.
	AssignedExecutionID string `json:"assigned_execution_id,omitempty"`
	// StartedAt is when the task was last dispatched.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task was completed, if applicable.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Output is the free-text result of the execution.
	Output string `json:"output,omitempty"`
}

// AddNote appends a note to the task's log and returns it.
func (t *Task) AddNote(author NoteAuthor, noteType NoteType, content string, at time.Time) Note {
	n := Note{
		ID:        NewID(),
		Author:    author,
		Content:   content,
		Timestamp: at,
		Type:      noteType,
	}
	t.Notes = append(t.Notes, n)
	return n
}

// HasNoteOfType reports whether the log contains a note of the given type.
func (t *Task) HasNoteOfType(noteType NoteType) bool {
	for _, n := range t.Notes {
		if n.Type == noteType {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the task, including subtasks.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.DependsOn = cloneStrings(t.DependsOn)
	c.BlockedBy = cloneStrings(t.BlockedBy)
	c.Tags = cloneStrings(t.Tags)
	c.AcceptanceCriteria = cloneStrings(t.AcceptanceCriteria)
	if t.Notes != nil {
		c.Notes = make([]Note, len(t.Notes))
		copy(c.Notes, t.Notes)
	}
	if t.StartedAt != nil {
		ts := *t.StartedAt
		c.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	if t.Subtasks != nil {
		c.Subtasks = make([]*Task, len(t.Subtasks))
		for i, st := range t.Subtasks {
			c.Subtasks[i] = st.Clone()
		}
	}
	return &c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}
