package models

import (
	"testing"
	"time"
)

func TestTaskStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status TaskStatus
		want   bool
	}{
		{"pending is valid", TaskStatusPending, true},
		{"ready is valid", TaskStatusReady, true},
		{"in_progress is valid", TaskStatusInProgress, true},
		{"blocked is valid", TaskStatusBlocked, true},
		{"done is valid", TaskStatusDone, true},
		{"cancelled is valid", TaskStatusCancelled, true},
		{"empty string is invalid", TaskStatus(""), false},
		{"failed is not a task status", TaskStatus("failed"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("TaskStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestTaskStatus_Dispatchable(t *testing.T) {
	for _, s := range []TaskStatus{TaskStatusPending, TaskStatusReady} {
		if !s.Dispatchable() {
			t.Errorf("%s should be dispatchable", s)
		}
	}
	for _, s := range []TaskStatus{TaskStatusInProgress, TaskStatusBlocked, TaskStatusDone, TaskStatusCancelled} {
		if s.Dispatchable() {
			t.Errorf("%s should not be dispatchable", s)
		}
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in     string
		want   Priority
		wantOK bool
	}{
		{"critical", PriorityCritical, true},
		{" High ", PriorityHigh, true},
		{"MEDIUM", PriorityMedium, true},
		{"low", PriorityLow, true},
		{"urgent", Priority("urgent"), false},
		{"", Priority(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParsePriority(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ParsePriority(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParsePriority(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTask_AddNote(t *testing.T) {
	task := &Task{ID: "task-1"}
	now := time.Now()

	n := task.AddNote(NoteAuthorAI, NoteTypeBlocker, "agent crashed", now)
	if n.ID == "" {
		t.Error("expected note to get an ID")
	}
	if len(task.Notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(task.Notes))
	}
	if !task.HasNoteOfType(NoteTypeBlocker) {
		t.Error("expected blocker note to be found")
	}
	if task.HasNoteOfType(NoteTypeResolution) {
		t.Error("did not expect a resolution note")
	}
}

func TestTask_CloneIsDeep(t *testing.T) {
	started := time.Now()
	orig := &Task{
		ID:        "task-1",
		DependsOn: []string{"a"},
		StartedAt: &started,
		Subtasks:  []*Task{{ID: "sub-1", Tags: []string{"x"}}},
	}

	c := orig.Clone()
	c.DependsOn[0] = "b"
	c.Subtasks[0].Tags[0] = "y"
	*c.StartedAt = started.Add(time.Hour)

	if orig.DependsOn[0] != "a" {
		t.Errorf("clone shares DependsOn with original")
	}
	if orig.Subtasks[0].Tags[0] != "x" {
		t.Errorf("clone shares subtask tags with original")
	}
	if !orig.StartedAt.Equal(started) {
		t.Errorf("clone shares StartedAt with original")
	}
}

func TestPlan_Task(t *testing.T) {
	p := &Plan{Tasks: []*Task{{ID: "a"}, {ID: "b"}}}
	if got := p.Task("b"); got == nil || got.ID != "b" {
		t.Errorf("Task(b) = %v", got)
	}
	if got := p.Task("missing"); got != nil {
		t.Errorf("Task(missing) = %v, want nil", got)
	}

	var nilPlan *Plan
	if nilPlan.Task("a") != nil {
		t.Error("nil plan should return nil task")
	}
}

func TestHealthReport_CountBySeverity(t *testing.T) {
	r := &HealthReport{Findings: []Finding{
		{Severity: SeverityWarning},
		{Severity: SeverityCritical},
		{Severity: SeverityWarning},
	}}
	if got := r.CountBySeverity(SeverityWarning); got != 2 {
		t.Errorf("warnings = %d, want 2", got)
	}
	if got := r.CountBySeverity(SeverityInfo); got != 0 {
		t.Errorf("info = %d, want 0", got)
	}
}
