// Package events carries engine notifications to the host: a buffered UI
// event channel and a fire-and-forget notification sink.
package events

import (
	"time"
)

// EventType represents the type of engine event.
type EventType string

const (
	// EventTaskStatusChanged indicates a task moved between statuses.
	EventTaskStatusChanged EventType = "task:statusChanged"
	// EventProjectHealthUpdate carries a fresh health report.
	EventProjectHealthUpdate EventType = "project:healthUpdate"
	// EventMilestoneReached indicates a milestone reached 100%.
	EventMilestoneReached EventType = "milestone:reached"
	// EventProjectCompleted indicates every task is done or cancelled.
	EventProjectCompleted EventType = "project:completed"
)

// Event is one UI-facing engine event.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// ProjectID is the owning project.
	ProjectID string
	// TaskID is the related task, if applicable.
	TaskID string
	// MilestoneID is the related milestone, if applicable.
	MilestoneID string
	// OldStatus and NewStatus are set for status change events.
	OldStatus string
	NewStatus string
	// Message provides additional context about the event.
	Message string
	// Payload holds a type-specific value, for example a *models.HealthReport.
	Payload any
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
