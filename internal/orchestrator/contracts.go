package orchestrator

import (
	"context"

	"github.com/ShayCichocki/foreman/pkg/models"
)

// Metadata keys attached to every StartRequest.
const (
	MetaProjectID = "project_id"
	MetaTaskID    = "task_id"
)

// StartRequest asks the execution service to run one task prompt.
type StartRequest struct {
	AgentID        string
	ConversationID string
	Message        string
	Metadata       map[string]string
}

// ExecutionService performs task work. StartTask returns an opaque
// execution handle; progress arrives later as ExecutionUpdate values.
type ExecutionService interface {
	StartTask(ctx context.Context, req StartRequest) (string, error)
	CancelTask(ctx context.Context, executionID string) error
}

// AgentRegistry lists the agents available for assignment.
type AgentRegistry interface {
	List(ctx context.Context) ([]models.Agent, error)
}

// ExecutionStatus is the status reported by the execution service.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionError     ExecutionStatus = "error"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// ExecutionUpdate is an asynchronous status event from the execution
// service. TaskID is the execution handle returned by StartTask.
type ExecutionUpdate struct {
	TaskID string
	Status ExecutionStatus
	Result string
	Error  string
}

// ExecutionMessage is free-form output streamed by a running execution.
type ExecutionMessage struct {
	TaskID  string
	Content string
}

// StatusChange is a task transition derived from an execution event,
// delivered to the project manager through Changes.
type StatusChange struct {
	ProjectID   string
	TaskID      string
	ExecutionID string
	AgentID     string
	Old         models.TaskStatus
	New         models.TaskStatus
	Result      string
	Error       string
}

// StaticRegistry is an AgentRegistry over a fixed list.
type StaticRegistry []models.Agent

// List returns the fixed agents.
func (r StaticRegistry) List(context.Context) ([]models.Agent, error) {
	return append([]models.Agent(nil), r...), nil
}
