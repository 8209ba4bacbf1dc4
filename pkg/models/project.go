package models

import "time"

// ProjectStatus represents the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectStatusPlanning  ProjectStatus = "planning"
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusPaused    ProjectStatus = "paused"
	ProjectStatusCompleted ProjectStatus = "completed"
)

// Valid returns true if the status is a known value.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusPlanning, ProjectStatusActive, ProjectStatusPaused, ProjectStatusCompleted:
		return true
	default:
		return false
	}
}

// Goal is one natural-language objective of a project.
type Goal struct {
	ID          string `json:"id"`
	Description string `json:"description" validate:"required"`
	// Priority is a weight in [0,1]; the first goal is highest.
	Priority        float64 `json:"priority" validate:"gte=0,lte=1"`
	SuccessCriteria string  `json:"success_criteria,omitempty"`
}

// MilestoneStatus represents the progress state of a milestone.
type MilestoneStatus string

const (
	MilestoneStatusPending    MilestoneStatus = "pending"
	MilestoneStatusInProgress MilestoneStatus = "in_progress"
	MilestoneStatusCompleted  MilestoneStatus = "completed"
)

// Milestone groups tasks into a checkpoint.
type Milestone struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	TaskIDs []string        `json:"task_ids"`
	Status  MilestoneStatus `json:"status"`
	// CompletionPercentage is derived from the done share of TaskIDs.
	CompletionPercentage int `json:"completion_percentage"`
}

// ProjectSettings controls execution and monitoring for a project.
type ProjectSettings struct {
	AutoAssign bool `json:"auto_assign" yaml:"auto_assign" mapstructure:"auto_assign"`
	AutoReplan bool `json:"auto_replan" yaml:"auto_replan" mapstructure:"auto_replan"`
	// CheckInterval is a cron expression for periodic health checks.
	CheckInterval      string   `json:"check_interval" yaml:"check_interval" mapstructure:"check_interval" validate:"required,cronspec"`
	DefaultAgentIDs    []string `json:"default_agent_ids,omitempty" yaml:"default_agent_ids,omitempty" mapstructure:"default_agent_ids"`
	MaxConcurrentTasks int      `json:"max_concurrent_tasks" yaml:"max_concurrent_tasks" mapstructure:"max_concurrent_tasks" validate:"gte=0"`
	NotifyOnMilestone  bool     `json:"notify_on_milestone" yaml:"notify_on_milestone" mapstructure:"notify_on_milestone"`
}

// DefaultProjectSettings returns the settings used when none are configured.
func DefaultProjectSettings() ProjectSettings {
	return ProjectSettings{
		AutoAssign:         true,
		AutoReplan:         false,
		CheckInterval:      "*/30 * * * *",
		MaxConcurrentTasks: 3,
		NotifyOnMilestone:  true,
	}
}

// Project is the root aggregate owned by the project store.
type Project struct {
	ID          string        `json:"id" validate:"required"`
	Name        string        `json:"name" validate:"required"`
	Description string        `json:"description,omitempty"`
	Status      ProjectStatus `json:"status" validate:"required"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	// ConversationID is an opaque reference handed to the execution service.
	ConversationID string          `json:"conversation_id,omitempty"`
	Goals          []Goal          `json:"goals" validate:"dive"`
	Milestones     []Milestone     `json:"milestones,omitempty"`
	Plan           *Plan           `json:"plan,omitempty"`
	Settings       ProjectSettings `json:"settings"`
}

// Tasks returns the top-level tasks of the current plan.
func (p *Project) Tasks() []*Task {
	if p == nil || p.Plan == nil {
		return nil
	}
	return p.Plan.Tasks
}

// Task returns the top-level task with the given ID, or nil.
func (p *Project) Task(id string) *Task {
	if p == nil {
		return nil
	}
	return p.Plan.Task(id)
}

// Clone returns a deep copy of the project.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	c.Goals = append([]Goal(nil), p.Goals...)
	if p.Milestones != nil {
		c.Milestones = make([]Milestone, len(p.Milestones))
		for i, m := range p.Milestones {
			m.TaskIDs = cloneStrings(m.TaskIDs)
			c.Milestones[i] = m
		}
	}
	c.Plan = p.Plan.Clone()
	c.Settings.DefaultAgentIDs = cloneStrings(p.Settings.DefaultAgentIDs)
	return &c
}
