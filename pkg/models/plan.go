package models

import "time"

// DependencyType labels a dependency edge. Only "blocks" is produced today.
type DependencyType string

// DependencyBlocks means From must be done before To can start.
const DependencyBlocks DependencyType = "blocks"

// GeneratedBy records who produced a plan.
type GeneratedBy string

const (
	GeneratedByAI   GeneratedBy = "ai"
	GeneratedByUser GeneratedBy = "user"
)

// Dependency is one edge of the task graph.
type Dependency struct {
	From string         `json:"from"`
	To   string         `json:"to"`
	Type DependencyType `json:"type"`
}

// Plan is a versioned task graph for a project.
type Plan struct {
	ID           string       `json:"id"`
	ProjectID    string       `json:"project_id"`
	Version      int          `json:"version"`
	Tasks        []*Task      `json:"tasks"`
	Dependencies []Dependency `json:"dependencies"`
	// CriticalPath is the longest dependency chain by task count, in order.
	CriticalPath []string    `json:"critical_path"`
	GeneratedAt  time.Time   `json:"generated_at"`
	GeneratedBy  GeneratedBy `json:"generated_by"`
}

// Task returns the top-level task with the given ID, or nil.
func (p *Plan) Task(id string) *Task {
	if p == nil {
		return nil
	}
	for _, t := range p.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Clone returns a deep copy of the plan.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	c := *p
	c.Tasks = make([]*Task, len(p.Tasks))
	for i, t := range p.Tasks {
		c.Tasks[i] = t.Clone()
	}
	c.Dependencies = append([]Dependency(nil), p.Dependencies...)
	c.CriticalPath = cloneStrings(p.CriticalPath)
	return &c
}
