package manager

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/foreman/internal/monitor"
	"github.com/ShayCichocki/foreman/internal/orchestrator"
	"github.com/ShayCichocki/foreman/pkg/models"
)

// StatusSnapshot is a point-in-time summary of a project.
type StatusSnapshot struct {
	ProjectID            string                    `json:"project_id"`
	Name                 string                    `json:"name"`
	Status               models.ProjectStatus      `json:"status"`
	PlanVersion          int                       `json:"plan_version"`
	TaskCounts           map[models.TaskStatus]int `json:"task_counts"`
	TotalTasks           int                       `json:"total_tasks"`
	CompletionPercentage int                       `json:"completion_percentage"`
	CriticalPath         []string                  `json:"critical_path"`
	Milestones           []models.Milestone        `json:"milestones"`
	Executions           []orchestrator.Execution  `json:"executions"`
	Monitoring           bool                      `json:"monitoring"`
	Degraded             bool                      `json:"degraded"`
	LastReport           *models.HealthReport      `json:"last_report,omitempty"`
}

// GetProject returns a copy of the stored project.
func (m *Manager) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	unlock := m.lock(projectID)
	defer unlock()

	p, _, err := m.load(ctx, projectID, "")
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// ListProjects returns copies of every stored project.
func (m *Manager) ListProjects(ctx context.Context) ([]*models.Project, error) {
	projects, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	out := make([]*models.Project, 0, len(projects))
	for _, p := range projects {
		unlock := m.lock(p.ID)
		out = append(out, p.Clone())
		unlock()
	}
	return out, nil
}

// ImportProject restores a complete project, such as one written by an
// export.
func (m *Manager) ImportProject(ctx context.Context, p *models.Project) (*models.Project, error) {
	unlock := m.lock(p.ID)
	defer unlock()

	imported, err := m.store.Import(ctx, p)
	if err != nil {
		return nil, err
	}
	return imported.Clone(), nil
}

// GetProjectReport runs a health check now and persists the milestone
// progress it computed.
func (m *Manager) GetProjectReport(ctx context.Context, projectID string) (*models.HealthReport, error) {
	unlock := m.lock(projectID)
	defer unlock()

	p, _, err := m.load(ctx, projectID, "")
	if err != nil {
		return nil, err
	}
	report := m.mon.RunHealthCheck(ctx, p)
	if err := m.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("persist health check: %w", err)
	}
	return report, nil
}

// GetProjectStatus summarizes a project without running a health check.
func (m *Manager) GetProjectStatus(ctx context.Context, projectID string) (*StatusSnapshot, error) {
	unlock := m.lock(projectID)
	defer unlock()

	p, _, err := m.load(ctx, projectID, "")
	if err != nil {
		return nil, err
	}

	snap := &StatusSnapshot{
		ProjectID:            p.ID,
		Name:                 p.Name,
		Status:               p.Status,
		TaskCounts:           make(map[models.TaskStatus]int),
		TotalTasks:           len(p.Tasks()),
		CompletionPercentage: monitor.CompletionPercentage(p.Tasks()),
		CriticalPath:         []string{},
		Milestones:           []models.Milestone{},
		Executions:           m.orch.Executions(p.ID),
		Monitoring:           m.mon.IsMonitoring(p.ID),
		Degraded:             m.mon.Degraded(p.ID),
		LastReport:           m.mon.LastReport(p.ID),
	}
	for _, t := range p.Tasks() {
		snap.TaskCounts[t.Status]++
	}
	if p.Plan != nil {
		snap.PlanVersion = p.Plan.Version
		snap.CriticalPath = append(snap.CriticalPath, p.Plan.CriticalPath...)
	}
	if c := p.Clone(); c != nil && c.Milestones != nil {
		snap.Milestones = c.Milestones
	}
	return snap, nil
}
