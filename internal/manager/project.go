package manager

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/foreman/internal/validation"
	"github.com/ShayCichocki/foreman/pkg/models"
)

// GoalInput is one goal of a new project.
type GoalInput struct {
	Description     string `json:"description" yaml:"description" validate:"nonempty"`
	SuccessCriteria string `json:"success_criteria,omitempty" yaml:"success_criteria,omitempty"`
}

// CreateProjectRequest describes a new project. Goals are listed most
// important first.
type CreateProjectRequest struct {
	Name           string                  `json:"name" yaml:"name" validate:"nonempty"`
	Description    string                  `json:"description,omitempty" yaml:"description,omitempty"`
	Goals          []GoalInput             `json:"goals" yaml:"goals" validate:"required,min=1,dive"`
	ConversationID string                  `json:"conversation_id,omitempty" yaml:"conversation_id,omitempty"`
	Settings       *models.ProjectSettings `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// CreateProject validates req and persists a new project in planning
// status. Settings default to the stored default settings.
func (m *Manager) CreateProject(ctx context.Context, req CreateProjectRequest) (*models.Project, error) {
	if err := validation.Struct(m.validate, req); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	var settings models.ProjectSettings
	if req.Settings != nil {
		settings = *req.Settings
	} else {
		defaults, err := m.store.DefaultSettings(ctx)
		if err != nil {
			return nil, fmt.Errorf("create project: %w", err)
		}
		settings = defaults
	}
	if err := validation.Struct(m.validate, settings); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	p := &models.Project{
		Name:           req.Name,
		Description:    req.Description,
		Status:         models.ProjectStatusPlanning,
		ConversationID: req.ConversationID,
		Goals:          goalsFrom(req.Goals),
		Settings:       settings,
	}
	if p.ConversationID == "" {
		p.ConversationID = models.NewID()
	}
	return m.store.Create(ctx, p)
}

// goalsFrom assigns ids and descending priority weights: the first goal
// gets 1 and each later goal a proportionally smaller weight.
func goalsFrom(in []GoalInput) []models.Goal {
	goals := make([]models.Goal, len(in))
	for i, g := range in {
		goals[i] = models.Goal{
			ID:              models.NewID(),
			Description:     g.Description,
			Priority:        1 - float64(i)/float64(len(in)),
			SuccessCriteria: g.SuccessCriteria,
		}
	}
	return goals
}

// GeneratePlan replaces the project's plan and milestones with a fresh
// decomposition. It refuses while executions are still tracked for the
// project.
func (m *Manager) GeneratePlan(ctx context.Context, projectID string, constraints []string) (*models.Plan, error) {
	unlock := m.lock(projectID)
	defer unlock()

	p, _, err := m.load(ctx, projectID, "")
	if err != nil {
		return nil, err
	}
	if n := m.orch.ActiveCount(projectID); n > 0 {
		return nil, fmt.Errorf("generate plan for %s (%d running): %w", projectID, n, ErrProjectBusy)
	}

	plan, milestones := m.planner.Decompose(ctx, p.Name, p.Description, p.Goals, constraints)
	plan.ProjectID = p.ID
	if p.Plan != nil {
		plan.Version = p.Plan.Version + 1
	}
	if milestones == nil {
		milestones = []models.Milestone{}
	}
	p.Plan = plan
	p.Milestones = milestones

	if err := m.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}
	m.logger.Log("[manager] %s: plan v%d with %d tasks", p.ID, plan.Version, len(plan.Tasks))
	return plan, nil
}

// ReplanProject regenerates the pending work of the project around a
// blocker. Milestones keep only task ids that survive in the new plan. An
// active project gets a dispatch pass right away.
func (m *Manager) ReplanProject(ctx context.Context, projectID, blocker string) (*models.Plan, error) {
	unlock := m.lock(projectID)
	defer unlock()

	p, _, err := m.load(ctx, projectID, "")
	if err != nil {
		return nil, err
	}
	if p.Plan == nil {
		return nil, fmt.Errorf("replan %s: %w", projectID, ErrNoPlan)
	}

	plan := m.planner.Replan(ctx, p.Plan, blocker, p.Goals)
	plan.ProjectID = p.ID
	p.Plan = plan
	pruneMilestones(p)

	if err := m.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("replan: %w", err)
	}
	m.logger.Log("[manager] %s: replanned to v%d (%d tasks)", p.ID, plan.Version, len(plan.Tasks))

	if p.Status == models.ProjectStatusActive {
		if _, err := m.dispatch(ctx, p); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

func pruneMilestones(p *models.Project) {
	for i := range p.Milestones {
		ms := &p.Milestones[i]
		kept := ms.TaskIDs[:0:0]
		for _, id := range ms.TaskIDs {
			if p.Task(id) != nil {
				kept = append(kept, id)
			}
		}
		ms.TaskIDs = kept
	}
}

// ExecutePlan starts or continues execution. A planning project becomes
// active and is registered with the monitor. It returns how many tasks were
// dispatched.
func (m *Manager) ExecutePlan(ctx context.Context, projectID string) (int, error) {
	unlock := m.lock(projectID)
	defer unlock()

	p, _, err := m.load(ctx, projectID, "")
	if err != nil {
		return 0, err
	}
	if len(p.Tasks()) == 0 {
		return 0, fmt.Errorf("execute %s: %w", projectID, ErrNoPlan)
	}

	switch p.Status {
	case models.ProjectStatusPlanning:
		p.Status = models.ProjectStatusActive
		m.mon.StartMonitoring(ctx, p)
		m.logger.Log("[manager] %s: planning -> active", p.ID)
	case models.ProjectStatusActive:
		if !m.mon.IsMonitoring(p.ID) {
			m.mon.StartMonitoring(ctx, p)
		}
	default:
		return 0, fmt.Errorf("execute %s while %s: %w", projectID, p.Status, ErrInvalidTransition)
	}

	return m.dispatch(ctx, p)
}

// PauseProject stops monitoring. In-flight executions keep running and
// their results are still applied; no new work is dispatched.
func (m *Manager) PauseProject(ctx context.Context, projectID string) error {
	unlock := m.lock(projectID)
	defer unlock()

	p, _, err := m.load(ctx, projectID, "")
	if err != nil {
		return err
	}
	switch p.Status {
	case models.ProjectStatusPaused:
		return nil
	case models.ProjectStatusActive:
	default:
		return fmt.Errorf("pause %s while %s: %w", projectID, p.Status, ErrInvalidTransition)
	}

	p.Status = models.ProjectStatusPaused
	m.mon.StopMonitoring(ctx, p.ID)
	if err := m.store.Save(ctx, p); err != nil {
		return fmt.Errorf("pause project: %w", err)
	}
	m.logger.Log("[manager] %s: paused with %d executions in flight", p.ID, m.orch.ActiveCount(p.ID))
	return nil
}

// ResumeProject reactivates a paused project, restarts monitoring and
// dispatches ready work.
func (m *Manager) ResumeProject(ctx context.Context, projectID string) (int, error) {
	unlock := m.lock(projectID)
	defer unlock()

	p, _, err := m.load(ctx, projectID, "")
	if err != nil {
		return 0, err
	}
	if p.Status != models.ProjectStatusPaused {
		return 0, fmt.Errorf("resume %s while %s: %w", projectID, p.Status, ErrInvalidTransition)
	}

	p.Status = models.ProjectStatusActive
	m.mon.StartMonitoring(ctx, p)
	m.logger.Log("[manager] %s: resumed", p.ID)
	return m.dispatch(ctx, p)
}

// UpdateSettings validates and stores new settings. A monitored project is
// re-registered so a new check interval takes effect.
func (m *Manager) UpdateSettings(ctx context.Context, projectID string, settings models.ProjectSettings) error {
	if err := validation.Struct(m.validate, settings); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}

	unlock := m.lock(projectID)
	defer unlock()

	p, _, err := m.load(ctx, projectID, "")
	if err != nil {
		return err
	}
	p.Settings = settings
	p.Settings.DefaultAgentIDs = append([]string(nil), settings.DefaultAgentIDs...)
	if err := m.store.Save(ctx, p); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	if m.mon.IsMonitoring(p.ID) {
		m.mon.StartMonitoring(ctx, p)
	}
	return nil
}

// EstimatePlan refines effort estimates of the current plan.
func (m *Manager) EstimatePlan(ctx context.Context, projectID string) error {
	return m.refine(ctx, projectID, func(p *models.Project) {
		m.planner.Estimate(ctx, p.Plan.Tasks)
	})
}

// PrioritizePlan refines task priorities of the current plan.
func (m *Manager) PrioritizePlan(ctx context.Context, projectID string, constraints []string) error {
	return m.refine(ctx, projectID, func(p *models.Project) {
		m.planner.Prioritize(ctx, p.Plan.Tasks, constraints)
	})
}

func (m *Manager) refine(ctx context.Context, projectID string, apply func(*models.Project)) error {
	unlock := m.lock(projectID)
	defer unlock()

	p, _, err := m.load(ctx, projectID, "")
	if err != nil {
		return err
	}
	if p.Plan == nil {
		return fmt.Errorf("refine %s: %w", projectID, ErrNoPlan)
	}
	apply(p)
	if err := m.store.Save(ctx, p); err != nil {
		return fmt.Errorf("refine plan: %w", err)
	}
	return nil
}

// dispatch runs one dispatch pass, persists the result and returns the
// number of tasks started.
func (m *Manager) dispatch(ctx context.Context, p *models.Project) (int, error) {
	n := m.orch.DispatchReadyTasks(ctx, p)
	if err := m.store.Save(ctx, p); err != nil {
		return n, fmt.Errorf("persist dispatch: %w", err)
	}
	if n > 0 {
		m.logger.Log("[manager] %s: dispatched %d tasks", p.ID, n)
	}
	return n, nil
}
