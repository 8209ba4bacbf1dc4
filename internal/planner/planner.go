// Package planner turns project goals into a validated task graph and keeps
// that graph current: decomposition, estimation, prioritization and
// partial replanning around blockers.
//
// Every call to the planning model is best-effort. A failed or malformed
// response degrades the result (an empty plan, unchanged tasks) and is
// logged; it is never returned as an error.
package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/foreman/internal/graph"
	"github.com/ShayCichocki/foreman/internal/llm"
	"github.com/ShayCichocki/foreman/internal/logging"
	"github.com/ShayCichocki/foreman/pkg/models"
)

const (
	analysisTemperature      = 0.3
	decompositionTemperature = 0.4
	validationTemperature    = 0.2
	enrichTemperature        = 0.2
	replanTemperature        = 0.4
)

// Engine is the plan engine.
type Engine struct {
	llm    llm.Completer
	logger *logging.DebugLogger
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the debug logger.
func WithLogger(l *logging.DebugLogger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates a plan engine backed by the given planning model.
func New(completer llm.Completer, opts ...Option) *Engine {
	e := &Engine{llm: completer, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ask sends one JSON request and decodes the reply into T.
func ask[T any](ctx context.Context, c llm.Completer, system, user string, temperature float64) llm.Parsed[T] {
	resp, err := c.Complete(ctx, llm.JSONRequest(system, user, temperature))
	if err != nil {
		return llm.Parsed[T]{Err: fmt.Errorf("planning service: %w", err)}
	}
	return llm.Decode[T](resp.Content)
}

// Decompose builds a plan and its milestones for a project. The returned
// plan is always well formed; it has zero tasks when the model's answer is
// unusable.
func (e *Engine) Decompose(ctx context.Context, name, description string, goals []models.Goal, constraints []string) (*models.Plan, []models.Milestone) {
	plan := &models.Plan{
		ID:           models.NewID(),
		Version:      1,
		Tasks:        []*models.Task{},
		Dependencies: []models.Dependency{},
		CriticalPath: []string{},
		GeneratedAt:  e.now(),
		GeneratedBy:  models.GeneratedByAI,
	}

	brief := projectBrief(name, description, goals, constraints)

	analysis := ask[analysisResponse](ctx, e.llm, analysisSystemPrompt, brief, analysisTemperature)
	if analysis.Malformed() {
		e.logger.Log("[planner.Decompose] analysis unusable, decomposing without it: %v", analysis.Err)
	}

	decomposition := ask[decompositionResponse](ctx, e.llm, decompositionSystemPrompt,
		brief+"\n\n"+analysisSummary(analysis.Value), decompositionTemperature)
	if decomposition.Malformed() {
		e.logger.Log("[planner.Decompose] decomposition unusable, returning empty plan: %v", decomposition.Err)
		return plan, nil
	}

	groups := decomposition.Value.Milestones
	if len(decomposition.Value.Tasks) > 0 {
		groups = append(groups, plannedMilestone{Tasks: decomposition.Value.Tasks})
	}

	b := newTaskBuilder(nil)
	var milestones []models.Milestone
	for _, group := range groups {
		var ids []string
		for _, pt := range group.Tasks {
			if t := b.add(pt); t != nil {
				ids = append(ids, t.ID)
			}
		}
		if group.Name == "" || len(ids) == 0 {
			continue
		}
		milestones = append(milestones, models.Milestone{
			ID:      models.NewID(),
			Name:    group.Name,
			TaskIDs: ids,
			Status:  models.MilestoneStatusPending,
		})
	}
	dropped := b.resolve()

	plan.Tasks = b.tasks
	if removed := graph.RepairCycles(plan.Tasks); removed > 0 {
		e.logger.Log("[planner.Decompose] broke dependency cycles, removed %d edges", removed)
	}
	graph.DeriveBlockedBy(plan.Tasks)
	graph.MarkInitialStatus(plan.Tasks)
	plan.Dependencies = graph.Edges(plan.Tasks)
	plan.CriticalPath = graph.CriticalPath(plan.Tasks)

	e.logger.Log("[planner.Decompose] %s: %d tasks, %d milestones, %d unresolved deps dropped, critical path %d",
		name, len(plan.Tasks), len(milestones), dropped, len(plan.CriticalPath))

	e.validate(ctx, plan, goals)
	return plan, milestones
}

// validate requests qualitative feedback and only logs it.
func (e *Engine) validate(ctx context.Context, plan *models.Plan, goals []models.Goal) {
	if len(plan.Tasks) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString("Goals:\n")
	for _, g := range goals {
		fmt.Fprintf(&sb, "- %s\n", g.Description)
	}
	sb.WriteString("\nTasks:\n")
	writeTaskList(&sb, plan.Tasks)

	feedback := ask[validationResponse](ctx, e.llm, validationSystemPrompt, sb.String(), validationTemperature)
	if feedback.Malformed() {
		e.logger.Log("[planner.validate] feedback unusable: %v", feedback.Err)
		return
	}
	for _, g := range feedback.Value.UncoveredGoals {
		e.logger.Log("[planner.validate] goal not covered: %s", g)
	}
	for _, v := range feedback.Value.VagueCriteria {
		e.logger.Log("[planner.validate] vague criteria on %q: %s", v.Task, v.Issue)
	}
	for _, s := range feedback.Value.Suggestions {
		e.logger.Log("[planner.validate] suggestion: %s", s)
	}
}

// Estimate fills in EstimatedEffort for tasks the model returns a non-empty
// estimate for. The same slice is returned.
func (e *Engine) Estimate(ctx context.Context, tasks []*models.Task) []*models.Task {
	if len(tasks) == 0 {
		return tasks
	}

	var sb strings.Builder
	writeTaskList(&sb, tasks)
	parsed := ask[estimateResponse](ctx, e.llm, estimateSystemPrompt, sb.String(), enrichTemperature)
	if parsed.Malformed() {
		e.logger.Log("[planner.Estimate] response unusable, leaving estimates: %v", parsed.Err)
		return tasks
	}

	byID := indexByID(tasks)
	applied := 0
	for _, est := range parsed.Value.Estimates {
		t, ok := byID[est.ID]
		effort := strings.TrimSpace(est.EstimatedEffort)
		if !ok || effort == "" {
			continue
		}
		t.EstimatedEffort = effort
		applied++
	}
	e.logger.Log("[planner.Estimate] applied %d of %d estimates", applied, len(parsed.Value.Estimates))
	return tasks
}

// Prioritize sets Priority for tasks the model returns a known level for.
// The same slice is returned.
func (e *Engine) Prioritize(ctx context.Context, tasks []*models.Task, constraints []string) []*models.Task {
	if len(tasks) == 0 {
		return tasks
	}

	var sb strings.Builder
	writeTaskList(&sb, tasks)
	if len(constraints) > 0 {
		sb.WriteString("\nConstraints:\n")
		for _, c := range constraints {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
	}
	parsed := ask[prioritizeResponse](ctx, e.llm, prioritizeSystemPrompt, sb.String(), enrichTemperature)
	if parsed.Malformed() {
		e.logger.Log("[planner.Prioritize] response unusable, leaving priorities: %v", parsed.Err)
		return tasks
	}

	byID := indexByID(tasks)
	applied := 0
	for _, p := range parsed.Value.Priorities {
		t, ok := byID[p.ID]
		if !ok {
			continue
		}
		priority, valid := models.ParsePriority(p.Priority)
		if !valid {
			continue
		}
		t.Priority = priority
		applied++
	}
	e.logger.Log("[planner.Prioritize] applied %d of %d priorities", applied, len(parsed.Value.Priorities))
	return tasks
}

func indexByID(tasks []*models.Task) map[string]*models.Task {
	byID := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	return byID
}

func projectBrief(name, description string, goals []models.Goal, constraints []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Project: %s\n", name)
	if description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", description)
	}
	sb.WriteString("\nGoals (highest priority first):\n")
	for i, g := range goals {
		fmt.Fprintf(&sb, "%d. %s", i+1, g.Description)
		if g.SuccessCriteria != "" {
			fmt.Fprintf(&sb, " (success: %s)", g.SuccessCriteria)
		}
		sb.WriteString("\n")
	}
	if len(constraints) > 0 {
		sb.WriteString("\nConstraints:\n")
		for _, c := range constraints {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
	}
	return sb.String()
}

func analysisSummary(a analysisResponse) string {
	var sb strings.Builder
	sb.WriteString("Analysis:\n")
	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&sb, "%s:\n", title)
		for _, item := range items {
			fmt.Fprintf(&sb, "- %s\n", item)
		}
	}
	section("Requirements", a.Requirements)
	section("Risks", a.Risks)
	section("Skill domains", a.SkillDomains)
	section("Constraints", a.Constraints)
	return sb.String()
}

// writeTaskList renders tasks one per line with the fields the model needs
// to refer back to them.
func writeTaskList(sb *strings.Builder, tasks []*models.Task) {
	for _, t := range tasks {
		fmt.Fprintf(sb, "- id=%s title=%q status=%s", t.ID, t.Title, t.Status)
		if t.Priority != "" {
			fmt.Fprintf(sb, " priority=%s", t.Priority)
		}
		if t.EstimatedEffort != "" {
			fmt.Fprintf(sb, " effort=%s", t.EstimatedEffort)
		}
		sb.WriteString("\n")
		if t.Description != "" {
			fmt.Fprintf(sb, "  %s\n", t.Description)
		}
		for _, c := range t.AcceptanceCriteria {
			fmt.Fprintf(sb, "  criterion: %s\n", c)
		}
	}
}
