package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/foreman/internal/graph"
	"github.com/ShayCichocki/foreman/pkg/models"
)

// Replan regenerates the pending and ready work of a plan around a blocker.
// Tasks in any other status are copied into the new plan unchanged,
// including the blocked tasks that triggered the replan. The input plan is
// not modified.
//
// If the model's answer is unusable, the eligible tasks are carried over
// as they were and only the version changes.
func (e *Engine) Replan(ctx context.Context, plan *models.Plan, blocker string, goals []models.Goal) *models.Plan {
	next := &models.Plan{
		ID:          models.NewID(),
		Version:     1,
		GeneratedAt: e.now(),
		GeneratedBy: models.GeneratedByAI,
	}
	if plan != nil {
		next.ProjectID = plan.ProjectID
		next.Version = plan.Version + 1
	}

	var source []*models.Task
	if c := plan.Clone(); c != nil {
		source = c.Tasks
	}

	var preserved, eligible []*models.Task
	for _, t := range source {
		if t.Status.Dispatchable() {
			eligible = append(eligible, t)
		} else {
			preserved = append(preserved, t)
		}
	}

	parsed := ask[replanResponse](ctx, e.llm, replanSystemPrompt,
		replanBrief(blocker, goals, preserved, eligible), replanTemperature)

	var added []*models.Task
	if parsed.Malformed() {
		e.logger.Log("[planner.Replan] response unusable, keeping %d eligible tasks: %v", len(eligible), parsed.Err)
		added = eligible
	} else {
		b := newTaskBuilder(preserved)
		for _, pt := range parsed.Value.Tasks {
			b.add(pt)
		}
		dropped := b.resolve()
		added = b.tasks

		// New ids are fresh, so any cycle lies entirely among the added tasks.
		if removed := graph.RepairCycles(added); removed > 0 {
			e.logger.Log("[planner.Replan] broke dependency cycles, removed %d edges", removed)
		}
		graph.MarkInitialStatus(added)
		e.logger.Log("[planner.Replan] replaced %d eligible tasks with %d new tasks, %d unresolved deps dropped",
			len(eligible), len(added), dropped)
	}

	next.Tasks = append(append([]*models.Task{}, preserved...), added...)
	setBlockedBy(next.Tasks, added)
	next.Dependencies = graph.Edges(next.Tasks)
	next.CriticalPath = graph.CriticalPath(next.Tasks)
	return next
}

// setBlockedBy derives BlockedBy for the given subset only, leaving the
// other tasks exactly as they were.
func setBlockedBy(all, subset []*models.Task) {
	g := graph.New(all)
	for _, t := range subset {
		dependents := g.Dependents(t.ID)
		if len(dependents) == 0 {
			t.BlockedBy = nil
			continue
		}
		t.BlockedBy = append([]string(nil), dependents...)
	}
}

func replanBrief(blocker string, goals []models.Goal, preserved, eligible []*models.Task) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Blocker:\n%s\n\nGoals:\n", strings.TrimSpace(blocker))
	for i, g := range goals {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, g.Description)
	}

	var blocked, other []*models.Task
	for _, t := range preserved {
		if t.Status == models.TaskStatusBlocked {
			blocked = append(blocked, t)
		} else {
			other = append(other, t)
		}
	}

	if len(blocked) > 0 {
		sb.WriteString("\nBlocked tasks:\n")
		for _, t := range blocked {
			fmt.Fprintf(&sb, "- %q\n", t.Title)
			for _, n := range t.Notes {
				if n.Type == models.NoteTypeBlocker {
					fmt.Fprintf(&sb, "  blocker: %s\n", n.Content)
				}
			}
		}
	}
	if len(other) > 0 {
		sb.WriteString("\nExisting tasks that stay (may be depended on by title):\n")
		for _, t := range other {
			fmt.Fprintf(&sb, "- %q (%s)\n", t.Title, t.Status)
		}
	}
	if len(eligible) > 0 {
		sb.WriteString("\nPending tasks being replaced:\n")
		writeTaskList(&sb, eligible)
	}
	return sb.String()
}
