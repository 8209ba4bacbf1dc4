package planner

import (
	"strings"

	"github.com/ShayCichocki/foreman/pkg/models"
)

// taskBuilder creates tasks from model output and resolves their
// title-based dependencies to ids.
type taskBuilder struct {
	// titleToID maps a normalized title to its task id. Earlier titles win.
	titleToID map[string]string
	tasks     []*models.Task
	// pendingDeps holds the raw dependency titles per created task.
	pendingDeps map[string][]string
}

// newTaskBuilder seeds the title map with existing tasks, so new tasks may
// depend on them by title.
func newTaskBuilder(existing []*models.Task) *taskBuilder {
	b := &taskBuilder{
		titleToID:   make(map[string]string),
		tasks:       []*models.Task{},
		pendingDeps: make(map[string][]string),
	}
	for _, t := range existing {
		key := normalizeTitle(t.Title)
		if _, taken := b.titleToID[key]; !taken && key != "" {
			b.titleToID[key] = t.ID
		}
	}
	return b
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// add creates a task from pt. Tasks without a title are skipped.
func (b *taskBuilder) add(pt plannedTask) *models.Task {
	title := strings.TrimSpace(pt.Title)
	if title == "" {
		return nil
	}

	priority, ok := models.ParsePriority(pt.Priority)
	if !ok {
		priority = models.PriorityMedium
	}

	t := &models.Task{
		ID:                 models.NewID(),
		Title:              title,
		Description:        strings.TrimSpace(pt.Description),
		Status:             models.TaskStatusPending,
		Priority:           priority,
		EstimatedEffort:    strings.TrimSpace(pt.EstimatedEffort),
		Tags:               []string(pt.Tags),
		AcceptanceCriteria: []string(pt.AcceptanceCriteria),
	}

	key := normalizeTitle(title)
	if _, taken := b.titleToID[key]; !taken {
		b.titleToID[key] = t.ID
	}
	b.tasks = append(b.tasks, t)
	b.pendingDeps[t.ID] = pt.DependsOn
	return t
}

// resolve turns every pending title reference into a task id. References
// that match no task are dropped. It returns how many were dropped.
func (b *taskBuilder) resolve() int {
	dropped := 0
	for _, t := range b.tasks {
		seen := make(map[string]bool)
		for _, ref := range b.pendingDeps[t.ID] {
			id, ok := b.titleToID[normalizeTitle(ref)]
			if !ok {
				dropped++
				continue
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			t.DependsOn = append(t.DependsOn, id)
		}
	}
	b.pendingDeps = make(map[string][]string)
	return dropped
}
