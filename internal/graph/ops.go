package graph

import (
	"github.com/ShayCichocki/foreman/pkg/models"
)

// DetectCycles returns the IDs of tasks that sit on or behind a dependency cycle.
func DetectCycles(tasks []*models.Task) map[string]bool {
	return New(tasks).CyclicIDs()
}

// RepairCycles breaks every cycle in place: for each cyclic task, IDs of other
// cyclic tasks are stripped from DependsOn and BlockedBy. It returns the
// number of DependsOn entries removed. Running DetectCycles afterwards
// yields an empty set.
func RepairCycles(tasks []*models.Task) int {
	cyclic := DetectCycles(tasks)
	if len(cyclic) == 0 {
		return 0
	}

	removed := 0
	for _, task := range tasks {
		if !cyclic[task.ID] {
			continue
		}
		before := len(task.DependsOn)
		task.DependsOn = without(task.DependsOn, cyclic)
		task.BlockedBy = without(task.BlockedBy, cyclic)
		removed += before - len(task.DependsOn)
	}
	return removed
}

// CriticalPath returns the longest dependency chain by task count.
// It always returns a non-nil slice.
func CriticalPath(tasks []*models.Task) []string {
	path := New(tasks).LongestChain()
	if path == nil {
		return []string{}
	}
	return path
}

// Ready returns the dispatchable frontier of tasks in list order.
func Ready(tasks []*models.Task) []*models.Task {
	return New(tasks).Ready()
}

// DeriveBlockedBy recomputes every task's BlockedBy as the inverse of the
// DependsOn edges within the set.
func DeriveBlockedBy(tasks []*models.Task) {
	g := New(tasks)
	for _, task := range tasks {
		dependents := g.Dependents(task.ID)
		if len(dependents) == 0 {
			task.BlockedBy = nil
			continue
		}
		task.BlockedBy = append([]string(nil), dependents...)
	}
}

// Edges returns the dependency edge list for the tasks. From is the
// prerequisite and To is the task that waits on it.
func Edges(tasks []*models.Task) []models.Dependency {
	g := New(tasks)
	deps := []models.Dependency{}
	for _, id := range g.order {
		for _, depID := range g.edges[id] {
			deps = append(deps, models.Dependency{From: depID, To: id, Type: models.DependencyBlocks})
		}
	}
	return deps
}

// MarkInitialStatus sets tasks with no dependencies to ready and all other
// pending or ready tasks to pending. Tasks in any other status are untouched.
func MarkInitialStatus(tasks []*models.Task) {
	for _, task := range tasks {
		if !task.Status.Dispatchable() && task.Status != "" {
			continue
		}
		if len(task.DependsOn) == 0 {
			task.Status = models.TaskStatusReady
		} else {
			task.Status = models.TaskStatusPending
		}
	}
}

func without(ids []string, drop map[string]bool) []string {
	if len(ids) == 0 {
		return ids
	}
	kept := ids[:0:0]
	for _, id := range ids {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}
