// Package graph provides the task dependency graph used for planning and scheduling.
//
// Tasks live in an arena keyed by ID and edges are expressed as ID lists, so
// cycle detection and repair are plain set manipulation over IDs.
package graph

import (
	"github.com/ShayCichocki/foreman/pkg/models"
)

// DependencyGraph is an arena view over a task list.
// Edges point from a task to the tasks it depends on (is blocked by).
// It does not copy tasks; mutations through Task are visible to the caller.
type DependencyGraph struct {
	// nodes maps task ID to the task itself.
	nodes map[string]*models.Task
	// order preserves the caller's list order for deterministic iteration.
	order []string
	// edges maps task ID to the IDs of known tasks it depends on.
	edges map[string][]string
	// dependents is the reverse of edges.
	dependents map[string][]string
}

// New builds a graph from a slice of tasks.
// Dependencies on IDs that are not in the slice are left out of the edge set
// and duplicate dependencies are collapsed.
func New(tasks []*models.Task) *DependencyGraph {
	g := &DependencyGraph{
		nodes:      make(map[string]*models.Task, len(tasks)),
		order:      make([]string, 0, len(tasks)),
		edges:      make(map[string][]string, len(tasks)),
		dependents: make(map[string][]string, len(tasks)),
	}

	for _, task := range tasks {
		if task == nil {
			continue
		}
		if _, dup := g.nodes[task.ID]; dup {
			continue
		}
		g.nodes[task.ID] = task
		g.order = append(g.order, task.ID)
	}

	for _, id := range g.order {
		seen := make(map[string]bool)
		for _, depID := range g.nodes[id].DependsOn {
			if seen[depID] {
				continue
			}
			seen[depID] = true
			if _, ok := g.nodes[depID]; !ok {
				continue
			}
			g.edges[id] = append(g.edges[id], depID)
			g.dependents[depID] = append(g.dependents[depID], id)
		}
	}

	return g
}

// Task returns the task for a given ID, or nil if not found.
func (g *DependencyGraph) Task(id string) *models.Task {
	return g.nodes[id]
}

// Size returns the number of tasks in the graph.
func (g *DependencyGraph) Size() int {
	return len(g.order)
}

// IDs returns task IDs in the original list order.
func (g *DependencyGraph) IDs() []string {
	return append([]string(nil), g.order...)
}

// Dependencies returns the IDs of known tasks that the given task depends on.
func (g *DependencyGraph) Dependencies(id string) []string {
	return g.edges[id]
}

// Dependents returns the IDs of tasks that depend on the given task.
func (g *DependencyGraph) Dependents(id string) []string {
	return g.dependents[id]
}

// TopologicalOrder runs Kahn's algorithm and returns the IDs it could order,
// dependencies first. IDs missing from the result sit on or behind a cycle.
func (g *DependencyGraph) TopologicalOrder() []string {
	inDegree := make(map[string]int, len(g.order))
	for _, id := range g.order {
		inDegree[id] = len(g.edges[id])
	}

	queue := make([]string, 0, len(g.order))
	for _, id := range g.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	sorted := make([]string, 0, len(g.order))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)

		for _, dependent := range g.dependents[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	return sorted
}

// CyclicIDs returns every task ID that Kahn's algorithm could not order.
// The set is empty if and only if the graph is a DAG.
func (g *DependencyGraph) CyclicIDs() map[string]bool {
	ordered := make(map[string]bool, len(g.order))
	for _, id := range g.TopologicalOrder() {
		ordered[id] = true
	}

	cyclic := make(map[string]bool)
	for _, id := range g.order {
		if !ordered[id] {
			cyclic[id] = true
		}
	}
	return cyclic
}

// LongestChain returns the longest dependency chain by task count, ordered
// from the first prerequisite to the last dependent. Ties go to the task that
// appears first in list order. Back edges of an unrepaired cycle are ignored.
func (g *DependencyGraph) LongestChain() []string {
	depth := make(map[string]int, len(g.order))
	next := make(map[string]string, len(g.order))
	visiting := make(map[string]bool)

	var visit func(id string) int
	visit = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		if visiting[id] {
			return 0
		}
		visiting[id] = true

		best := 0
		for _, depID := range g.edges[id] {
			if d := visit(depID); d > best {
				best = d
				next[id] = depID
			}
		}

		visiting[id] = false
		depth[id] = best + 1
		return depth[id]
	}

	var tail string
	longest := 0
	for _, id := range g.order {
		if d := visit(id); d > longest {
			longest = d
			tail = id
		}
	}

	chain := make([]string, 0, longest)
	for id := tail; id != "" && len(chain) < longest; id = next[id] {
		chain = append(chain, id)
	}

	// chain runs from the last dependent back to its root prerequisite.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Ready returns tasks whose status allows dispatch and whose every
// dependency is done, in list order. A dependency on an unknown ID is
// never satisfied.
func (g *DependencyGraph) Ready() []*models.Task {
	var ready []*models.Task
	for _, id := range g.order {
		task := g.nodes[id]
		if !task.Status.Dispatchable() {
			continue
		}
		if g.dependenciesDone(task) {
			ready = append(ready, task)
		}
	}
	return ready
}

func (g *DependencyGraph) dependenciesDone(task *models.Task) bool {
	for _, depID := range task.DependsOn {
		dep, ok := g.nodes[depID]
		if !ok || dep.Status != models.TaskStatusDone {
			return false
		}
	}
	return true
}
