package orchestrator

import (
	"sort"
	"sync"
	"time"
)

// Execution is one tracked in-flight dispatch.
type Execution struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	TaskID       string    `json:"task_id"`
	AgentID      string    `json:"agent_id"`
	DispatchedAt time.Time `json:"dispatched_at"`
}

// executionTracker stores in-flight executions keyed by handle.
// It provides thread-safe storage and retrieval.
type executionTracker struct {
	// executions maps execution handles to their dispatch record.
	executions map[string]Execution
	// mu protects all fields.
	mu sync.RWMutex
}

func newExecutionTracker() *executionTracker {
	return &executionTracker{
		executions: make(map[string]Execution),
	}
}

// track records an execution.
func (t *executionTracker) track(e Execution) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.executions[e.ID] = e
}

// untrack removes and returns an execution.
func (t *executionTracker) untrack(id string) (Execution, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.executions[id]
	if ok {
		delete(t.executions, id)
	}
	return e, ok
}

// get returns an execution without removing it.
func (t *executionTracker) get(id string) (Execution, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.executions[id]
	return e, ok
}

// countForProject returns the number of executions tracked for a project.
func (t *executionTracker) countForProject(projectID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, e := range t.executions {
		if e.ProjectID == projectID {
			n++
		}
	}
	return n
}

// countForAgent returns the number of executions tracked for an agent
// across every project.
func (t *executionTracker) countForAgent(agentID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, e := range t.executions {
		if e.AgentID == agentID {
			n++
		}
	}
	return n
}

// forProject returns a project's executions ordered by dispatch time.
// An empty projectID returns every execution.
func (t *executionTracker) forProject(projectID string) []Execution {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Execution
	for _, e := range t.executions {
		if projectID == "" || e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DispatchedAt.Equal(out[j].DispatchedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].DispatchedAt.Before(out[j].DispatchedAt)
	})
	return out
}
