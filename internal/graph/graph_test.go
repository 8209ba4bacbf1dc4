package graph

import (
	"reflect"
	"testing"

	"github.com/ShayCichocki/foreman/pkg/models"
)

func task(id string, deps ...string) *models.Task {
	return &models.Task{ID: id, Title: "Task " + id, Status: models.TaskStatusPending, DependsOn: deps}
}

func TestNewIgnoresUnknownAndDuplicateDependencies(t *testing.T) {
	g := New([]*models.Task{
		task("A"),
		task("B", "A", "A", "ghost"),
	})

	if g.Size() != 2 {
		t.Fatalf("expected size 2, got %d", g.Size())
	}
	if deps := g.Dependencies("B"); !reflect.DeepEqual(deps, []string{"A"}) {
		t.Errorf("Dependencies(B) = %v, want [A]", deps)
	}
	if dependents := g.Dependents("A"); !reflect.DeepEqual(dependents, []string{"B"}) {
		t.Errorf("Dependents(A) = %v, want [B]", dependents)
	}
}

func TestDetectCycles(t *testing.T) {
	tests := []struct {
		name  string
		tasks []*models.Task
		want  map[string]bool
	}{
		{
			name:  "empty",
			tasks: nil,
			want:  map[string]bool{},
		},
		{
			name:  "linear chain is acyclic",
			tasks: []*models.Task{task("A"), task("B", "A"), task("C", "B")},
			want:  map[string]bool{},
		},
		{
			name:  "diamond is acyclic",
			tasks: []*models.Task{task("A"), task("B", "A"), task("C", "A"), task("D", "B", "C")},
			want:  map[string]bool{},
		},
		{
			name:  "self loop",
			tasks: []*models.Task{task("A", "A")},
			want:  map[string]bool{"A": true},
		},
		{
			name:  "two node cycle",
			tasks: []*models.Task{task("A", "B"), task("B", "A"), task("C")},
			want:  map[string]bool{"A": true, "B": true},
		},
		{
			name:  "task behind a cycle is unreachable",
			tasks: []*models.Task{task("A", "C"), task("B", "A"), task("C", "B"), task("D", "C")},
			want:  map[string]bool{"A": true, "B": true, "C": true, "D": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectCycles(tt.tasks)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DetectCycles() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRepairCyclesLeavesDAG(t *testing.T) {
	tests := []struct {
		name  string
		tasks []*models.Task
	}{
		{"self loop", []*models.Task{task("A", "A")}},
		{"two node", []*models.Task{task("A", "B"), task("B", "A")}},
		{"three node with tail", []*models.Task{task("A", "C"), task("B", "A"), task("C", "B"), task("D", "C"), task("E")}},
		{"cycle depending on acyclic root", []*models.Task{task("R"), task("A", "R", "B"), task("B", "A")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			removed := RepairCycles(tt.tasks)
			if removed == 0 {
				t.Error("expected at least one edge removed")
			}
			if cyclic := DetectCycles(tt.tasks); len(cyclic) != 0 {
				t.Errorf("graph still cyclic after repair: %v", cyclic)
			}
		})
	}
}

func TestRepairCyclesKeepsEdgesToAcyclicTasks(t *testing.T) {
	tasks := []*models.Task{task("R"), task("A", "R", "B"), task("B", "A")}
	RepairCycles(tasks)

	if !reflect.DeepEqual(tasks[1].DependsOn, []string{"R"}) {
		t.Errorf("A.DependsOn = %v, want [R]", tasks[1].DependsOn)
	}
	if tasks[2].DependsOn != nil {
		t.Errorf("B.DependsOn = %v, want nil", tasks[2].DependsOn)
	}
}

func TestRepairCyclesNoopOnDAG(t *testing.T) {
	tasks := []*models.Task{task("A"), task("B", "A")}
	if removed := RepairCycles(tasks); removed != 0 {
		t.Errorf("expected 0 edges removed, got %d", removed)
	}
	if !reflect.DeepEqual(tasks[1].DependsOn, []string{"A"}) {
		t.Errorf("B.DependsOn changed to %v", tasks[1].DependsOn)
	}
}

func TestCriticalPath(t *testing.T) {
	tests := []struct {
		name  string
		tasks []*models.Task
		want  []string
	}{
		{"empty", nil, []string{}},
		{"single", []*models.Task{task("A")}, []string{"A"}},
		{"chain", []*models.Task{task("A"), task("B", "A"), task("C", "B")}, []string{"A", "B", "C"}},
		{
			name:  "longest branch wins",
			tasks: []*models.Task{task("A"), task("B", "A"), task("C", "B"), task("X"), task("D", "X", "C")},
			want:  []string{"A", "B", "C", "D"},
		},
		{
			name:  "tie goes to list order",
			tasks: []*models.Task{task("A"), task("B", "A"), task("X"), task("Y", "X")},
			want:  []string{"A", "B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CriticalPath(tt.tasks)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CriticalPath() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCriticalPathIsSimplePathOverEdges(t *testing.T) {
	tasks := []*models.Task{
		task("A"), task("B", "A"), task("C", "A"), task("D", "B", "C"),
		task("E", "D"), task("F", "C"), task("G", "F", "E"),
	}
	path := CriticalPath(tasks)
	g := New(tasks)

	seen := make(map[string]bool)
	for i, id := range path {
		if g.Task(id) == nil {
			t.Fatalf("path contains unknown id %s", id)
		}
		if seen[id] {
			t.Fatalf("path repeats %s", id)
		}
		seen[id] = true
		if i == 0 {
			continue
		}
		found := false
		for _, dep := range g.Dependencies(id) {
			if dep == path[i-1] {
				found = true
			}
		}
		if !found {
			t.Errorf("no edge %s -> %s in path %v", path[i-1], id, path)
		}
	}
	if len(path) != 5 {
		t.Errorf("expected path length 5, got %v", path)
	}
}

func TestReadyFrontierAdvances(t *testing.T) {
	tasks := []*models.Task{task("A"), task("B", "A"), task("C", "B")}
	MarkInitialStatus(tasks)

	if got := ids(Ready(tasks)); !reflect.DeepEqual(got, []string{"A"}) {
		t.Fatalf("initial Ready() = %v, want [A]", got)
	}

	tasks[0].Status = models.TaskStatusDone
	if got := ids(Ready(tasks)); !reflect.DeepEqual(got, []string{"B"}) {
		t.Fatalf("Ready() after A done = %v, want [B]", got)
	}
}

func TestReadySkipsNonDispatchable(t *testing.T) {
	tasks := []*models.Task{task("A"), task("B"), task("C"), task("D", "ghost")}
	tasks[0].Status = models.TaskStatusInProgress
	tasks[1].Status = models.TaskStatusBlocked
	tasks[2].Status = models.TaskStatusReady

	if got := ids(Ready(tasks)); !reflect.DeepEqual(got, []string{"C"}) {
		t.Errorf("Ready() = %v, want [C]", got)
	}
}

func TestMarkInitialStatus(t *testing.T) {
	tasks := []*models.Task{task("A"), task("B", "A"), task("C")}
	tasks[2].Status = models.TaskStatusDone
	MarkInitialStatus(tasks)

	want := []models.TaskStatus{models.TaskStatusReady, models.TaskStatusPending, models.TaskStatusDone}
	for i, task := range tasks {
		if task.Status != want[i] {
			t.Errorf("%s status = %s, want %s", task.ID, task.Status, want[i])
		}
	}
}

func TestDeriveBlockedByAndEdges(t *testing.T) {
	tasks := []*models.Task{task("A"), task("B", "A"), task("C", "A")}
	DeriveBlockedBy(tasks)

	if !reflect.DeepEqual(tasks[0].BlockedBy, []string{"B", "C"}) {
		t.Errorf("A.BlockedBy = %v, want [B C]", tasks[0].BlockedBy)
	}
	if tasks[1].BlockedBy != nil {
		t.Errorf("B.BlockedBy = %v, want nil", tasks[1].BlockedBy)
	}

	edges := Edges(tasks)
	want := []models.Dependency{
		{From: "A", To: "B", Type: models.DependencyBlocks},
		{From: "A", To: "C", Type: models.DependencyBlocks},
	}
	if !reflect.DeepEqual(edges, want) {
		t.Errorf("Edges() = %v, want %v", edges, want)
	}
}

func ids(tasks []*models.Task) []string {
	out := []string{}
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}
