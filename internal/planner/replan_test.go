package planner

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/ShayCichocki/foreman/internal/graph"
	"github.com/ShayCichocki/foreman/pkg/models"
)

func replanFixture() *models.Plan {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &models.Plan{
		ID:        "plan-1",
		ProjectID: "proj",
		Version:   3,
		Tasks: []*models.Task{
			{ID: "done", Title: "Schema", Status: models.TaskStatusDone, Output: "tables created", BlockedBy: []string{"api"}},
			{ID: "api", Title: "API", Status: models.TaskStatusBlocked, DependsOn: []string{"done"},
				Notes: []models.Note{{ID: "n1", Type: models.NoteTypeBlocker, Content: "auth provider rejects tokens"}}},
			{ID: "wip", Title: "Docs", Status: models.TaskStatusInProgress, StartedAt: &started},
			{ID: "gone", Title: "Old idea", Status: models.TaskStatusCancelled},
			{ID: "ui", Title: "UI", Status: models.TaskStatusPending, DependsOn: []string{"api"}},
			{ID: "deploy", Title: "Deploy", Status: models.TaskStatusReady},
		},
	}
}

func TestReplanPreservesNonEligibleTasks(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"new tasks", `{"tasks":[
			{"title":"Switch auth provider","depends_on":["schema"]},
			{"title":"UI v2","depends_on":["switch auth provider","API"]}
		]}`},
		{"malformed", "I am unable to comply."},
		{"empty list", `{"tasks":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := replanFixture()
			snapshot := original.Clone()
			e := New(newScripted(map[string]string{replanSystemPrompt: tt.response}), WithClock(testClock))

			next := e.Replan(context.Background(), original, "auth provider rejects tokens", testGoals)

			if !reflect.DeepEqual(original, snapshot) {
				t.Fatal("Replan mutated its input")
			}
			byID := make(map[string]*models.Task)
			for _, task := range next.Tasks {
				byID[task.ID] = task
			}
			for _, before := range snapshot.Tasks {
				if before.Status.Dispatchable() {
					continue
				}
				after, ok := byID[before.ID]
				if !ok {
					t.Errorf("preserved task %s missing after replan", before.ID)
					continue
				}
				if !reflect.DeepEqual(before, after) {
					t.Errorf("preserved task %s changed:\nbefore %+v\nafter  %+v", before.ID, before, after)
				}
				if after == original.Task(before.ID) {
					t.Errorf("preserved task %s shares a pointer with the input plan", before.ID)
				}
			}

			if next.Version != 4 {
				t.Errorf("Version = %d, want 4", next.Version)
			}
			if next.ProjectID != "proj" || next.GeneratedBy != models.GeneratedByAI {
				t.Errorf("plan metadata = %s %s", next.ProjectID, next.GeneratedBy)
			}
			for _, id := range next.CriticalPath {
				if next.Task(id) == nil {
					t.Errorf("critical path references unknown task %s", id)
				}
			}
		})
	}
}

func TestReplanResolvesTitlesAcrossOldAndNew(t *testing.T) {
	e := New(newScripted(map[string]string{replanSystemPrompt: `{"tasks":[
		{"title":"Switch auth provider","depends_on":["schema"]},
		{"title":"UI v2","depends_on":["switch auth provider","API"]}
	]}`}))

	next := e.Replan(context.Background(), replanFixture(), "blocked", testGoals)

	if len(next.Tasks) != 6 {
		t.Fatalf("expected 4 preserved + 2 new tasks, got %d", len(next.Tasks))
	}
	if next.Task("ui") != nil || next.Task("deploy") != nil {
		t.Error("eligible tasks should be replaced")
	}
	switchTask, uiTask := next.Tasks[4], next.Tasks[5]
	if !reflect.DeepEqual(switchTask.DependsOn, []string{"done"}) {
		t.Errorf("switch deps = %v, want [done]", switchTask.DependsOn)
	}
	if !reflect.DeepEqual(uiTask.DependsOn, []string{switchTask.ID, "api"}) {
		t.Errorf("ui deps = %v", uiTask.DependsOn)
	}
	if switchTask.Status != models.TaskStatusPending {
		t.Errorf("new task with deps should start pending, got %s", switchTask.Status)
	}
	if !reflect.DeepEqual(switchTask.BlockedBy, []string{uiTask.ID}) {
		t.Errorf("switch BlockedBy = %v", switchTask.BlockedBy)
	}
	if cyclic := graph.DetectCycles(next.Tasks); len(cyclic) != 0 {
		t.Errorf("replanned graph cyclic: %v", cyclic)
	}
	if ready := graph.Ready(next.Tasks); len(ready) != 1 || ready[0].ID != switchTask.ID {
		t.Errorf("ready frontier = %v, want only the new unblocked task", ready)
	}
}

func TestReplanMalformedKeepsEligibleTasks(t *testing.T) {
	next := New(newScripted(nil)).Replan(context.Background(), replanFixture(), "blocked", testGoals)

	if len(next.Tasks) != 6 {
		t.Fatalf("expected all 6 tasks kept, got %d", len(next.Tasks))
	}
	if next.Task("ui") == nil || next.Task("deploy") == nil {
		t.Error("eligible tasks should be kept when the response is unusable")
	}
	if next.Version != 4 {
		t.Errorf("Version = %d, want 4", next.Version)
	}
}
