package planner

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/foreman/internal/graph"
	"github.com/ShayCichocki/foreman/internal/llm"
	"github.com/ShayCichocki/foreman/pkg/models"
)

// scriptedCompleter answers by system prompt. Prompts with no script fail.
type scriptedCompleter struct {
	mu        sync.Mutex
	responses map[string]string
	calls     []llm.Request
}

func newScripted(responses map[string]string) *scriptedCompleter {
	return &scriptedCompleter{responses: responses}
}

func (s *scriptedCompleter) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	system := req.Messages[0].Content
	content, ok := s.responses[system]
	if !ok {
		return nil, errors.New("no script for prompt")
	}
	return &llm.Response{Content: content}, nil
}

var testGoals = []models.Goal{{ID: "g1", Description: "Users can sign in", Priority: 1}}

func testClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

const chainDecomposition = "```json\n" + `{
  "milestones": [
    {"name": "Foundation", "tasks": [
      {"title": "Schema", "priority": "HIGH", "estimated_effort": "2h", "depends_on": []},
      {"title": "API", "depends_on": ["schema", "Ghost task"], "acceptance_criteria": "returns 200"}
    ]},
    {"name": "Ship", "tasks": [
      {"title": "UI", "priority": "urgent", "depends_on": ["API"], "tags": ["frontend"]}
    ]}
  ]
}` + "\n```"

func TestDecomposeBuildsGraph(t *testing.T) {
	c := newScripted(map[string]string{
		analysisSystemPrompt:      `{"requirements":["auth"],"risks":["oauth quirks"]}`,
		decompositionSystemPrompt: chainDecomposition,
		validationSystemPrompt:    `{"uncovered_goals":[],"suggestions":["add tests"]}`,
	})
	e := New(c, WithClock(testClock))

	plan, milestones := e.Decompose(context.Background(), "Auth", "Login flow", testGoals, []string{"Go only"})

	if len(plan.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(plan.Tasks))
	}
	schema, api, ui := plan.Tasks[0], plan.Tasks[1], plan.Tasks[2]

	if !reflect.DeepEqual(api.DependsOn, []string{schema.ID}) {
		t.Errorf("API.DependsOn = %v, want [%s] (case-insensitive, ghost dropped)", api.DependsOn, schema.ID)
	}
	if !reflect.DeepEqual(schema.BlockedBy, []string{api.ID}) {
		t.Errorf("Schema.BlockedBy = %v, want [%s]", schema.BlockedBy, api.ID)
	}
	if schema.Status != models.TaskStatusReady || api.Status != models.TaskStatusPending {
		t.Errorf("statuses = %s/%s, want ready/pending", schema.Status, api.Status)
	}
	if schema.Priority != models.PriorityHigh || ui.Priority != models.PriorityMedium {
		t.Errorf("priorities = %s/%s, want high/medium", schema.Priority, ui.Priority)
	}
	if !reflect.DeepEqual(api.AcceptanceCriteria, []string{"returns 200"}) {
		t.Errorf("API.AcceptanceCriteria = %v", api.AcceptanceCriteria)
	}
	if !reflect.DeepEqual(plan.CriticalPath, []string{schema.ID, api.ID, ui.ID}) {
		t.Errorf("CriticalPath = %v", plan.CriticalPath)
	}
	if len(plan.Dependencies) != 2 {
		t.Errorf("expected 2 dependency edges, got %v", plan.Dependencies)
	}
	if plan.Version != 1 || plan.GeneratedBy != models.GeneratedByAI || !plan.GeneratedAt.Equal(testClock()) {
		t.Errorf("plan metadata = v%d %s %v", plan.Version, plan.GeneratedBy, plan.GeneratedAt)
	}

	if len(milestones) != 2 {
		t.Fatalf("expected 2 milestones, got %d", len(milestones))
	}
	if milestones[0].Name != "Foundation" || !reflect.DeepEqual(milestones[0].TaskIDs, []string{schema.ID, api.ID}) {
		t.Errorf("milestone 0 = %+v", milestones[0])
	}
	if milestones[1].Status != models.MilestoneStatusPending {
		t.Errorf("milestone status = %s", milestones[1].Status)
	}

	if len(c.calls) != 3 {
		t.Errorf("expected analysis, decomposition and validation calls, got %d", len(c.calls))
	}
	for _, req := range c.calls {
		if req.ResponseFormat != llm.FormatJSON {
			t.Errorf("request format = %s, want json", req.ResponseFormat)
		}
	}
}

func TestDecomposeRepairsCycles(t *testing.T) {
	c := newScripted(map[string]string{
		decompositionSystemPrompt: `{"tasks":[
			{"title":"A","depends_on":["B"]},
			{"title":"B","depends_on":["A"]},
			{"title":"C","depends_on":["C"]},
			{"title":"D"}
		]}`,
	})
	plan, milestones := New(c).Decompose(context.Background(), "Loop", "", testGoals, nil)

	if len(plan.Tasks) != 4 {
		t.Fatalf("expected 4 tasks, got %d", len(plan.Tasks))
	}
	if cyclic := graph.DetectCycles(plan.Tasks); len(cyclic) != 0 {
		t.Errorf("plan still cyclic: %v", cyclic)
	}
	for _, task := range plan.Tasks {
		if task.Status != models.TaskStatusReady {
			t.Errorf("%s status = %s, want ready after repair", task.Title, task.Status)
		}
	}
	if len(milestones) != 0 {
		t.Errorf("unnamed group should not become a milestone: %v", milestones)
	}
}

func TestDecomposeMalformedReturnsEmptyPlan(t *testing.T) {
	tests := []struct {
		name      string
		responses map[string]string
	}{
		{"service down", map[string]string{}},
		{"prose only", map[string]string{decompositionSystemPrompt: "Sorry, I can't plan that."}},
		{"truncated json", map[string]string{decompositionSystemPrompt: `{"milestones":[{"name":"x"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, milestones := New(newScripted(tt.responses)).Decompose(context.Background(), "X", "", testGoals, nil)
			if plan == nil {
				t.Fatal("Decompose must always return a plan")
			}
			if len(plan.Tasks) != 0 || plan.Tasks == nil {
				t.Errorf("expected empty non-nil task list, got %v", plan.Tasks)
			}
			if plan.CriticalPath == nil || plan.Dependencies == nil {
				t.Error("empty plan should carry empty, non-nil slices")
			}
			if milestones != nil {
				t.Errorf("expected no milestones, got %v", milestones)
			}
		})
	}
}

func TestDecomposeExtractsEmbeddedObject(t *testing.T) {
	c := newScripted(map[string]string{
		decompositionSystemPrompt: `Here is your plan: {"tasks":[{"title":"Only task"}]} Good luck!`,
	})
	plan, _ := New(c).Decompose(context.Background(), "X", "", testGoals, nil)
	if len(plan.Tasks) != 1 || plan.Tasks[0].Title != "Only task" {
		t.Errorf("expected one task from embedded object, got %v", plan.Tasks)
	}
}

func TestEstimate(t *testing.T) {
	tasks := []*models.Task{
		{ID: "a", Title: "A", EstimatedEffort: "1h"},
		{ID: "b", Title: "B"},
		{ID: "c", Title: "C", EstimatedEffort: "3d"},
	}
	c := newScripted(map[string]string{
		estimateSystemPrompt: `{"estimates":[
			{"id":"a","estimated_effort":"4h"},
			{"id":"b","estimated_effort":"  "},
			{"id":"zzz","estimated_effort":"1w"}
		]}`,
	})

	got := New(c).Estimate(context.Background(), tasks)
	if &got[0] != &tasks[0] {
		t.Error("Estimate should return the same slice")
	}
	want := []string{"4h", "", "3d"}
	for i, task := range tasks {
		if task.EstimatedEffort != want[i] {
			t.Errorf("%s effort = %q, want %q", task.ID, task.EstimatedEffort, want[i])
		}
	}
}

func TestPrioritize(t *testing.T) {
	tasks := []*models.Task{
		{ID: "a", Title: "A", Priority: models.PriorityLow},
		{ID: "b", Title: "B", Priority: models.PriorityLow},
	}
	c := newScripted(map[string]string{
		prioritizeSystemPrompt: `{"priorities":[{"id":"a","priority":"Critical"},{"id":"b","priority":"asap"}]}`,
	})

	New(c).Prioritize(context.Background(), tasks, []string{"ship by friday"})
	if tasks[0].Priority != models.PriorityCritical {
		t.Errorf("a priority = %s, want critical", tasks[0].Priority)
	}
	if tasks[1].Priority != models.PriorityLow {
		t.Errorf("b priority = %s, want unchanged low", tasks[1].Priority)
	}
}

func TestEnrichmentMalformedLeavesTasks(t *testing.T) {
	tasks := []*models.Task{{ID: "a", Title: "A", EstimatedEffort: "1h", Priority: models.PriorityHigh}}
	e := New(newScripted(map[string]string{
		estimateSystemPrompt:   "not json",
		prioritizeSystemPrompt: `{"priorities": "nope"}`,
	}))

	e.Estimate(context.Background(), tasks)
	e.Prioritize(context.Background(), tasks, nil)
	if tasks[0].EstimatedEffort != "1h" || tasks[0].Priority != models.PriorityHigh {
		t.Errorf("task changed on malformed response: %+v", tasks[0])
	}
}
