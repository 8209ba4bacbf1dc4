package store

import (
	"context"
	"errors"
	"testing"

	"github.com/ShayCichocki/foreman/internal/state"
	"github.com/ShayCichocki/foreman/pkg/models"
)

type stubSearcher struct {
	ids []string
	err error
}

func (s stubSearcher) SearchTasks(context.Context, string, string, int) ([]string, error) {
	return s.ids, s.err
}

func searchProject() *models.Project {
	return &models.Project{
		ID: "p",
		Plan: &models.Plan{Tasks: []*models.Task{
			{ID: "1", Title: "Design API", Tags: []string{"backend"}},
			{ID: "2", Title: "Build UI", Description: "React dashboard", Subtasks: []*models.Task{
				{ID: "2a", Title: "Login form", AcceptanceCriteria: []string{"Calls the API"}},
			}},
			{ID: "3", Title: "Write docs"},
		}},
	}
}

func TestFindTasks(t *testing.T) {
	p := searchProject()

	tests := []struct {
		query string
		want  []string
	}{
		{"api", []string{"1", "2a"}},
		{"REACT", []string{"2"}},
		{"backend", []string{"1"}},
		{"login", []string{"2a"}},
		{"nothing", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := taskIDs(FindTasks(p, tt.query))
			if len(got) != len(tt.want) {
				t.Fatalf("FindTasks(%q) = %v, want %v", tt.query, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("FindTasks(%q) = %v, want %v", tt.query, got, tt.want)
				}
			}
		})
	}
}

func TestSearchTasksPrefersSemantic(t *testing.T) {
	s := New(state.NewMemoryKV(), WithSearcher(stubSearcher{ids: []string{"3", "missing", "2a"}}))
	got := taskIDs(s.SearchTasks(context.Background(), searchProject(), "api", 0))
	if len(got) != 2 || got[0] != "3" || got[1] != "2a" {
		t.Errorf("SearchTasks() = %v, want [3 2a]", got)
	}
}

func TestSearchTasksFallsBack(t *testing.T) {
	tests := []struct {
		name     string
		searcher SemanticSearcher
	}{
		{"no searcher", nil},
		{"searcher error", stubSearcher{err: errors.New("index offline")}},
		{"empty result", stubSearcher{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(state.NewMemoryKV(), WithSearcher(tt.searcher))
			got := taskIDs(s.SearchTasks(context.Background(), searchProject(), "api", 1))
			if len(got) != 1 || got[0] != "1" {
				t.Errorf("SearchTasks() = %v, want [1]", got)
			}
		})
	}
}

func TestFindTaskByID(t *testing.T) {
	p := searchProject()
	if got := FindTaskByID(p, "2a"); got == nil || got.Title != "Login form" {
		t.Errorf("FindTaskByID(2a) = %v", got)
	}
	if got := FindTaskByID(p, "zz"); got != nil {
		t.Errorf("FindTaskByID(zz) = %v", got)
	}
}

func taskIDs(tasks []*models.Task) []string {
	var ids []string
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}
