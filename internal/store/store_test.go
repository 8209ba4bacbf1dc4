package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ShayCichocki/foreman/internal/state"
	"github.com/ShayCichocki/foreman/pkg/models"
)

// failingKV wraps MemoryKV and fails the flagged operations.
type failingKV struct {
	*state.MemoryKV
	failGet bool
	failSet bool
}

func (f *failingKV) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failGet {
		return nil, errors.New("backend down")
	}
	return f.MemoryKV.Get(ctx, key)
}

func (f *failingKV) Set(ctx context.Context, key string, value []byte) error {
	if f.failSet {
		return errors.New("backend down")
	}
	return f.MemoryKV.Set(ctx, key, value)
}

func fixedClock() func() time.Time {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time { return ts }
}

func newTestProject(name string) *models.Project {
	return &models.Project{
		Name:     name,
		Goals:    []models.Goal{{ID: "g1", Description: "ship it", Priority: 1}},
		Settings: models.DefaultProjectSettings(),
	}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	kv := state.NewMemoryKV()
	s := New(kv, WithClock(fixedClock()))

	p, err := s.Create(ctx, newTestProject("alpha"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if p.ID == "" {
		t.Fatal("Create should assign an id")
	}
	if p.Status != models.ProjectStatusPlanning {
		t.Errorf("Status = %s, want planning", p.Status)
	}
	if !p.UpdatedAt.Equal(fixedClock()()) {
		t.Errorf("UpdatedAt = %v", p.UpdatedAt)
	}

	got, err := s.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != p {
		t.Error("Get should return the cached instance")
	}

	// A fresh store over the same backend reads the blob.
	reloaded, err := New(kv).Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get from fresh store failed: %v", err)
	}
	if reloaded.Name != "alpha" || len(reloaded.Goals) != 1 {
		t.Errorf("reloaded project = %+v", reloaded)
	}
}

func TestGetNotFound(t *testing.T) {
	s := New(state.NewMemoryKV())
	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("Get(nope) = %v, want ErrProjectNotFound", err)
	}
}

func TestListOrderAndMissingBlobs(t *testing.T) {
	ctx := context.Background()
	kv := state.NewMemoryKV()
	s := New(kv)

	a, _ := s.Create(ctx, newTestProject("a"))
	b, _ := s.Create(ctx, newTestProject("b"))
	c, _ := s.Create(ctx, newTestProject("c"))

	// Simulate a partial delete: blob gone, index entry left behind.
	kv.Delete(ctx, projectKey(b.ID))
	s.Invalidate(b.ID)

	projects, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(projects) != 2 || projects[0].ID != a.ID || projects[1].ID != c.ID {
		t.Errorf("List() = %v", projectIDs(projects))
	}
}

func TestSaveDoesNotDuplicateIndex(t *testing.T) {
	ctx := context.Background()
	s := New(state.NewMemoryKV())
	p, _ := s.Create(ctx, newTestProject("a"))
	p.Description = "changed"
	if err := s.Save(ctx, p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	index, err := s.readIndex(ctx)
	if err != nil {
		t.Fatalf("readIndex: %v", err)
	}
	if len(index) != 1 {
		t.Errorf("index = %v, want one entry", index)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := New(state.NewMemoryKV())
	p, _ := s.Create(ctx, newTestProject("a"))

	if err := s.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, p.ID); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("Get after delete = %v", err)
	}
	projects, _ := s.List(ctx)
	if len(projects) != 0 {
		t.Errorf("List after delete = %v", projectIDs(projects))
	}
}

func TestSaveSurfacesBackendErrors(t *testing.T) {
	kv := &failingKV{MemoryKV: state.NewMemoryKV(), failSet: true}
	s := New(kv)
	if _, err := s.Create(context.Background(), newTestProject("a")); err == nil {
		t.Error("expected error from failing backend")
	}
}

func TestImport(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		project *models.Project
		wantErr bool
	}{
		{
			name:    "complete blob",
			project: &models.Project{ID: "p1", Name: "restored", Status: models.ProjectStatusActive, Settings: models.DefaultProjectSettings()},
		},
		{
			name:    "missing settings get defaults",
			project: &models.Project{ID: "p2", Name: "restored", Status: models.ProjectStatusPaused},
		},
		{
			name:    "missing id",
			project: &models.Project{Name: "x", Status: models.ProjectStatusActive},
			wantErr: true,
		},
		{
			name:    "missing name",
			project: &models.Project{ID: "p3", Status: models.ProjectStatusActive},
			wantErr: true,
		},
		{
			name:    "unknown status",
			project: &models.Project{ID: "p4", Name: "x", Status: "archived"},
			wantErr: true,
		},
		{
			name: "bad cron",
			project: &models.Project{ID: "p5", Name: "x", Status: models.ProjectStatusActive,
				Settings: models.ProjectSettings{CheckInterval: "whenever"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(state.NewMemoryKV())
			_, err := s.Import(ctx, tt.project)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Import() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			got, err := s.Get(ctx, tt.project.ID)
			if err != nil {
				t.Fatalf("Get after import: %v", err)
			}
			if got.Settings.CheckInterval == "" {
				t.Error("imported project should carry a check interval")
			}
		})
	}
}

func TestDefaultSettings(t *testing.T) {
	ctx := context.Background()
	fallback := models.DefaultProjectSettings()
	fallback.MaxConcurrentTasks = 7
	s := New(state.NewMemoryKV(), WithFallbackSettings(fallback))

	got, err := s.DefaultSettings(ctx)
	if err != nil {
		t.Fatalf("DefaultSettings failed: %v", err)
	}
	if got.MaxConcurrentTasks != 7 {
		t.Errorf("fallback MaxConcurrentTasks = %d, want 7", got.MaxConcurrentTasks)
	}

	saved := models.DefaultProjectSettings()
	saved.AutoReplan = true
	if err := s.SaveDefaultSettings(ctx, saved); err != nil {
		t.Fatalf("SaveDefaultSettings failed: %v", err)
	}
	got, _ = s.DefaultSettings(ctx)
	if !got.AutoReplan {
		t.Error("saved settings not returned")
	}

	saved.CheckInterval = "nonsense"
	if err := s.SaveDefaultSettings(ctx, saved); err == nil {
		t.Error("expected validation error for bad cron")
	}
}

func projectIDs(ps []*models.Project) []string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return ids
}
