// Package store persists projects over a key-value backend and keeps an
// in-memory cache of the projects it has loaded.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ShayCichocki/foreman/internal/logging"
	"github.com/ShayCichocki/foreman/internal/state"
	"github.com/ShayCichocki/foreman/internal/validation"
	"github.com/ShayCichocki/foreman/pkg/models"
)

const (
	projectKeyPrefix = "project:"
	indexKey         = "projects:index"
	settingsKey      = "settings:defaults"
)

// ErrProjectNotFound is returned when a project id has no stored blob.
var ErrProjectNotFound = errors.New("project not found")

// Store is the project store. Projects returned by Get are the cached
// instances; callers mutate them and call Save to persist.
type Store struct {
	kv       state.KV
	searcher SemanticSearcher
	validate *validator.Validate
	logger   *logging.DebugLogger
	now      func() time.Time
	defaults models.ProjectSettings

	// mu guards cache and serializes index read-modify-write cycles.
	mu    sync.Mutex
	cache map[string]*models.Project
}

// Option configures a Store.
type Option func(*Store)

// WithSearcher enables semantic task search.
func WithSearcher(s SemanticSearcher) Option {
	return func(st *Store) { st.searcher = s }
}

// WithLogger sets the debug logger.
func WithLogger(l *logging.DebugLogger) Option {
	return func(st *Store) { st.logger = l }
}

// WithValidator replaces the struct validator used on import.
func WithValidator(v *validator.Validate) Option {
	return func(st *Store) { st.validate = v }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(st *Store) { st.now = now }
}

// WithFallbackSettings sets the settings returned by DefaultSettings when
// none have been saved.
func WithFallbackSettings(s models.ProjectSettings) Option {
	return func(st *Store) { st.defaults = s }
}

// New creates a store over kv.
func New(kv state.KV, opts ...Option) *Store {
	s := &Store{
		kv:       kv,
		now:      time.Now,
		defaults: models.DefaultProjectSettings(),
		cache:    make(map[string]*models.Project),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validate == nil {
		s.validate = validation.New()
	}
	return s
}

func projectKey(id string) string {
	return projectKeyPrefix + id
}

// Create persists a new project and appends it to the index.
// Missing ids and timestamps are filled in.
func (s *Store) Create(ctx context.Context, p *models.Project) (*models.Project, error) {
	if p.ID == "" {
		p.ID = models.NewID()
	}
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.Status == "" {
		p.Status = models.ProjectStatusPlanning
	}

	if err := s.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	s.logger.Log("[store] created project %s (%s)", p.ID, p.Name)
	return p, nil
}

// Get returns a project, from the cache when present.
func (s *Store) Get(ctx context.Context, id string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(ctx, id)
}

func (s *Store) getLocked(ctx context.Context, id string) (*models.Project, error) {
	if p, ok := s.cache[id]; ok {
		return p, nil
	}

	data, err := s.kv.Get(ctx, projectKey(id))
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", id, err)
	}
	if data == nil {
		return nil, fmt.Errorf("project %s: %w", id, ErrProjectNotFound)
	}

	var p models.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode project %s: %w", id, err)
	}
	s.cache[id] = &p
	return &p, nil
}

// Save touches UpdatedAt and writes the blob, then the index entry.
// A crash between the two writes leaves a blob the index does not list,
// which List tolerates.
func (s *Store) Save(ctx context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.UpdatedAt = s.now()
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode project %s: %w", p.ID, err)
	}
	if err := s.kv.Set(ctx, projectKey(p.ID), data); err != nil {
		return fmt.Errorf("save project %s: %w", p.ID, err)
	}
	s.cache[p.ID] = p

	index, err := s.readIndex(ctx)
	if err != nil {
		return err
	}
	for _, id := range index {
		if id == p.ID {
			return nil
		}
	}
	return s.writeIndex(ctx, append(index, p.ID))
}

// Delete removes the blob, the index entry and the cache entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, projectKey(id)); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	delete(s.cache, id)

	index, err := s.readIndex(ctx)
	if err != nil {
		return err
	}
	kept := index[:0]
	for _, existing := range index {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	return s.writeIndex(ctx, kept)
}

// List returns every indexed project in insertion order. Index entries whose
// blob is missing are skipped.
func (s *Store) List(ctx context.Context) ([]*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.readIndex(ctx)
	if err != nil {
		return nil, err
	}

	projects := make([]*models.Project, 0, len(index))
	for _, id := range index {
		p, err := s.getLocked(ctx, id)
		if errors.Is(err, ErrProjectNotFound) {
			s.logger.Log("[store] index lists %s but its blob is missing, skipping", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// Import restores a complete project blob. The project must carry an id,
// name and status; settings missing a check interval get the defaults.
func (s *Store) Import(ctx context.Context, p *models.Project) (*models.Project, error) {
	if p.Settings.CheckInterval == "" {
		defaults, err := s.DefaultSettings(ctx)
		if err != nil {
			return nil, err
		}
		p.Settings = defaults
	}
	if err := validation.Struct(s.validate, p); err != nil {
		return nil, fmt.Errorf("import project: %w", err)
	}
	if !p.Status.Valid() {
		return nil, fmt.Errorf("import project: unknown status %q", p.Status)
	}

	if err := s.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("import project: %w", err)
	}
	s.logger.Log("[store] imported project %s (%s)", p.ID, p.Name)
	return p, nil
}

// DefaultSettings returns the saved default settings, or the fallback
// settings when none are stored.
func (s *Store) DefaultSettings(ctx context.Context) (models.ProjectSettings, error) {
	data, err := s.kv.Get(ctx, settingsKey)
	if err != nil {
		return models.ProjectSettings{}, fmt.Errorf("load default settings: %w", err)
	}
	if data == nil {
		d := s.defaults
		d.DefaultAgentIDs = append([]string(nil), s.defaults.DefaultAgentIDs...)
		return d, nil
	}

	var settings models.ProjectSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return models.ProjectSettings{}, fmt.Errorf("decode default settings: %w", err)
	}
	return settings, nil
}

// SaveDefaultSettings validates and stores the default settings.
func (s *Store) SaveDefaultSettings(ctx context.Context, settings models.ProjectSettings) error {
	if err := validation.Struct(s.validate, settings); err != nil {
		return fmt.Errorf("save default settings: %w", err)
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode default settings: %w", err)
	}
	if err := s.kv.Set(ctx, settingsKey, data); err != nil {
		return fmt.Errorf("save default settings: %w", err)
	}
	return nil
}

// Invalidate drops a project from the cache so the next Get reloads it.
func (s *Store) Invalidate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, id)
}

func (s *Store) readIndex(ctx context.Context) ([]string, error) {
	data, err := s.kv.Get(ctx, indexKey)
	if err != nil {
		return nil, fmt.Errorf("load project index: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	var index []string
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("decode project index: %w", err)
	}
	return index, nil
}

func (s *Store) writeIndex(ctx context.Context, index []string) error {
	if index == nil {
		index = []string{}
	}
	data, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("encode project index: %w", err)
	}
	if err := s.kv.Set(ctx, indexKey, data); err != nil {
		return fmt.Errorf("save project index: %w", err)
	}
	return nil
}
