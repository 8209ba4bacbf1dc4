// Package manager coordinates the project store, plan engine, execution
// orchestrator and progress monitor. Every mutation of a project goes
// through a Manager method, and calls for the same project are serialized
// by a per-project lock.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ShayCichocki/foreman/internal/events"
	"github.com/ShayCichocki/foreman/internal/logging"
	"github.com/ShayCichocki/foreman/internal/monitor"
	"github.com/ShayCichocki/foreman/internal/orchestrator"
	"github.com/ShayCichocki/foreman/internal/planner"
	"github.com/ShayCichocki/foreman/internal/store"
	"github.com/ShayCichocki/foreman/internal/validation"
	"github.com/ShayCichocki/foreman/pkg/models"
)

var (
	// ErrTaskNotFound is returned when a task id is not in the project's plan.
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidTransition is returned for a status change the lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNoPlan is returned when an operation needs a plan and there is none.
	ErrNoPlan = errors.New("project has no plan")
	// ErrProjectBusy is returned when a full regeneration would orphan
	// running executions.
	ErrProjectBusy = errors.New("project has running executions")
)

// Manager is the project manager.
type Manager struct {
	store   *store.Store
	planner *planner.Engine
	orch    *orchestrator.Orchestrator
	mon     *monitor.Monitor

	logger   *logging.DebugLogger
	emitter  *events.Emitter
	notifier events.Notifier
	validate *validator.Validate
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the debug logger.
func WithLogger(l *logging.DebugLogger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithEmitter sets the UI event emitter.
func WithEmitter(e *events.Emitter) Option {
	return func(m *Manager) { m.emitter = e }
}

// WithNotifier sets the notification sink.
func WithNotifier(n events.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithValidator sets the validator used for requests and settings.
func WithValidator(v *validator.Validate) Option {
	return func(m *Manager) { m.validate = v }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a manager over its collaborators.
func New(st *store.Store, pl *planner.Engine, orch *orchestrator.Orchestrator, mon *monitor.Monitor, opts ...Option) *Manager {
	m := &Manager{
		store:    st,
		planner:  pl,
		orch:     orch,
		mon:      mon,
		notifier: events.Nop(),
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.validate == nil {
		m.validate = validation.New()
	}
	return m
}

// lock serializes work on one project and returns the unlock func.
func (m *Manager) lock(projectID string) func() {
	m.mu.Lock()
	l, ok := m.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[projectID] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// load returns the project and, when taskID is not empty, one of its tasks.
func (m *Manager) load(ctx context.Context, projectID, taskID string) (*models.Project, *models.Task, error) {
	p, err := m.store.Get(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	if taskID == "" {
		return p, nil, nil
	}
	t := p.Task(taskID)
	if t == nil {
		return nil, nil, fmt.Errorf("task %s in project %s: %w", taskID, projectID, ErrTaskNotFound)
	}
	return p, t, nil
}

// Run applies orchestrator status changes and monitor replan requests in
// arrival order until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Log("[manager] run loop started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Log("[manager] run loop stopped: %v", ctx.Err())
			return ctx.Err()

		case change := <-m.orch.Changes():
			if err := m.HandleTaskStatusChange(ctx, change); err != nil {
				m.logger.Log("[manager] apply %s/%s -> %s: %v", change.ProjectID, change.TaskID, change.New, err)
			}

		case req := <-m.mon.ReplanRequests():
			m.handleReplanRequest(ctx, req)
		}
	}
}

func (m *Manager) handleReplanRequest(ctx context.Context, req monitor.ReplanRequest) {
	p, err := m.store.Get(ctx, req.ProjectID)
	if err != nil {
		m.logger.Log("[manager] replan request for %s: %v", req.ProjectID, err)
		return
	}
	if p.Status != models.ProjectStatusActive {
		m.logger.Log("[manager] replan request for %s ignored, project is %s", req.ProjectID, p.Status)
		return
	}
	if _, err := m.ReplanProject(ctx, req.ProjectID, req.Reason); err != nil {
		m.logger.Log("[manager] auto replan %s: %v", req.ProjectID, err)
	}
}

func (m *Manager) emitTaskStatus(p *models.Project, t *models.Task, old models.TaskStatus) {
	m.emitter.Emit(events.Event{
		Type:      events.EventTaskStatusChanged,
		ProjectID: p.ID,
		TaskID:    t.ID,
		OldStatus: string(old),
		NewStatus: string(t.Status),
		Timestamp: m.now(),
	})
}
