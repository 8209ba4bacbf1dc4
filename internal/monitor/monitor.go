// Package monitor evaluates project health on a schedule or on demand,
// rolls up milestone progress, and asks for a replan when a project turns
// critical.
package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ShayCichocki/foreman/internal/events"
	"github.com/ShayCichocki/foreman/internal/llm"
	"github.com/ShayCichocki/foreman/internal/logging"
	"github.com/ShayCichocki/foreman/pkg/models"
)

const (
	// DefaultStaleFactor flags in-progress tasks running longer than this
	// multiple of their estimate.
	DefaultStaleFactor = 2.0
	// DefaultAtRiskThreshold is the warning count at which a project is at risk.
	DefaultAtRiskThreshold = 3
	// DefaultReplanQueueSize bounds pending replan requests.
	DefaultReplanQueueSize = 16

	// MetaProjectID is the schedule metadata key carrying the project id.
	MetaProjectID = "project_id"
)

// ScheduleRequest registers a periodic job with the scheduler.
type ScheduleRequest struct {
	Name           string
	CronExpression string
	DrivingPrompt  string
	Metadata       map[string]string
}

// SchedulerService registers and removes periodic jobs.
type SchedulerService interface {
	CreateTask(ctx context.Context, req ScheduleRequest) (string, error)
	DeleteTask(ctx context.Context, scheduleID string) error
}

// ReplanRequest asks the project manager to replan a project.
type ReplanRequest struct {
	ProjectID string
	Reason    string
}

// registration is the monitoring state of one project. An empty
// scheduleID means monitoring runs in degraded, manual-only mode.
type registration struct {
	scheduleID string
}

// Monitor is the progress monitor.
type Monitor struct {
	scheduler SchedulerService
	llm       llm.Completer
	replans   chan ReplanRequest

	staleFactor     float64
	atRiskThreshold int

	logger   *logging.DebugLogger
	emitter  *events.Emitter
	notifier events.Notifier
	now      func() time.Time

	mu       sync.RWMutex
	projects map[string]registration
	reports  map[string]*models.HealthReport
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the debug logger.
func WithLogger(l *logging.DebugLogger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithEmitter sets the UI event emitter.
func WithEmitter(e *events.Emitter) Option {
	return func(m *Monitor) { m.emitter = e }
}

// WithNotifier sets the notification sink.
func WithNotifier(n events.Notifier) Option {
	return func(m *Monitor) { m.notifier = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithStaleFactor sets the estimate multiple after which a task is stale.
func WithStaleFactor(f float64) Option {
	return func(m *Monitor) {
		if f > 0 {
			m.staleFactor = f
		}
	}
}

// WithAtRiskThreshold sets the warning count that makes a project at risk.
func WithAtRiskThreshold(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.atRiskThreshold = n
		}
	}
}

// New creates a monitor. scheduler and completer may be nil: without a
// scheduler every project is monitored in degraded mode, and without a
// completer health checks are purely deterministic.
func New(scheduler SchedulerService, completer llm.Completer, opts ...Option) *Monitor {
	m := &Monitor{
		scheduler:       scheduler,
		llm:             completer,
		replans:         make(chan ReplanRequest, DefaultReplanQueueSize),
		staleFactor:     DefaultStaleFactor,
		atRiskThreshold: DefaultAtRiskThreshold,
		notifier:        events.Nop(),
		now:             time.Now,
		projects:        make(map[string]registration),
		reports:         make(map[string]*models.HealthReport),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ReplanRequests returns the queue of replan requests.
func (m *Monitor) ReplanRequests() <-chan ReplanRequest {
	return m.replans
}

// StartMonitoring registers a periodic health check for p using its check
// interval. A project already monitored is re-registered. If the scheduler
// refuses, monitoring continues in degraded mode.
func (m *Monitor) StartMonitoring(ctx context.Context, p *models.Project) {
	m.StopMonitoring(ctx, p.ID)

	reg := registration{}
	if m.scheduler == nil {
		log.Printf("[monitor] WARNING: no scheduler, %s monitored manually only", p.ID)
	} else {
		id, err := m.scheduler.CreateTask(ctx, ScheduleRequest{
			Name:           "foreman-health-" + p.ID,
			CronExpression: p.Settings.CheckInterval,
			DrivingPrompt:  fmt.Sprintf("Run a health check for project %q (%s).", p.Name, p.ID),
			Metadata:       map[string]string{MetaProjectID: p.ID},
		})
		if err != nil {
			log.Printf("[monitor] WARNING: schedule health checks for %s: %v (degraded to manual checks)", p.ID, err)
		} else {
			reg.scheduleID = id
		}
	}

	m.mu.Lock()
	m.projects[p.ID] = reg
	m.mu.Unlock()
	m.logger.Log("[monitor] monitoring %s every %q (schedule %q)", p.ID, p.Settings.CheckInterval, reg.scheduleID)
}

// StopMonitoring removes the periodic check for a project. Scheduler errors
// are logged.
func (m *Monitor) StopMonitoring(ctx context.Context, projectID string) {
	m.mu.Lock()
	reg, ok := m.projects[projectID]
	delete(m.projects, projectID)
	m.mu.Unlock()
	if !ok {
		return
	}

	if reg.scheduleID != "" && m.scheduler != nil {
		if err := m.scheduler.DeleteTask(ctx, reg.scheduleID); err != nil {
			m.logger.Log("[monitor] delete schedule %s for %s: %v", reg.scheduleID, projectID, err)
		}
	}
	m.logger.Log("[monitor] stopped monitoring %s", projectID)
}

// IsMonitoring reports whether a project is registered.
func (m *Monitor) IsMonitoring(projectID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.projects[projectID]
	return ok
}

// Degraded reports whether a monitored project has no periodic schedule.
func (m *Monitor) Degraded(projectID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reg, ok := m.projects[projectID]
	return ok && reg.scheduleID == ""
}

// LastReport returns the most recent report for a project, or nil.
func (m *Monitor) LastReport(projectID string) *models.HealthReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reports[projectID]
}

// requestReplan publishes without blocking. A full queue drops the request.
func (m *Monitor) requestReplan(req ReplanRequest) {
	select {
	case m.replans <- req:
		m.logger.Log("[monitor] replan requested for %s: %s", req.ProjectID, req.Reason)
	default:
		log.Printf("[monitor] WARNING: replan queue full, dropped request for %s", req.ProjectID)
	}
}
