// Package schedule runs periodic project jobs in-process on cron
// expressions.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/ShayCichocki/foreman/internal/logging"
	"github.com/ShayCichocki/foreman/internal/monitor"
	"github.com/ShayCichocki/foreman/internal/validation"
)

// ErrUnknownSchedule is returned when deleting an id that is not registered.
var ErrUnknownSchedule = errors.New("unknown schedule")

// TriggerFunc is invoked on every tick with the project id from the
// schedule metadata.
type TriggerFunc func(ctx context.Context, projectID string)

// CronScheduler implements monitor.SchedulerService with robfig/cron.
type CronScheduler struct {
	cron    *cron.Cron
	chain   cron.Chain
	trigger TriggerFunc
	logger  *logging.DebugLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]cron.EntryID
	names   map[string]string
	next    int
}

var _ monitor.SchedulerService = (*CronScheduler)(nil)

// Option configures a CronScheduler.
type Option func(*CronScheduler)

// WithLogger sets the debug logger.
func WithLogger(l *logging.DebugLogger) Option {
	return func(s *CronScheduler) { s.logger = l }
}

// New creates a scheduler that calls trigger on each tick. Call Start to
// begin ticking and Stop to end it.
func New(trigger TriggerFunc, opts ...Option) *CronScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &CronScheduler{
		cron:    cron.New(),
		chain:   cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		trigger: trigger,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
		names:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins running jobs in the background.
func (s *CronScheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler, cancels the context handed to running
// triggers and waits for them to return.
func (s *CronScheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// CreateTask registers a job. The metadata must carry the project id.
func (s *CronScheduler) CreateTask(_ context.Context, req monitor.ScheduleRequest) (string, error) {
	projectID := req.Metadata[monitor.MetaProjectID]
	if projectID == "" {
		return "", fmt.Errorf("schedule %q: missing %s metadata", req.Name, monitor.MetaProjectID)
	}
	sched, err := validation.ParseCron(req.CronExpression)
	if err != nil {
		return "", fmt.Errorf("schedule %q: parse %q: %w", req.Name, req.CronExpression, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	id := fmt.Sprintf("sched-%d", s.next)
	// A check still running when the next tick arrives skips that tick.
	entry := s.cron.Schedule(sched, s.chain.Then(cron.FuncJob(func() {
		s.logger.Log("[schedule] %s (%s) firing for %s", id, req.Name, projectID)
		s.trigger(s.ctx, projectID)
	})))
	s.entries[id] = entry
	s.names[id] = req.Name
	s.logger.Log("[schedule] registered %s (%s) %q", id, req.Name, req.CronExpression)
	return id, nil
}

// DeleteTask removes a job.
func (s *CronScheduler) DeleteTask(_ context.Context, scheduleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[scheduleID]
	if !ok {
		return fmt.Errorf("delete %s: %w", scheduleID, ErrUnknownSchedule)
	}
	s.cron.Remove(entry)
	delete(s.entries, scheduleID)
	delete(s.names, scheduleID)
	s.logger.Log("[schedule] removed %s", scheduleID)
	return nil
}

// Len returns the number of registered jobs.
func (s *CronScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// fire runs the job of scheduleID immediately. Tests use it to avoid
// waiting for wall-clock ticks.
func (s *CronScheduler) fire(scheduleID string) bool {
	s.mu.Lock()
	entry, ok := s.entries[scheduleID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.cron.Entry(entry).WrappedJob.Run()
	return true
}
