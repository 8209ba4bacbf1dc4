// Package agentexec is an in-process execution service. Each started task
// runs its prompt through a model completer on its own goroutine and
// reports the outcome as an execution update.
package agentexec

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/foreman/internal/llm"
	"github.com/ShayCichocki/foreman/internal/logging"
	"github.com/ShayCichocki/foreman/internal/orchestrator"
)

// ErrUnknownExecution is returned when cancelling a handle that is not running.
var ErrUnknownExecution = errors.New("unknown execution")

const agentSystemPrompt = `You are %s, a delivery agent working one task of a larger project.
Do the work the task describes and reply with the finished output.
If the task cannot be completed, start your reply with "BLOCKED:" followed by the reason.`

// UpdateHandler receives execution updates, normally
// orchestrator.HandleExecutionUpdate.
type UpdateHandler func(ctx context.Context, u orchestrator.ExecutionUpdate) error

// MessageHandler receives streamed output, normally
// orchestrator.HandleExecutionMessage.
type MessageHandler func(m orchestrator.ExecutionMessage)

// Service implements orchestrator.ExecutionService.
type Service struct {
	completer   llm.Completer
	onUpdate    UpdateHandler
	onMessage   MessageHandler
	logger      *logging.DebugLogger
	timeout     time.Duration
	temperature float64
	newID       func() string
	tracked     func(executionID string) bool

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

var _ orchestrator.ExecutionService = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithUpdateHandler sets where execution updates are delivered.
func WithUpdateHandler(h UpdateHandler) Option {
	return func(s *Service) { s.onUpdate = h }
}

// WithMessageHandler sets where execution output is streamed.
func WithMessageHandler(h MessageHandler) Option {
	return func(s *Service) { s.onMessage = h }
}

// WithLogger sets the debug logger.
func WithLogger(l *logging.DebugLogger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTimeout bounds each execution. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithTrackedCheck makes each execution wait until fn reports its handle
// as tracked before running, so the outcome cannot outrun the caller's
// bookkeeping. Normally orchestrator.Tracking.
func WithTrackedCheck(fn func(executionID string) bool) Option {
	return func(s *Service) { s.tracked = fn }
}

// WithIDGenerator overrides how execution handles are minted.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// New creates a service running prompts through completer.
func New(completer llm.Completer, opts ...Option) *Service {
	base, cancel := context.WithCancel(context.Background())
	s := &Service{
		completer:   completer,
		temperature: 0.2,
		newID:       func() string { return "exec-" + uuid.New().String() },
		base:        base,
		cancel:      cancel,
		running:     make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartTask starts the prompt in the background and returns its handle.
// The caller's context only bounds the start itself.
func (s *Service) StartTask(ctx context.Context, req orchestrator.StartRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("start task: %w", err)
	}
	if s.base.Err() != nil {
		return "", fmt.Errorf("start task: service closed")
	}
	if strings.TrimSpace(req.Message) == "" {
		return "", fmt.Errorf("start task: empty message")
	}

	id := s.newID()
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if s.timeout > 0 {
		runCtx, cancel = context.WithTimeout(s.base, s.timeout)
	} else {
		runCtx, cancel = context.WithCancel(s.base)
	}

	s.mu.Lock()
	s.running[id] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(runCtx, id, req)

	s.logger.Log("[agentexec] started %s for %s/%s on %s", id,
		req.Metadata[orchestrator.MetaProjectID], req.Metadata[orchestrator.MetaTaskID], req.AgentID)
	return id, nil
}

func (s *Service) run(ctx context.Context, id string, req orchestrator.StartRequest) {
	defer s.wg.Done()
	defer s.forget(id)

	s.awaitTracked(ctx, id)

	agent := req.AgentID
	if agent == "" {
		agent = "an agent"
	}
	resp, err := s.completer.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: fmt.Sprintf(agentSystemPrompt, agent)},
			{Role: llm.RoleUser, Content: req.Message},
		},
		Temperature:    s.temperature,
		ResponseFormat: llm.FormatText,
	})

	u := orchestrator.ExecutionUpdate{TaskID: id}
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		u.Status = orchestrator.ExecutionCancelled
	case err != nil:
		u.Status = orchestrator.ExecutionError
		u.Error = err.Error()
	default:
		out := strings.TrimSpace(resp.Content)
		if s.onMessage != nil && out != "" {
			s.onMessage(orchestrator.ExecutionMessage{TaskID: id, Content: out})
		}
		if reason, blocked := strings.CutPrefix(out, "BLOCKED:"); blocked {
			u.Status = orchestrator.ExecutionFailed
			u.Error = strings.TrimSpace(reason)
		} else {
			u.Status = orchestrator.ExecutionCompleted
			u.Result = out
		}
	}

	s.logger.Log("[agentexec] %s finished: %s", id, u.Status)
	if s.onUpdate == nil {
		return
	}
	// Delivery uses the service context so Close unblocks a full queue.
	if err := s.onUpdate(s.base, u); err != nil {
		s.logger.Log("[agentexec] %s: deliver update: %v", id, err)
	}
}

const (
	trackPoll    = 5 * time.Millisecond
	trackTimeout = 2 * time.Second
)

func (s *Service) awaitTracked(ctx context.Context, id string) {
	if s.tracked == nil {
		return
	}
	deadline := time.NewTimer(trackTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(trackPoll)
	defer tick.Stop()
	for !s.tracked(id) {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			s.logger.Log("[agentexec] %s: never tracked, running anyway", id)
			return
		case <-tick.C:
		}
	}
}

func (s *Service) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.running[id]; ok {
		cancel()
		delete(s.running, id)
	}
}

// CancelTask stops a running execution. Its cancelled update still
// arrives on the update handler.
func (s *Service) CancelTask(_ context.Context, executionID string) error {
	s.mu.Lock()
	cancel, ok := s.running[executionID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("cancel %s: %w", executionID, ErrUnknownExecution)
	}
	cancel()
	s.logger.Log("[agentexec] cancel requested for %s", executionID)
	return nil
}

// Running returns the number of executions still in flight.
func (s *Service) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// Wait blocks until every started execution has reported.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close cancels every execution and waits for them to return.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}
