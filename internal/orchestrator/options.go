package orchestrator

import (
	"time"

	"github.com/ShayCichocki/foreman/internal/events"
	"github.com/ShayCichocki/foreman/internal/logging"
)

const (
	// DefaultMaxConcurrent is used when a project sets no limit.
	DefaultMaxConcurrent = 3
	// DefaultQueueSize bounds the status change queue.
	DefaultQueueSize = 64
	// DefaultAgentLoadLimit is how many tracked executions a default agent
	// may hold before selection moves on.
	DefaultAgentLoadLimit = 2
)

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*Orchestrator)

// WithMaxConcurrent sets the fallback per-project concurrency limit.
func WithMaxConcurrent(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithQueueSize sets the capacity of the status change queue.
func WithQueueSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithAgentLoadLimit sets how many executions a default agent may hold.
func WithAgentLoadLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.agentLoadLimit = n
		}
	}
}

// WithLogger sets the debug logger.
func WithLogger(l *logging.DebugLogger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithEmitter sets the UI event emitter.
func WithEmitter(e *events.Emitter) Option {
	return func(o *Orchestrator) { o.emitter = e }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}
