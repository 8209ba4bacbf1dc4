// Package llm defines the planning-service contract used by the engine and
// the helpers that turn untrusted model output into typed values.
package llm

import "context"

// Role identifies the speaker of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a completion request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat asks the service for a particular output shape.
type ResponseFormat string

const (
	// FormatText requests free text.
	FormatText ResponseFormat = "text"
	// FormatJSON requests a single JSON object. The engine always uses it.
	FormatJSON ResponseFormat = "json"
)

// Request is a completion request.
type Request struct {
	Messages       []Message      `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat ResponseFormat `json:"response_format"`
}

// Response carries the raw model output.
type Response struct {
	Content string `json:"content"`
}

// Completer is the planning service.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, req Request) (*Response, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// JSONRequest builds the request shape the engine sends for structured output.
func JSONRequest(system, user string, temperature float64) Request {
	return Request{
		Messages: []Message{
			{Role: RoleSystem, Content: system},
			{Role: RoleUser, Content: user},
		},
		Temperature:    temperature,
		ResponseFormat: FormatJSON,
	}
}
