package llm

import (
	"context"

	"github.com/jg-phare/yappr/pkg/types"
)

// Provider is a chat backend. Callers never branch on which implementation
// they hold except when constructing it.
type Provider interface {
	// Name identifies the backend in logs and errors.
	Name() string

	// ToolFormat is the tool schema shape this backend accepts.
	ToolFormat() ToolFormat

	// Stream opens one model turn. The returned stream yields events until
	// io.EOF. An error here means the turn never started.
	Stream(ctx context.Context, req *Request) (EventStream, error)

	// Complete performs one non-streaming call and returns the full text.
	Complete(ctx context.Context, req *Request) (*Completion, error)
}

// Request is one provider call.
type Request struct {
	Model         string
	Messages      []types.ChatMessage
	SystemPrompts []string
	Tools         []ToolSchema // empty disables tool calling
	MaxTokens     int
}

// Completion is the result of a non-streaming call.
type Completion struct {
	Model string
	Text  string
	Usage Usage
}

// EventStream is a single model turn in progress.
type EventStream interface {
	// Next returns the next event, or io.EOF once the turn has ended.
	Next() (StreamEvent, error)

	// Usage reports token counts. Only complete after Next returned io.EOF.
	Usage() Usage

	// Close releases the underlying connection. Safe to call more than once.
	Close() error
}
