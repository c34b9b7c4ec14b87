package agent

import (
	"log/slog"

	"github.com/jg-phare/yappr/pkg/llm"
	"github.com/jg-phare/yappr/pkg/logging"
	"github.com/jg-phare/yappr/pkg/types"
)

// RunRequest is one user prompt to answer.
type RunRequest struct {
	Prompt        string
	PriorMessages []types.ChatMessage // system-role entries are dropped
	SystemPrompts []string
	Model         string // empty uses the provider's configured model
	ToolsEnabled  bool

	// OnDelta receives the running content total of the current turn.
	OnDelta func(text string)
	// OnToolCall reports tool call progress by tool name.
	OnToolCall func(name string, phase ToolPhase)
	// OnPhase reports every phase transition.
	OnPhase func(Phase)
}

// Result is the outcome of a run. It is returned for failed and cancelled
// runs too, alongside the error.
type Result struct {
	// Text is the content of the final turn only.
	Text string
	// HasContent is false when the final turn produced no content at all.
	HasContent bool
	// Messages is the full conversation: prior messages, the prompt and
	// every assistant and tool message the run appended.
	Messages  []types.ChatMessage
	Turns     int
	ToolCalls int
	// ToolsDisabledByFallback is set when the model rejected tool calling
	// and the run was retried without tools.
	ToolsDisabledByFallback bool
	Usage                   llm.Usage
	Phase                   Phase
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logging.Component(l, "agent") }
}

// WithToolSource sets where tool sessions come from. Without one, runs
// behave as if tools were disabled.
func WithToolSource(src ToolSource) Option {
	return func(o *Orchestrator) { o.tools = src }
}

// WithMaxTurns caps model turns per attempt. 0 means unlimited.
func WithMaxTurns(n int) Option {
	return func(o *Orchestrator) { o.maxTurns = n }
}
