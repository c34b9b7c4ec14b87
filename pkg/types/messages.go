package types

// Role identifies the author of a ChatMessage.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// ChatMessage is one entry of a conversation history.
//
// System instructions are not carried as messages; they travel separately as
// a list of system prompts because providers accept system context in
// different places. A RoleSystem entry in prior history is dropped before a
// run is sent.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCalls is set on assistant turns that requested tools.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID and ToolName are set on tool-role messages. IsError marks a
	// tool message that reports a failed call.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
	IsError    bool   `json:"is_error,omitempty"`
}

// ToolCall is a model's request to invoke a named tool.
// Arguments is either a raw JSON string or already-structured data,
// depending on which provider produced the call.
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments any    `json:"arguments,omitempty"`
}

// ToolResult is the normalized outcome of one tool invocation.
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// NewUserMessage returns a user-role message.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// NewAssistantMessage returns an assistant-role message, optionally carrying
// the tool calls requested in that turn.
func NewAssistantMessage(content string, calls ...ToolCall) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// NewToolMessage returns a tool-role message answering call.
func NewToolMessage(call ToolCall, content string) ChatMessage {
	return ChatMessage{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: call.ID,
		ToolName:   call.Name,
	}
}

// NewToolResultMessage returns a tool-role message carrying res, error flag
// included.
func NewToolResultMessage(call ToolCall, res ToolResult) ChatMessage {
	msg := NewToolMessage(call, res.Content)
	msg.IsError = res.IsError
	return msg
}

// WithoutSystem returns msgs with every system-role entry removed.
// The input slice is not modified.
func WithoutSystem(msgs []ChatMessage) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}
