package llm

// Wire types for OpenAI-compatible /chat/completions endpoints.

// chatRequest maps to the /chat/completions request body.
type chatRequest struct {
	Model         string         `json:"model"`
	Messages      []chatMessage  `json:"messages"`
	Tools         []ToolSchema   `json:"tools,omitempty"`
	Stream        bool           `json:"stream"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

// streamOptions requests usage info in the final streaming chunk.
type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// chatMessage is one entry of the messages array. Content is a pointer
// because an assistant turn carrying only tool_calls sends null.
type chatMessage struct {
	Role       string         `json:"role"` // "system"|"user"|"assistant"|"tool"
	Content    *string        `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

// wireToolCall is an assistant's request to invoke a tool. In a stream it
// arrives in fragments keyed by Index.
type wireToolCall struct {
	Index    int          `json:"index,omitempty"`
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"` // "function"
	Function functionCall `json:"function"`
}

// functionCall holds the function name and JSON-encoded arguments.
type functionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

// streamChunk is a single SSE data payload.
type streamChunk struct {
	ID      string      `json:"id"`
	Model   string      `json:"model"`
	Choices []choice    `json:"choices"`
	Usage   *wireUsage  `json:"usage,omitempty"`
	Error   *chunkError `json:"error,omitempty"`
}

type choice struct {
	Index        int     `json:"index"`
	Delta        delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

type delta struct {
	Role      string         `json:"role,omitempty"`
	Content   *string        `json:"content,omitempty"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

// chunkError is the in-band error some gateways send mid-stream.
type chunkError struct {
	Message string `json:"message"`
	Code    any    `json:"code,omitempty"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u *wireUsage) toUsage() Usage {
	if u == nil {
		return Usage{}
	}
	return Usage{InputTokens: u.PromptTokens, OutputTokens: u.CompletionTokens}
}

// completionResponse is the non-streaming response body.
type completionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *wireUsage `json:"usage,omitempty"`
}
