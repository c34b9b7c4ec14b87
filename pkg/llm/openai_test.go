package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jg-phare/yappr/pkg/types"
)

// drain reads a stream to io.EOF.
func drain(t *testing.T, s EventStream) []StreamEvent {
	t.Helper()
	defer s.Close()
	var events []StreamEvent
	for {
		ev, err := s.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func kinds(events []StreamEvent) []EventKind {
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestOpenAIProviderStream(t *testing.T) {
	t.Run("text deltas and usage", func(t *testing.T) {
		var got chatRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, `data: {"id":"gen-1","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}

data: {"id":"gen-1","choices":[{"index":0,"delta":{"content":"lo"},"finish_reason":"stop"}]}

data: {"id":"gen-1","choices":[],"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}

data: [DONE]
`)
		}))
		defer srv.Close()

		tracker := NewCostTracker()
		p := NewOpenAIProvider("", ProviderConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "openai/gpt-4o-mini", CostTracker: tracker})
		assert.Equal(t, "openrouter", p.Name())
		assert.Equal(t, FormatFunction, p.ToolFormat())

		stream, err := p.Stream(context.Background(), &Request{
			Messages:      []types.ChatMessage{types.NewUserMessage("hi")},
			SystemPrompts: []string{"be brief"},
		})
		require.NoError(t, err)

		events := drain(t, stream)
		require.Equal(t, []EventKind{EventContentDelta, EventContentDelta}, kinds(events))
		assert.Equal(t, "Hel", events[0].Text)
		assert.Equal(t, "lo", events[1].Text)
		assert.Equal(t, Usage{InputTokens: 12, OutputTokens: 3}, stream.Usage())
		assert.Equal(t, 1, tracker.ModelUsage()["openai/gpt-4o-mini"].Calls)

		assert.True(t, got.Stream)
		assert.Equal(t, "openai/gpt-4o-mini", got.Model)
		require.Len(t, got.Messages, 2)
		assert.Equal(t, "system", got.Messages[0].Role)
		assert.Equal(t, "be brief", *got.Messages[0].Content)
		assert.Equal(t, "user", got.Messages[1].Role)
		assert.Empty(t, got.Tools)
	})

	t.Run("fragmented tool calls", func(t *testing.T) {
		var raw map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, `data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"list_dir","arguments":""}}]}}]}

data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"path\":"}}]}}]}

data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"call_b","type":"function","function":{"name":"read_file","arguments":"{}"}}]}}]}

data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"/tmp\"}"}}]}}]}

data: {"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}

data: [DONE]
`)
		}))
		defer srv.Close()

		p := NewOpenAIProvider("openai", ProviderConfig{BaseURL: srv.URL, Model: "gpt-4o"})
		stream, err := p.Stream(context.Background(), &Request{
			Messages: []types.ChatMessage{types.NewUserMessage("list /tmp")},
			Tools: []ToolSchema{{
				Format:     FormatInputSchema, // overridden to the function shape
				Name:       "list_dir",
				Parameters: NormalizeParameters(nil),
			}},
		})
		require.NoError(t, err)

		events := drain(t, stream)
		require.Equal(t, []EventKind{EventToolCallStart, EventToolCallStart, EventToolCallEnd, EventToolCallEnd}, kinds(events))
		assert.Equal(t, "list_dir", events[0].Call.Name)
		assert.Equal(t, "read_file", events[1].Call.Name)
		assert.Equal(t, "call_a", events[2].Call.ID)
		assert.Equal(t, `{"path":"/tmp"}`, events[2].Call.Arguments)
		assert.Equal(t, "call_b", events[3].Call.ID)

		tools := raw["tools"].([]any)
		require.Len(t, tools, 1)
		assert.Equal(t, "function", tools[0].(map[string]any)["type"])
	})

	t.Run("in-band error becomes RunError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `data: {"error":{"message":"No endpoints found that support tool use","code":404}}

data: [DONE]
`)
		}))
		defer srv.Close()

		p := NewOpenAIProvider("", ProviderConfig{BaseURL: srv.URL})
		stream, err := p.Stream(context.Background(), &Request{Messages: []types.ChatMessage{types.NewUserMessage("x")}})
		require.NoError(t, err)

		events := drain(t, stream)
		require.Len(t, events, 1)
		assert.Equal(t, EventRunError, events[0].Kind)
		assert.True(t, IsToolsUnsupported(errors.New(events[0].Text)))
	})

	t.Run("http rejection is a ProviderError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"message":"invalid api key"}}`)
		}))
		defer srv.Close()

		p := NewOpenAIProvider("", ProviderConfig{BaseURL: srv.URL, Retry: NoRetry()})
		_, err := p.Stream(context.Background(), &Request{})
		var pe *ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, 401, pe.StatusCode)
		assert.Equal(t, "invalid api key", pe.Message)
	})
}

func TestToChatMessages(t *testing.T) {
	call := types.ToolCall{ID: "call_1", Name: "echo", Arguments: map[string]any{"text": "hi"}}
	msgs := toChatMessages(nil, []types.ChatMessage{
		types.NewUserMessage("say hi"),
		types.NewAssistantMessage("", call),
		types.NewToolMessage(call, "hi"),
	})

	require.Len(t, msgs, 3)
	assert.Nil(t, msgs[1].Content, "tool-only assistant turn sends null content")
	require.Len(t, msgs[1].ToolCalls, 1)
	assert.Equal(t, `{"text":"hi"}`, msgs[1].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "tool", msgs[2].Role)
	assert.Equal(t, "call_1", msgs[2].ToolCallID)
}

func TestOpenAIProviderComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		fmt.Fprint(w, `{"id":"gen-2","model":"m","choices":[{"message":{"content":"  short version  "}}],"usage":{"prompt_tokens":5,"completion_tokens":2}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("", ProviderConfig{BaseURL: srv.URL, Model: "m"})
	c, err := p.Complete(context.Background(), &Request{Messages: []types.ChatMessage{types.NewUserMessage("x")}})
	require.NoError(t, err)
	assert.Equal(t, "  short version  ", c.Text)
	assert.Equal(t, 7, c.Usage.Total())
}
