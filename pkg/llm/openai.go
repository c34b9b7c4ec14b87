package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jg-phare/yappr/pkg/logging"
	"github.com/jg-phare/yappr/pkg/types"
)

// DefaultOpenRouterBaseURL is the hosted chat-completions endpoint used when
// no base URL is configured.
const DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenAIProvider talks to any OpenAI-compatible /chat/completions endpoint
// (OpenRouter, LiteLLM, vLLM, OpenAI). Streaming uses server-sent
// "data: {json}" lines terminated by "data: [DONE]".
type OpenAIProvider struct {
	name   string
	config ProviderConfig
	log    *slog.Logger
}

// NewOpenAIProvider creates a hosted chat-completions backend. name labels
// it in logs and errors; empty means "openrouter".
func NewOpenAIProvider(name string, cfg ProviderConfig) *OpenAIProvider {
	if name == "" {
		name = "openrouter"
	}
	cfg = cfg.withDefaults(DefaultOpenRouterBaseURL)
	return &OpenAIProvider{
		name:   name,
		config: cfg,
		log:    logging.Component(cfg.Logger, "llm").With(slog.String("provider", name)),
	}
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) ToolFormat() ToolFormat { return FormatFunction }

// Stream sends a streaming completion request.
func (p *OpenAIProvider) Stream(ctx context.Context, req *Request) (EventStream, error) {
	body := p.buildRequest(req, true)
	resp, err := p.post(ctx, body, "text/event-stream")
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	return &openaiStream{
		reader:  newSSEReader(streamCtx, resp.Body),
		body:    resp.Body,
		cancel:  cancel,
		acc:     newToolCallAccumulator(),
		model:   body.Model,
		tracker: p.config.CostTracker,
	}, nil
}

// Complete sends a non-streaming completion request.
func (p *OpenAIProvider) Complete(ctx context.Context, req *Request) (*Completion, error) {
	body := p.buildRequest(req, false)
	resp, err := p.post(ctx, body, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", p.name, err)
	}

	c := &Completion{Model: out.Model, Usage: out.Usage.toUsage()}
	if len(out.Choices) > 0 && out.Choices[0].Message.Content != nil {
		c.Text = *out.Choices[0].Message.Content
	}
	p.config.CostTracker.record(body.Model, c.Usage)
	return c, nil
}

func (p *OpenAIProvider) post(ctx context.Context, body *chatRequest, accept string) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", p.name, err)
	}

	url := strings.TrimSuffix(p.config.BaseURL, "/") + "/chat/completions"
	p.log.Debug("chat request", slog.String("model", body.Model), slog.Int("messages", len(body.Messages)), slog.Int("tools", len(body.Tools)))

	resp, err := doWithRetry(ctx, p.config.Retry, p.log, func(ctx context.Context) (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", accept)
		if p.config.APIKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
		}
		for k, v := range p.config.Headers {
			httpReq.Header.Set(k, v)
		}
		return p.config.HTTPClient.Do(httpReq)
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, classifyError(p.name, resp)
	}
	return resp, nil
}

func (p *OpenAIProvider) buildRequest(req *Request, stream bool) *chatRequest {
	body := &chatRequest{
		Model:     p.config.model(req),
		Messages:  toChatMessages(req.SystemPrompts, req.Messages),
		Stream:    stream,
		MaxTokens: p.config.maxTokens(req),
	}
	for _, t := range req.Tools {
		t.Format = FormatFunction
		body.Tools = append(body.Tools, t)
	}
	if stream {
		body.StreamOptions = &streamOptions{IncludeUsage: true}
	}
	return body
}

// toChatMessages prepends system prompts as system-role messages and maps
// the conversation onto the chat-completions shape.
func toChatMessages(system []string, msgs []types.ChatMessage) []chatMessage {
	out := make([]chatMessage, 0, len(system)+len(msgs))
	for _, s := range system {
		out = append(out, chatMessage{Role: "system", Content: strPtr(s)})
	}
	for _, m := range msgs {
		cm := chatMessage{Role: string(m.Role), Content: strPtr(m.Content)}
		switch m.Role {
		case types.RoleAssistant:
			if len(m.ToolCalls) > 0 && m.Content == "" {
				cm.Content = nil
			}
			for _, tc := range m.ToolCalls {
				cm.ToolCalls = append(cm.ToolCalls, wireToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: functionCall{
						Name:      tc.Name,
						Arguments: types.ArgumentsJSON(tc.Arguments),
					},
				})
			}
		case types.RoleTool:
			cm.ToolCallID = m.ToolCallID
			cm.Name = m.ToolName
		}
		out = append(out, cm)
	}
	return out
}

func strPtr(s string) *string { return &s }

// openaiStream translates chat-completions chunks into StreamEvents.
type openaiStream struct {
	reader  *sseReader
	body    io.ReadCloser
	cancel  context.CancelFunc
	acc     *toolCallAccumulator
	queue   eventQueue
	usage   Usage
	model   string
	tracker *CostTracker
	done    bool
}

func (s *openaiStream) Next() (StreamEvent, error) {
	for {
		if ev, ok := s.queue.pop(); ok {
			return ev, nil
		}
		if s.done {
			return StreamEvent{}, io.EOF
		}

		chunk, err := s.reader.next()
		switch {
		case err == io.EOF:
			s.finish()
		case err != nil:
			return StreamEvent{}, err
		default:
			s.consume(chunk)
		}
	}
}

func (s *openaiStream) consume(chunk *streamChunk) {
	if chunk.Error != nil {
		s.queue.push(RunError(chunk.Error.Message))
		s.done = true
		return
	}
	if chunk.Usage != nil {
		s.usage = chunk.Usage.toUsage()
	}
	for _, c := range chunk.Choices {
		if c.Delta.Content != nil && *c.Delta.Content != "" {
			s.queue.push(ContentDelta(*c.Delta.Content))
		}
		for _, frag := range c.Delta.ToolCalls {
			if s.acc.add(frag) {
				call := s.acc.get(frag.Index)
				s.queue.push(ToolCallStart(call.ID, call.Function.Name))
			}
		}
	}
}

// finish flushes the completed tool calls once the turn has ended.
func (s *openaiStream) finish() {
	s.done = true
	for _, call := range s.acc.complete() {
		s.queue.push(ToolCallEnd(call))
	}
	s.tracker.record(s.model, s.usage)
}

func (s *openaiStream) Usage() Usage { return s.usage }

func (s *openaiStream) Close() error {
	s.cancel()
	return s.body.Close()
}
