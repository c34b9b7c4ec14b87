package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jg-phare/yappr/pkg/logging"
	"github.com/jg-phare/yappr/pkg/types"
)

// DefaultOllamaBaseURL is the local Ollama server.
const DefaultOllamaBaseURL = "http://localhost:11434"

// OllamaProvider talks to a local Ollama server's /api/chat endpoint, which
// streams newline-delimited JSON objects. Tool calls arrive whole, never in
// fragments, and carry no id, so one is minted per call.
type OllamaProvider struct {
	config ProviderConfig
	log    *slog.Logger
}

func NewOllamaProvider(cfg ProviderConfig) *OllamaProvider {
	cfg = cfg.withDefaults(DefaultOllamaBaseURL)
	return &OllamaProvider{
		config: cfg,
		log:    logging.Component(cfg.Logger, "llm").With(slog.String("provider", "ollama")),
	}
}

func (p *OllamaProvider) Name() string { return "ollama" }

func (p *OllamaProvider) ToolFormat() ToolFormat { return FormatFunction }

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Tools    []ToolSchema    `json:"tools,omitempty"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	ID       string `json:"id,omitempty"`
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type ollamaChunk struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason,omitempty"`
	PromptEvalCount int           `json:"prompt_eval_count,omitempty"`
	EvalCount       int           `json:"eval_count,omitempty"`
	Error           string        `json:"error,omitempty"`
}

func (c *ollamaChunk) usage() Usage {
	return Usage{InputTokens: c.PromptEvalCount, OutputTokens: c.EvalCount}
}

// Stream sends a streaming /api/chat request.
func (p *OllamaProvider) Stream(ctx context.Context, req *Request) (EventStream, error) {
	body := p.buildRequest(req, true)
	resp, err := p.post(ctx, "/api/chat", body)
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &ollamaStream{
		ctx:     ctx,
		body:    resp.Body,
		scanner: scanner,
		model:   body.Model,
		tracker: p.config.CostTracker,
	}, nil
}

// Complete sends a non-streaming /api/chat request.
func (p *OllamaProvider) Complete(ctx context.Context, req *Request) (*Completion, error) {
	body := p.buildRequest(req, false)
	resp, err := p.post(ctx, "/api/chat", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var chunk ollamaChunk
	if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %w", err)
	}
	if chunk.Error != "" {
		return nil, &ProviderError{Provider: "ollama", Message: chunk.Error}
	}
	p.config.CostTracker.record(body.Model, chunk.usage())
	return &Completion{Model: chunk.Model, Text: chunk.Message.Content, Usage: chunk.usage()}, nil
}

// ListModels returns the names of the models installed on the server.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]string, error) {
	url := strings.TrimSuffix(p.config.BaseURL, "/") + "/api/tags"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.config.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama: list models: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, classifyError("ollama", resp)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("ollama: decode tags: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (p *OllamaProvider) post(ctx context.Context, path string, body *ollamaRequest) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}
	url := strings.TrimSuffix(p.config.BaseURL, "/") + path
	p.log.Debug("chat request", slog.String("model", body.Model), slog.Int("messages", len(body.Messages)), slog.Int("tools", len(body.Tools)))

	resp, err := doWithRetry(ctx, p.config.Retry, p.log, func(ctx context.Context) (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
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
		return nil, classifyError("ollama", resp)
	}
	return resp, nil
}

func (p *OllamaProvider) buildRequest(req *Request, stream bool) *ollamaRequest {
	body := &ollamaRequest{
		Model:  p.config.model(req),
		Stream: stream,
	}
	if n := p.config.maxTokens(req); n > 0 {
		body.Options = map[string]any{"num_predict": n}
	}
	for _, s := range req.SystemPrompts {
		body.Messages = append(body.Messages, ollamaMessage{Role: "system", Content: s})
	}
	for _, m := range req.Messages {
		om := ollamaMessage{Role: string(m.Role), Content: m.Content}
		if m.Role == types.RoleTool {
			om.ToolName = m.ToolName
		}
		for _, tc := range m.ToolCalls {
			var wc ollamaToolCall
			wc.Function.Name = tc.Name
			args, err := types.NormalizeArguments(tc.Arguments)
			if err != nil {
				args = map[string]any{}
			}
			wc.Function.Arguments = args
			om.ToolCalls = append(om.ToolCalls, wc)
		}
		body.Messages = append(body.Messages, om)
	}
	for _, t := range req.Tools {
		t.Format = FormatFunction
		body.Tools = append(body.Tools, t)
	}
	return body
}

// ollamaStream translates NDJSON chunks into StreamEvents.
type ollamaStream struct {
	ctx     context.Context
	body    io.ReadCloser
	scanner *bufio.Scanner
	queue   eventQueue
	usage   Usage
	model   string
	tracker *CostTracker
	done    bool
	closed  bool
}

func (s *ollamaStream) Next() (StreamEvent, error) {
	for {
		if ev, ok := s.queue.pop(); ok {
			return ev, nil
		}
		if s.done {
			return StreamEvent{}, io.EOF
		}

		if !s.scanner.Scan() {
			s.done = true
			if err := s.ctx.Err(); err != nil {
				return StreamEvent{}, err
			}
			if err := s.scanner.Err(); err != nil {
				return StreamEvent{}, fmt.Errorf("ollama: read stream: %w", err)
			}
			continue
		}

		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			// Malformed line: skip, not fatal
			continue
		}
		s.consume(&chunk)
	}
}

func (s *ollamaStream) consume(chunk *ollamaChunk) {
	if chunk.Error != "" {
		s.queue.push(RunError(chunk.Error))
		s.done = true
		return
	}
	if chunk.Message.Content != "" {
		s.queue.push(ContentDelta(chunk.Message.Content))
	}
	for _, tc := range chunk.Message.ToolCalls {
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		args := tc.Function.Arguments
		if args == nil {
			args = map[string]any{}
		}
		s.queue.push(
			ToolCallStart(id, tc.Function.Name),
			ToolCallEnd(types.ToolCall{ID: id, Name: tc.Function.Name, Arguments: args}),
		)
	}
	if chunk.Done {
		s.usage = chunk.usage()
		s.tracker.record(s.model, s.usage)
		s.done = true
	}
}

func (s *ollamaStream) Usage() Usage { return s.usage }

func (s *ollamaStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
