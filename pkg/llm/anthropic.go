package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/jg-phare/yappr/pkg/logging"
	"github.com/jg-phare/yappr/pkg/types"
)

// DefaultAnthropicModel is used when neither the config nor the request
// names a model.
const DefaultAnthropicModel = "claude-sonnet-4-5"

// messageService is the subset of anthropic.MessageService the provider
// uses, so tests can substitute it.
type messageService interface {
	NewStreaming(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[anthropic.MessageStreamEventUnion]
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicProvider talks to the Anthropic Messages API through the
// official SDK. System prompts become system blocks and tool results are
// sent as tool_result blocks inside user turns.
type AnthropicProvider struct {
	messages messageService
	config   ProviderConfig
	log      *slog.Logger
}

func NewAnthropicProvider(cfg ProviderConfig) *AnthropicProvider {
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicModel
	}
	cfg = cfg.withDefaults("")

	opts := []option.RequestOption{option.WithMaxRetries(cfg.Retry.MaxRetries)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	client := anthropic.NewClient(opts...)
	return &AnthropicProvider{
		messages: &client.Messages,
		config:   cfg,
		log:      logging.Component(cfg.Logger, "llm").With(slog.String("provider", "anthropic")),
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) ToolFormat() ToolFormat { return FormatInputSchema }

func (p *AnthropicProvider) Stream(ctx context.Context, req *Request) (EventStream, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}
	p.log.Debug("messages request", slog.String("model", string(params.Model)), slog.Int("messages", len(params.Messages)), slog.Int("tools", len(params.Tools)))

	return &anthropicStream{
		stream:  p.messages.NewStreaming(ctx, params),
		model:   string(params.Model),
		tracker: p.config.CostTracker,
	}, nil
}

func (p *AnthropicProvider) Complete(ctx context.Context, req *Request) (*Completion, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}
	msg, err := p.messages.New(ctx, params)
	if err != nil {
		return nil, wrapAnthropicError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	usage := Usage{InputTokens: int(msg.Usage.InputTokens), OutputTokens: int(msg.Usage.OutputTokens)}
	p.config.CostTracker.record(string(params.Model), usage)
	return &Completion{Model: string(msg.Model), Text: sb.String(), Usage: usage}, nil
}

func (p *AnthropicProvider) buildParams(req *Request) (anthropic.MessageNewParams, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.model(req)),
		MaxTokens: int64(p.config.maxTokens(req)),
		Messages:  toAnthropicMessages(req.Messages),
	}
	for _, s := range req.SystemPrompts {
		params.System = append(params.System, anthropic.TextBlockParam{Text: s})
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: param.NewOpt(t.Description),
				InputSchema: toInputSchema(t.Parameters),
			},
		})
	}
	return params, nil
}

// toInputSchema splits a normalized parameter object into the SDK's
// properties/required fields, carrying any other keywords as extras.
func toInputSchema(params map[string]any) anthropic.ToolInputSchemaParam {
	schema := anthropic.ToolInputSchemaParam{}
	extra := map[string]any{}
	for k, v := range params {
		switch k {
		case "type":
		case "properties":
			schema.Properties = v
		case "required":
			if req, ok := v.([]any); ok {
				for _, r := range req {
					if s, ok := r.(string); ok {
						schema.Required = append(schema.Required, s)
					}
				}
			} else if req, ok := v.([]string); ok {
				schema.Required = req
			}
		default:
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		schema.ExtraFields = extra
	}
	return schema
}

// toAnthropicMessages maps the conversation onto Messages API turns.
// Consecutive tool-role messages are merged into one user turn of
// tool_result blocks, as the API requires.
func toAnthropicMessages(msgs []types.ChatMessage) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pendingResults) > 0 {
			out = append(out, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, m := range msgs {
		switch m.Role {
		case types.RoleTool:
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, m.IsError))
		case types.RoleAssistant:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				args, err := types.NormalizeArguments(tc.Arguments)
				if err != nil {
					args = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, args, tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		default:
			flush()
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	flush()
	return out
}

func wrapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		kind, retryable := classifyStatus(apiErr.StatusCode)
		return &ProviderError{
			Provider:   "anthropic",
			StatusCode: apiErr.StatusCode,
			Kind:       kind,
			Message:    apiErr.Error(),
			Retryable:  retryable,
		}
	}
	return err
}

// anthropicStream translates Messages API stream events into StreamEvents,
// accumulating the message so complete tool inputs are available at each
// content_block_stop.
type anthropicStream struct {
	stream  *ssestream.Stream[anthropic.MessageStreamEventUnion]
	msg     anthropic.Message
	queue   eventQueue
	model   string
	tracker *CostTracker
	done    bool
}

func (s *anthropicStream) Next() (StreamEvent, error) {
	for {
		if ev, ok := s.queue.pop(); ok {
			return ev, nil
		}
		if s.done {
			return StreamEvent{}, io.EOF
		}

		if !s.stream.Next() {
			s.done = true
			if err := s.stream.Err(); err != nil {
				return StreamEvent{}, wrapAnthropicError(err)
			}
			s.tracker.record(s.model, s.Usage())
			continue
		}

		event := s.stream.Current()
		if err := s.msg.Accumulate(event); err != nil {
			return StreamEvent{}, err
		}
		s.translate(event)
	}
}

func (s *anthropicStream) translate(event anthropic.MessageStreamEventUnion) {
	switch event.Type {
	case "content_block_start":
		if event.ContentBlock.Type == "tool_use" {
			s.queue.push(ToolCallStart(event.ContentBlock.ID, event.ContentBlock.Name))
		}
	case "content_block_delta":
		if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
			s.queue.push(ContentDelta(event.Delta.Text))
		}
	case "content_block_stop":
		if len(s.msg.Content) == 0 {
			return
		}
		block := s.msg.Content[len(s.msg.Content)-1]
		if block.Type != "tool_use" {
			return
		}
		input := json.RawMessage(block.Input)
		if len(input) == 0 {
			input = json.RawMessage("{}")
		}
		s.queue.push(ToolCallEnd(types.ToolCall{ID: block.ID, Name: block.Name, Arguments: input}))
	}
}

func (s *anthropicStream) Usage() Usage {
	return Usage{InputTokens: int(s.msg.Usage.InputTokens), OutputTokens: int(s.msg.Usage.OutputTokens)}
}

func (s *anthropicStream) Close() error {
	return s.stream.Close()
}
