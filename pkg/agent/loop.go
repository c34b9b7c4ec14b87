package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jg-phare/yappr/pkg/llm"
	"github.com/jg-phare/yappr/pkg/logging"
	"github.com/jg-phare/yappr/pkg/types"
)

// Orchestrator runs the streaming multi-turn tool loop against one provider.
// An Orchestrator holds no per-run state and may serve concurrent runs.
type Orchestrator struct {
	provider llm.Provider
	tools    ToolSource
	logger   *slog.Logger
	maxTurns int
}

// New creates an Orchestrator for provider.
func New(provider llm.Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider: provider,
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run is the state of one Run call.
type run struct {
	o     *Orchestrator
	req   RunRequest
	log   *slog.Logger
	phase Phase
}

// Run answers req.Prompt, dispatching tool calls until the model produces a
// turn without any. Cancelling ctx stops the run at the next event, stream
// open or tool dispatch and yields ErrCancelled.
//
// If tools are enabled and the provider rejects tool calling for the model,
// the run is retried once from the original messages with tools disabled.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*Result, error) {
	r := &run{
		o:   o,
		req: req,
		log: o.logger.With("run", uuid.NewString(), "provider", o.provider.Name()),
	}

	base := append(types.WithoutSystem(req.PriorMessages), types.NewUserMessage(req.Prompt))

	res, err := r.attempt(ctx, base, req.ToolsEnabled)
	if err != nil && req.ToolsEnabled && !errors.Is(err, ErrCancelled) && llm.IsToolsUnsupported(err) {
		r.log.Warn("model does not support tools, retrying without", "model", req.Model, "error", err)
		usage := res.Usage
		res, err = r.attempt(ctx, base, false)
		res.ToolsDisabledByFallback = true
		res.Usage = res.Usage.Add(usage)
	}
	return res, err
}

func (r *run) setPhase(p Phase) {
	if r.phase == p {
		return
	}
	r.phase = p
	if r.req.OnPhase != nil {
		r.req.OnPhase(p)
	}
}

func (r *run) cancelled(ctx context.Context, res *Result) (*Result, error) {
	r.setPhase(PhaseCancelled)
	res.Phase = PhaseCancelled
	r.log.Info("run cancelled", "turns", res.Turns)
	return res, fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
}

func (r *run) failed(res *Result, err error) (*Result, error) {
	r.setPhase(PhaseFailed)
	res.Phase = PhaseFailed
	r.log.Warn("run failed", "turns", res.Turns, "error", err)
	return res, err
}

// attempt runs the tool loop once over a copy of base.
func (r *run) attempt(ctx context.Context, base []types.ChatMessage, toolsEnabled bool) (*Result, error) {
	res := &Result{Messages: append([]types.ChatMessage(nil), base...)}
	r.setPhase(PhaseIdle)

	var (
		sess    ToolSession
		schemas []llm.ToolSchema
	)
	if toolsEnabled && r.o.tools != nil {
		if ctx.Err() != nil {
			return r.cancelled(ctx, res)
		}
		s, err := r.o.tools.Open(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return r.cancelled(ctx, res)
		case err != nil:
			r.log.Warn("tool session unavailable, continuing without tools", "error", err)
		case s != nil:
			sess = s
			defer func() {
				if err := sess.Close(); err != nil {
					r.log.Warn("closing tool session", "error", err)
				}
			}()
			schemas = sess.ExportForProvider(r.o.provider.ToolFormat())
		}
	}

	for {
		if ctx.Err() != nil {
			return r.cancelled(ctx, res)
		}
		if r.o.maxTurns > 0 && res.Turns >= r.o.maxTurns {
			return r.failed(res, fmt.Errorf("%w (%d)", ErrMaxTurns, r.o.maxTurns))
		}

		r.setPhase(PhaseSending)
		stream, err := r.o.provider.Stream(ctx, &llm.Request{
			Model:         r.req.Model,
			Messages:      res.Messages,
			SystemPrompts: r.req.SystemPrompts,
			Tools:         schemas,
		})
		if err != nil {
			if ctx.Err() != nil {
				return r.cancelled(ctx, res)
			}
			return r.failed(res, err)
		}

		text, calls, err := r.consume(ctx, stream)
		usage := stream.Usage()
		stream.Close()

		res.Turns++
		res.Usage = res.Usage.Add(usage)

		if errors.Is(err, ErrCancelled) {
			return r.cancelled(ctx, res)
		}
		if err != nil {
			return r.failed(res, err)
		}

		if len(calls) == 0 {
			if text != "" {
				res.Messages = append(res.Messages, types.NewAssistantMessage(text))
			}
			res.Text = text
			res.HasContent = text != ""
			res.Phase = PhaseCompleted
			r.setPhase(PhaseCompleted)
			r.log.Info("run completed", "turns", res.Turns, "tool_calls", res.ToolCalls,
				"input_tokens", res.Usage.InputTokens, "output_tokens", res.Usage.OutputTokens)
			return res, nil
		}

		res.Messages = append(res.Messages, types.NewAssistantMessage(text, calls...))
		r.setPhase(PhaseRunningTool)
		for _, call := range calls {
			if ctx.Err() != nil {
				return r.cancelled(ctx, res)
			}
			out := r.dispatch(ctx, sess, call)
			res.Messages = append(res.Messages, types.NewToolResultMessage(call, out))
			res.ToolCalls++
			if r.req.OnToolCall != nil {
				r.req.OnToolCall(call.Name, ToolPhaseResult)
			}
		}
	}
}

// consume drains one turn. It returns the turn's content and the tool calls
// completed during it, in the order they ended.
func (r *run) consume(ctx context.Context, stream llm.EventStream) (string, []types.ToolCall, error) {
	var (
		text  string
		calls []types.ToolCall
	)
	for {
		ev, err := stream.Next()
		if ctx.Err() != nil {
			return text, calls, ErrCancelled
		}
		if errors.Is(err, io.EOF) {
			return text, calls, nil
		}
		if err != nil {
			return text, calls, err
		}

		switch ev.Kind {
		case llm.EventContentDelta:
			r.setPhase(PhaseStreamingContent)
			text += ev.Text
			if r.req.OnDelta != nil {
				r.req.OnDelta(text)
			}
		case llm.EventToolCallStart:
			if r.req.OnToolCall != nil {
				r.req.OnToolCall(ev.Call.Name, ToolPhaseStart)
			}
		case llm.EventToolCallEnd:
			call := ev.Call
			if call.ID == "" {
				call.ID = "call_" + uuid.NewString()
			}
			calls = append(calls, call)
			if r.req.OnToolCall != nil {
				r.req.OnToolCall(call.Name, ToolPhaseEnd)
			}
		case llm.EventRunError:
			return text, calls, &llm.ProviderError{Provider: r.o.provider.Name(), Message: ev.Text}
		}
	}
}
