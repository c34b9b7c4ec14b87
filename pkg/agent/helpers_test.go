package agent

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/jg-phare/yappr/pkg/llm"
	"github.com/jg-phare/yappr/pkg/types"
)

// scriptedTurn is one provider turn: either Stream fails with openErr, or
// the events are yielded in order followed by io.EOF.
type scriptedTurn struct {
	openErr error
	events  []llm.StreamEvent
	usage   llm.Usage
	// afterEvent runs after the i-th event has been returned.
	afterEvent func(i int)
}

type mockProvider struct {
	mu       sync.Mutex
	format   llm.ToolFormat
	turns    []scriptedTurn
	requests []llm.Request
	// onStream runs at every Stream call, before the script is consulted.
	onStream func(call int)

	completion  string
	completeErr error
	completeReq *llm.Request
}

func (p *mockProvider) Name() string { return "mock" }

func (p *mockProvider) ToolFormat() llm.ToolFormat {
	if p.format == "" {
		return llm.FormatFunction
	}
	return p.format
}

func (p *mockProvider) Stream(_ context.Context, req *llm.Request) (llm.EventStream, error) {
	p.mu.Lock()
	idx := len(p.requests)
	cp := *req
	cp.Messages = append([]types.ChatMessage(nil), req.Messages...)
	p.requests = append(p.requests, cp)
	p.mu.Unlock()

	if p.onStream != nil {
		p.onStream(idx)
	}
	if idx >= len(p.turns) {
		return nil, errors.New("mock: no scripted turn left")
	}
	turn := p.turns[idx]
	if turn.openErr != nil {
		return nil, turn.openErr
	}
	return &mockStream{turn: turn}, nil
}

func (p *mockProvider) Complete(_ context.Context, req *llm.Request) (*llm.Completion, error) {
	p.completeReq = req
	if p.completeErr != nil {
		return nil, p.completeErr
	}
	return &llm.Completion{Model: req.Model, Text: p.completion}, nil
}

func (p *mockProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

type mockStream struct {
	turn   scriptedTurn
	next   int
	closed bool
}

func (s *mockStream) Next() (llm.StreamEvent, error) {
	if s.next >= len(s.turn.events) {
		return llm.StreamEvent{}, io.EOF
	}
	ev := s.turn.events[s.next]
	if s.turn.afterEvent != nil {
		s.turn.afterEvent(s.next)
	}
	s.next++
	return ev, nil
}

func (s *mockStream) Usage() llm.Usage { return s.turn.usage }

func (s *mockStream) Close() error {
	s.closed = true
	return nil
}

type invocation struct {
	name string
	args any
}

type fakeToolSession struct {
	mu      sync.Mutex
	schemas []llm.ToolSchema
	results map[string]types.ToolResult
	errs    map[string]error
	invoked []invocation
	closes  int
}

func (s *fakeToolSession) Invoke(_ context.Context, name string, args any) (types.ToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoked = append(s.invoked, invocation{name, args})
	if err := s.errs[name]; err != nil {
		return types.ToolResult{}, err
	}
	return s.results[name], nil
}

func (s *fakeToolSession) ExportForProvider(format llm.ToolFormat) []llm.ToolSchema {
	out := make([]llm.ToolSchema, len(s.schemas))
	for i, sc := range s.schemas {
		sc.Format = format
		out[i] = sc
	}
	return out
}

func (s *fakeToolSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeToolSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// countingSource hands out sess and counts opens.
type countingSource struct {
	sess  *fakeToolSession
	err   error
	opens int
}

func (c *countingSource) Open(context.Context) (ToolSession, error) {
	c.opens++
	if c.err != nil {
		return nil, c.err
	}
	return c.sess, nil
}

func weatherSession() *fakeToolSession {
	return &fakeToolSession{
		schemas: []llm.ToolSchema{{Name: "get_weather", Parameters: llm.NormalizeParameters(nil)}},
		results: map[string]types.ToolResult{
			"get_weather": {Content: `[{"type":"text","text":"sunny"}]`},
			"get_time":    {Content: `[{"type":"text","text":"noon"}]`},
		},
	}
}
