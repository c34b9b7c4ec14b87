package llm

import (
	"fmt"

	"github.com/jg-phare/yappr/pkg/types"
)

// EventKind discriminates StreamEvent variants.
type EventKind int

const (
	EventContentDelta EventKind = iota + 1
	EventToolCallStart
	EventToolCallEnd
	EventRunError
)

func (k EventKind) String() string {
	switch k {
	case EventContentDelta:
		return "content_delta"
	case EventToolCallStart:
		return "tool_call_start"
	case EventToolCallEnd:
		return "tool_call_end"
	case EventRunError:
		return "run_error"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// StreamEvent is the uniform event every provider produces, whatever its
// wire format.
type StreamEvent struct {
	Kind EventKind

	// Text is the delta for EventContentDelta and the message for
	// EventRunError.
	Text string

	// Call is set for tool-call events. On EventToolCallStart only ID and
	// Name are guaranteed; EventToolCallEnd carries the complete arguments.
	Call types.ToolCall
}

func ContentDelta(text string) StreamEvent {
	return StreamEvent{Kind: EventContentDelta, Text: text}
}

func ToolCallStart(id, name string) StreamEvent {
	return StreamEvent{Kind: EventToolCallStart, Call: types.ToolCall{ID: id, Name: name}}
}

func ToolCallEnd(call types.ToolCall) StreamEvent {
	return StreamEvent{Kind: EventToolCallEnd, Call: call}
}

func RunError(message string) StreamEvent {
	return StreamEvent{Kind: EventRunError, Text: message}
}

// eventQueue buffers events decoded from one wire chunk, since a single
// chunk can produce several events.
type eventQueue struct {
	pending []StreamEvent
}

func (q *eventQueue) push(ev ...StreamEvent) { q.pending = append(q.pending, ev...) }

func (q *eventQueue) pop() (StreamEvent, bool) {
	if len(q.pending) == 0 {
		return StreamEvent{}, false
	}
	ev := q.pending[0]
	q.pending = q.pending[1:]
	return ev, true
}
