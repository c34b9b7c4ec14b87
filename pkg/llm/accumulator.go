package llm

import "github.com/jg-phare/yappr/pkg/types"

// toolCallAccumulator collects incremental tool call fragments, keyed by
// stream index, into complete calls.
type toolCallAccumulator struct {
	calls    map[int]*wireToolCall
	announce map[int]bool
	maxIndex int
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{
		calls:    make(map[int]*wireToolCall),
		announce: make(map[int]bool),
	}
}

// add merges a fragment. It reports true the first time the call at this
// index has a name, which is when a ToolCallStart can be emitted.
func (a *toolCallAccumulator) add(frag wireToolCall) (startNow bool) {
	idx := frag.Index
	if idx > a.maxIndex {
		a.maxIndex = idx
	}
	existing, ok := a.calls[idx]
	if !ok {
		existing = &wireToolCall{Index: idx, Type: frag.Type}
		a.calls[idx] = existing
	}
	// ID and name only arrive on the first fragment for this index
	if frag.ID != "" {
		existing.ID = frag.ID
	}
	if frag.Function.Name != "" {
		existing.Function.Name = frag.Function.Name
	}
	existing.Function.Arguments += frag.Function.Arguments

	if existing.Function.Name != "" && !a.announce[idx] {
		a.announce[idx] = true
		return true
	}
	return false
}

// get returns the call being assembled at idx.
func (a *toolCallAccumulator) get(idx int) wireToolCall {
	if c, ok := a.calls[idx]; ok {
		return *c
	}
	return wireToolCall{}
}

// complete returns all accumulated calls in index order.
func (a *toolCallAccumulator) complete() []types.ToolCall {
	result := make([]types.ToolCall, 0, len(a.calls))
	for i := 0; i <= a.maxIndex; i++ {
		c, ok := a.calls[i]
		if !ok {
			continue
		}
		result = append(result, types.ToolCall{
			ID:        c.ID,
			Name:      c.Function.Name,
			Arguments: c.Function.Arguments,
		})
	}
	return result
}
