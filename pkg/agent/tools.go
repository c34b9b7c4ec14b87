package agent

import (
	"context"
	"fmt"

	"github.com/jg-phare/yappr/pkg/tools"
	"github.com/jg-phare/yappr/pkg/types"
)

// dispatch runs one tool call and returns the result for its tool message.
// Failures become "Error: ..." content flagged IsError so the model can react
// to them.
func (r *run) dispatch(ctx context.Context, sess ToolSession, call types.ToolCall) types.ToolResult {
	if sess == nil {
		return toolFailure(fmt.Sprintf("%v: %s", tools.ErrToolNotFound, call.Name))
	}

	log := r.log.With("tool", call.Name, "call_id", call.ID)
	log.Debug("dispatching tool call")

	res, err := sess.Invoke(ctx, call.Name, call.Arguments)
	if err != nil {
		log.Warn("tool call failed", "error", err)
		return toolFailure(err.Error())
	}
	if res.IsError {
		log.Info("tool reported an error")
		return toolFailure(res.Content)
	}
	return types.ToolResult{Content: res.Content}
}

func toolFailure(msg string) types.ToolResult {
	return types.ToolResult{Content: "Error: " + msg, IsError: true}
}
