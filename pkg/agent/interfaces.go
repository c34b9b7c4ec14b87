package agent

import (
	"context"

	"github.com/jg-phare/yappr/pkg/llm"
	"github.com/jg-phare/yappr/pkg/mcp"
	"github.com/jg-phare/yappr/pkg/types"
)

// ToolSession is the set of tools available to one run.
type ToolSession interface {
	Invoke(ctx context.Context, name string, args any) (types.ToolResult, error)
	ExportForProvider(format llm.ToolFormat) []llm.ToolSchema
	Close() error
}

// ToolSource opens a fresh ToolSession for each run.
type ToolSource interface {
	Open(ctx context.Context) (ToolSession, error)
}

// ToolSourceFunc adapts a function to ToolSource.
type ToolSourceFunc func(ctx context.Context) (ToolSession, error)

func (f ToolSourceFunc) Open(ctx context.Context) (ToolSession, error) { return f(ctx) }

// MCPSource connects the servers declared at configPath for every run.
// onStatus, if set, receives the per-server outcomes of each connection pass.
func MCPSource(m *mcp.Manager, configPath string, onStatus func([]mcp.ServerStatus)) ToolSource {
	return ToolSourceFunc(func(ctx context.Context) (ToolSession, error) {
		sess, statuses, err := m.LoadAndConnect(ctx, configPath)
		if err != nil {
			return nil, err
		}
		if onStatus != nil {
			onStatus(statuses)
		}
		return sess, nil
	})
}
