package tools

import (
	"context"

	"github.com/jg-phare/yappr/pkg/types"
)

// Descriptor describes one remote tool as advertised by its server.
type Descriptor struct {
	Name        string
	Description string
	InputSchema any // raw JSON Schema as reported by the server
	ServerID    string
}

// Caller executes a tool on a live connection.
type Caller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (types.ToolResult, error)
}

// ConnectionLookup resolves a server id to its live connection. It returns
// false when the server is unknown or its connection has been closed.
type ConnectionLookup interface {
	Connection(serverID string) (Caller, bool)
}

// LookupFunc adapts a plain function to ConnectionLookup.
type LookupFunc func(serverID string) (Caller, bool)

func (f LookupFunc) Connection(serverID string) (Caller, bool) { return f(serverID) }
