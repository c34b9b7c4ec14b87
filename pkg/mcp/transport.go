package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jg-phare/yappr/pkg/tools"
	"github.com/jg-phare/yappr/pkg/types"
)

// TransportKind names the wire variant a connection was established over.
type TransportKind string

const (
	TransportStdio          TransportKind = "stdio"
	TransportStreamableHTTP TransportKind = "streamable-http"
	TransportSSE            TransportKind = "sse"
)

// Transport opens a connection to one tool server.
type Transport interface {
	Kind() TransportKind
	Connect(ctx context.Context) (Conn, error)
}

// Conn is a live, initialized session with a tool server.
type Conn interface {
	Kind() TransportKind
	ListTools(ctx context.Context) ([]tools.Descriptor, error)
	CallTool(ctx context.Context, name string, args map[string]any) (types.ToolResult, error)
	Close() error
}

// sdkTransport adapts a go-sdk transport to Transport. All three wire
// variants differ only in the sdk.Transport they wrap.
type sdkTransport struct {
	kind   TransportKind
	client *sdk.Client
	inner  sdk.Transport
}

// NewTransport wraps an sdk.Transport so it can be connected through client.
func NewTransport(kind TransportKind, client *sdk.Client, inner sdk.Transport) Transport {
	return &sdkTransport{kind: kind, client: client, inner: inner}
}

func (t *sdkTransport) Kind() TransportKind { return t.kind }

// Connect runs the MCP initialize handshake. ctx bounds only the handshake:
// the session itself lives on a detached context until Close, since the
// SSE transport ties its event stream to the context it was opened with.
func (t *sdkTransport) Connect(ctx context.Context) (Conn, error) {
	lifetime, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)

	session, err := t.client.Connect(lifetime, t.inner, nil)
	if !stop() {
		if err == nil {
			session.Close()
			err = ctx.Err()
		}
	}
	if err != nil {
		cancel()
		return nil, err
	}
	return &sdkConn{kind: t.kind, session: session, cancel: cancel}, nil
}

type sdkConn struct {
	kind    TransportKind
	session *sdk.ClientSession
	cancel  context.CancelFunc
	closed  atomic.Bool
}

func (c *sdkConn) Kind() TransportKind { return c.kind }

func (c *sdkConn) ListTools(ctx context.Context) ([]tools.Descriptor, error) {
	var (
		out    []tools.Descriptor
		cursor string
	)
	for {
		res, err := c.session.ListTools(ctx, &sdk.ListToolsParams{Cursor: cursor})
		if err != nil {
			return nil, fmt.Errorf("list tools: %w", err)
		}
		for _, t := range res.Tools {
			out = append(out, tools.Descriptor{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: t.InputSchema,
			})
		}
		if res.NextCursor == "" {
			return out, nil
		}
		cursor = res.NextCursor
	}
}

// CallTool returns the server's content blocks serialized as a JSON array.
func (c *sdkConn) CallTool(ctx context.Context, name string, args map[string]any) (types.ToolResult, error) {
	if c.closed.Load() {
		return types.ToolResult{}, tools.ErrServerNotConnected
	}
	res, err := c.session.CallTool(ctx, &sdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return types.ToolResult{}, err
	}
	content := res.Content
	if content == nil {
		content = []sdk.Content{}
	}
	data, err := json.Marshal(content)
	if err != nil {
		return types.ToolResult{}, fmt.Errorf("encode tool content: %w", err)
	}
	return types.ToolResult{Content: string(data), IsError: res.IsError}, nil
}

func (c *sdkConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	defer c.cancel()
	return c.session.Close()
}
