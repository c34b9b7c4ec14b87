package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/jg-phare/yappr/pkg/llm"
	"github.com/jg-phare/yappr/pkg/logging"
	"github.com/jg-phare/yappr/pkg/types"
)

// Registry maps tool names to descriptors and dispatches invocations to the
// owning server connection. It does not own the connections.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Descriptor
	conns  ConnectionLookup
	logger *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logging.Component(l, "tools")
	}
}

// NewRegistry creates an empty registry resolving connections through conns.
func NewRegistry(conns ConnectionLookup, opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:  make(map[string]Descriptor),
		conns:  conns,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register inserts d under its name, tagged with serverID. A later
// registration of the same name replaces the earlier one.
func (r *Registry) Register(serverID string, d Descriptor) {
	d.ServerID = serverID

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.tools[d.Name]; ok {
		r.logger.Warn("tool name collision, replacing",
			"tool", d.Name, "previous_server", prev.ServerID, "server", serverID)
	}
	r.tools[d.Name] = d
}

// Unregister removes every tool owned by serverID and returns how many were removed.
func (r *Registry) Unregister(serverID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for name, d := range r.tools {
		if d.ServerID == serverID {
			delete(r.tools, name)
			n++
		}
	}
	return n
}

// Get retrieves a descriptor by name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Invoke runs the named tool with args on its owning connection. Args may be
// a JSON string, raw JSON bytes, a map or any value that marshals to an object.
// The connection's result is returned unchanged, including IsError results.
func (r *Registry) Invoke(ctx context.Context, name string, args any) (types.ToolResult, error) {
	d, ok := r.Get(name)
	if !ok {
		return types.ToolResult{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	input, err := types.NormalizeArguments(args)
	if err != nil {
		return types.ToolResult{}, &ToolExecutionError{Tool: name, ServerID: d.ServerID, Err: err}
	}

	var conn Caller
	if r.conns != nil {
		conn, ok = r.conns.Connection(d.ServerID)
	}
	if conn == nil || !ok {
		return types.ToolResult{}, fmt.Errorf("%w: %s", ErrServerNotConnected, d.ServerID)
	}

	r.logger.Debug("dispatching tool", "tool", name, "server", d.ServerID)
	res, err := conn.CallTool(ctx, name, input)
	if err != nil {
		if ctx.Err() != nil {
			return types.ToolResult{}, ctx.Err()
		}
		if errors.Is(err, ErrServerNotConnected) {
			return types.ToolResult{}, err
		}
		return types.ToolResult{}, &ToolExecutionError{Tool: name, ServerID: d.ServerID, Err: err}
	}
	return res, nil
}

// ExportForProvider projects every registered tool, sorted by name, into the
// schema shape the given backend format expects.
func (r *Registry) ExportForProvider(format llm.ToolFormat) []llm.ToolSchema {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]llm.ToolSchema, 0, len(names))
	for _, name := range names {
		d, ok := r.tools[name]
		if !ok {
			continue
		}
		out = append(out, llm.ToolSchema{
			Format:      format,
			Name:        d.Name,
			Description: d.Description,
			Parameters:  llm.NormalizeParameters(d.InputSchema),
		})
	}
	return out
}
