package mcp

import (
	"context"
	"crypto/rand"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/jg-phare/yappr/pkg/llm"
	"github.com/jg-phare/yappr/pkg/logging"
	"github.com/jg-phare/yappr/pkg/tools"
	"github.com/jg-phare/yappr/pkg/types"
)

// Session owns the live connections of one connection pass and the registry
// of the tools they serve. Connections and registry are populated while the
// Manager builds the session and are read-only afterwards.
type Session struct {
	id       string
	registry *tools.Registry
	logger   *slog.Logger

	mu     sync.RWMutex
	order  []string
	conns  map[string]Conn
	closed bool

	closeOnce sync.Once
}

func newSession(logger *slog.Logger) *Session {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Session{
		id:     ulid.MustNew(ulid.Now(), rand.Reader).String(),
		conns:  make(map[string]Conn),
		logger: logger,
	}
	s.registry = tools.NewRegistry(s, tools.WithLogger(logger))
	return s
}

// ID returns the session's unique, time-ordered id.
func (s *Session) ID() string { return s.id }

// Registry returns the session's tool registry.
func (s *Session) Registry() *tools.Registry { return s.registry }

// Servers returns the ids of connected servers in connection order.
func (s *Session) Servers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

func (s *Session) add(id string, c Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.conns[id]; ok {
		prev.Close()
	} else {
		s.order = append(s.order, id)
	}
	s.conns[id] = c
}

// Connection implements tools.ConnectionLookup.
func (s *Session) Connection(serverID string) (tools.Caller, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false
	}
	c, ok := s.conns[serverID]
	if !ok {
		return nil, false
	}
	return c, true
}

// Invoke dispatches a tool call through the registry.
func (s *Session) Invoke(ctx context.Context, name string, args any) (types.ToolResult, error) {
	return s.registry.Invoke(ctx, name, args)
}

// ExportForProvider returns the session's tools in the given schema shape.
func (s *Session) ExportForProvider(format llm.ToolFormat) []llm.ToolSchema {
	return s.registry.ExportForProvider(format)
}

// Close tears down every connection concurrently. It is safe to call more
// than once; individual close failures are logged and do not stop the rest.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		conns := s.conns
		order := s.order
		s.conns = map[string]Conn{}
		s.mu.Unlock()

		var g errgroup.Group
		for _, id := range order {
			c := conns[id]
			g.Go(func() error {
				if err := c.Close(); err != nil {
					s.logger.Warn("closing mcp connection", "server", id, "error", err)
				}
				return nil
			})
		}
		_ = g.Wait()
		s.logger.Debug("mcp session closed", "session", s.id, "connections", len(order))
	})
	return nil
}
