package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jg-phare/yappr/pkg/config"
	"github.com/jg-phare/yappr/pkg/logging"
	"github.com/jg-phare/yappr/pkg/types"
)

// DefaultConnectTimeout bounds one server's handshake and tool listing.
const DefaultConnectTimeout = 30 * time.Second

// Client identity sent in the initialize handshake.
const (
	clientName    = "yappr-client"
	clientVersion = "1.0.0"
)

// Manager turns a declarative server list into a live Session.
type Manager struct {
	logger         *slog.Logger
	httpClient     *http.Client
	connectTimeout time.Duration
	excludeTools   []string
	dial           TransportFactory
}

// TransportFactory supplies the transport for an entry. Returning false
// leaves the entry to the built-in stdio and HTTP transports.
type TransportFactory func(client *sdk.Client, entry types.ServerEntry) (Transport, bool)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used by the manager and the sessions it builds.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = logging.Component(l, "mcp") }
}

// WithHTTPClient sets the client whose transport carries HTTP server traffic.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.httpClient = c }
}

// WithConnectTimeout bounds each server's connection attempt. Zero or
// negative keeps the default.
func WithConnectTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.connectTimeout = d
		}
	}
}

// WithToolFilter excludes tools whose "serverID/toolName" matches any of the
// doublestar patterns, e.g. "github/*" or "*/delete_*".
func WithToolFilter(patterns ...string) Option {
	return func(m *Manager) { m.excludeTools = append(m.excludeTools, patterns...) }
}

// WithTransportFactory installs f ahead of the built-in transports, e.g. to
// serve an entry from an in-process server.
func WithTransportFactory(f TransportFactory) Option {
	return func(m *Manager) { m.dial = f }
}

// NewManager creates a Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		logger:         logging.Nop(),
		httpClient:     http.DefaultClient,
		connectTimeout: DefaultConnectTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LoadAndConnect reads the server list at path and connects every entry.
// A missing file yields an empty session and no statuses.
func (m *Manager) LoadAndConnect(ctx context.Context, path string) (*Session, []ServerStatus, error) {
	cfg, exists, err := config.LoadMCPConfig(path)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		m.logger.Info("no mcp config, continuing without tools", "path", path)
		return newSession(m.logger), nil, nil
	}
	return m.Connect(ctx, cfg.Servers)
}

// Connect attempts every entry in order and returns one status per entry.
// Individual failures are recorded in the statuses; the returned error is
// non-nil only when ctx ends, in which case the partial session is closed.
func (m *Manager) Connect(ctx context.Context, entries []types.ServerEntry) (*Session, []ServerStatus, error) {
	client := sdk.NewClient(&sdk.Implementation{Name: clientName, Version: clientVersion}, &sdk.ClientOptions{
		Logger: m.logger,
	})

	sess := newSession(m.logger)
	statuses := make([]ServerStatus, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			sess.Close()
			return nil, nil, err
		}
		statuses = append(statuses, m.connectEntry(ctx, client, sess, entry))
	}

	sum := Summarize(statuses)
	m.logger.Info("mcp servers ready",
		"session", sess.ID(),
		"connected", sum.Connected,
		"failed", sum.Failed,
		"skipped", sum.Skipped,
		"tools", sum.TotalTools)
	return sess, statuses, nil
}

func (m *Manager) connectEntry(ctx context.Context, client *sdk.Client, sess *Session, entry types.ServerEntry) ServerStatus {
	log := m.logger.With("server", entry.ID)
	if !entry.HasCommand() && !entry.HasURL() {
		log.Info("skipping server without command or url")
		return ServerStatus{ID: entry.ID, Outcome: OutcomeSkipped, Message: "No command/url"}
	}

	ctx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	defer cancel()

	conn, err := m.connectTransport(ctx, client, entry, log)
	if err != nil {
		return m.failed(log, entry.ID, err)
	}

	descs, err := conn.ListTools(ctx)
	if err != nil {
		conn.Close()
		return m.failed(log, entry.ID, &ConnectionError{ServerID: entry.ID, Kind: KindTransport, Err: err})
	}

	registered := 0
	for _, d := range descs {
		if m.excluded(entry.ID, d.Name) {
			log.Debug("tool excluded by filter", "tool", d.Name)
			continue
		}
		sess.registry.Register(entry.ID, d)
		registered++
	}
	sess.add(entry.ID, conn)

	log.Info("mcp server connected", "transport", conn.Kind(), "tools", registered)
	return ServerStatus{
		ID:        entry.ID,
		Outcome:   OutcomeConnected,
		ToolCount: registered,
		Message:   "Ready",
		Transport: conn.Kind(),
	}
}

func (m *Manager) connectTransport(ctx context.Context, client *sdk.Client, entry types.ServerEntry, log *slog.Logger) (Conn, error) {
	if m.dial != nil {
		if t, ok := m.dial(client, entry); ok {
			conn, err := t.Connect(ctx)
			if err != nil {
				return nil, launchError(entry.ID, err)
			}
			return conn, nil
		}
	}
	if entry.HasCommand() {
		conn, err := NewStdioTransport(client, entry).Connect(ctx)
		if err != nil {
			return nil, launchError(entry.ID, err)
		}
		return conn, nil
	}
	return m.connectHTTP(ctx, client, entry, log)
}

func launchError(id string, err error) error {
	kind := KindTransport
	if isCommandNotFound(err) {
		kind = KindCommandNotFound
	}
	return &ConnectionError{ServerID: id, Kind: kind, Err: err}
}

// connectHTTP tries streamable-http first and falls back to SSE only when the
// server rejected the attempt with a 4xx status.
func (m *Manager) connectHTTP(ctx context.Context, client *sdk.Client, entry types.ServerEntry, log *slog.Logger) (Conn, error) {
	rec := newStatusRecorder(m.httpClient.Transport, entry.Headers)
	hc := &http.Client{Transport: rec, Jar: m.httpClient.Jar}

	conn, err := NewStreamableTransport(client, entry.URL, hc).Connect(ctx)
	if err == nil {
		return conn, nil
	}

	status := rec.Status()
	if !isClientRejection(status) {
		return nil, httpConnectionError(entry.ID, status, err)
	}

	log.Info("streamable http rejected, falling back to sse", "status", status)
	rec.reset()
	conn, err = NewSSETransport(client, entry.URL, hc).Connect(ctx)
	if err != nil {
		return nil, httpConnectionError(entry.ID, rec.Status(), err)
	}
	return conn, nil
}

// httpConnectionError reports 4xx answers as rejections. Server errors and
// network failures keep their own text.
func httpConnectionError(id string, status int, err error) error {
	kind := KindTransport
	if isClientRejection(status) {
		kind = KindRejected
	}
	return &ConnectionError{ServerID: id, Kind: kind, Status: status, Err: err}
}

func (m *Manager) failed(log *slog.Logger, id string, err error) ServerStatus {
	msg := err.Error()
	var ce *ConnectionError
	if errors.As(err, &ce) {
		msg = ce.Message()
	}
	log.Warn("mcp server failed", "error", err)
	return ServerStatus{ID: id, Outcome: OutcomeFailed, Message: msg}
}

func (m *Manager) excluded(serverID, toolName string) bool {
	if len(m.excludeTools) == 0 {
		return false
	}
	name := fmt.Sprintf("%s/%s", serverID, toolName)
	for _, pattern := range m.excludeTools {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
