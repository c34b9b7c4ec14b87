package tools

import (
	"errors"
	"fmt"
)

var (
	// ErrToolNotFound is returned when no registered tool has the requested name.
	ErrToolNotFound = errors.New("tool not found")

	// ErrServerNotConnected is returned when the tool's server connection is
	// missing or already closed.
	ErrServerNotConnected = errors.New("server not connected")
)

// ToolExecutionError carries a failure reported while running a tool on its server.
type ToolExecutionError struct {
	Tool     string
	ServerID string
	Err      error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s (server %s): %v", e.Tool, e.ServerID, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }
