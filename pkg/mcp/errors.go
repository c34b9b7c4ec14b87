package mcp

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
)

// ErrorKind classifies a connection failure.
type ErrorKind int

const (
	// KindTransport covers network failures, server errors and handshake problems.
	KindTransport ErrorKind = iota
	// KindCommandNotFound means the stdio command could not be launched.
	KindCommandNotFound
	// KindRejected means the HTTP endpoint answered with a 4xx status,
	// typically 401 or 403.
	KindRejected
)

// ConnectionError reports why a server entry could not be connected.
type ConnectionError struct {
	ServerID string
	Kind     ErrorKind
	Status   int // last non-2xx HTTP status seen, 0 if none
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.ServerID, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Message returns the short human message recorded in ServerStatus.
func (e *ConnectionError) Message() string {
	switch e.Kind {
	case KindCommandNotFound:
		return "Command not found"
	case KindRejected:
		return "Auth/Connection Err"
	}
	if e.Err == nil {
		return "connection failed"
	}
	return e.Err.Error()
}

func isCommandNotFound(err error) bool {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return true
	}
	return strings.Contains(err.Error(), "executable file not found")
}
