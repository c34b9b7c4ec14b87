// Package logging holds the slog conventions shared by the other packages.
package logging

import (
	"io"
	"log/slog"
)

// Nop returns a logger that discards all output.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Component returns l tagged with component=name. A nil l yields a
// discarding logger.
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		return Nop()
	}
	return l.With(slog.String("component", name))
}
