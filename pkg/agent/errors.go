package agent

import (
	"context"
	"errors"

	"github.com/jg-phare/yappr/pkg/llm"
)

// ErrCancelled is returned when the run's context ends before completion.
// It is an outcome, not a failure: the caller may start a new run at once.
var ErrCancelled = errors.New("run cancelled")

// ErrMaxTurns is returned when a run exceeds its configured turn cap.
var ErrMaxTurns = errors.New("max turns exceeded")

// FailureKind tells a UI how to present a run error.
type FailureKind int

const (
	FailureNone FailureKind = iota
	// FailureCancelled should be shown as a neutral dismissal.
	FailureCancelled
	// FailureModelNotFound should suggest checking the configured provider and model.
	FailureModelNotFound
	FailureGeneric
)

// ClassifyFailure maps a Run error to how it should be presented.
func ClassifyFailure(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return FailureCancelled
	case llm.IsModelNotFound(err):
		return FailureModelNotFound
	default:
		return FailureGeneric
	}
}
