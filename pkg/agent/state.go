package agent

// Phase is the orchestrator's position in a run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSending
	PhaseStreamingContent
	PhaseRunningTool
	PhaseCompleted
	PhaseCancelled
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSending:
		return "sending"
	case PhaseStreamingContent:
		return "streaming_content"
	case PhaseRunningTool:
		return "running_tool"
	case PhaseCompleted:
		return "completed"
	case PhaseCancelled:
		return "cancelled"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the run has ended.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseCancelled || p == PhaseFailed
}

// ToolPhase is reported through RunRequest.OnToolCall.
type ToolPhase string

const (
	ToolPhaseStart  ToolPhase = "start"  // the model began emitting a call
	ToolPhaseEnd    ToolPhase = "end"    // the call's arguments are complete
	ToolPhaseResult ToolPhase = "result" // the call was dispatched and answered
)
