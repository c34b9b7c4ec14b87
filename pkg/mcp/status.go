package mcp

// Outcome is the result of one connection attempt.
type Outcome string

const (
	OutcomeConnected Outcome = "connected"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// ServerStatus reports the outcome for one config entry.
type ServerStatus struct {
	ID        string        `json:"id"`
	Outcome   Outcome       `json:"outcome"`
	ToolCount int           `json:"toolCount"`
	Message   string        `json:"message,omitempty"`
	Transport TransportKind `json:"transport,omitempty"`
}

// Summary counts statuses by outcome.
type Summary struct {
	Connected  int `json:"connected"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
	TotalTools int `json:"totalTools"`
}

// Summarize tallies statuses. TotalTools sums ToolCount over connected servers.
func Summarize(statuses []ServerStatus) Summary {
	var s Summary
	for _, st := range statuses {
		switch st.Outcome {
		case OutcomeConnected:
			s.Connected++
			s.TotalTools += st.ToolCount
		case OutcomeFailed:
			s.Failed++
		case OutcomeSkipped:
			s.Skipped++
		}
	}
	return s
}
