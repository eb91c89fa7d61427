package domain

// ProgressResponse is one record of a pull, push or create progress stream.
type ProgressResponse struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Percent returns the completed fraction in [0,100], or -1 when the total
// is unknown.
func (p ProgressResponse) Percent() float64 {
	if p.Total <= 0 {
		return -1
	}
	return float64(p.Completed) / float64(p.Total) * 100
}

// CallState is the lifecycle state of one streamed request.
type CallState int

const (
	CallIdle CallState = iota
	CallRunning
	CallCompleted
	CallAborted
	CallFailed
)

func (s CallState) String() string {
	switch s {
	case CallIdle:
		return "idle"
	case CallRunning:
		return "running"
	case CallCompleted:
		return "completed"
	case CallAborted:
		return "aborted"
	case CallFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final state.
func (s CallState) Terminal() bool {
	return s == CallCompleted || s == CallAborted || s == CallFailed
}
