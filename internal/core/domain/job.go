package domain

type SessionID string

// Session groups routing jobs on the engine side.
type Session struct {
	ID SessionID `json:"id"`
}

type JobID string

type JobState string

const (
	JobStateQueued    JobState = "QUEUED"
	JobStateRunning   JobState = "RUNNING"
	JobStateCompleted JobState = "COMPLETED"
	JobStateFailed    JobState = "FAILED"
)

const (
	DefaultJobName     = "circuit-routing"
	DefaultJobPriority = "NORMAL"
)

// Job is one unit of routing work. State is owned by the engine; we only read it.
type Job struct {
	ID        JobID     `json:"id"`
	SessionID SessionID `json:"session_id,omitempty"`
	Name      string    `json:"name,omitempty"`
	Priority  string    `json:"priority,omitempty"`
	State     JobState  `json:"state,omitempty"`
}

// JobRequest is the enqueue payload
type JobRequest struct {
	SessionID SessionID `json:"session_id"`
	Name      string    `json:"name"`
	Priority  string    `json:"priority"`
}

// IsTerminal reports whether the engine will never move the job again.
// Only the two explicit labels count; anything else is still pending.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// Rank orders states along QUEUED -> RUNNING -> terminal. Unknown labels rank 0.
func (s JobState) Rank() int {
	switch s {
	case JobStateQueued:
		return 1
	case JobStateRunning:
		return 2
	case JobStateCompleted, JobStateFailed:
		return 3
	default:
		return 0
	}
}
