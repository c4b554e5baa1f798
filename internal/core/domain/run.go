package domain

import "time"

type RunID string

// RunOutcome summarises how a workflow invocation ended
type RunOutcome string

const (
	RunOutcomeSucceeded RunOutcome = "succeeded"
	RunOutcomeFailed    RunOutcome = "failed"
	RunOutcomeCancelled RunOutcome = "cancelled"
)

// RunRecord is the diagnostics entry written once per workflow invocation.
// CleanupError holds teardown failures that were deliberately not returned to the caller.
type RunRecord struct {
	ID           RunID      `json:"id"`
	InputPath    string     `json:"input_path"`
	Port         int        `json:"port"`
	ContainerID  string     `json:"container_id,omitempty"`
	SessionID    SessionID  `json:"session_id,omitempty"`
	JobID        JobID      `json:"job_id,omitempty"`
	JobState     JobState   `json:"job_state,omitempty"`
	Outcome      RunOutcome `json:"outcome"`
	Error        string     `json:"error,omitempty"`
	CleanupError string     `json:"cleanup_error,omitempty"`
	OutputBytes  int        `json:"output_bytes"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   time.Time  `json:"finished_at"`
}

// Duration is the wall time of the invocation.
func (r RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
