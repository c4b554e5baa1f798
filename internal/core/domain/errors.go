package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProvisioning       = errors.New("container provisioning failed")
	ErrServiceUnavailable = errors.New("routing service unavailable")
	ErrSessionCreation    = errors.New("session creation failed")
	ErrJobCreation        = errors.New("job creation failed")
	ErrInputUpload        = errors.New("input upload failed")
	ErrJobStart           = errors.New("job start failed")
	ErrJobFailed          = errors.New("job failed")
	ErrJobTimeout         = errors.New("job timed out waiting for completion")
	ErrOutputMissing      = errors.New("job output missing")
)

// JobFailedError carries the terminal state the engine reported.
type JobFailedError struct {
	JobID JobID
	State JobState
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s failed with state: %s", e.JobID, e.State)
}

func (e *JobFailedError) Unwrap() error {
	return ErrJobFailed
}

// taxonomy lists the errors a workflow invocation may surface
var taxonomy = []error{
	ErrProvisioning,
	ErrServiceUnavailable,
	ErrSessionCreation,
	ErrJobCreation,
	ErrInputUpload,
	ErrJobStart,
	ErrJobFailed,
	ErrJobTimeout,
	ErrOutputMissing,
}

// Classify returns the workflow error kind wrapped by err, or nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range taxonomy {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
