package core

import (
	"errors"
	"fmt"
)

// Handoff errors
var (
	ErrConfigRejected          = errors.New("handoff: job configuration rejected")
	ErrTransitionRejected      = errors.New("handoff: mode transition rejected")
	ErrControlPlaneUnreachable = errors.New("handoff: control plane unreachable")
	ErrJobFailed               = errors.New("handoff: job reported FAILED")
	ErrCheckpointWriteFailed   = errors.New("handoff: checkpoint write failed")
	ErrSourceUnavailable       = errors.New("handoff: source database unavailable")
	ErrPollCancelled           = errors.New("handoff: poll cancelled")
	ErrPollTimeout             = errors.New("handoff: poll timed out")
	ErrInterrupted             = errors.New("handoff: interrupted")
	ErrNotResumable            = errors.New("handoff: run is not resumable")
)

// Journal errors
var (
	ErrRunNotFound = errors.New("handoff: run not found")
)

// Validation errors
var (
	ErrInvalidJobName = errors.New("handoff: invalid job name")
	ErrJobNameTooLong = errors.New("handoff: job name too long")
)

// ResponseError is a non-success answer from the control plane.
type ResponseError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// StateError reports a handoff that stopped before reaching CLAIMED.
// Completed is the last state the handoff finished, Attempted the one it
// was entering when Err occurred.
type StateError struct {
	Job       JobName
	Completed State
	Attempted State
	Err       error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("handoff %s: entering %s after %s: %v", e.Job, e.Attempted, e.Completed, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// Resumable reports whether the handoff was interrupted rather than failed.
func (e *StateError) Resumable() bool {
	return IsInterrupted(e.Err)
}

// Recovery returns operator guidance for the state the handoff stopped in.
func (e *StateError) Recovery() string {
	return e.Completed.Recovery()
}

// IsInterrupted reports whether err came from cancellation or a timeout
// rather than an observed failure.
func IsInterrupted(err error) bool {
	return errors.Is(err, ErrPollCancelled) ||
		errors.Is(err, ErrPollTimeout) ||
		errors.Is(err, ErrInterrupted)
}
