package core

import "time"

// Event is the interface for all handoff events.
type Event interface {
	eventMarker()
}

// StateEntered is emitted when the handoff completes a state.
type StateEntered struct {
	RunID     string
	Job       JobName
	State     State
	Marker    Marker
	Timestamp time.Time
}

func (*StateEntered) eventMarker() {}

// CheckpointConfirmed is emitted after the checkpoint read-back.
// Err is set when the read failed; Matches is false when the stored
// checkpoint differs from the one written.
type CheckpointConfirmed struct {
	RunID     string
	Job       JobName
	Written   Checkpoint
	Stored    Checkpoint
	Matches   bool
	Err       error
	Timestamp time.Time
}

func (*CheckpointConfirmed) eventMarker() {}

// HandoffCompleted is emitted when a worker claimed the streaming job.
type HandoffCompleted struct {
	RunID     string
	Job       JobName
	Owner     string
	Duration  time.Duration
	Timestamp time.Time
}

func (*HandoffCompleted) eventMarker() {}

// HandoffFailed is emitted when the handoff stops before CLAIMED.
type HandoffFailed struct {
	RunID     string
	Job       JobName
	Completed State
	Error     error
	Timestamp time.Time
}

func (*HandoffFailed) eventMarker() {}
