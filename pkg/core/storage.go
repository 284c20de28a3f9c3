package core

import (
	"context"
)

// ControlPlane is the job-control API the coordinator drives.
type ControlPlane interface {
	SubmitConfiguration(ctx context.Context, job JobName, cfg JobConfiguration) error
	RequestTransition(ctx context.Context, job JobName, mode Mode) error
	ListJobs(ctx context.Context) ([]JobState, error)
	WriteCheckpoint(ctx context.Context, job JobName, cp Checkpoint) error
	ReadCheckpoint(ctx context.Context, job JobName) (Checkpoint, error)
}

// MarkerSource reads the current consistency marker from the source database.
type MarkerSource interface {
	CurrentMarker(ctx context.Context) (Marker, error)
}

// Journal persists handoff progress so interrupted runs can be inspected
// and resumed.
type Journal interface {
	// Migrate creates the necessary database tables.
	Migrate(ctx context.Context) error

	// Begin records a new run. A zero State is stored as StateNew; resumed
	// runs carry the state and marker of the run they continue.
	Begin(ctx context.Context, run *HandoffRun) error

	// Advance records that the run completed state.
	Advance(ctx context.Context, runID string, state State, marker Marker) error

	// Finish closes the run with a final outcome.
	Finish(ctx context.Context, runID string, outcome RunOutcome, owner string, errMsg string) error

	// Latest returns the most recent run for job, or nil.
	Latest(ctx context.Context, job JobName) (*HandoffRun, error)

	// Runs returns the most recent runs for job, newest first.
	Runs(ctx context.Context, job JobName, limit int) ([]*HandoffRun, error)

	// Transitions returns the states a run went through, oldest first.
	Transitions(ctx context.Context, runID string) ([]Transition, error)
}
