package core

import (
	"time"
)

// RunOutcome is the persisted result of a handoff run.
type RunOutcome string

const (
	OutcomeActive      RunOutcome = "active"
	OutcomeSucceeded   RunOutcome = "succeeded"
	OutcomeFailed      RunOutcome = "failed"
	OutcomeInterrupted RunOutcome = "interrupted" // cancelled or timed out; may be resumed
)

// HandoffRun is one attempt at bootstrapping a job.
type HandoffRun struct {
	ID           string     `gorm:"primaryKey;size:36"`
	Job          JobName    `gorm:"index;size:255;not null"`
	State        State      `gorm:"size:32;not null;default:'NEW'"`
	Outcome      RunOutcome `gorm:"index;size:20;not null;default:'active'"`
	Marker       Marker     `gorm:"size:255"`
	CommitMarker Marker     `gorm:"size:255"`
	Owner        string     `gorm:"size:255"`
	LastError    string     `gorm:"type:text"`
	ResumedFrom  string     `gorm:"size:36"`
	StartedAt    time.Time  `gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime"`
	FinishedAt   *time.Time
}

// Checkpoint returns the checkpoint recorded for the run, if any.
func (r *HandoffRun) Checkpoint() (Checkpoint, bool) {
	if r.Marker.IsZero() || !r.State.AtLeast(StateCheckpointed) {
		return Checkpoint{}, false
	}
	return Checkpoint{Marker: r.Marker, CommitMarker: r.CommitMarker}, true
}

// Transition is a history row for a completed state.
type Transition struct {
	ID        uint      `gorm:"primaryKey"`
	RunID     string    `gorm:"index;size:36;not null"`
	State     State     `gorm:"size:32;not null"`
	Marker    Marker    `gorm:"size:255"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName keeps the history table name explicit.
func (Transition) TableName() string {
	return "handoff_transitions"
}
