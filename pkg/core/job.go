package core

import (
	"strings"
)

// JobName identifies one replication job within the control plane.
type JobName string

// String returns the job name.
func (n JobName) String() string {
	return string(n)
}

// CheckpointID returns the key the control plane stores the job's checkpoint under.
func (n JobName) CheckpointID() string {
	return "{connect}:job:" + string(n)
}

// JobStatus represents the control plane's view of a job.
type JobStatus string

const (
	StatusUnknown JobStatus = "UNKNOWN"
	StatusRunning JobStatus = "RUNNING"
	StatusStopped JobStatus = "STOPPED"
	StatusFailed  JobStatus = "FAILED"
	StatusClaimed JobStatus = "CLAIMED"
)

func (s JobStatus) String() string {
	return string(s)
}

// ParseJobStatus maps a wire status onto a JobStatus.
// Anything unrecognized is StatusUnknown.
func ParseJobStatus(s string) JobStatus {
	switch JobStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusRunning:
		return StatusRunning
	case StatusStopped:
		return StatusStopped
	case StatusFailed:
		return StatusFailed
	case StatusClaimed:
		return StatusClaimed
	default:
		return StatusUnknown
	}
}

// JobState is one entry of a job listing. It is a point-in-time
// observation and must not be reused across poll cycles.
type JobState struct {
	Name   JobName
	Status JobStatus
	Owner  string // set only when Status is StatusClaimed
}

// Claimed reports whether a live worker owns the job.
func (s JobState) Claimed() bool {
	return s.Status == StatusClaimed && s.Owner != ""
}

// FindJob returns the state of name within states.
func FindJob(states []JobState, name JobName) (JobState, bool) {
	for _, s := range states {
		if s.Name == name {
			return s, true
		}
	}
	return JobState{}, false
}

// Mode is the execution mode a job can be transitioned into.
type Mode string

const (
	ModeLoad   Mode = "LOAD"
	ModeStream Mode = "STREAM"
)

// PathSegment returns the lower-case form used in transition URLs.
func (m Mode) PathSegment() string {
	return strings.ToLower(string(m))
}

// JobConfiguration is the opaque configuration payload uploaded once per job.
type JobConfiguration struct {
	FileName string
	Payload  []byte
}

// Checkpoint is the position the streaming phase resumes from.
type Checkpoint struct {
	Marker       Marker `json:"scn"`
	CommitMarker Marker `json:"commit_scn"`
}

// BootstrapCheckpoint builds the checkpoint written at the snapshot boundary.
// Both positions are equal since no uncommitted changes are in flight.
func BootstrapCheckpoint(m Marker) Checkpoint {
	return Checkpoint{Marker: m, CommitMarker: m}
}
