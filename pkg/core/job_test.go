package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobName_CheckpointID(t *testing.T) {
	assert.Equal(t, "{connect}:job:oracle-job", JobName("oracle-job").CheckpointID())
}

func TestParseJobStatus(t *testing.T) {
	tests := map[string]JobStatus{
		"RUNNING":    StatusRunning,
		"stopped":    StatusStopped,
		" FAILED ":   StatusFailed,
		"CLAIMED":    StatusClaimed,
		"":           StatusUnknown,
		"STARTING":   StatusUnknown,
		"UNASSIGNED": StatusUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseJobStatus(in), "input %q", in)
	}
}

func TestJobState_Claimed(t *testing.T) {
	assert.True(t, JobState{Status: StatusClaimed, Owner: "worker-1"}.Claimed())
	assert.False(t, JobState{Status: StatusClaimed}.Claimed(), "claim needs an owner")
	assert.False(t, JobState{Status: StatusRunning, Owner: "worker-1"}.Claimed())
}

func TestFindJob(t *testing.T) {
	states := []JobState{
		{Name: "a", Status: StatusRunning},
		{Name: "b", Status: StatusStopped},
	}

	got, ok := FindJob(states, "b")
	assert.True(t, ok)
	assert.Equal(t, StatusStopped, got.Status)

	_, ok = FindJob(states, "c")
	assert.False(t, ok)
}

func TestMode_PathSegment(t *testing.T) {
	assert.Equal(t, "load", ModeLoad.PathSegment())
	assert.Equal(t, "stream", ModeStream.PathSegment())
}

func TestBootstrapCheckpoint(t *testing.T) {
	cp := BootstrapCheckpoint("1001")
	assert.Equal(t, Marker("1001"), cp.Marker)
	assert.Equal(t, cp.Marker, cp.CommitMarker)
}

func TestHandoffRun_Checkpoint(t *testing.T) {
	run := &HandoffRun{State: StateSnapshotDone, Marker: "5"}
	_, ok := run.Checkpoint()
	assert.False(t, ok, "no checkpoint before CHECKPOINTED")

	run.State = StateStreamStarted
	run.CommitMarker = "5"
	cp, ok := run.Checkpoint()
	assert.True(t, ok)
	assert.Equal(t, Checkpoint{Marker: "5", CommitMarker: "5"}, cp)
}
