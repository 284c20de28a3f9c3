package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/simple-cdc-handoff/pkg/core"
)

// ──────────────────────────────────────────────────────────────────────────────
// Begin
// ──────────────────────────────────────────────────────────────────────────────

func TestBegin_AssignsDefaults(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)

	run := &core.HandoffRun{Job: "oracle-job"}
	require.NoError(t, j.Begin(ctx, run))

	assert.Len(t, run.ID, 36)
	assert.Equal(t, core.StateNew, run.State)
	assert.Equal(t, core.OutcomeActive, run.Outcome)

	got, err := j.Latest(ctx, "oracle-job")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, core.StateNew, got.State)
	assert.Nil(t, got.FinishedAt)
}

func TestBegin_KeepsResumedState(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)

	run := &core.HandoffRun{
		Job:          "oracle-job",
		State:        core.StateCheckpointed,
		Marker:       "1001",
		CommitMarker: "1001",
		ResumedFrom:  "prior-run",
	}
	require.NoError(t, j.Begin(ctx, run))

	got, err := j.Latest(ctx, "oracle-job")
	require.NoError(t, err)
	assert.Equal(t, core.StateCheckpointed, got.State)
	assert.Equal(t, "prior-run", got.ResumedFrom)
	cp, ok := got.Checkpoint()
	require.True(t, ok)
	assert.Equal(t, core.BootstrapCheckpoint("1001"), cp)
}

// ──────────────────────────────────────────────────────────────────────────────
// Advance
// ──────────────────────────────────────────────────────────────────────────────

func TestAdvance_RecordsHistoryInOrder(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)

	run := &core.HandoffRun{Job: "oracle-job"}
	require.NoError(t, j.Begin(ctx, run))

	require.NoError(t, j.Advance(ctx, run.ID, core.StateConfigured, ""))
	require.NoError(t, j.Advance(ctx, run.ID, core.StateSnapshotStarted, "1001"))
	require.NoError(t, j.Advance(ctx, run.ID, core.StateSnapshotDone, ""))
	require.NoError(t, j.Advance(ctx, run.ID, core.StateCheckpointed, "1001"))

	transitions, err := j.Transitions(ctx, run.ID)
	require.NoError(t, err)
	states := make([]core.State, 0, len(transitions))
	for _, tr := range transitions {
		states = append(states, tr.State)
	}
	assert.Equal(t, []core.State{
		core.StateConfigured,
		core.StateSnapshotStarted,
		core.StateSnapshotDone,
		core.StateCheckpointed,
	}, states)
	assert.Equal(t, core.Marker("1001"), transitions[1].Marker)

	got, err := j.Latest(ctx, "oracle-job")
	require.NoError(t, err)
	assert.Equal(t, core.StateCheckpointed, got.State)
	assert.Equal(t, core.Marker("1001"), got.Marker)
	assert.Equal(t, core.Marker("1001"), got.CommitMarker)
}

func TestAdvance_EmptyMarkerKeepsStored(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)

	run := &core.HandoffRun{Job: "oracle-job"}
	require.NoError(t, j.Begin(ctx, run))
	require.NoError(t, j.Advance(ctx, run.ID, core.StateSnapshotStarted, "42"))
	require.NoError(t, j.Advance(ctx, run.ID, core.StateSnapshotDone, ""))

	got, err := j.Latest(ctx, "oracle-job")
	require.NoError(t, err)
	assert.Equal(t, core.Marker("42"), got.Marker)
	assert.True(t, got.CommitMarker.IsZero())
	_, ok := got.Checkpoint()
	assert.False(t, ok)
}

func TestAdvance_UnknownRun(t *testing.T) {
	j := newTestJournal(t)

	err := j.Advance(context.Background(), "missing", core.StateConfigured, "")
	assert.ErrorIs(t, err, core.ErrRunNotFound)

	transitions, err := j.Transitions(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, transitions)
}

// ──────────────────────────────────────────────────────────────────────────────
// Finish
// ──────────────────────────────────────────────────────────────────────────────

func TestFinish_Succeeded(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)

	run := &core.HandoffRun{Job: "oracle-job"}
	require.NoError(t, j.Begin(ctx, run))
	require.NoError(t, j.Finish(ctx, run.ID, core.OutcomeSucceeded, "worker-1", ""))

	got, err := j.Latest(ctx, "oracle-job")
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeSucceeded, got.Outcome)
	assert.Equal(t, "worker-1", got.Owner)
	require.NotNil(t, got.FinishedAt)
	assert.WithinDuration(t, time.Now(), *got.FinishedAt, time.Minute)
}

func TestFinish_SanitizesError(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)

	run := &core.HandoffRun{Job: "oracle-job"}
	require.NoError(t, j.Begin(ctx, run))

	long := "boom\x00" + strings.Repeat("x", 5000)
	require.NoError(t, j.Finish(ctx, run.ID, core.OutcomeFailed, "", long))

	got, err := j.Latest(ctx, "oracle-job")
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeFailed, got.Outcome)
	assert.NotContains(t, got.LastError, "\x00")
	assert.Len(t, got.LastError, 4096)
	assert.True(t, strings.HasSuffix(got.LastError, "..."))
}

func TestFinish_UnknownRun(t *testing.T) {
	j := newTestJournal(t)
	err := j.Finish(context.Background(), "missing", core.OutcomeFailed, "", "x")
	assert.ErrorIs(t, err, core.ErrRunNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Latest / Runs
// ──────────────────────────────────────────────────────────────────────────────

func TestLatest_NoRuns(t *testing.T) {
	j := newTestJournal(t)
	got, err := j.Latest(context.Background(), "oracle-job")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRuns_NewestFirstPerJob(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)

	base := time.Now().Add(-time.Hour)
	for i, job := range []core.JobName{"oracle-job", "other", "oracle-job", "oracle-job"} {
		run := &core.HandoffRun{
			ID:        string(rune('a'+i)) + "-run",
			Job:       job,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, j.Begin(ctx, run))
	}

	runs, err := j.Runs(ctx, "oracle-job", 0)
	require.NoError(t, err)
	ids := make([]string, 0, len(runs))
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"d-run", "c-run", "a-run"}, ids)

	limited, err := j.Runs(ctx, "oracle-job", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	latest, err := j.Latest(ctx, "oracle-job")
	require.NoError(t, err)
	assert.Equal(t, "d-run", latest.ID)
}
