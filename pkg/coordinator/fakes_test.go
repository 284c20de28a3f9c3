package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/simple-cdc-handoff/pkg/core"
	"github.com/jdziat/simple-cdc-handoff/pkg/poll"
	"github.com/jdziat/simple-cdc-handoff/pkg/storage"
)

// recorder keeps the order of calls across the fake control plane and the
// fake marker source.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) record(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *recorder) count(call string) int {
	n := 0
	for _, c := range r.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

// fakeControlPlane replays job listings in order, repeating the last one.
type fakeControlPlane struct {
	rec *recorder

	mu          sync.Mutex
	listings    []listing
	listed      int
	onList      func(n int)
	onStream    func()
	configErr   error
	loadErr     error
	streamErr   error
	writeErr    error
	readErr     error
	storedDelta core.Marker
	stored      *core.Checkpoint
	written     []core.Checkpoint
	uploaded    []core.JobConfiguration
}

type listing struct {
	states []core.JobState
	err    error
}

func newFakeControlPlane(rec *recorder, listings ...listing) *fakeControlPlane {
	return &fakeControlPlane{rec: rec, listings: listings}
}

func jobs(states ...core.JobState) listing {
	return listing{states: states}
}

func listErr(err error) listing {
	return listing{err: err}
}

func status(job core.JobName, s core.JobStatus) core.JobState {
	return core.JobState{Name: job, Status: s}
}

func claimed(job core.JobName, owner string) core.JobState {
	return core.JobState{Name: job, Status: core.StatusClaimed, Owner: owner}
}

func (f *fakeControlPlane) SubmitConfiguration(_ context.Context, _ core.JobName, cfg core.JobConfiguration) error {
	f.rec.record("config")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = append(f.uploaded, cfg)
	return f.configErr
}

func (f *fakeControlPlane) RequestTransition(_ context.Context, _ core.JobName, mode core.Mode) error {
	f.rec.record("transition:" + string(mode))
	if mode == core.ModeLoad {
		return f.loadErr
	}
	if f.onStream != nil {
		f.onStream()
	}
	return f.streamErr
}

func (f *fakeControlPlane) ListJobs(context.Context) ([]core.JobState, error) {
	f.rec.record("list")
	f.mu.Lock()
	i := f.listed
	f.listed++
	onList := f.onList
	var l listing
	switch {
	case len(f.listings) == 0:
	case i < len(f.listings):
		l = f.listings[i]
	default:
		l = f.listings[len(f.listings)-1]
	}
	f.mu.Unlock()

	if onList != nil {
		onList(i + 1)
	}
	return l.states, l.err
}

func (f *fakeControlPlane) WriteCheckpoint(_ context.Context, _ core.JobName, cp core.Checkpoint) error {
	f.rec.record("checkpoint:write")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, cp)
	stored := cp
	if !f.storedDelta.IsZero() {
		stored.Marker = f.storedDelta
	}
	f.stored = &stored
	return nil
}

func (f *fakeControlPlane) ReadCheckpoint(context.Context, core.JobName) (core.Checkpoint, error) {
	f.rec.record("checkpoint:read")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return core.Checkpoint{}, f.readErr
	}
	if f.stored == nil {
		return core.Checkpoint{}, nil
	}
	return *f.stored, nil
}

func (f *fakeControlPlane) Written() []core.Checkpoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Checkpoint(nil), f.written...)
}

type fakeMarkers struct {
	rec    *recorder
	marker core.Marker
	err    error
}

func (m *fakeMarkers) CurrentMarker(context.Context) (core.Marker, error) {
	m.rec.record("marker")
	return m.marker, m.err
}

// fastPolls keeps both poll intervals short on the real clock.
func fastPolls() []Option {
	return []Option{
		SnapshotPoll(poll.Interval(time.Millisecond)),
		ClaimPoll(poll.Interval(time.Millisecond)),
	}
}

// newTestJournal opens a migrated in-memory SQLite journal.
func newTestJournal(t *testing.T) *storage.GormJournal {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "open in-memory sqlite")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	j := storage.NewGormJournal(db)
	require.NoError(t, j.Migrate(context.Background()), "migrate schema")
	return j
}
