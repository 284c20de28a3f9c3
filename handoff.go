// Package handoff bootstraps change-data-capture jobs from a one-time
// snapshot into continuous streaming without losing changes.
//
// This is the main package users should import. It re-exports the public
// types of the pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	cp := handoff.NewControlPlane(handoff.ControlPlaneURL("cp.internal", 8282))
//	markers, _ := handoff.NewMarkerSource(handoff.DialectOracle, dsn)
//	c := handoff.New(cp, markers)
//
//	res, err := c.Run(ctx, "oracle-job", handoff.JobConfiguration{
//	    FileName: "redis_connect_oracle_CHINOOK.json",
//	    Payload:  payload,
//	})
package handoff

import (
	"context"
	"time"

	"github.com/jdziat/simple-cdc-handoff/pkg/controlplane"
	"github.com/jdziat/simple-cdc-handoff/pkg/coordinator"
	"github.com/jdziat/simple-cdc-handoff/pkg/core"
	"github.com/jdziat/simple-cdc-handoff/pkg/marker"
	"github.com/jdziat/simple-cdc-handoff/pkg/metrics"
	"github.com/jdziat/simple-cdc-handoff/pkg/poll"
	"github.com/jdziat/simple-cdc-handoff/pkg/security"
	"github.com/jdziat/simple-cdc-handoff/pkg/storage"
	"github.com/jdziat/simple-cdc-handoff/pkg/watch"
)

// Type aliases
type (
	// JobName identifies a job in the control plane.
	JobName = core.JobName

	// JobStatus is the control plane's view of a job.
	JobStatus = core.JobStatus

	// JobState is one entry of a job listing.
	JobState = core.JobState

	// JobConfiguration is the payload uploaded once per job.
	JobConfiguration = core.JobConfiguration

	// Marker is a position in the source database's change history.
	Marker = core.Marker

	// Checkpoint is the stream resume position stored in the control plane.
	Checkpoint = core.Checkpoint

	// State is a step of the handoff state machine.
	State = core.State

	// StateError reports a handoff that stopped before CLAIMED.
	StateError = core.StateError

	// ResponseError is a non-success answer from the control plane.
	ResponseError = core.ResponseError

	// ControlPlane is the job management API the handoff drives.
	ControlPlane = core.ControlPlane

	// MarkerSource reads the current consistency marker.
	MarkerSource = core.MarkerSource

	// Journal records handoff runs.
	Journal = core.Journal

	// HandoffRun is a journaled handoff attempt.
	HandoffRun = core.HandoffRun

	// Event is the interface for all handoff events.
	Event = core.Event

	// StateEntered is emitted after each completed state.
	StateEntered = core.StateEntered

	// CheckpointConfirmed is emitted after the checkpoint read-back.
	CheckpointConfirmed = core.CheckpointConfirmed

	// HandoffCompleted is emitted when a worker claimed the job.
	HandoffCompleted = core.HandoffCompleted

	// HandoffFailed is emitted when a handoff stops early.
	HandoffFailed = core.HandoffFailed

	// Coordinator drives the handoff state machine.
	Coordinator = coordinator.Coordinator

	// Result describes a completed handoff.
	Result = coordinator.Result

	// Option configures a Coordinator.
	Option = coordinator.Option

	// MarkerPolicy selects when the marker is captured.
	MarkerPolicy = coordinator.MarkerPolicy

	// ControlPlaneClient is the HTTP control plane client.
	ControlPlaneClient = controlplane.Client

	// ClientOption configures a ControlPlaneClient.
	ClientOption = controlplane.Option

	// Dialect identifies a source database flavour.
	Dialect = marker.Dialect

	// SQLMarkerSource reads markers over database/sql.
	SQLMarkerSource = marker.SQLSource

	// MarkerOption configures a SQLMarkerSource.
	MarkerOption = marker.Option

	// PollOption configures a poll loop.
	PollOption = poll.Option

	// GormJournal implements Journal using GORM.
	GormJournal = storage.GormJournal

	// Metrics holds the Prometheus collectors.
	Metrics = metrics.Metrics

	// Watcher re-checks a job's claim on a schedule.
	Watcher = watch.Watcher

	// WatchOption configures a Watcher.
	WatchOption = watch.Option

	// WatchReport is the outcome of one claim check.
	WatchReport = watch.Report
)

// Handoff states
const (
	StateNew             = core.StateNew
	StateConfigured      = core.StateConfigured
	StateSnapshotStarted = core.StateSnapshotStarted
	StateSnapshotDone    = core.StateSnapshotDone
	StateCheckpointed    = core.StateCheckpointed
	StateStreamStarted   = core.StateStreamStarted
	StateClaimed         = core.StateClaimed
)

// Status constants
const (
	StatusUnknown = core.StatusUnknown
	StatusRunning = core.StatusRunning
	StatusStopped = core.StatusStopped
	StatusFailed  = core.StatusFailed
	StatusClaimed = core.StatusClaimed
)

// Dialects
const (
	DialectOracle   = marker.DialectOracle
	DialectPostgres = marker.DialectPostgres
	DialectTiDB     = marker.DialectTiDB
	DialectMySQL    = marker.DialectMySQL
	DialectSQLite   = marker.DialectSQLite
)

// Marker policies
const (
	MarkerBeforeLoad = coordinator.MarkerBeforeLoad
	MarkerAfterLoad  = coordinator.MarkerAfterLoad
)

// Security limits
const (
	MaxJobNameLength      = security.MaxJobNameLength
	MaxErrorMessageLength = security.MaxErrorMessageLength
	MaxRetries            = security.MaxRetries
)

// Error variables
var (
	ErrConfigRejected          = core.ErrConfigRejected
	ErrTransitionRejected      = core.ErrTransitionRejected
	ErrControlPlaneUnreachable = core.ErrControlPlaneUnreachable
	ErrJobFailed               = core.ErrJobFailed
	ErrCheckpointWriteFailed   = core.ErrCheckpointWriteFailed
	ErrSourceUnavailable       = core.ErrSourceUnavailable
	ErrPollCancelled           = core.ErrPollCancelled
	ErrPollTimeout             = core.ErrPollTimeout
	ErrInterrupted             = core.ErrInterrupted
	ErrNotResumable            = core.ErrNotResumable
	ErrInvalidJobName          = core.ErrInvalidJobName
	ErrJobNameTooLong          = core.ErrJobNameTooLong
)

// Default values
const (
	DefaultSnapshotTimeout = coordinator.DefaultSnapshotTimeout
	DefaultClaimTimeout    = coordinator.DefaultClaimTimeout
)

// New creates a Coordinator driving cp with markers read from markers.
func New(cp ControlPlane, markers MarkerSource, opts ...Option) *Coordinator {
	return coordinator.New(cp, markers, opts...)
}

// ControlPlaneURL builds the API root of a control plane on host:port.
func ControlPlaneURL(host string, port int) string {
	return controlplane.BaseURL(host, port, controlplane.DefaultBasePath)
}

// NewControlPlane creates an HTTP control plane client.
func NewControlPlane(baseURL string, opts ...ClientOption) *ControlPlaneClient {
	return controlplane.NewClient(baseURL, opts...)
}

// NewMarkerSource creates a marker source for dialect.
func NewMarkerSource(dialect Dialect, dsn string, opts ...MarkerOption) (*SQLMarkerSource, error) {
	return marker.NewSQLSource(dialect, dsn, opts...)
}

// MarkerQuery overrides the dialect's marker query.
func MarkerQuery(q string) MarkerOption {
	return marker.Query(q)
}

// OpenJournal opens and migrates a journal at dsn, a SQLite path or a
// postgres:// URL.
func OpenJournal(ctx context.Context, dsn string) (*GormJournal, error) {
	j, err := storage.OpenJournal(dsn)
	if err != nil {
		return nil, err
	}
	if err := j.Migrate(ctx); err != nil {
		if sqlDB, dbErr := j.DB().DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	return j, nil
}

// NewWatcher creates a claim watcher for job.
func NewWatcher(cp ControlPlane, job JobName, opts ...WatchOption) (*Watcher, error) {
	return watch.New(cp, job, opts...)
}

// IsInterrupted reports whether err came from cancellation or a timeout.
// Interrupted handoffs that wrote their checkpoint can be resumed.
func IsInterrupted(err error) bool {
	return core.IsInterrupted(err)
}

// ValidateJobName validates a job name.
func ValidateJobName(name string) error {
	return security.ValidateJobName(name)
}

// Coordinator option functions

// WithJournal records every run in j.
func WithJournal(j Journal) Option {
	return coordinator.WithJournal(j)
}

// WithMetrics records handoff metrics in m.
func WithMetrics(m *Metrics) Option {
	return coordinator.WithMetrics(m)
}

// WithMarkerPolicy selects when the marker is captured.
func WithMarkerPolicy(p MarkerPolicy) Option {
	return coordinator.WithMarkerPolicy(p)
}

// SnapshotPoll configures the wait for LOAD to finish.
func SnapshotPoll(opts ...PollOption) Option {
	return coordinator.SnapshotPoll(opts...)
}

// ClaimPoll configures the wait for a worker to claim the job.
func ClaimPoll(opts ...PollOption) Option {
	return coordinator.ClaimPoll(opts...)
}

// Poll option functions

// PollInterval sets the wait between two status queries.
func PollInterval(d time.Duration) PollOption {
	return poll.Interval(d)
}

// PollTimeout bounds the wait. Zero waits until the context ends.
func PollTimeout(d time.Duration) PollOption {
	return poll.Timeout(d)
}
