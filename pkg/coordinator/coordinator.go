package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/jdziat/simple-cdc-handoff/pkg/core"
	"github.com/jdziat/simple-cdc-handoff/pkg/metrics"
	"github.com/jdziat/simple-cdc-handoff/pkg/poll"
	"github.com/jdziat/simple-cdc-handoff/pkg/security"
)

// Coordinator runs handoffs. It is safe to share between goroutines, but
// running two handoffs for the same job at once is the caller's mistake.
type Coordinator struct {
	cp      core.ControlPlane
	markers core.MarkerSource
	journal core.Journal
	logger  *zap.Logger
	metrics *metrics.Metrics
	clock   clockwork.Clock
	policy  MarkerPolicy

	snapshotOpts []poll.Option
	claimOpts    []poll.Option
	snapshotPoll *poll.Loop
	claimPoll    *poll.Loop

	mu        sync.RWMutex
	eventSubs []chan core.Event
}

// Result describes a completed handoff.
type Result struct {
	RunID    string
	Job      core.JobName
	Marker   core.Marker
	Owner    string
	Duration time.Duration
	// Confirmed is true when reading the checkpoint back returned what was written.
	Confirmed bool
}

// New creates a Coordinator driving cp with markers read from markers.
func New(cp core.ControlPlane, markers core.MarkerSource, opts ...Option) *Coordinator {
	c := &Coordinator{
		cp:      cp,
		markers: markers,
		logger:  zap.NewNop(),
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt.ApplyCoordinator(c)
	}

	c.snapshotPoll = c.newLoop("snapshot", DefaultSnapshotTimeout, c.snapshotOpts)
	c.claimPoll = c.newLoop("claim", DefaultClaimTimeout, c.claimOpts)
	return c
}

func (c *Coordinator) newLoop(phase string, timeout time.Duration, opts []poll.Option) *poll.Loop {
	all := []poll.Option{poll.WithClock(c.clock), poll.WithLogger(c.logger), poll.Timeout(timeout)}
	if c.metrics != nil {
		all = append(all, poll.WithObserver(c.metrics))
	}
	all = append(all, opts...)
	return poll.New(append(all, poll.Phase(phase))...)
}

// run is the in-memory progress of one handoff.
type run struct {
	id        string
	job       core.JobName
	completed core.State
	marker    core.Marker
	owner     string
	confirmed bool
	started   time.Time
	logger    *zap.Logger
}

type step struct {
	state core.State
	fn    func(ctx context.Context, r *run) error
}

// Run performs a full handoff of job, submitting cfg as its configuration.
func (c *Coordinator) Run(ctx context.Context, job core.JobName, cfg core.JobConfiguration) (*Result, error) {
	if err := security.ValidateJobName(string(job)); err != nil {
		return nil, err
	}

	r := c.newRun(job)
	c.begin(ctx, r, &core.HandoffRun{ID: r.id, Job: job})
	r.logger.Info("starting handoff",
		zap.String("config_file", cfg.FileName),
		zap.Stringer("marker_policy", c.policy))

	return c.drive(ctx, r, cfg)
}

// Resume continues the latest journaled run of job. Only runs that wrote
// their checkpoint can be resumed: STREAM is requested if it was not yet,
// then the claim is awaited.
func (c *Coordinator) Resume(ctx context.Context, job core.JobName) (*Result, error) {
	if err := security.ValidateJobName(string(job)); err != nil {
		return nil, err
	}
	if c.journal == nil {
		return nil, fmt.Errorf("%w: no journal configured", core.ErrNotResumable)
	}

	prev, err := c.journal.Latest(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("load latest run of %s: %w", job, err)
	}
	if prev == nil {
		return nil, fmt.Errorf("%w: no recorded run for %s", core.ErrNotResumable, job)
	}
	if prev.State.Terminal() {
		return nil, fmt.Errorf("%w: run %s already completed", core.ErrNotResumable, prev.ID)
	}
	cp, ok := prev.Checkpoint()
	if !ok {
		return nil, fmt.Errorf("%w: run %s stopped after %s: %s",
			core.ErrNotResumable, prev.ID, prev.State, prev.State.Recovery())
	}

	r := c.newRun(job)
	r.completed = prev.State
	r.marker = cp.Marker
	c.begin(ctx, r, &core.HandoffRun{
		ID:           r.id,
		Job:          job,
		State:        prev.State,
		Marker:       cp.Marker,
		CommitMarker: cp.CommitMarker,
		ResumedFrom:  prev.ID,
	})
	r.logger.Info("resuming handoff",
		zap.String("resumed_from", prev.ID),
		zap.Stringer("state", prev.State),
		zap.Stringer("marker", cp.Marker))

	return c.drive(ctx, r, core.JobConfiguration{})
}

func (c *Coordinator) newRun(job core.JobName) *run {
	id := uuid.New().String()
	return &run{
		id:        id,
		job:       job,
		completed: core.StateNew,
		started:   c.clock.Now(),
		logger:    c.logger.With(zap.String("run_id", id), zap.Stringer("job", job)),
	}
}

// drive runs every step after r.completed.
func (c *Coordinator) drive(ctx context.Context, r *run, cfg core.JobConfiguration) (*Result, error) {
	steps := []step{
		{core.StateConfigured, func(ctx context.Context, r *run) error { return c.configure(ctx, r, cfg) }},
		{core.StateSnapshotStarted, c.startSnapshot},
		{core.StateSnapshotDone, c.awaitSnapshot},
		{core.StateCheckpointed, c.checkpoint},
		{core.StateStreamStarted, c.startStream},
		{core.StateClaimed, c.awaitClaim},
	}

	for _, s := range steps {
		if r.completed.AtLeast(s.state) {
			continue
		}
		if err := c.enter(ctx, r, s); err != nil {
			return nil, c.fail(r, err)
		}
	}
	return c.succeed(r), nil
}

// enter runs one step and records its completion.
func (c *Coordinator) enter(ctx context.Context, r *run, s step) error {
	began := c.clock.Now()
	r.logger.Debug("entering state", zap.Stringer("state", s.state))

	if err := s.fn(ctx, r); err != nil {
		// A step aborted by the run context is an interruption even when
		// the failing call reported it as its own error.
		if ctx.Err() != nil && !core.IsInterrupted(err) {
			err = fmt.Errorf("%w: %w", core.ErrInterrupted, err)
		}
		return &core.StateError{Job: r.job, Completed: r.completed, Attempted: s.state, Err: err}
	}

	r.completed = s.state
	c.metrics.StateCompleted(s.state, c.clock.Since(began))
	if c.journal != nil {
		if err := c.journal.Advance(context.WithoutCancel(ctx), r.id, s.state, r.marker); err != nil {
			r.logger.Warn("journal advance failed", zap.Stringer("state", s.state), zap.Error(err))
		}
	}
	r.logger.Info("state completed", zap.Stringer("state", s.state), zap.Stringer("marker", r.marker))
	c.Emit(&core.StateEntered{
		RunID:     r.id,
		Job:       r.job,
		State:     s.state,
		Marker:    r.marker,
		Timestamp: c.clock.Now(),
	})
	return nil
}

func (c *Coordinator) configure(ctx context.Context, r *run, cfg core.JobConfiguration) error {
	return c.cp.SubmitConfiguration(ctx, r.job, cfg)
}

func (c *Coordinator) startSnapshot(ctx context.Context, r *run) error {
	if c.policy == MarkerBeforeLoad {
		if err := c.captureMarker(ctx, r); err != nil {
			return err
		}
	}
	return c.cp.RequestTransition(ctx, r.job, core.ModeLoad)
}

func (c *Coordinator) awaitSnapshot(ctx context.Context, r *run) error {
	state, err := poll.Until(ctx, c.snapshotPoll, c.jobState(r.job),
		func(s core.JobState) bool { return s.Status == core.StatusStopped },
		func(s core.JobState) bool { return s.Status == core.StatusFailed })
	if err != nil {
		return err
	}
	r.logger.Info("snapshot finished", zap.Stringer("status", state.Status))

	if c.policy == MarkerAfterLoad {
		return c.captureMarker(ctx, r)
	}
	return nil
}

func (c *Coordinator) checkpoint(ctx context.Context, r *run) error {
	written := core.BootstrapCheckpoint(r.marker)
	if err := c.cp.WriteCheckpoint(ctx, r.job, written); err != nil {
		return err
	}
	c.confirmCheckpoint(ctx, r, written)
	return nil
}

// confirmCheckpoint reads the checkpoint back. The outcome is a diagnostic
// only and never fails the handoff.
func (c *Coordinator) confirmCheckpoint(ctx context.Context, r *run, written core.Checkpoint) {
	ev := &core.CheckpointConfirmed{RunID: r.id, Job: r.job, Written: written}

	stored, err := c.cp.ReadCheckpoint(ctx, r.job)
	switch {
	case err != nil:
		ev.Err = err
		r.logger.Warn("checkpoint read-back failed", zap.Error(err))
	case stored.Marker.Equal(written.Marker) && stored.CommitMarker.Equal(written.CommitMarker):
		ev.Stored = stored
		ev.Matches = true
		r.logger.Info("checkpoint confirmed",
			zap.Stringer("scn", stored.Marker),
			zap.Stringer("commit_scn", stored.CommitMarker))
	default:
		ev.Stored = stored
		r.logger.Warn("stored checkpoint differs from written",
			zap.Stringer("written_scn", written.Marker),
			zap.Stringer("stored_scn", stored.Marker),
			zap.Stringer("stored_commit_scn", stored.CommitMarker),
			zap.Bool("stored_behind", stored.Marker.Before(written.Marker)))
	}

	r.confirmed = ev.Matches
	ev.Timestamp = c.clock.Now()
	c.Emit(ev)
}

func (c *Coordinator) startStream(ctx context.Context, r *run) error {
	return c.cp.RequestTransition(ctx, r.job, core.ModeStream)
}

func (c *Coordinator) awaitClaim(ctx context.Context, r *run) error {
	state, err := poll.Until(ctx, c.claimPoll, c.jobState(r.job),
		core.JobState.Claimed,
		func(s core.JobState) bool { return s.Status == core.StatusFailed })
	if err != nil {
		return err
	}
	r.owner = state.Owner
	return nil
}

func (c *Coordinator) captureMarker(ctx context.Context, r *run) error {
	m, err := c.markers.CurrentMarker(ctx)
	if err != nil {
		return err
	}
	if m.IsZero() {
		return fmt.Errorf("%w: empty marker", core.ErrSourceUnavailable)
	}
	if m.Equal("0") {
		return fmt.Errorf("%w: marker at position zero", core.ErrSourceUnavailable)
	}
	r.marker = m
	r.logger.Info("captured consistency marker", zap.Stringer("marker", m))
	return nil
}

// jobState queries the current status of job. A job missing from the
// listing is reported as StatusUnknown.
func (c *Coordinator) jobState(job core.JobName) poll.Query[core.JobState] {
	return func(ctx context.Context) (core.JobState, error) {
		states, err := c.cp.ListJobs(ctx)
		if err != nil {
			return core.JobState{}, err
		}
		s, ok := core.FindJob(states, job)
		if !ok {
			return core.JobState{Name: job, Status: core.StatusUnknown}, nil
		}
		return s, nil
	}
}

// begin journals a new run. Journal failures are logged and the handoff
// continues without resume support for this run.
func (c *Coordinator) begin(ctx context.Context, r *run, hr *core.HandoffRun) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Begin(ctx, hr); err != nil {
		r.logger.Warn("journal begin failed", zap.Error(err))
	}
}

func (c *Coordinator) succeed(r *run) *Result {
	res := &Result{
		RunID:     r.id,
		Job:       r.job,
		Marker:    r.marker,
		Owner:     r.owner,
		Duration:  c.clock.Since(r.started),
		Confirmed: r.confirmed,
	}

	c.finish(r, core.OutcomeSucceeded, r.owner, "")
	r.logger.Info("handoff complete",
		zap.String("owner", res.Owner),
		zap.Stringer("marker", res.Marker),
		zap.Duration("duration", res.Duration))
	c.Emit(&core.HandoffCompleted{
		RunID:     r.id,
		Job:       r.job,
		Owner:     r.owner,
		Duration:  res.Duration,
		Timestamp: c.clock.Now(),
	})
	return res
}

func (c *Coordinator) fail(r *run, err error) error {
	outcome := core.OutcomeFailed
	var se *core.StateError
	if errors.As(err, &se) && se.Resumable() {
		outcome = core.OutcomeInterrupted
	}

	c.finish(r, outcome, "", err.Error())
	fields := []zap.Field{zap.Stringer("completed", r.completed), zap.Error(err)}
	if se != nil {
		fields = append(fields, zap.Stringer("attempted", se.Attempted), zap.String("recovery", se.Recovery()))
	}
	if outcome == core.OutcomeInterrupted {
		r.logger.Warn("handoff interrupted", fields...)
	} else {
		r.logger.Error("handoff failed", fields...)
	}
	c.Emit(&core.HandoffFailed{
		RunID:     r.id,
		Job:       r.job,
		Completed: r.completed,
		Error:     err,
		Timestamp: c.clock.Now(),
	})
	return err
}

func (c *Coordinator) finish(r *run, outcome core.RunOutcome, owner, errMsg string) {
	c.metrics.RunFinished(outcome)
	if c.journal == nil {
		return
	}
	// The run context may already be cancelled; the outcome is still recorded.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.journal.Finish(ctx, r.id, outcome, owner, errMsg); err != nil {
		r.logger.Warn("journal finish failed", zap.Error(err))
	}
}
