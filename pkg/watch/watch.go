package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/jdziat/simple-cdc-handoff/pkg/core"
	"github.com/jdziat/simple-cdc-handoff/pkg/metrics"
)

// Report is the result of one check.
type Report struct {
	Job       core.JobName
	Status    core.JobStatus
	Owner     string
	Previous  string // owner seen by the previous check, if any
	Outcome   string // one of the metrics.Claim* outcomes
	CheckedAt time.Time
}

// Watcher periodically checks that a job is claimed.
type Watcher struct {
	cp       core.ControlPlane
	job      core.JobName
	expr     string
	schedule cron.Schedule
	clock    clockwork.Clock
	logger   *zap.Logger
	metrics  *metrics.Metrics
	onReport func(Report)

	mu        sync.Mutex
	lastOwner string
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New creates a Watcher for job.
func New(cp core.ControlPlane, job core.JobName, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		cp:     cp,
		job:    job,
		expr:   DefaultSchedule,
		clock:  clockwork.NewRealClock(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt.ApplyWatcher(w)
	}

	schedule, err := parser.Parse(w.expr)
	if err != nil {
		return nil, fmt.Errorf("watch: invalid schedule %q: %w", w.expr, err)
	}
	w.schedule = schedule
	w.logger = w.logger.With(zap.Stringer("job", job))
	return w, nil
}

// Check lists jobs once and classifies the claim.
func (w *Watcher) Check(ctx context.Context) (Report, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	r := Report{Job: w.job, Previous: w.lastOwner, CheckedAt: w.clock.Now()}

	states, err := w.cp.ListJobs(ctx)
	if err != nil {
		r.Outcome = metrics.ClaimError
		w.metrics.ClaimChecked(r.Outcome)
		w.logger.Warn("claim check failed", zap.Error(err))
		return r, err
	}

	s, ok := core.FindJob(states, w.job)
	if !ok {
		s = core.JobState{Name: w.job, Status: core.StatusUnknown}
	}
	r.Status = s.Status
	r.Owner = s.Owner

	switch {
	case !s.Claimed():
		r.Outcome = metrics.ClaimLost
		w.logger.Error("job is not claimed",
			zap.Stringer("status", s.Status),
			zap.String("previous_owner", w.lastOwner))
		w.lastOwner = ""
	case w.lastOwner != "" && w.lastOwner != s.Owner:
		r.Outcome = metrics.ClaimOwnerChanged
		w.logger.Warn("job owner changed",
			zap.String("previous_owner", w.lastOwner),
			zap.String("owner", s.Owner))
		w.lastOwner = s.Owner
	default:
		r.Outcome = metrics.ClaimHeld
		w.logger.Debug("job claimed", zap.String("owner", s.Owner))
		w.lastOwner = s.Owner
	}

	w.metrics.ClaimChecked(r.Outcome)
	return r, nil
}

// Run checks on schedule until ctx is done. Check errors are logged and
// never stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watching claim", zap.String("schedule", w.expr))
	for {
		now := w.clock.Now()
		wait := w.schedule.Next(now).Sub(now)

		select {
		case <-ctx.Done():
			return nil
		case <-w.clock.After(wait):
		}

		r, err := w.Check(ctx)
		if err != nil && ctx.Err() != nil {
			return nil
		}
		if w.onReport != nil {
			w.onReport(r)
		}
	}
}
