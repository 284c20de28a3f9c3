package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/jdziat/simple-cdc-handoff/pkg/core"
)

// Outcome classifies a single query.
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeFailed  Outcome = "failed"
	OutcomePending Outcome = "pending"
	OutcomeError   Outcome = "error"
)

// Observer is notified after every query.
type Observer interface {
	ObservePoll(phase string, outcome Outcome)
}

// Query reads the current observable state.
type Query[T any] func(ctx context.Context) (T, error)

// Loop holds the timing configuration of a poll.
type Loop struct {
	interval time.Duration
	timeout  time.Duration
	clock    clockwork.Clock
	logger   *zap.Logger
	phase    string
	observer Observer
}

// New creates a Loop with a 5s interval, no timeout and the real clock.
func New(opts ...Option) *Loop {
	l := &Loop{
		interval: DefaultInterval,
		clock:    clockwork.NewRealClock(),
		logger:   zap.NewNop(),
		phase:    "poll",
	}
	for _, opt := range opts {
		opt.ApplyLoop(l)
	}
	return l
}

// With returns a copy of l with opts applied.
func (l *Loop) With(opts ...Option) *Loop {
	c := *l
	for _, opt := range opts {
		opt.ApplyLoop(&c)
	}
	return &c
}

// Interval returns the wait between queries.
func (l *Loop) Interval() time.Duration { return l.interval }

// Timeout returns the overall bound, zero when unbounded.
func (l *Loop) Timeout() time.Duration { return l.timeout }

// Clock returns the loop's clock.
func (l *Loop) Clock() clockwork.Clock { return l.clock }

// Until polls query until done reports true.
//
// If failed reports true, Until returns the observed value together with
// core.ErrJobFailed without waiting another interval. Query errors are
// logged and retried on the next interval. Cancellation returns
// core.ErrPollCancelled and an elapsed timeout core.ErrPollTimeout.
func Until[T any](ctx context.Context, l *Loop, query Query[T], done, failed func(T) bool) (T, error) {
	var zero T
	if l == nil {
		l = New()
	}

	var deadline time.Time
	if l.timeout > 0 {
		deadline = l.clock.Now().Add(l.timeout)
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, cancelled(err)
		}

		v, err := query(ctx)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, cancelled(ctxErr)
			}
			l.observe(OutcomeError)
			l.logger.Warn("poll query failed, retrying",
				zap.String("phase", l.phase),
				zap.Int("attempt", attempt),
				zap.Duration("interval", l.interval),
				zap.Error(err))
		case failed != nil && failed(v):
			l.observe(OutcomeFailed)
			return v, core.ErrJobFailed
		case done(v):
			l.observe(OutcomeDone)
			return v, nil
		default:
			l.observe(OutcomePending)
			l.logger.Debug("poll condition not met",
				zap.String("phase", l.phase),
				zap.Int("attempt", attempt),
				zap.Any("observed", v))
		}

		wait := l.interval
		lastWait := false
		if !deadline.IsZero() {
			remaining := deadline.Sub(l.clock.Now())
			if remaining <= 0 {
				return zero, l.timedOut()
			}
			if remaining < wait {
				wait = remaining
				lastWait = true
			}
		}

		select {
		case <-ctx.Done():
			return zero, cancelled(ctx.Err())
		case <-l.clock.After(wait):
			if lastWait {
				return zero, l.timedOut()
			}
		}
	}
}

func (l *Loop) observe(o Outcome) {
	if l.observer != nil {
		l.observer.ObservePoll(l.phase, o)
	}
}

func (l *Loop) timedOut() error {
	return fmt.Errorf("%w: %s poll exceeded %s", core.ErrPollTimeout, l.phase, l.timeout)
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", core.ErrPollCancelled, err)
}
