package poll

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultInterval is the wait between two queries.
const DefaultInterval = 5 * time.Second

// Option configures a Loop.
type Option interface {
	ApplyLoop(*Loop)
}

type optionFunc func(*Loop)

func (f optionFunc) ApplyLoop(l *Loop) { f(l) }

// Interval sets the wait between queries. Non-positive values keep the default.
func Interval(d time.Duration) Option {
	return optionFunc(func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	})
}

// Timeout bounds the whole poll. Zero means the poll only ends with its context.
func Timeout(d time.Duration) Option {
	return optionFunc(func(l *Loop) {
		if d >= 0 {
			l.timeout = d
		}
	})
}

// WithClock sets the clock used for waits and deadlines.
func WithClock(c clockwork.Clock) Option {
	return optionFunc(func(l *Loop) {
		if c != nil {
			l.clock = c
		}
	})
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	})
}

// Phase names the poll in logs and metrics, e.g. "snapshot" or "claim".
func Phase(name string) Option {
	return optionFunc(func(l *Loop) {
		l.phase = name
	})
}

// WithObserver receives the outcome of every query.
func WithObserver(o Observer) Option {
	return optionFunc(func(l *Loop) {
		l.observer = o
	})
}
