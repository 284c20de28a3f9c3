package watch

import (
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/jdziat/simple-cdc-handoff/pkg/metrics"
)

// DefaultSchedule checks the claim twice a minute.
const DefaultSchedule = "@every 30s"

// Option configures a Watcher.
type Option interface {
	ApplyWatcher(*Watcher)
}

type optionFunc func(*Watcher)

func (f optionFunc) ApplyWatcher(w *Watcher) { f(w) }

// Schedule sets the cron expression or descriptor, e.g. "*/5 * * * *" or "@every 1m".
func Schedule(expr string) Option {
	return optionFunc(func(w *Watcher) {
		if expr != "" {
			w.expr = expr
		}
	})
}

// WithClock sets the clock the schedule runs on.
func WithClock(c clockwork.Clock) Option {
	return optionFunc(func(w *Watcher) {
		if c != nil {
			w.clock = c
		}
	})
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	})
}

// WithMetrics counts every check by outcome.
func WithMetrics(m *metrics.Metrics) Option {
	return optionFunc(func(w *Watcher) {
		w.metrics = m
	})
}

// OnReport is called after every scheduled check.
func OnReport(fn func(Report)) Option {
	return optionFunc(func(w *Watcher) {
		w.onReport = fn
	})
}
