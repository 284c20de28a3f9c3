package coordinator

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/jdziat/simple-cdc-handoff/pkg/core"
	"github.com/jdziat/simple-cdc-handoff/pkg/metrics"
	"github.com/jdziat/simple-cdc-handoff/pkg/poll"
)

// Default poll bounds. Snapshots of large tables take hours; a claim
// should follow STREAM within minutes.
const (
	DefaultSnapshotTimeout = 12 * time.Hour
	DefaultClaimTimeout    = 10 * time.Minute
)

// MarkerPolicy decides when the consistency marker is captured.
type MarkerPolicy int

const (
	// MarkerBeforeLoad captures the marker immediately before LOAD is
	// requested. Changes committed during the snapshot are replayed by the
	// stream, so nothing is lost; some may be applied twice.
	MarkerBeforeLoad MarkerPolicy = iota

	// MarkerAfterLoad captures the marker once LOAD reported STOPPED. Only
	// safe when the control plane's LOAD reads a single consistent snapshot
	// and holds no changes back; otherwise changes made during the snapshot
	// are lost.
	MarkerAfterLoad
)

// ParseMarkerPolicy parses "before-load" or "after-load".
func ParseMarkerPolicy(s string) (MarkerPolicy, error) {
	switch s {
	case "", "before-load":
		return MarkerBeforeLoad, nil
	case "after-load":
		return MarkerAfterLoad, nil
	default:
		return MarkerBeforeLoad, fmt.Errorf("unknown marker policy %q", s)
	}
}

func (p MarkerPolicy) String() string {
	switch p {
	case MarkerAfterLoad:
		return "after-load"
	default:
		return "before-load"
	}
}

// Option configures a Coordinator.
type Option interface {
	ApplyCoordinator(*Coordinator)
}

type optionFunc func(*Coordinator)

func (f optionFunc) ApplyCoordinator(c *Coordinator) { f(c) }

// WithJournal records progress so runs can be inspected and resumed.
func WithJournal(j core.Journal) Option {
	return optionFunc(func(c *Coordinator) {
		c.journal = j
	})
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// WithMetrics records state, poll and run metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return optionFunc(func(c *Coordinator) {
		c.metrics = m
	})
}

// WithClock sets the clock used for timestamps, durations and both polls.
func WithClock(clock clockwork.Clock) Option {
	return optionFunc(func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	})
}

// SnapshotPoll configures the wait for LOAD to finish.
func SnapshotPoll(opts ...poll.Option) Option {
	return optionFunc(func(c *Coordinator) {
		c.snapshotOpts = append(c.snapshotOpts, opts...)
	})
}

// ClaimPoll configures the wait for a worker to claim the streaming job.
func ClaimPoll(opts ...poll.Option) Option {
	return optionFunc(func(c *Coordinator) {
		c.claimOpts = append(c.claimOpts, opts...)
	})
}

// WithMarkerPolicy sets when the marker is captured.
func WithMarkerPolicy(p MarkerPolicy) Option {
	return optionFunc(func(c *Coordinator) {
		c.policy = p
	})
}
