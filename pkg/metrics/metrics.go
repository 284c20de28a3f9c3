package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jdziat/simple-cdc-handoff/pkg/core"
	"github.com/jdziat/simple-cdc-handoff/pkg/poll"
)

const namespace = "handoff"

// Claim check outcomes.
const (
	ClaimHeld         = "held"
	ClaimOwnerChanged = "owner_changed"
	ClaimLost         = "lost"
	ClaimError        = "error"
)

// Metrics holds the handoff collectors.
type Metrics struct {
	registry *prometheus.Registry

	stateTransitions *prometheus.CounterVec
	stateDuration    *prometheus.HistogramVec
	polls            *prometheus.CounterVec
	runs             *prometheus.CounterVec
	claimChecks      *prometheus.CounterVec
}

// New creates the collectors and registers them on registry. A nil
// registry gets a fresh one with the Go and process collectors.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		registry: registry,
		stateTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_transitions_total",
				Help:      "The total number of handoff states completed.",
			}, []string{"state"}),
		stateDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "state_duration_seconds",
				Help:      "Time spent entering each handoff state.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 20), // 10ms~1.5h
			}, []string{"state"}),
		polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polls_total",
				Help:      "The total number of control plane polls by phase and outcome.",
			}, []string{"phase", "outcome"}),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "The total number of finished handoff runs by result.",
			}, []string{"result"}),
		claimChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "claim_checks_total",
				Help:      "The total number of claim watcher checks by outcome.",
			}, []string{"outcome"}),
	}

	registry.MustRegister(m.stateTransitions, m.stateDuration, m.polls, m.runs, m.claimChecks)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// StateCompleted counts a completed state and how long it took.
func (m *Metrics) StateCompleted(state core.State, took time.Duration) {
	if m == nil {
		return
	}
	m.stateTransitions.WithLabelValues(string(state)).Inc()
	m.stateDuration.WithLabelValues(string(state)).Observe(took.Seconds())
}

// ObservePoll implements poll.Observer.
func (m *Metrics) ObservePoll(phase string, outcome poll.Outcome) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(phase, string(outcome)).Inc()
}

// RunFinished counts a finished run.
func (m *Metrics) RunFinished(outcome core.RunOutcome) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(outcome)).Inc()
}

// ClaimChecked counts one claim watcher check.
func (m *Metrics) ClaimChecked(outcome string) {
	if m == nil {
		return
	}
	m.claimChecks.WithLabelValues(outcome).Inc()
}

var _ poll.Observer = (*Metrics)(nil)
