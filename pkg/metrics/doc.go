// Package metrics exposes Prometheus collectors for handoff runs.
//
// A nil *Metrics is valid and records nothing, so components take it as
// an optional dependency.
package metrics
