// Package coordinator sequences a CDC job from snapshot to streaming.
//
// A Coordinator drives one job through
//
//	NEW → CONFIGURED → SNAPSHOT_STARTED → SNAPSHOT_DONE → CHECKPOINTED → STREAM_STARTED → CLAIMED
//
// against a core.ControlPlane, capturing the consistency marker from a
// core.MarkerSource and writing it as the stream checkpoint before STREAM
// is requested. Every failure is reported as a *core.StateError naming
// the last completed state.
//
// With a core.Journal configured, progress is recorded per state and an
// interrupted handoff that already wrote its checkpoint can be continued
// with Resume.
package coordinator
