// Package poll provides a fixed-interval, cancellable polling primitive for
// observing state that the control plane only exposes through queries.
//
// A poll issues its query immediately and then exactly once per interval
// until the done condition holds, the failed condition holds, the optional
// timeout elapses, or the context is cancelled. Query errors are treated as
// transient and never end the poll on their own.
//
// Time is read from an injectable clockwork.Clock so tests can drive the
// loop with a fake clock instead of sleeping.
package poll
