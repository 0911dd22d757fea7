// Package runner provides the Runner type that drives one scheduled job.
//
// This package includes:
//   - Runner: the wait/execute/reschedule loop for a single job
//   - Start/Stop/StopAndWait lifecycle with idempotent-safe semantics
//   - Run hooks and an event stream for observing each tick
//
// Most users should import the root package github.com/schedkit/sched
// which re-exports Runner and its options.
package runner
