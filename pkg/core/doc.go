// Package core provides the fundamental types for the sched package.
//
// This package contains:
//   - Event types for observing schedule runs
//   - Report, the per-run outcome delivered to run-ended hooks
//   - Error values shared across the sched packages
//
// Most users should import the root package github.com/schedkit/sched
// instead of this package directly.
package core
