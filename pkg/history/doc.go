// Package history provides persistent run-history recording.
//
// This package includes:
//   - Run, the per-tick outcome model with GORM annotations
//   - GormStore, a GORM-backed store with Record/Recent/Prune
//   - Recorder, which attaches a store to a runner's run-ended hook
//
// History records outcomes only; schedules themselves are never
// persisted and do not survive a process restart.
package history
