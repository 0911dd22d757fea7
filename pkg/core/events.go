package core

import "time"

// Event is the interface for all schedule events.
type Event interface {
	eventMarker()
}

// RunStarted is emitted when a scheduled run begins.
type RunStarted struct {
	Schedule  string
	Timestamp time.Time
}

func (*RunStarted) eventMarker() {}

// RunCompleted is emitted when a scheduled run finishes without error.
type RunCompleted struct {
	Schedule  string
	Started   time.Time
	Duration  time.Duration
	NextRun   time.Time // zero when the schedule self-stopped
	Timestamp time.Time
}

func (*RunCompleted) eventMarker() {}

// RunFailed is emitted when a scheduled run returns an error or panics.
// The schedule keeps running; failure never stops the loop.
type RunFailed struct {
	Schedule  string
	Err       error
	Started   time.Time
	Duration  time.Duration
	NextRun   time.Time // zero when the schedule self-stopped
	Timestamp time.Time
}

func (*RunFailed) eventMarker() {}

// Report describes the outcome of a single run. It is delivered to
// run-ended hooks after the job has finished and before the schedule
// re-arms.
type Report struct {
	Schedule string
	Err      error // nil on success
	Started  time.Time
	Finished time.Time
	NextRun  time.Time // zero when the schedule self-stopped
}
