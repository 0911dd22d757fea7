package core

import "errors"

// Rule construction errors. These are the only errors the library reports
// synchronously; anything a job returns at run time is captured per tick
// and delivered through the run-ended notification instead.
var (
	ErrNonPositiveInterval = errors.New("sched: interval must be greater than zero")
	ErrInvalidTimeOfDay    = errors.New("sched: hour must be in 0-23 and minute in 0-59")
	ErrNegativeDelay       = errors.New("sched: delay must not be negative")
	ErrInvalidCronExpr     = errors.New("sched: invalid cron expression")
)

// Registry errors.
var (
	ErrScheduleExists      = errors.New("sched: schedule already exists")
	ErrScheduleNotFound    = errors.New("sched: schedule not found")
	ErrInvalidScheduleName = errors.New("sched: invalid schedule name (must be alphanumeric, start with letter)")
	ErrScheduleNameTooLong = errors.New("sched: schedule name too long")
)
