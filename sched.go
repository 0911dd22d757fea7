// Package sched runs jobs on declarative recurrence rules.
//
// This is the main package users should import. It re-exports the public
// types from the pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	rule, _ := sched.Every(5 * time.Minute)
//	runner := sched.NewRunner(func(ctx context.Context) error {
//	    return refreshCache(ctx)
//	}, rule, sched.WithName("refresh-cache"))
//
//	runner.Start()
//	defer runner.StopAndWait(10 * time.Second)
//
// A runner owns one job and one rule. It waits until the computed
// next-run instant, executes the job exactly once, captures any failure,
// recomputes the next instant, and re-arms itself until stopped. One-shot
// rules (At, In, OnceAt) stop the runner after their first tick.
package sched

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/schedkit/sched/pkg/core"
	"github.com/schedkit/sched/pkg/history"
	"github.com/schedkit/sched/pkg/registry"
	"github.com/schedkit/sched/pkg/rule"
	"github.com/schedkit/sched/pkg/runner"
)

type (
	// Rule computes the next run time from a reference instant.
	Rule = rule.Rule

	// OneShot is implemented by rules that fire a single time.
	OneShot = rule.OneShot

	// Job is the unit of work driven by a Runner.
	Job = runner.Job

	// Runner drives a single job through wait/execute/reschedule cycles.
	Runner = runner.Runner

	// Option configures a Runner.
	Option = runner.Option

	// Event is the interface for all schedule events.
	Event = core.Event

	// RunStarted is emitted when a scheduled run begins.
	RunStarted = core.RunStarted

	// RunCompleted is emitted when a scheduled run finishes without error.
	RunCompleted = core.RunCompleted

	// RunFailed is emitted when a scheduled run returns an error or panics.
	RunFailed = core.RunFailed

	// Report describes the outcome of a single run.
	Report = core.Report

	// Registry is a collection of schedule runners keyed by name.
	Registry = registry.Registry

	// Run is one recorded schedule tick.
	Run = history.Run

	// GormStore persists run history using GORM.
	GormStore = history.GormStore

	// Recorder attaches a history store to a runner.
	Recorder = history.Recorder

	// RecorderOption configures a Recorder.
	RecorderOption = history.RecorderOption
)

// Error variables
var (
	ErrNonPositiveInterval = core.ErrNonPositiveInterval
	ErrInvalidTimeOfDay    = core.ErrInvalidTimeOfDay
	ErrNegativeDelay       = core.ErrNegativeDelay
	ErrInvalidCronExpr     = core.ErrInvalidCronExpr
	ErrScheduleExists      = core.ErrScheduleExists
	ErrScheduleNotFound    = core.ErrScheduleNotFound
	ErrInvalidScheduleName = core.ErrInvalidScheduleName
	ErrScheduleNameTooLong = core.ErrScheduleNameTooLong
)

// Rule constructors

// Every creates a rule that runs at fixed intervals.
func Every(d time.Duration) (Rule, error) {
	return rule.Every(d)
}

// Daily creates a rule that runs at a specific local time each day.
func Daily(hour, minute int) (Rule, error) {
	return rule.Daily(hour, minute)
}

// DailyIn is Daily with an explicit location.
func DailyIn(hour, minute int, loc *time.Location) (Rule, error) {
	return rule.DailyIn(hour, minute, loc)
}

// Weekly creates a rule that runs at a specific local day and time each week.
func Weekly(day time.Weekday, hour, minute int) (Rule, error) {
	return rule.Weekly(day, hour, minute)
}

// WeeklyIn is Weekly with an explicit location.
func WeeklyIn(day time.Weekday, hour, minute int, loc *time.Location) (Rule, error) {
	return rule.WeeklyIn(day, hour, minute, loc)
}

// At creates a one-shot rule that fires at the given instant.
func At(t time.Time) Rule {
	return rule.At(t)
}

// In creates a one-shot rule that fires after the given delay.
func In(d time.Duration) (Rule, error) {
	return rule.In(d)
}

// OnceAt creates a one-shot rule that fires at the given local time today,
// or tomorrow if that time has already passed.
func OnceAt(hour, minute int) (Rule, error) {
	return rule.OnceAt(hour, minute)
}

// Cron creates a rule from a standard 5-field cron expression.
func Cron(expr string) (Rule, error) {
	return rule.Cron(expr)
}

// NewRunner creates a runner for the given job and rule.
func NewRunner(job Job, r Rule, opts ...Option) *Runner {
	return runner.New(job, r, opts...)
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return registry.New()
}

// NewGormStore creates a new GORM-backed history store.
func NewGormStore(db *gorm.DB) *GormStore {
	return history.NewGormStore(db)
}

// NewRecorder creates a recorder backed by the given store.
func NewRecorder(store *GormStore, opts ...RecorderOption) *Recorder {
	return history.NewRecorder(store, opts...)
}

// ValidateScheduleName validates a schedule name for use in a Registry.
func ValidateScheduleName(name string) error {
	return registry.ValidateScheduleName(name)
}

// Runner option functions

// WithName sets the schedule name used in events, reports, and logs.
func WithName(name string) Option {
	return runner.WithName(name)
}

// WithLogger sets the logger used for run failures.
func WithLogger(l *slog.Logger) Option {
	return runner.WithLogger(l)
}

// WithEventBuffer sets the event channel capacity.
func WithEventBuffer(n int) Option {
	return runner.WithEventBuffer(n)
}

// Recorder option functions

// WithRecorderLogger sets the logger used for storage failures.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return history.WithRecorderLogger(l)
}

// WithRecordTimeout bounds each history write.
func WithRecordTimeout(d time.Duration) RecorderOption {
	return history.WithRecordTimeout(d)
}
