package rule

import (
	"time"

	"github.com/schedkit/sched/pkg/core"
)

// Rule computes the next run time from a reference instant. A Rule must be
// a pure projection: callable repeatedly, no side effects, and it must not
// retain the instant passed in.
type Rule interface {
	Next(from time.Time) time.Time
}

// OneShot is implemented by rules that fire a single time. A runner stops
// itself after the first tick of a one-shot rule instead of re-arming;
// without this, an absolute-instant rule would keep producing a past
// instant and re-fire with zero wait.
type OneShot interface {
	Rule
	Once() bool
}

// everyRule runs at fixed intervals.
type everyRule struct {
	interval time.Duration
}

// Every creates a rule that runs at fixed intervals. The interval must be
// greater than zero.
func Every(d time.Duration) (Rule, error) {
	if d <= 0 {
		return nil, core.ErrNonPositiveInterval
	}
	return &everyRule{interval: d}, nil
}

func (r *everyRule) Next(from time.Time) time.Time {
	return from.Add(r.interval)
}

// dailyRule runs at a specific time each day.
type dailyRule struct {
	hour   int
	minute int
	loc    *time.Location
}

// Daily creates a rule that runs at a specific local time each day. If the
// time of day has already passed, the first run is tomorrow.
func Daily(hour, minute int) (Rule, error) {
	return DailyIn(hour, minute, time.Local)
}

// DailyIn is Daily with an explicit location.
func DailyIn(hour, minute int, loc *time.Location) (Rule, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, core.ErrInvalidTimeOfDay
	}
	if loc == nil {
		loc = time.Local
	}
	return &dailyRule{hour: hour, minute: minute, loc: loc}, nil
}

func (r *dailyRule) Next(from time.Time) time.Time {
	from = from.In(r.loc)
	next := time.Date(from.Year(), from.Month(), from.Day(), r.hour, r.minute, 0, 0, r.loc)
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// weeklyRule runs at a specific day and time each week.
type weeklyRule struct {
	day    time.Weekday
	hour   int
	minute int
	loc    *time.Location
}

// Weekly creates a rule that runs at a specific local day and time each week.
func Weekly(day time.Weekday, hour, minute int) (Rule, error) {
	return WeeklyIn(day, hour, minute, time.Local)
}

// WeeklyIn is Weekly with an explicit location.
func WeeklyIn(day time.Weekday, hour, minute int, loc *time.Location) (Rule, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, core.ErrInvalidTimeOfDay
	}
	if loc == nil {
		loc = time.Local
	}
	return &weeklyRule{day: day, hour: hour, minute: minute, loc: loc}, nil
}

func (r *weeklyRule) Next(from time.Time) time.Time {
	from = from.In(r.loc)

	daysUntil := int(r.day - from.Weekday())
	if daysUntil < 0 {
		daysUntil += 7
	}

	next := time.Date(from.Year(), from.Month(), from.Day()+daysUntil, r.hour, r.minute, 0, 0, r.loc)
	if !next.After(from) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

// atRule fires once at a fixed instant.
type atRule struct {
	at time.Time
}

// At creates a one-shot rule that fires at the given instant. An instant
// already in the past fires immediately.
func At(t time.Time) Rule {
	return &atRule{at: t}
}

func (r *atRule) Next(time.Time) time.Time {
	return r.at
}

func (r *atRule) Once() bool { return true }

// inRule fires once after a delay.
type inRule struct {
	delay time.Duration
}

// In creates a one-shot rule that fires after the given delay. A zero
// delay fires immediately.
func In(d time.Duration) (Rule, error) {
	if d < 0 {
		return nil, core.ErrNegativeDelay
	}
	return &inRule{delay: d}, nil
}

func (r *inRule) Next(from time.Time) time.Time {
	return from.Add(r.delay)
}

func (r *inRule) Once() bool { return true }

// onceAtRule fires once at the next occurrence of a time of day.
type onceAtRule struct {
	dailyRule
}

// OnceAt creates a one-shot rule that fires at the given local time today,
// or tomorrow if that time has already passed.
func OnceAt(hour, minute int) (Rule, error) {
	r, err := DailyIn(hour, minute, time.Local)
	if err != nil {
		return nil, err
	}
	return &onceAtRule{dailyRule: *r.(*dailyRule)}, nil
}

func (r *onceAtRule) Once() bool { return true }
