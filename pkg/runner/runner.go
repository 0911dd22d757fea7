package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schedkit/sched/pkg/core"
	"github.com/schedkit/sched/pkg/rule"
)

// Job is the unit of work driven by a Runner. The context is cancelled
// when the runner stops; a job already executing is never interrupted,
// but it may observe the cancellation cooperatively.
type Job func(ctx context.Context) error

// activeRun is the running state: a cancellation handle plus a done
// channel closed when the loop goroutine exits. The Runner holds at most
// one activeRun; nil means idle. Keeping both handles in one value rules
// out a half-set running state.
type activeRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Runner drives a single job through wait/execute/reschedule cycles.
// Each Runner is fully independent; ticks of one schedule are strictly
// sequential and there is never more than one execution in flight.
type Runner struct {
	name   string
	job    Job
	rule   rule.Rule
	logger *slog.Logger
	events chan core.Event

	mu       sync.Mutex
	active   *activeRun // nil when idle
	lastDone chan struct{}
	nextRun  time.Time
	hasNext  bool

	onStart []func(started time.Time)
	onEnd   []func(report core.Report)
}

// New creates a runner for the given job and rule. The rule is fixed for
// the lifetime of the runner.
func New(job Job, r rule.Rule, opts ...Option) *Runner {
	if job == nil {
		panic("sched: job must not be nil")
	}
	if r == nil {
		panic("sched: rule must not be nil")
	}

	config := Config{
		Name:        uuid.New().String(),
		Logger:      slog.Default(),
		EventBuffer: 64,
	}
	for _, opt := range opts {
		opt.ApplyRunner(&config)
	}

	return &Runner{
		name:   config.Name,
		job:    job,
		rule:   r,
		logger: config.Logger,
		events: make(chan core.Event, config.EventBuffer),
	}
}

// Name returns the schedule name.
func (r *Runner) Name() string {
	return r.name
}

// Start arms the schedule. It computes the first next-run instant and
// begins the tick loop. It reports false if the runner is already running.
func (r *Runner) Start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &activeRun{cancel: cancel, done: make(chan struct{})}
	r.active = run
	r.lastDone = run.done
	next := r.rule.Next(time.Now())
	r.nextRun = next
	r.hasNext = !next.IsZero()

	go r.loop(ctx, run, next)
	return true
}

// Stop disarms the schedule. A pending wait is cancelled; a job already
// executing runs to completion but no further tick begins. It reports
// false if the runner is not running.
func (r *Runner) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, stopped := r.stopLocked()
	return stopped
}

// StopAndWait stops the schedule and blocks until the loop goroutine has
// exited, including any in-flight job, or the timeout elapses. It reports
// false if the runner was not running or the wait timed out; the stop
// itself is effective either way.
func (r *Runner) StopAndWait(timeout time.Duration) bool {
	r.mu.Lock()
	run, stopped := r.stopLocked()
	r.mu.Unlock()

	if !stopped {
		return false
	}

	// The lock must not be held here: the loop takes it to update its
	// bookkeeping before exiting.
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-run.done:
		return true
	case <-timer.C:
		return false
	}
}

// WaitStopped blocks until any previously started loop goroutine has
// exited or the timeout elapses. It returns true immediately if the
// runner never ran. Unlike StopAndWait it does not itself stop the
// schedule; pair it with Stop to drain without the two racing.
func (r *Runner) WaitStopped(timeout time.Duration) bool {
	r.mu.Lock()
	done := r.lastDone
	r.mu.Unlock()

	if done == nil {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

func (r *Runner) stopLocked() (*activeRun, bool) {
	if r.active == nil {
		return nil, false
	}
	run := r.active
	run.cancel()
	r.active = nil
	return run, true
}

// Running reports whether the schedule is armed or executing.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// NextRun returns the last computed next-run instant. The second return
// is false if the runner was never started or the schedule is exhausted.
func (r *Runner) NextRun() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextRun, r.hasNext
}

// OnRunStart registers a hook invoked synchronously when a run begins.
// Hooks run in registration order on the schedule's own goroutine.
func (r *Runner) OnRunStart(fn func(started time.Time)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStart = append(r.onStart, fn)
}

// OnRunEnd registers a hook invoked synchronously after a run finishes,
// success or failure, before the schedule re-arms.
func (r *Runner) OnRunEnd(fn func(report core.Report)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEnd = append(r.onEnd, fn)
}

// Events returns the runner's event stream. Delivery never blocks the
// tick loop: events are dropped once the buffer is full.
func (r *Runner) Events() <-chan core.Event {
	return r.events
}

// loop is the tick loop: wait until next, execute once, recompute, re-arm.
// It exits on cancellation, after the first tick of a one-shot rule, or
// when the rule stops producing future instants.
func (r *Runner) loop(ctx context.Context, run *activeRun, next time.Time) {
	defer close(run.done)

	for {
		// A rule with no future occurrence (a cron expression that can
		// never match, for instance) yields the zero time; the schedule
		// is exhausted, not overdue.
		if next.IsZero() {
			r.clearIfCurrent(run)
			run.cancel()
			return
		}

		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		// The timer and cancellation can fire together; cancellation wins.
		if ctx.Err() != nil {
			return
		}

		started := time.Now()
		r.notifyStart(started)

		err := r.runJob(ctx)
		finished := time.Now()

		once := isOneShot(r.rule)
		if once {
			next = time.Time{}
		} else {
			next = r.rule.Next(finished)
		}
		exhausted := once || next.IsZero()

		if exhausted {
			r.clearIfCurrent(run)
		} else {
			r.mu.Lock()
			// Only this run's bookkeeping; a Stop/Start pair may already
			// have installed a fresh activeRun.
			if r.active == run {
				r.nextRun = next
			}
			r.mu.Unlock()
		}

		if err != nil {
			r.logger.Error("scheduled run failed", "schedule", r.name, "error", err)
		}
		r.notifyEnd(core.Report{
			Schedule: r.name,
			Err:      err,
			Started:  started,
			Finished: finished,
			NextRun:  next,
		})

		if exhausted {
			run.cancel()
			return
		}
	}
}

// clearIfCurrent resets the running markers, but only if run is still the
// active one; a Stop/Start pair may already have installed a fresh run.
func (r *Runner) clearIfCurrent(run *activeRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == run {
		r.active = nil
		r.nextRun = time.Time{}
		r.hasNext = false
	}
}

// runJob executes the job body, converting a panic into a captured error.
func (r *Runner) runJob(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return r.job(ctx)
}

func (r *Runner) notifyStart(started time.Time) {
	r.mu.Lock()
	hooks := append([]func(time.Time){}, r.onStart...)
	r.mu.Unlock()

	for _, fn := range hooks {
		fn(started)
	}
	r.emit(&core.RunStarted{Schedule: r.name, Timestamp: started})
}

func (r *Runner) notifyEnd(report core.Report) {
	r.mu.Lock()
	hooks := append([]func(core.Report){}, r.onEnd...)
	r.mu.Unlock()

	for _, fn := range hooks {
		fn(report)
	}

	duration := report.Finished.Sub(report.Started)
	if report.Err != nil {
		r.emit(&core.RunFailed{
			Schedule:  report.Schedule,
			Err:       report.Err,
			Started:   report.Started,
			Duration:  duration,
			NextRun:   report.NextRun,
			Timestamp: report.Finished,
		})
	} else {
		r.emit(&core.RunCompleted{
			Schedule:  report.Schedule,
			Started:   report.Started,
			Duration:  duration,
			NextRun:   report.NextRun,
			Timestamp: report.Finished,
		})
	}
}

func (r *Runner) emit(e core.Event) {
	select {
	case r.events <- e:
	default:
	}
}

func isOneShot(ru rule.Rule) bool {
	o, ok := ru.(rule.OneShot)
	return ok && o.Once()
}
