package runner_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedkit/sched/pkg/core"
	"github.com/schedkit/sched/pkg/rule"
	"github.com/schedkit/sched/pkg/runner"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustEvery(t *testing.T, d time.Duration) rule.Rule {
	t.Helper()
	r, err := rule.Every(d)
	require.NoError(t, err)
	return r
}

func mustIn(t *testing.T, d time.Duration) rule.Rule {
	t.Helper()
	r, err := rule.In(d)
	require.NoError(t, err)
	return r
}

func noop(ctx context.Context) error { return nil }

func TestRunner_StartStopIdempotent(t *testing.T) {
	r := runner.New(noop, mustEvery(t, time.Hour))

	assert.False(t, r.Running())

	assert.True(t, r.Start())
	assert.True(t, r.Running())
	assert.False(t, r.Start())

	assert.True(t, r.Stop())
	assert.False(t, r.Running())
	assert.False(t, r.Stop())
}

func TestRunner_RestartAfterStop(t *testing.T) {
	r := runner.New(noop, mustEvery(t, time.Hour))

	assert.True(t, r.Start())
	assert.True(t, r.Stop())
	assert.True(t, r.Start())
	assert.True(t, r.Running())

	r.StopAndWait(time.Second)
}

func TestRunner_NextRunComputedOnStart(t *testing.T) {
	r := runner.New(noop, mustEvery(t, time.Hour))

	_, ok := r.NextRun()
	assert.False(t, ok)

	before := time.Now()
	require.True(t, r.Start())
	defer r.Stop()

	next, ok := r.NextRun()
	require.True(t, ok)
	assert.WithinDuration(t, before.Add(time.Hour), next, 100*time.Millisecond)
}

func TestRunner_ExecutesOnEachTick(t *testing.T) {
	var runs atomic.Int32
	r := runner.New(func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, mustEvery(t, 20*time.Millisecond))

	require.True(t, r.Start())
	time.Sleep(150 * time.Millisecond)
	r.StopAndWait(time.Second)

	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}

func TestRunner_NextRunAdvancesAfterTick(t *testing.T) {
	r := runner.New(noop, mustEvery(t, 40*time.Millisecond))

	require.True(t, r.Start())
	defer r.StopAndWait(time.Second)

	first, ok := r.NextRun()
	require.True(t, ok)

	time.Sleep(100 * time.Millisecond)

	second, ok := r.NextRun()
	require.True(t, ok)
	assert.True(t, second.After(first), "next run should advance: first=%v second=%v", first, second)
}

func TestRunner_FailingJobKeepsRunning(t *testing.T) {
	var runs atomic.Int32
	r := runner.New(func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("boom")
	}, mustEvery(t, 15*time.Millisecond), runner.WithLogger(discardLogger()))

	var failures atomic.Int32
	r.OnRunEnd(func(report core.Report) {
		if report.Err != nil {
			failures.Add(1)
		}
	})

	require.True(t, r.Start())
	time.Sleep(120 * time.Millisecond)

	assert.True(t, r.Running())
	assert.GreaterOrEqual(t, runs.Load(), int32(3))

	r.StopAndWait(time.Second)
	assert.Equal(t, runs.Load(), failures.Load())
}

func TestRunner_PanicCapturedAsFailure(t *testing.T) {
	var runs atomic.Int32
	r := runner.New(func(ctx context.Context) error {
		runs.Add(1)
		panic("unexpected")
	}, mustEvery(t, 15*time.Millisecond), runner.WithLogger(discardLogger()))

	var lastErr atomic.Value
	r.OnRunEnd(func(report core.Report) {
		if report.Err != nil {
			lastErr.Store(report.Err)
		}
	})

	require.True(t, r.Start())
	time.Sleep(100 * time.Millisecond)

	assert.True(t, r.Running(), "panicking job must not stop the schedule")
	assert.GreaterOrEqual(t, runs.Load(), int32(2))

	r.StopAndWait(time.Second)

	err, _ := lastErr.Load().(error)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}

func TestRunner_StopDuringWaitPreventsExecution(t *testing.T) {
	var started atomic.Int32
	r := runner.New(func(ctx context.Context) error {
		started.Add(1)
		return nil
	}, mustEvery(t, 150*time.Millisecond))

	require.True(t, r.Start())
	require.True(t, r.Stop())

	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, int32(0), started.Load())
}

func TestRunner_ZeroDelayRunsImmediately(t *testing.T) {
	done := make(chan time.Time, 1)
	r := runner.New(func(ctx context.Context) error {
		done <- time.Now()
		return nil
	}, mustIn(t, 0))

	start := time.Now()
	require.True(t, r.Start())

	select {
	case ran := <-done:
		assert.WithinDuration(t, start, ran, 100*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}
}

// One-shot rules stop the schedule after their first tick. The faithful
// alternative, re-arming with the same rule, would make an absolute-instant
// rule produce an already-past instant and re-fire with zero wait forever;
// self-stopping is the deliberate choice here.
func TestRunner_OneShotSelfStops(t *testing.T) {
	var runs atomic.Int32
	r := runner.New(func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, mustIn(t, 10*time.Millisecond))

	require.True(t, r.Start())
	time.Sleep(150 * time.Millisecond)

	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, r.Running())

	_, ok := r.NextRun()
	assert.False(t, ok, "exhausted schedule must not report a next run")
}

func TestRunner_AbsoluteInstantRunsOnce(t *testing.T) {
	var runs atomic.Int32
	r := runner.New(func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, rule.At(time.Now().Add(20*time.Millisecond)))

	require.True(t, r.Start())
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, r.Running())
}

func TestRunner_SingleExecutionInFlight(t *testing.T) {
	var inFlight atomic.Int32
	var maxInFlight atomic.Int32

	r := runner.New(func(ctx context.Context) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			cur := maxInFlight.Load()
			if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		return nil
	}, mustEvery(t, 5*time.Millisecond))

	require.True(t, r.Start())
	time.Sleep(250 * time.Millisecond)
	r.StopAndWait(time.Second)

	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestRunner_ConcurrentStartersExactlyOneWins(t *testing.T) {
	r := runner.New(noop, mustEvery(t, time.Hour))
	defer r.Stop()

	const callers = 20
	var wg sync.WaitGroup
	var wins atomic.Int32

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Start() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.True(t, r.Running())
}

func TestRunner_ConcurrentStoppersExactlyOneWins(t *testing.T) {
	r := runner.New(noop, mustEvery(t, time.Hour))
	require.True(t, r.Start())

	const callers = 20
	var wg sync.WaitGroup
	var wins atomic.Int32

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Stop() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.False(t, r.Running())
}

func TestRunner_StopAndWaitDrainsInFlightRun(t *testing.T) {
	var finished atomic.Bool
	r := runner.New(func(ctx context.Context) error {
		time.Sleep(80 * time.Millisecond)
		finished.Store(true)
		return nil
	}, mustIn(t, 0))

	require.True(t, r.Start())
	time.Sleep(20 * time.Millisecond) // let the run begin

	assert.True(t, r.StopAndWait(time.Second))
	assert.True(t, finished.Load(), "StopAndWait must wait for the in-flight job")
}

func TestRunner_StopAndWaitTimeout(t *testing.T) {
	release := make(chan struct{})
	r := runner.New(func(ctx context.Context) error {
		<-release
		return nil
	}, mustIn(t, 0))

	require.True(t, r.Start())
	time.Sleep(20 * time.Millisecond)

	assert.False(t, r.StopAndWait(30*time.Millisecond))
	assert.False(t, r.Running())

	close(release)
}

func TestRunner_StopAndWaitWhenIdle(t *testing.T) {
	r := runner.New(noop, mustEvery(t, time.Hour))
	assert.False(t, r.StopAndWait(time.Second))
}

func TestRunner_HooksRunInRegistrationOrder(t *testing.T) {
	var mu sync.Mutex
	var order []int

	r := runner.New(noop, mustIn(t, 5*time.Millisecond))
	r.OnRunStart(func(time.Time) {
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
	})
	r.OnRunStart(func(time.Time) {
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
	})

	require.True(t, r.Start())
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, order)
}

func TestRunner_ReportOrdering(t *testing.T) {
	reports := make(chan core.Report, 1)

	r := runner.New(func(ctx context.Context) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	}, mustEvery(t, 20*time.Millisecond), runner.WithName("report-test"))
	r.OnRunEnd(func(report core.Report) {
		select {
		case reports <- report:
		default:
		}
	})

	require.True(t, r.Start())
	defer r.StopAndWait(time.Second)

	select {
	case report := <-reports:
		assert.Equal(t, "report-test", report.Schedule)
		assert.NoError(t, report.Err)
		assert.False(t, report.Started.After(report.Finished))
		assert.True(t, report.NextRun.After(report.Started), "next run must be recomputed past the start")
	case <-time.After(time.Second):
		t.Fatal("no report received")
	}
}

func TestRunner_EventsStream(t *testing.T) {
	r := runner.New(func(ctx context.Context) error {
		return nil
	}, mustIn(t, 5*time.Millisecond), runner.WithName("events-test"))

	require.True(t, r.Start())

	var received []core.Event
	timeout := time.After(time.Second)
loop:
	for {
		select {
		case e := <-r.Events():
			received = append(received, e)
			if len(received) >= 2 { // started + completed
				break loop
			}
		case <-timeout:
			break loop
		}
	}

	require.Len(t, received, 2)

	started, ok := received[0].(*core.RunStarted)
	require.True(t, ok)
	assert.Equal(t, "events-test", started.Schedule)

	completed, ok := received[1].(*core.RunCompleted)
	require.True(t, ok)
	assert.Equal(t, "events-test", completed.Schedule)
	assert.True(t, completed.NextRun.IsZero(), "one-shot completion carries no next run")
}

func TestRunner_FailureEvent(t *testing.T) {
	r := runner.New(func(ctx context.Context) error {
		return errors.New("boom")
	}, mustIn(t, 5*time.Millisecond), runner.WithLogger(discardLogger()))

	require.True(t, r.Start())

	timeout := time.After(time.Second)
	for {
		select {
		case e := <-r.Events():
			if failed, ok := e.(*core.RunFailed); ok {
				assert.EqualError(t, failed.Err, "boom")
				return
			}
		case <-timeout:
			t.Fatal("no failure event received")
		}
	}
}

func TestRunner_HookRegisteredWhileRunning(t *testing.T) {
	r := runner.New(noop, mustEvery(t, 15*time.Millisecond))

	require.True(t, r.Start())
	defer r.StopAndWait(time.Second)

	var reports atomic.Int32
	r.OnRunEnd(func(report core.Report) {
		reports.Add(1)
	})

	deadline := time.Now().Add(time.Second)
	for reports.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Greater(t, reports.Load(), int32(0))
}

func TestRunner_UnsatisfiableCronSelfStops(t *testing.T) {
	// February 31st never occurs, so Next yields the zero time.
	cron, err := rule.Cron("0 0 31 2 *")
	require.NoError(t, err)

	var runs atomic.Int32
	r := runner.New(func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, cron)

	require.True(t, r.Start())

	deadline := time.Now().Add(time.Second)
	for r.Running() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	assert.False(t, r.Running())
	assert.Equal(t, int32(0), runs.Load(), "an unsatisfiable rule must never execute")

	_, ok := r.NextRun()
	assert.False(t, ok)
}

// dryingRule fires once shortly after the reference instant, then has no
// further occurrences. Next is only ever called from the runner's own
// flow, so a plain counter is safe.
type dryingRule struct {
	calls int
}

func (d *dryingRule) Next(from time.Time) time.Time {
	d.calls++
	if d.calls == 1 {
		return from.Add(5 * time.Millisecond)
	}
	return time.Time{}
}

func TestRunner_RuleExhaustionStopsAfterLastTick(t *testing.T) {
	var runs atomic.Int32
	r := runner.New(func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, &dryingRule{})

	require.True(t, r.Start())

	deadline := time.Now().Add(time.Second)
	for r.Running() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, r.Running())

	_, ok := r.NextRun()
	assert.False(t, ok, "exhausted schedule must not report a next run")
}

func TestRunner_WaitStoppedAfterSelfStop(t *testing.T) {
	r := runner.New(noop, mustIn(t, 5*time.Millisecond))

	require.True(t, r.Start())
	assert.True(t, r.WaitStopped(time.Second))
	assert.False(t, r.Running())
}

func TestRunner_WaitStoppedNeverStarted(t *testing.T) {
	r := runner.New(noop, mustEvery(t, time.Hour))
	assert.True(t, r.WaitStopped(0))
}

func TestRunner_JobContextCancelledOnStop(t *testing.T) {
	observed := make(chan error, 1)
	r := runner.New(func(ctx context.Context) error {
		<-ctx.Done()
		observed <- ctx.Err()
		return ctx.Err()
	}, mustIn(t, 0), runner.WithLogger(discardLogger()))

	require.True(t, r.Start())
	time.Sleep(20 * time.Millisecond)
	r.Stop()

	select {
	case err := <-observed:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("job did not observe cancellation")
	}
}
