package registry

import (
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/schedkit/sched/pkg/core"
	"github.com/schedkit/sched/pkg/rule"
	"github.com/schedkit/sched/pkg/runner"
)

// MaxScheduleNameLength is the maximum length for schedule names.
const MaxScheduleNameLength = 255

// validScheduleName matches alphanumeric, hyphens, underscores, and dots.
var validScheduleName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-\.]*$`)

// ValidateScheduleName validates a schedule name.
func ValidateScheduleName(name string) error {
	if name == "" {
		return core.ErrInvalidScheduleName
	}
	if len(name) > MaxScheduleNameLength {
		return core.ErrScheduleNameTooLong
	}
	if !validScheduleName.MatchString(name) {
		return core.ErrInvalidScheduleName
	}
	return nil
}

// Registry is a collection of schedule runners keyed by name.
type Registry struct {
	mu        sync.Mutex
	schedules map[string]*runner.Runner
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		schedules: make(map[string]*runner.Runner),
	}
}

// Add creates a runner for the job and rule under the given name. The
// runner is created stopped; start it directly or via StartAll.
func (g *Registry) Add(name string, job runner.Job, ru rule.Rule, opts ...runner.Option) (*runner.Runner, error) {
	if err := ValidateScheduleName(name); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.schedules[name]; ok {
		return nil, core.ErrScheduleExists
	}

	r := runner.New(job, ru, append([]runner.Option{runner.WithName(name)}, opts...)...)
	g.schedules[name] = r
	return r, nil
}

// Get returns the runner registered under name.
func (g *Registry) Get(name string) (*runner.Runner, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.schedules[name]
	return r, ok
}

// Remove stops the runner and drops it from the registry.
func (g *Registry) Remove(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.schedules[name]
	if !ok {
		return core.ErrScheduleNotFound
	}

	r.Stop()
	delete(g.schedules, name)
	return nil
}

// Names returns the registered schedule names, sorted.
func (g *Registry) Names() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	names := make([]string, 0, len(g.schedules))
	for name := range g.schedules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered schedules.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.schedules)
}

// StartAll starts every registered runner. Runners that are already
// running are left alone. It returns the number of runners started.
func (g *Registry) StartAll() int {
	started := 0
	for _, r := range g.snapshot() {
		if r.Start() {
			started++
		}
	}
	return started
}

// StopAll stops every registered runner. It returns the number of runners
// stopped.
func (g *Registry) StopAll() int {
	stopped := 0
	for _, r := range g.snapshot() {
		if r.Stop() {
			stopped++
		}
	}
	return stopped
}

// StopAllAndWait stops every registered runner and waits for their loops
// to exit, sharing a single timeout budget. It reports false if any
// schedule failed to drain in time. Schedules that already stopped on
// their own (one-shot rules, exhausted rules) count as drained.
func (g *Registry) StopAllAndWait(timeout time.Duration) bool {
	runners := g.snapshot()

	// Signal everything first, then wait, so slow jobs drain in parallel.
	for _, r := range runners {
		r.Stop()
	}

	deadline := time.Now().Add(timeout)
	ok := true
	for _, r := range runners {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		if !r.WaitStopped(remaining) {
			ok = false
		}
	}
	return ok
}

func (g *Registry) snapshot() []*runner.Runner {
	g.mu.Lock()
	defer g.mu.Unlock()

	runners := make([]*runner.Runner, 0, len(g.schedules))
	for _, r := range g.schedules {
		runners = append(runners, r)
	}
	return runners
}
