package rule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/schedkit/sched/pkg/core"
)

// cronRule wraps a cron expression schedule.
type cronRule struct {
	schedule cron.Schedule
}

// Cron creates a rule from a standard 5-field cron expression.
func Cron(expr string) (Rule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", core.ErrInvalidCronExpr, expr, err)
	}
	return &cronRule{schedule: schedule}, nil
}

func (r *cronRule) Next(from time.Time) time.Time {
	return r.schedule.Next(from)
}
