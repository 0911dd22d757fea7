// Package rule provides recurrence rules for the sched package.
//
// This package includes:
//   - Rule, the next-run projection interface
//   - Every() for fixed-interval recurrence
//   - Daily()/Weekly() for time-of-day recurrence
//   - At()/In()/OnceAt() for one-shot rules
//   - Cron() for cron expression rules
//
// Most users should import the root package github.com/schedkit/sched
// which re-exports these constructors.
package rule
