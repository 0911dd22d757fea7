// Package registry provides a named collection of schedule runners.
//
// A Registry is nothing more than a map of independently owned Runners
// with duplicate rejection and bulk start/stop helpers; the runners do
// not share any state with each other.
//
// Most users should import the root package github.com/schedkit/sched
// which re-exports Registry.
package registry
