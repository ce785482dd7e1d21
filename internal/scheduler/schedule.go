// Package scheduler implements the monotonic, time-ordered schedule set
// described in spec §4.D: a single dispatcher goroutine that submits due
// schedules to a target worker pool via TryWork, tracking repeat counts
// and dropped-due-to-backpressure events.
package scheduler

import "sync/atomic"

// Fn is the work a schedule performs when it fires.
type Fn func(arg any)

// FreeFn releases resources owned by arg when the schedule is deleted.
type FreeFn func(arg any)

// Schedule is a single entry in a Scheduler's ordered set.
type Schedule struct {
	id uint64

	fn     Fn
	freeFn FreeFn
	arg    any

	periodNS uint64
	repeats  uint64 // 0 => infinite

	pool     Pool
	priority *int

	runCallback   Fn
	abortCallback Fn

	// nextDue is the absolute monotonic nanosecond timestamp of the next
	// firing, comparable only to other values produced by the same
	// Scheduler's clock source.
	nextDue uint64

	ran     uint64 // completed firings so far
	dropped atomic.Uint64

	// index is this schedule's current position in the owning
	// Scheduler's ordered slice, maintained by insert/remove so removal
	// finds it without a search; -1 when not in the set.
	index int
}

// ID returns the schedule's unique, scheduler-assigned identifier.
func (s *Schedule) ID() uint64 { return s.id }

// Dropped returns the number of firings skipped because the target pool
// rejected TryWork (backpressure).
func (s *Schedule) Dropped() uint64 { return s.dropped.Load() }

// Pool is the subset of workerpool.Pool a Schedule needs: non-blocking
// submission. Defined here (rather than imported) so scheduler does not
// depend on workerpool's concrete type, matching spec §4.D's description
// of the scheduler as submitting to "a" thread pool.
type Pool interface {
	TryWork(fn func(arg any), arg any, priority *int) bool
}
