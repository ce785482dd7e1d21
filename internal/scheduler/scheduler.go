package scheduler

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"iotcore/internal/component"
)

// Clock abstracts the monotonic time source the dispatcher schedules
// against, so tests can inject deterministic time instead of wall clock.
type Clock interface {
	NowNS() uint64
}

// monotonicClock reports nanoseconds elapsed since construction, derived
// from time.Since, which uses Go's runtime monotonic reading rather than
// wall-clock time — immune to NTP adjustments or clock jumps, per spec's
// requirement that schedules be driven by a monotonic clock.
type monotonicClock struct{ start time.Time }

func newMonotonicClock() *monotonicClock { return &monotonicClock{start: time.Now()} }

func (c *monotonicClock) NowNS() uint64 { return uint64(time.Since(c.start).Nanoseconds()) }

// Diag is the minimal logging surface a Scheduler uses to report its own
// operational events. Satisfied by *logger.Logger without this package
// importing it.
type Diag interface {
	Errorf(format string, args ...any)
}

// Config configures a Scheduler at construction time.
type Config struct {
	Name    string
	Clock   Clock // nil => real monotonic clock
	Metrics *Metrics
	Diag    Diag

	// DefaultPool is used by schedules Created with a nil pool, matching
	// spec §6's "ThreadPool" configuration key.
	DefaultPool Pool

	// Factory identifies the component.FactoryInfo a Container built this
	// Scheduler through, for Read's Snapshot.Type. Nil outside a Container.
	Factory component.FactoryInfo
}

// Scheduler is the single-dispatcher, time-ordered schedule set from
// spec §4.D. Schedules are kept in a slice ordered by (nextDue, id),
// searched and spliced under the embedded lifecycle lock; arbitrary
// removal (schedule_remove/schedule_delete) is expected to be frequent,
// which is why this uses a sorted slice with binary search rather than a
// container/heap min-heap (heaps don't support efficient arbitrary
// removal by identity).
type Scheduler struct {
	*component.Base

	clock       Clock
	set         []*Schedule
	metrics     *Metrics
	diag        Diag
	defaultPool Pool

	dispatchCond *sync.Cond
	generation   uint64
	nextID       atomic.Uint64

	wg sync.WaitGroup
}

// New allocates a Scheduler with its dispatcher goroutine parked in the
// Initial state; call Start to begin dispatching due schedules.
func New(cfg Config) *Scheduler {
	clk := cfg.Clock
	if clk == nil {
		clk = newMonotonicClock()
	}
	s := &Scheduler{clock: clk, metrics: cfg.Metrics, diag: cfg.Diag, defaultPool: cfg.DefaultPool}
	s.Base = component.New(cfg.Name, cfg.Factory, nil, component.Hooks{}, nil)
	s.dispatchCond = sync.NewCond(s.Base)

	s.wg.Add(1)
	go s.dispatchLoop()
	return s
}

// Start transitions the scheduler to Running; the dispatcher begins
// evaluating due schedules.
func (s *Scheduler) Start() {
	s.SetState(component.Starting)
	s.SetState(component.Running)
	s.Lock()
	s.dispatchCond.Broadcast()
	s.Unlock()
}

// Stop transitions Running to Stopped. The dispatcher parks; schedules
// already in the set are retained and resume firing on the next Start.
func (s *Scheduler) Stop() {
	s.SetState(component.Stopped)
	s.Lock()
	s.dispatchCond.Broadcast()
	s.Unlock()
}

// Free transitions the scheduler to Deleted, invokes each remaining
// schedule's free function on its arg, and waits for the dispatcher
// goroutine to exit.
func (s *Scheduler) Free() {
	if s.State() == component.Running {
		s.SetState(component.Stopped)
	}
	s.SetState(component.Deleted)

	s.Lock()
	remaining := s.set
	s.set = nil
	s.generation++
	s.dispatchCond.Broadcast()
	s.Unlock()

	for _, sch := range remaining {
		if sch.freeFn != nil {
			sch.freeFn(sch.arg)
		}
	}
	s.wg.Wait()
}

// Create builds a new Schedule, not yet part of this Scheduler's set
// until Add is called. period and start are in nanoseconds; a start of 0
// makes the first firing due one period from now. repeat is
// the number of firings (0 = infinite). priority is an optional
// per-schedule thread-priority override passed through to the target
// pool. pool may be nil to use the Scheduler's configured DefaultPool.
func (s *Scheduler) Create(fn Fn, freeFn FreeFn, arg any, period, start, repeat uint64, pool Pool, priority *int) *Schedule {
	if start == 0 {
		start = period
	}
	return &Schedule{
		id:       s.nextID.Add(1),
		fn:       fn,
		freeFn:   freeFn,
		arg:      arg,
		periodNS: period,
		repeats:  repeat,
		pool:     pool,
		priority: priority,
		nextDue:  s.clock.NowNS() + start,
		index:    -1,
	}
}

// DefaultPool returns the pool installed via Config.DefaultPool, used by
// schedules created with a nil pool.
func (s *Scheduler) DefaultPool() Pool { return s.defaultPool }

// Add inserts sch into the ordered set, resolving a nil sch.pool to the
// Scheduler's DefaultPool. It reports false if sch is already present or
// no pool can be resolved.
func (s *Scheduler) Add(sch *Schedule) bool {
	s.Lock()
	defer s.Unlock()
	if sch.index >= 0 {
		return false
	}
	if sch.pool == nil {
		sch.pool = s.defaultPool
	}
	if sch.pool == nil {
		return false
	}
	s.insertLocked(sch)
	s.generation++
	s.metrics.setActive(len(s.set))
	s.dispatchCond.Broadcast()
	return true
}

// Remove takes sch out of the set without invoking its free function. It
// reports false if sch was not present.
func (s *Scheduler) Remove(sch *Schedule) bool {
	s.Lock()
	defer s.Unlock()
	if sch.index < 0 {
		return false
	}
	s.removeAtLocked(sch.index)
	s.generation++
	s.metrics.setActive(len(s.set))
	s.dispatchCond.Broadcast()
	return true
}

// Reset re-arms sch to fire relative to the current time, as if just
// created with the same period and no start offset.
func (s *Scheduler) Reset(sch *Schedule) {
	s.Lock()
	defer s.Unlock()
	if sch.index >= 0 {
		s.removeAtLocked(sch.index)
	}
	sch.nextDue = s.clock.NowNS() + sch.periodNS
	sch.ran = 0
	s.insertLocked(sch)
	s.generation++
	s.dispatchCond.Broadcast()
}

// Delete removes sch from the set (if present) and invokes its free
// function on its arg.
func (s *Scheduler) Delete(sch *Schedule) {
	s.Remove(sch)
	if sch.freeFn != nil {
		sch.freeFn(sch.arg)
	}
}

// AddRunCallback installs (or clears, with nil) the callback invoked
// after sch's function successfully runs.
func (s *Scheduler) AddRunCallback(sch *Schedule, fn Fn) {
	s.Lock()
	defer s.Unlock()
	sch.runCallback = fn
}

// AddAbortCallback installs (or clears, with nil) the callback invoked
// when a firing is dropped because the target pool rejected it.
func (s *Scheduler) AddAbortCallback(sch *Schedule, fn Fn) {
	s.Lock()
	defer s.Unlock()
	sch.abortCallback = fn
}

// less orders by (nextDue, id): equal due times break ties in creation
// order, giving FIFO dispatch among simultaneously-due schedules.
func less(a, b *Schedule) bool {
	if a.nextDue != b.nextDue {
		return a.nextDue < b.nextDue
	}
	return a.id < b.id
}

// insertLocked splices sch into the ordered set via binary search.
// Caller must hold the lock.
func (s *Scheduler) insertLocked(sch *Schedule) {
	i := sort.Search(len(s.set), func(i int) bool { return less(sch, s.set[i]) })
	s.set = append(s.set, nil)
	copy(s.set[i+1:], s.set[i:])
	s.set[i] = sch
	s.reindexFrom(i)
}

// removeAtLocked splices out the set entry at position i. Caller must
// hold the lock.
func (s *Scheduler) removeAtLocked(i int) {
	sch := s.set[i]
	copy(s.set[i:], s.set[i+1:])
	s.set[len(s.set)-1] = nil
	s.set = s.set[:len(s.set)-1]
	sch.index = -1
	s.reindexFrom(i)
}

func (s *Scheduler) reindexFrom(i int) {
	for ; i < len(s.set); i++ {
		s.set[i].index = i
	}
}

// dispatchLoop is the scheduler's single dispatcher thread (spec §4.D):
// wait for Running, wait for a non-empty set, sleep until the earliest
// entry is due (waking early if the set changes), then submit it to its
// pool via TryWork, track drops, and reinsert repeating schedules using
// the "now + period" relative drift policy.
func (s *Scheduler) dispatchLoop() {
	defer s.wg.Done()
	for {
		s.Lock()
		for {
			state := s.StateLocked()
			if state == component.Deleted {
				s.Unlock()
				return
			}
			if state != component.Running {
				s.dispatchCond.Wait()
				continue
			}
			if len(s.set) == 0 {
				s.dispatchCond.Wait()
				continue
			}
			break
		}

		next := s.set[0]
		now := s.clock.NowNS()
		if next.nextDue > now {
			wait := time.Duration(next.nextDue - now)
			gen := s.generation
			s.Unlock()
			if !s.sleepUntilWake(wait, gen) {
				return
			}
			continue
		}

		s.removeAtLocked(0)
		s.generation++
		pool, priority, fn, arg, runCB, abortCB := next.pool, next.priority, next.fn, next.arg, next.runCallback, next.abortCallback
		s.Unlock()

		submitted := pool.TryWork(func(a any) {
			fn(a)
			if runCB != nil {
				runCB(a)
			}
		}, arg, priority)

		if !submitted {
			next.dropped.Add(1)
			s.metrics.recordDropped()
			if s.diag != nil {
				s.diag.Errorf("scheduler %s: schedule %d dropped, target pool refused the job", s.Name(), next.id)
			}
			if abortCB != nil {
				abortCB(arg)
			}
		} else {
			s.metrics.recordDispatched()
		}
		// A firing counts toward the repeat total whether or not the pool
		// accepted it — a dropped firing still consumes a repeat, matching
		// the decrement-and-free-at-zero semantics of the original design.
		next.ran++

		s.Lock()
		finished := next.repeats != 0 && next.ran >= next.repeats
		if !finished {
			next.nextDue = s.clock.NowNS() + next.periodNS
			s.insertLocked(next)
		}
		s.generation++
		s.metrics.setActive(len(s.set))
		s.Unlock()

		if finished && next.freeFn != nil {
			next.freeFn(next.arg)
		}
	}
}

// sleepUntilWake blocks for up to d, waking early if the schedule set
// changes (generation advances) or the scheduler is deleted. It reports
// false if the scheduler was deleted while sleeping.
func (s *Scheduler) sleepUntilWake(d time.Duration, gen uint64) bool {
	var fired bool
	timer := time.AfterFunc(d, func() {
		s.Lock()
		fired = true
		s.dispatchCond.Broadcast()
		s.Unlock()
	})
	defer timer.Stop()

	s.Lock()
	defer s.Unlock()
	for !fired && s.generation == gen && s.StateLocked() == component.Running {
		s.dispatchCond.Wait()
	}
	return s.StateLocked() != component.Deleted
}
