// Package workerpool implements the priority-ordered worker pool
// described in spec §4.C: a fixed number of long-lived workers draining
// a bounded, priority-aware FIFO queue, with blocking and non-blocking
// enqueue and a free-list cache of job records.
package workerpool

import (
	"errors"
	"math"
	"sync"
	"time"

	"iotcore/internal/component"
)

// ErrDeleted is returned by AddWork when the pool has been freed.
var ErrDeleted = errors.New("workerpool: pool is deleted")

// unbounded is the effective cap when MaxJobs is configured as 0.
const unbounded = math.MaxInt

// ThreadPriority is an optional strategy for applying a job's priority
// override to the executing worker's OS thread. Go exposes no portable
// API for this, so the default Pool uses a no-op implementation that
// always reports failure — matching spec §4.C step 4: "on failure,
// continue with the existing priority."
type ThreadPriority interface {
	SetPriority(priority int) error
}

type noopThreadPriority struct{}

func (noopThreadPriority) SetPriority(int) error { return errors.New("workerpool: thread priority not supported") }

// Diag is the minimal logging surface a Pool uses to report its own
// operational events (e.g. an unclean Free). Satisfied by *logger.Logger
// without this package importing it.
type Diag interface {
	Errorf(format string, args ...any)
}

// Config configures a Pool at construction time.
type Config struct {
	Name    string
	Threads int // N, must be >= 1
	MaxJobs int // M, 0 => unbounded

	// DefaultPriority is the thread priority applied to jobs enqueued
	// without an explicit override. It does not affect queue order: such
	// jobs are always appended at the tail. Nil means no thread priority.
	DefaultPriority *int

	ThreadPriority ThreadPriority

	// JoinTimeout bounds how long Free waits for workers to drain
	// in-flight work before abandoning the join (spec's "implementation
	// chosen quiescence window").
	JoinTimeout time.Duration

	Metrics *Metrics
	Diag    Diag

	// Factory identifies the component.FactoryInfo a Container built this
	// Pool through, for Read's Snapshot.Type. Nil outside a Container.
	Factory component.FactoryInfo
}

// Pool is a fixed-size set of worker goroutines draining a bounded,
// priority-ordered job queue.
type Pool struct {
	*component.Base

	n               int
	maxJobs         int
	defaultPriority *int
	threadPriority  ThreadPriority
	joinTimeout     time.Duration

	queued, working int
	head, tail      *node
	freeHead        *node

	jobAvailable *sync.Cond
	queueSpace   *sync.Cond
	workDone     *sync.Cond

	wg      sync.WaitGroup
	metrics *Metrics
	diag    Diag
}

// New allocates a Pool with N worker goroutines in the started-suspended
// state (Initial); call Start to let them begin dispatching.
func New(cfg Config) *Pool {
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = 5 * time.Second
	}
	tp := cfg.ThreadPriority
	if tp == nil {
		tp = noopThreadPriority{}
	}

	p := &Pool{
		n:               cfg.Threads,
		maxJobs:         cfg.MaxJobs,
		defaultPriority: cfg.DefaultPriority,
		threadPriority:  tp,
		joinTimeout:     cfg.JoinTimeout,
		metrics:         cfg.Metrics,
		diag:            cfg.Diag,
	}
	p.Base = component.New(cfg.Name, cfg.Factory, nil, component.Hooks{}, nil)
	p.jobAvailable = sync.NewCond(p.Base)
	p.queueSpace = sync.NewCond(p.Base)
	p.workDone = sync.NewCond(p.Base)

	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go p.workerLoop()
	}
	return p
}

func (p *Pool) effectiveMax() int {
	if p.maxJobs <= 0 {
		return unbounded
	}
	return p.maxJobs
}

// Start transitions the pool to Running; workers unblock and begin
// draining the queue.
func (p *Pool) Start() {
	p.SetState(component.Starting)
	p.SetState(component.Running)
}

// Stop transitions Running to Stopped. In-flight jobs complete; queued
// jobs are retained and resume on the next Start.
func (p *Pool) Stop() {
	p.SetState(component.Stopped)
}

// Free transitions the pool to Deleted, wakes every worker, drops any
// jobs still queued without executing them, and waits up to
// JoinTimeout for workers to exit.
func (p *Pool) Free() {
	if p.State() == component.Running {
		p.SetState(component.Stopped)
	}
	p.SetState(component.Deleted)

	p.Lock()
	// Abandon queued jobs without executing them.
	p.head, p.tail = nil, nil
	p.queued = 0
	p.jobAvailable.Broadcast()
	p.queueSpace.Broadcast()
	p.workDone.Broadcast()
	p.freeHead = nil // drop the free-list cache
	p.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(p.joinTimeout):
		if p.diag != nil {
			p.diag.Errorf("workerpool %s: workers did not join within %s", p.Name(), p.joinTimeout)
		}
	}
}

// AddWork blocks the caller while the queue is at capacity, then
// enqueues fn(arg) with an optional priority override. It fails only if
// the pool has been freed.
func (p *Pool) AddWork(fn Fn, arg any, priority *int) error {
	p.Lock()
	defer p.Unlock()

	for p.queued >= p.effectiveMax() {
		if p.StateLocked() == component.Deleted {
			return ErrDeleted
		}
		p.queueSpace.Wait()
	}
	if p.StateLocked() == component.Deleted {
		return ErrDeleted
	}
	p.enqueueLocked(fn, arg, priority)
	return nil
}

// TryWork never blocks: it returns false immediately if the queue is at
// capacity or the pool has been freed.
func (p *Pool) TryWork(fn Fn, arg any, priority *int) bool {
	p.Lock()
	defer p.Unlock()

	if p.StateLocked() == component.Deleted {
		return false
	}
	if p.queued >= p.effectiveMax() {
		return false
	}
	p.enqueueLocked(fn, arg, priority)
	return true
}

// enqueueLocked inserts a job per the priority-ordering rule in spec
// §4.C and signals a waiting worker. Caller must hold the lock.
func (p *Pool) enqueueLocked(fn Fn, arg any, priority *int) {
	j := p.borrowLocked()
	j.fn, j.arg, j.priority = fn, arg, priority
	p.insertLocked(j)
	p.queued++
	if p.metrics != nil {
		p.metrics.setQueued(p.queued)
	}
	p.jobAvailable.Signal()
}

// insertLocked implements: scan from head; insert before the first job
// that either has no priority override or has a strictly lower
// priority than j. If no such position exists, append to the tail.
// Jobs without a priority override are always appended to the tail.
func (p *Pool) insertLocked(j *node) {
	if j.priority == nil {
		p.appendTailLocked(j)
		return
	}
	prio := *j.priority

	var prev *node
	cur := p.head
	for cur != nil {
		if cur.priority == nil || *cur.priority < prio {
			break
		}
		prev = cur
		cur = cur.next
	}
	if cur == nil {
		p.appendTailLocked(j)
		return
	}
	j.next = cur
	if prev == nil {
		p.head = j
	} else {
		prev.next = j
	}
}

func (p *Pool) appendTailLocked(j *node) {
	j.next = nil
	if p.tail == nil {
		p.head, p.tail = j, j
		return
	}
	p.tail.next = j
	p.tail = j
}

// borrowLocked returns a recycled node from the free-list, or a fresh
// one if the cache is empty.
func (p *Pool) borrowLocked() *node {
	if p.freeHead != nil {
		n := p.freeHead
		p.freeHead = n.next
		n.next = nil
		return n
	}
	return &node{}
}

// recycleLocked clears a dequeued node's payload and returns it to the
// free-list.
func (p *Pool) recycleLocked(n *node) {
	n.fn, n.arg, n.priority = nil, nil, nil
	n.next = p.freeHead
	p.freeHead = n
}

// Wait blocks until the queue is empty and no worker is executing a job.
func (p *Pool) Wait() {
	p.Lock()
	defer p.Unlock()
	for p.queued != 0 || p.working != 0 {
		p.workDone.Wait()
	}
}

// Queued and Working report the current counts, for diagnostics/metrics.
func (p *Pool) Queued() int {
	p.Lock()
	defer p.Unlock()
	return p.queued
}

func (p *Pool) Working() int {
	p.Lock()
	defer p.Unlock()
	return p.working
}

// workerLoop is the per-worker dispatch loop described in spec §4.C.
func (p *Pool) workerLoop() {
	defer p.wg.Done()
	for {
		state := p.WaitAndLock(component.Running | component.Deleted)
		if state == component.Deleted {
			p.Unlock()
			return
		}

		j := p.head
		if j == nil {
			p.jobAvailable.Wait()
			p.Unlock()
			continue
		}

		wasFull := p.queued >= p.effectiveMax()
		p.head = j.next
		if p.head == nil {
			p.tail = nil
		}
		p.queued--
		if p.metrics != nil {
			p.metrics.setQueued(p.queued)
		}
		if p.queued == 0 {
			p.workDone.Broadcast()
		}
		if wasFull && p.queued < p.effectiveMax() {
			p.queueSpace.Broadcast()
		}

		fn, arg, prio := j.fn, j.arg, j.priority
		p.recycleLocked(j)
		p.working++
		if p.metrics != nil {
			p.metrics.setWorking(p.working)
		}
		p.Unlock()

		p.applyPriority(prio)
		fn(arg)

		p.Lock()
		p.working--
		if p.metrics != nil {
			p.metrics.setWorking(p.working)
		}
		if p.working == 0 {
			p.workDone.Broadcast()
		}
		p.Unlock()
	}
}

func (p *Pool) applyPriority(override *int) {
	prio := override
	if prio == nil {
		prio = p.defaultPriority
	}
	if prio == nil {
		return
	}
	// Failure is expected on most platforms/builds; continue with the
	// existing priority per spec §4.C step 4.
	_ = p.threadPriority.SetPriority(*prio)
}
