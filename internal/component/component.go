// Package component implements the lifecycle primitive every long-lived
// object in the runtime embeds: a named, mutex-and-condition-guarded
// state machine with atomic reference counting and blocking state waits.
//
// Logger, worker pool, scheduler and every user-defined component are
// "is-a" Base: they embed *Base (or a Base value) and drive its state
// transitions from their own Start/Stop methods. Base itself knows
// nothing about logging, jobs, or schedules — it only enforces the
// transition table and wakes anyone blocked in Wait.
package component

import (
	"maps"
	"sync"
	"sync/atomic"
)

// FactoryInfo identifies the factory that constructed a component. It is
// the minimal surface Base needs for diagnostic snapshots; the full
// Factory type (config_fn, free_fn, reconfig_fn) lives in package
// container, which implements this interface to avoid component
// depending on container.
type FactoryInfo interface {
	TypeName() string
	Category() string
}

// Hooks are the optional lifecycle callbacks a component registers at
// construction time. Start/Stop perform the actual transition work and
// their errors abort the transition; Starting/Stopping/Running are pure
// notifications invoked by Container around the transition, in the
// order documented on Container.Start/Container.Stop.
type Hooks struct {
	Start    func() error
	Stop     func() error
	Starting func()
	Stopping func()
	Running  func()
}

// Snapshot is the read-consistent view returned by Read.
type Snapshot struct {
	Name   string
	Type   string
	State  string
	Config map[string]string
}

// Base is the embeddable lifecycle primitive described in spec §4.A.
type Base struct {
	mu    sync.Mutex
	cond  *sync.Cond
	name  string
	state State
	refs  atomic.Int64

	hooks   Hooks
	factory FactoryInfo
	config  map[string]string

	// reconfigure is the capability object bound by Container at
	// construction time; it already closes over the owning factory and
	// container so Base need not hold either. Nil if the factory offers
	// no reconfig_fn.
	reconfigure func(map[string]string) bool
}

// New creates a Base in the Initial state with a reference count of one.
// factory and config may be nil; reconfigure may be nil if the factory
// has no reconfig_fn.
func New(name string, factory FactoryInfo, config map[string]string, hooks Hooks, reconfigure func(map[string]string) bool) *Base {
	b := &Base{
		name:        name,
		state:       Initial,
		factory:     factory,
		config:      config,
		hooks:       hooks,
		reconfigure: reconfigure,
	}
	b.refs.Store(1)
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Name returns the component's owned name. Immutable after construction.
func (b *Base) Name() string { return b.name }

// AddRef increments the reference count and returns the new value.
func (b *Base) AddRef() int64 { return b.refs.Add(1) }

// DecRef decrements the reference count and reports whether the caller
// observed it drop to zero. Exactly one caller ever observes true,
// regardless of interleaving, because Add is atomic and the zero
// crossing happens exactly once.
func (b *Base) DecRef() bool { return b.refs.Add(-1) == 0 }

// RefCount returns the current reference count, for diagnostics.
func (b *Base) RefCount() int64 { return b.refs.Load() }

// Lock and Unlock expose the component's mutex for composite atomic
// operations that need to combine a state check with other bookkeeping
// (e.g. a worker pool inspecting state and its queue together).
func (b *Base) Lock()   { b.mu.Lock() }
func (b *Base) Unlock() { b.mu.Unlock() }

// State returns the current state under lock.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// StateLocked returns the current state without acquiring the lock. The
// caller must already hold it (typically via Lock, or as the result of
// WaitAndLock) — it exists so composite operations that already hold
// the lock can inspect state without the reentrant-lock deadlock a
// second call to State would cause.
func (b *Base) StateLocked() State { return b.state }

// SetState validates the requested transition against the legal table,
// applies it and broadcasts to any waiters if and only if the
// transition is legal. It reports whether the state actually changed.
// An illegal transition leaves state and observers untouched.
func (b *Base) SetState(to State) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.setStateLocked(to)
}

func (b *Base) setStateLocked(to State) bool {
	if !canTransition(b.state, to) {
		return false
	}
	b.state = to
	b.cond.Broadcast()
	return true
}

// Wait blocks until the component's state is one of the states set in
// mask, then returns that state. The lock is not held on return.
func (b *Base) Wait(mask State) State {
	b.mu.Lock()
	for b.state&mask == 0 {
		b.cond.Wait()
	}
	s := b.state
	b.mu.Unlock()
	return s
}

// WaitAndLock behaves like Wait but returns with the lock held; the
// caller must call Unlock.
func (b *Base) WaitAndLock(mask State) State {
	b.mu.Lock()
	for b.state&mask == 0 {
		b.cond.Wait()
	}
	return b.state
}

// Reconfigure delegates to the factory's reconfigure hook if one was
// bound at construction time, and reports whether it was accepted.
// A component with no reconfig_fn always returns false.
func (b *Base) Reconfigure(cfg map[string]string) bool {
	b.mu.Lock()
	fn := b.reconfigure
	b.mu.Unlock()
	if fn == nil {
		return false
	}
	return fn(cfg)
}

// RunStart invokes the registered Start hook, if any, reporting any
// error. Callers (typically Container) are responsible for calling
// SetState(Running) themselves after a nil error, matching the
// Starting-hook / start_fn / Running-hook ordering in spec §4.E.
func (b *Base) RunStart() error {
	if b.hooks.Start == nil {
		return nil
	}
	return b.hooks.Start()
}

// RunStop invokes the registered Stop hook, if any.
func (b *Base) RunStop() error {
	if b.hooks.Stop == nil {
		return nil
	}
	return b.hooks.Stop()
}

// RunStarting, RunStopping and RunRunning invoke the corresponding pure
// notification hooks, if registered. They never fail.
func (b *Base) RunStarting() {
	if b.hooks.Starting != nil {
		b.hooks.Starting()
	}
}

func (b *Base) RunStopping() {
	if b.hooks.Stopping != nil {
		b.hooks.Stopping()
	}
}

func (b *Base) RunRunning() {
	if b.hooks.Running != nil {
		b.hooks.Running()
	}
}

// Read takes a consistent snapshot of name, type, state name and a copy
// of the parsed configuration map.
func (b *Base) Read() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := Snapshot{
		Name:  b.name,
		State: b.state.String(),
	}
	if b.factory != nil {
		snap.Type = b.factory.TypeName()
	}
	if b.config != nil {
		snap.Config = maps.Clone(b.config)
	}
	return snap
}
