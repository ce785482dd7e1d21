// Package container implements the factory-registry and named-instance
// runtime described in spec §4.E: a process-wide type-name -> factory
// registry, and per-container ordered instance maps driven through
// insertion-ordered start and reverse-ordered stop.
package container

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"iotcore/internal/component"
)

var (
	// ErrFactoryNotFound is returned by AddComponent when no factory is
	// registered under the requested type name.
	ErrFactoryNotFound = errors.New("container: factory not found")
	// ErrComponentExists is returned by AddComponent when the instance
	// name is already registered.
	ErrComponentExists = errors.New("container: component already exists")
	// ErrComponentNotFound is returned by RemoveComponent and Reconfigure
	// for an unknown instance name.
	ErrComponentNotFound = errors.New("container: component not found")
	// ErrNoLoader is returned by Init when no Loader was installed via
	// SetConfig.
	ErrNoLoader = errors.New("container: no loader configured")
	// ErrMasterNotFound is returned by Init when the loader has no entry
	// for the container's own name.
	ErrMasterNotFound = errors.New("container: master configuration not found")
)

// Component is the contract Container needs from anything it manages.
// Every type in this module that embeds *component.Base satisfies it
// automatically through promoted methods.
type Component interface {
	Name() string
	State() component.State
	SetState(component.State) bool
	RunStarting()
	RunStart() error
	RunRunning()
	RunStopping()
	RunStop() error
	Reconfigure(map[string]string) bool
	Read() component.Snapshot
	AddRef() int64
	DecRef() bool
}

// Freer is implemented by components that own goroutines or other
// resources requiring more than DecRef to release, such as the worker
// pool's worker threads or the scheduler's dispatcher. Container.Free
// prefers this over the generic DecRef path when present.
type Freer interface {
	Free()
}

// Starter and Stopper are implemented by components that drive their own
// Running/Stopped transition — the scheduler's dispatcher loop also
// waits on its own sync.Cond built against the same lock, which the
// generic SetState broadcast never reaches; the worker pool implements
// them as well. Container.Start/Stop prefer
// these over the generic Starting/Start/Running and Stopping/Stop hook
// sequence when present, exactly as Free prefers Freer.
type Starter interface {
	Start()
}

type Stopper interface {
	Stop()
}

// diagnosticLogger is the minimal surface Container needs to report
// configuration errors encountered during Init, satisfied by
// *logger.Logger without container importing that package.
type diagnosticLogger interface {
	Errorf(format string, args ...any)
}

// Container is a named, ordered registry of live components (spec
// §4.E). The zero value is not usable; construct with New.
type Container struct {
	mu sync.Mutex

	name string
	uri  string

	loader Loader
	saver  Saver
	parser Parser

	order     []string
	instances map[string]Component
	factories map[string]*Factory
}

// New allocates an empty container bound to name.
func New(name string) *Container {
	return &Container{
		name:      name,
		instances: make(map[string]Component),
		factories: make(map[string]*Factory),
	}
}

// Name returns the container's own name.
func (c *Container) Name() string { return c.name }

// SetConfig installs the loader/parser (and optional saver) used by
// Init, scoped to uri.
func (c *Container) SetConfig(loader Loader, parser Parser, uri string, saver Saver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loader = loader
	c.parser = parser
	c.uri = uri
	c.saver = saver
}

// Init loads the container's master instance-name -> type-name listing
// via the installed loader, then constructs and registers each listed
// instance from its own configuration text. Configuration errors for
// individual entries are reported (via an already-registered Logger
// instance, if any) and skipped rather than aborting the whole init.
func (c *Container) Init(ctx context.Context) error {
	c.mu.Lock()
	loader, parser, uri, name := c.loader, c.parser, c.uri, c.name
	c.mu.Unlock()

	if loader == nil || parser == nil {
		return ErrNoLoader
	}

	masterText, ok, err := loader.Load(ctx, name, uri)
	if err != nil {
		return fmt.Errorf("container %s: load master map: %w", name, err)
	}
	if !ok {
		return fmt.Errorf("container %s: %w", name, ErrMasterNotFound)
	}
	master, err := parser.Parse(masterText)
	if err != nil {
		return fmt.Errorf("container %s: parse master map: %w", name, err)
	}

	for instanceName, typeName := range master {
		cfgText, ok, err := loader.Load(ctx, instanceName, uri)
		if err != nil {
			c.reportConfigError("instance %s: load: %v", instanceName, err)
			continue
		}
		if !ok {
			c.reportConfigError("instance %s: configuration not found", instanceName)
			continue
		}
		cfg, err := parser.Parse(cfgText)
		if err != nil {
			c.reportConfigError("instance %s: %v", instanceName, err)
			continue
		}
		if _, err := c.AddComponent(instanceName, typeName, cfg); err != nil {
			c.reportConfigError("instance %s: %v", instanceName, err)
			continue
		}
	}
	return nil
}

func (c *Container) reportConfigError(format string, args ...any) {
	c.mu.Lock()
	order := slices.Clone(c.order)
	instances := maps.Clone(c.instances)
	c.mu.Unlock()

	for _, name := range order {
		if dl, ok := instances[name].(diagnosticLogger); ok {
			dl.Errorf(format, args...)
			return
		}
	}
}

// AddComponent looks up typeName in the process-wide factory registry,
// constructs a component from cfg, and registers it under name. It
// fails without mutating the container if name is already registered or
// no factory is found for typeName.
func (c *Container) AddComponent(name, typeName string, cfg map[string]string) (Component, error) {
	c.mu.Lock()
	if _, exists := c.instances[name]; exists {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrComponentExists, name)
	}
	c.mu.Unlock()

	factory, ok := LookupFactory(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFactoryNotFound, typeName)
	}
	comp, err := factory.ConfigFn(c, cfg)
	if err != nil {
		return nil, fmt.Errorf("construct %s: %w", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.instances[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrComponentExists, name)
	}
	c.instances[name] = comp
	c.factories[name] = factory
	c.order = append(c.order, name)
	return comp, nil
}

// RemoveComponent unregisters name and releases it via its factory's
// FreeFn, or the DecRef/Freer fallback if none was set.
func (c *Container) RemoveComponent(name string) error {
	c.mu.Lock()
	comp, ok := c.instances[name]
	factory := c.factories[name]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrComponentNotFound, name)
	}
	delete(c.instances, name)
	delete(c.factories, name)
	c.order = slices.DeleteFunc(c.order, func(n string) bool { return n == name })
	c.mu.Unlock()

	releaseComponent(comp, factory)
	return nil
}

// Find returns the component registered under name, without
// transferring ownership — the caller must not outlive container
// teardown, or must call AddRef to promote to shared ownership.
func (c *Container) Find(name string) (Component, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	comp, ok := c.instances[name]
	return comp, ok
}

// Reconfigure delegates to the named component's Reconfigure, reporting
// false if the instance is unknown or the component rejects cfg.
func (c *Container) Reconfigure(name string, cfg map[string]string) bool {
	comp, ok := c.Find(name)
	if !ok {
		return false
	}
	return comp.Reconfigure(cfg)
}

// List returns a snapshot of {name, type, state} for every registered
// component, in insertion order.
func (c *Container) List() []component.Snapshot {
	c.mu.Lock()
	order := slices.Clone(c.order)
	instances := maps.Clone(c.instances)
	c.mu.Unlock()

	out := make([]component.Snapshot, 0, len(order))
	for _, name := range order {
		out = append(out, instances[name].Read())
	}
	return out
}

// Start calls every component's Starting hook, transitions it to
// Running via its Start hook, then calls its Running hook — in
// insertion order. A component implementing Starter has its own Start
// called instead, so it can wake any condition variables of its own
// beyond the one the generic SetState broadcast reaches. It aborts on
// the first failing component, leaving every component started so far
// running.
func (c *Container) Start() error {
	for _, name := range c.snapshotOrder() {
		comp, ok := c.Find(name)
		if !ok {
			continue
		}
		if starter, ok := comp.(Starter); ok {
			starter.Start()
			continue
		}
		comp.RunStarting()
		comp.SetState(component.Starting)
		if err := comp.RunStart(); err != nil {
			return fmt.Errorf("start %s: %w", name, err)
		}
		comp.SetState(component.Running)
		comp.RunRunning()
	}
	return nil
}

// Stop calls every component's Stopping hook and transitions it to
// Stopped via its Stop hook, in reverse insertion order. A component
// implementing Stopper has its own Stop called instead, for the same
// reason Start prefers Starter.
func (c *Container) Stop() error {
	order := c.snapshotOrder()
	slices.Reverse(order)
	for _, name := range order {
		comp, ok := c.Find(name)
		if !ok {
			continue
		}
		if stopper, ok := comp.(Stopper); ok {
			stopper.Stop()
			continue
		}
		comp.RunStopping()
		if err := comp.RunStop(); err != nil {
			return fmt.Errorf("stop %s: %w", name, err)
		}
		comp.SetState(component.Stopped)
	}
	return nil
}

// Free stops the container if not already stopped, then marks every
// component Deleted and releases it, in reverse insertion order.
func (c *Container) Free() error {
	stopErr := c.Stop()

	c.mu.Lock()
	order := slices.Clone(c.order)
	slices.Reverse(order)
	instances := maps.Clone(c.instances)
	factories := maps.Clone(c.factories)
	c.instances = make(map[string]Component)
	c.factories = make(map[string]*Factory)
	c.order = nil
	c.mu.Unlock()

	for _, name := range order {
		releaseComponent(instances[name], factories[name])
	}
	return stopErr
}

func (c *Container) snapshotOrder() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.order)
}

// releaseComponent implements §4.E's "mark Deleted, decrement ref, free
// when last reference observed" for one component. A component owning
// goroutines (Freer) handles its own Deleted transition and join.
func releaseComponent(comp Component, factory *Factory) {
	if comp == nil {
		return
	}
	if factory != nil && factory.FreeFn != nil {
		factory.FreeFn(comp)
		return
	}
	if freer, ok := comp.(Freer); ok {
		freer.Free()
		return
	}
	comp.SetState(component.Deleted)
	comp.DecRef()
}
