package container

import "sync"

// ConfigFn constructs a component from its parsed configuration map. It
// fails with an error if the configuration is invalid or a dependency
// (e.g. a named logger or pool) cannot be resolved from c.
type ConfigFn func(c *Container, cfg map[string]string) (Component, error)

// FreeFn releases a component constructed by the same factory. When nil,
// Container falls back to DecRef plus a Freer type assertion.
type FreeFn func(Component)

// Factory is the process-wide registration unit for a component type,
// matching spec §4.E/§6: {type-name, category, config_fn, free_fn}.
type Factory struct {
	typeName string
	category string

	ConfigFn ConfigFn
	FreeFn   FreeFn
}

// NewFactory builds a Factory for typeName/category, constructing
// components via configFn. freeFn may be nil.
func NewFactory(typeName, category string, configFn ConfigFn, freeFn FreeFn) *Factory {
	return &Factory{typeName: typeName, category: category, ConfigFn: configFn, FreeFn: freeFn}
}

// TypeName and Category implement component.FactoryInfo.
func (f *Factory) TypeName() string { return f.typeName }
func (f *Factory) Category() string { return f.category }

var (
	registryMu sync.Mutex
	registry   = map[string]*Factory{}
)

// RegisterFactory adds f to the process-wide registry. Registration is
// additive and idempotent on type name: if a factory is already
// registered under f.TypeName(), this call is silently ignored and
// reports false — the first registration always wins (spec §4.E, S6).
func RegisterFactory(f *Factory) bool {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[f.typeName]; exists {
		return false
	}
	registry[f.typeName] = f
	return true
}

// LookupFactory returns the factory registered under typeName, if any.
func LookupFactory(typeName string) (*Factory, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	f, ok := registry[typeName]
	return f, ok
}

// resetRegistryForTest clears the process-wide registry. Test-only.
func resetRegistryForTest() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = map[string]*Factory{}
}
