package ohlcv

import (
	"fmt"
	"sort"
	"sync"
)

// Constructor builds a fresh Adapter instance bound to the given
// Endpoints. Spot and perpetual variants of the same exchange register
// under distinct names (e.g. "binance", "binance-perp") but share a single
// Constructor type: one module per exchange, two constructors.
type Constructor func(ep Endpoints) Adapter

// Registry is a process-wide name-to-constructor directory. It is
// read-mostly after process init, so a single RWMutex suffices.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// global is the process-wide registry adapters register themselves into
// from their package init() functions, one file per exchange.
var global = NewRegistry()

// Global returns the process-wide registry.
func Global() *Registry { return global }

// NewRegistry creates an empty registry. Production code uses Global();
// tests that want isolation from other packages' init() registrations can
// construct their own.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a named constructor. Registering the same name twice
// returns an error and leaves the first registration in place; the error
// carries no errkind.Kind.
func (r *Registry) Register(name string, ctor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.constructors[name]; exists {
		return fmt.Errorf("ohlcv: exchange %q already registered", name)
	}
	r.constructors[name] = ctor
	return nil
}

// MustRegister is Register, panicking on error; intended for package
// init() calls where a duplicate name is a programming error, not a
// runtime condition.
func (r *Registry) MustRegister(name string, ctor Constructor) {
	if err := r.Register(name, ctor); err != nil {
		panic(err)
	}
}

// New looks up name and constructs a fresh Adapter bound to ep. Returns an
// error if name is unregistered.
func (r *Registry) New(name string, ep Endpoints) (Adapter, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("ohlcv: unknown exchange %q", name)
	}
	return ctor(ep), nil
}

// Names returns the sorted list of registered exchange names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
