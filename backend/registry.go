package backend

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates a writer. opts is the writer's own options type, or nil
// for its defaults.
type Factory func(opts any) (Writer, error)

var (
	registryMu sync.RWMutex
	writers    = make(map[string]Factory)
)

// Register makes a writer available by name. It panics if factory is nil
// or the name is already registered.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("backend: Register factory is nil")
	}
	if _, dup := writers[name]; dup {
		panic("backend: Register called twice for " + name)
	}
	writers[name] = factory
}

// Unregister removes a writer. It is used by tests.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(writers, name)
}

// New creates a writer by name.
func New(name string, opts any) (Writer, error) {
	registryMu.RLock()
	factory, ok := writers[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("backend: unknown writer %q (forgotten import?)", name)
	}
	return factory(opts)
}

// Names returns the registered writer names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(writers))
	for name := range writers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether a writer is registered under name.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := writers[name]
	return ok
}

// Options resolves the opts argument of a Factory: nil yields def, and T or
// *T are accepted as given.
func Options[T any](opts any, def T) (T, error) {
	switch o := opts.(type) {
	case nil:
		return def, nil
	case T:
		return o, nil
	case *T:
		if o == nil {
			return def, nil
		}
		return *o, nil
	}
	var zero T
	return zero, fmt.Errorf("%w: got %T, want %T", ErrBadOptions, opts, zero)
}
