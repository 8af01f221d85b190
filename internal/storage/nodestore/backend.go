package nodestore

import (
	"fmt"
	"sync"
)

// BackendFactory is a function that creates a new backend instance.
type BackendFactory func(config *Config) (Backend, error)

var (
	backendMu        sync.RWMutex
	backendFactories = make(map[string]BackendFactory)
)

// RegisterBackend registers a backend factory under the given name.
// Built-in backends register themselves from init.
func RegisterBackend(name string, factory BackendFactory) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backendFactories[name] = factory
}

// CreateBackend creates a new backend instance for the given name.
func CreateBackend(name string, config *Config) (Backend, error) {
	backendMu.RLock()
	factory, ok := backendFactories[name]
	backendMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, name)
	}

	return factory(config)
}

// AvailableBackends returns the names of all registered backends.
func AvailableBackends() []string {
	backendMu.RLock()
	defer backendMu.RUnlock()

	names := make([]string, 0, len(backendFactories))
	for name := range backendFactories {
		names = append(names, name)
	}
	return names
}

// IsBackendAvailable reports whether a backend with the given name exists.
func IsBackendAvailable(name string) bool {
	backendMu.RLock()
	_, ok := backendFactories[name]
	backendMu.RUnlock()
	return ok
}

// Open creates a Database from the given configuration: it instantiates
// the configured backend, opens it, and wraps it with the read cache.
func Open(config *Config) (Database, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	backend, err := CreateBackend(config.Backend, config)
	if err != nil {
		return nil, err
	}

	if err := backend.Open(config.CreateIfMissing); err != nil {
		return nil, fmt.Errorf("failed to open backend %s: %w", config.Backend, err)
	}

	return NewDatabase(backend, config.CacheSize, config.CacheTTL), nil
}
