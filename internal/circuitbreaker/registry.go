package circuitbreaker

import (
	"sync"
)

// Registry owns one CircuitBreaker per dependency name, creating each lazily
// on first use. All breakers share the same Config; the per-breaker state is
// independent, so one dependency tripping its circuit never blocks calls to
// another.
type Registry struct {
	mutex    sync.RWMutex
	breakers map[string]*CircuitBreaker
	config   Config
	opts     []Option
}

// NewRegistry validates the shared config once; every breaker the registry
// creates afterwards reuses it. The given options are applied to each new
// breaker, after which the registry sets the breaker's name.
func NewRegistry(config Config, opts ...Option) (*Registry, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		config:   config,
		opts:     opts,
	}, nil
}

func (r *Registry) GetBreaker(name string) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[name]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[name]; exists {
		return cb
	}

	opts := append(append([]Option{}, r.opts...), WithName(name))
	cb = newCircuitBreaker(r.config, opts...)
	r.breakers[name] = cb
	return cb
}

// Execute runs fn through the breaker registered under name.
func (r *Registry) Execute(name string, fn func() (any, error)) (any, error) {
	return r.GetBreaker(name).Execute(fn)
}

// Reset discards every breaker, so each dependency starts over with a fresh
// CLOSED circuit on its next call.
func (r *Registry) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.breakers = make(map[string]*CircuitBreaker)
}

func (r *Registry) Stats() map[string]Snapshot {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]Snapshot, len(r.breakers))
	for name, cb := range r.breakers {
		stats[name] = cb.Snapshot()
	}
	return stats
}
