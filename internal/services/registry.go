package services

import (
	"context"
	"sort"
	"sync"
)

// Registry tracks the dependencies checked by the readiness probe
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewRegistry creates a new dependency registry
func NewRegistry() *Registry {
	return &Registry{
		checkers: make(map[string]Checker),
	}
}

// Register adds a checker to the registry
func (r *Registry) Register(name string, checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = checker
}

// Get retrieves a checker by name
func (r *Registry) Get(name string) Checker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.checkers[name]
}

// List returns all registered names in ascending order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HealthCheckAll checks health of all registered dependencies
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]error {
	names := r.List()

	results := make(map[string]error, len(names))
	for _, name := range names {
		checker := r.Get(name)
		if checker == nil {
			continue
		}
		results[name] = checker.HealthCheck(ctx)
	}
	return results
}
