// internal/platform/registry/module_registry.go
package registry

import (
	"fmt"
	"sort"
	"sync"

	"reconwave/internal/core/domain"
	"reconwave/internal/platform/logx"
)

// ModuleRegistry is the catalog of scan module profiles. Profiles are
// registered out-of-band (config load, init) and are read-only during
// execution; the planner reads the catalog wholesale at planning time.
type ModuleRegistry struct {
	mu       sync.RWMutex
	profiles map[string]domain.ModuleProfile
	logger   logx.Logger
}

// NewModuleRegistry creates an empty registry.
func NewModuleRegistry(logger logx.Logger) *ModuleRegistry {
	return &ModuleRegistry{
		profiles: make(map[string]domain.ModuleProfile),
		logger:   logger.With("component", "module-registry"),
	}
}

// Register adds one profile after validating it.
func (r *ModuleRegistry) Register(profile domain.ModuleProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[profile.Name]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateModule, profile.Name)
	}

	r.profiles[profile.Name] = profile
	r.logger.Debug("module registered",
		"name", profile.Name,
		"version", profile.Version,
		"batching", profile.SupportsBatching,
		"rate_limited", profile.IsRateLimited(),
	)
	return nil
}

// RegisterAll registers a set of profiles and then validates cross-module
// invariants: dependencies reference existing active modules and the
// dependency graph is acyclic.
func (r *ModuleRegistry) RegisterAll(profiles []domain.ModuleProfile) error {
	for _, p := range profiles {
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return r.ValidateGraph()
}

// Get returns the profile of one module.
func (r *ModuleRegistry) Get(name string) (domain.ModuleProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[name]
	return p, ok
}

// List returns all registered module names, sorted.
func (r *ModuleRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the whole catalog for planning.
func (r *ModuleRegistry) Snapshot() map[string]domain.ModuleProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]domain.ModuleProfile, len(r.profiles))
	for name, p := range r.profiles {
		out[name] = p
	}
	return out
}

// ValidateGraph checks cross-module invariants over the full catalog:
// every dependency must name an existing active module, every consumed
// stream must be declared by its producer, and declared dependencies must
// not form a cycle.
func (r *ModuleRegistry) ValidateGraph() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, p := range r.profiles {
		for _, dep := range p.Dependencies {
			target, ok := r.profiles[dep]
			if !ok {
				return fmt.Errorf("%w: %s required by %s", domain.ErrUnknownModule, dep, name)
			}
			if !target.Active {
				return fmt.Errorf("%w: %s required by %s", domain.ErrInactiveModule, dep, name)
			}
		}

		// A consumer subscribed to a stream nobody ends would wait forever,
		// so the wiring is rejected here, before any job runs.
		if p.Consumes != nil {
			src, ok := r.profiles[p.Consumes.Module]
			if !ok {
				return fmt.Errorf("%w: %s consumed by %s", domain.ErrUnknownModule, p.Consumes.Module, name)
			}
			if !src.Active {
				return fmt.Errorf("%w: %s consumed by %s", domain.ErrInactiveModule, p.Consumes.Module, name)
			}
			if src.Produces == nil || src.Produces.Kind != p.Consumes.Kind {
				return fmt.Errorf("%w: %s expects %s to produce %q",
					domain.ErrStreamNotProduced, name, p.Consumes.Module, p.Consumes.Kind)
			}
		}
	}

	// DFS cycle detection over declared dependencies.
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(r.profiles))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: %v", domain.ErrCyclicDependency, append(path, name))
		}
		state[name] = visiting
		for _, dep := range r.profiles[name].Dependencies {
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}

	for name := range r.profiles {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}
