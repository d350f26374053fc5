// internal/core/usecases/planner.go
package usecases

import (
	"fmt"
	"sort"

	"reconwave/internal/core/domain"
	"reconwave/internal/platform/logx"
	"reconwave/internal/platform/registry"
)

// DefaultImplicitInclusions is the named-exception table of modules that
// always pull in companions despite no declared dependency edge. The one
// standing case pairs subdomain enumeration with DNS resolution: dnsx must
// observe subenum's stream independently of whatever else the request
// asked for. Deliberately a table, not an inference mechanism: inferring
// inclusions generally would change scheduling semantics.
var DefaultImplicitInclusions = map[string][]string{
	"subenum": {"dnsx"},
}

// Planner resolves a requested module set into an execution plan: ordered
// waves where every module's declared and implicit dependencies lie in an
// earlier wave.
type Planner struct {
	registry *registry.ModuleRegistry
	implicit map[string][]string
	logger   logx.Logger
}

// NewPlanner creates a planner over a module catalog with the default
// implicit-inclusion table.
func NewPlanner(reg *registry.ModuleRegistry, logger logx.Logger) *Planner {
	return &Planner{
		registry: reg,
		implicit: DefaultImplicitInclusions,
		logger:   logger.With("component", "planner"),
	}
}

// WithImplicitInclusions overrides the inclusion table (used by tests and
// bespoke deployments).
func (p *Planner) WithImplicitInclusions(table map[string][]string) *Planner {
	p.implicit = table
	return p
}

// Plan computes the execution plan for a requested module set, or rejects
// the request before any resource is consumed.
func (p *Planner) Plan(requested []string) (*domain.ExecutionPlan, error) {
	if len(requested) == 0 {
		return nil, domain.ErrEmptyRequest
	}

	profiles, err := p.resolveSet(requested)
	if err != nil {
		return nil, err
	}

	waves, err := p.sortIntoWaves(profiles)
	if err != nil {
		return nil, err
	}

	p.logger.Info("plan resolved",
		"requested", len(requested),
		"scheduled", len(profiles),
		"waves", len(waves),
	)
	return &domain.ExecutionPlan{Waves: waves}, nil
}

// resolveSet expands the request to its closure: implicit inclusions,
// declared dependencies and stream source modules, validating each name
// against the catalog.
func (p *Planner) resolveSet(requested []string) (map[string]domain.ModuleProfile, error) {
	resolved := make(map[string]domain.ModuleProfile)

	queue := append([]string{}, requested...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if _, seen := resolved[name]; seen {
			continue
		}

		profile, ok := p.registry.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownModule, name)
		}
		if !profile.Active {
			return nil, fmt.Errorf("%w: %s", domain.ErrInactiveModule, name)
		}
		resolved[name] = profile

		queue = append(queue, profile.Dependencies...)
		for _, companion := range p.implicit[name] {
			// Companions are best-effort: the request never named them, so
			// an absent or inactive companion is skipped, not an error.
			if comp, ok := p.registry.Get(companion); ok && comp.Active {
				queue = append(queue, companion)
			}
		}
		if profile.Consumes != nil {
			// The producing module must be scheduled for the stream to
			// exist; inclusion only, no ordering edge, so producer and
			// consumer can overlap. A source that never declares the
			// consumed kind would leave the consumer waiting on a stream
			// nobody ends, so the mismatch is rejected here.
			if src, ok := p.registry.Get(profile.Consumes.Module); ok && src.Active &&
				(src.Produces == nil || src.Produces.Kind != profile.Consumes.Kind) {
				return nil, fmt.Errorf("%w: %s expects %s to produce %q",
					domain.ErrStreamNotProduced, name, profile.Consumes.Module, profile.Consumes.Kind)
			}
			queue = append(queue, profile.Consumes.Module)
		}
	}

	return resolved, nil
}

// sortIntoWaves runs Kahn's algorithm grouped by levels: each wave holds
// the modules whose remaining in-degree dropped to zero together, so they
// are mutually independent and run concurrently.
func (p *Planner) sortIntoWaves(profiles map[string]domain.ModuleProfile) ([]domain.Wave, error) {
	inDegree := make(map[string]int, len(profiles))
	dependents := make(map[string][]string, len(profiles))

	for name, profile := range profiles {
		if _, ok := inDegree[name]; !ok {
			inDegree[name] = 0
		}
		for _, dep := range profile.Dependencies {
			if _, scheduled := profiles[dep]; !scheduled {
				return nil, fmt.Errorf("%w: %s required by %s", domain.ErrUnknownModule, dep, name)
			}
			dependents[dep] = append(dependents[dep], name)
			inDegree[name]++
		}
	}

	var frontier []string
	for name, deg := range inDegree {
		if deg == 0 {
			frontier = append(frontier, name)
		}
	}

	var waves []domain.Wave
	processed := 0
	for level := 0; len(frontier) > 0; level++ {
		sort.Strings(frontier) // deterministic wave membership

		var next []string
		for _, name := range frontier {
			for _, dep := range dependents[name] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}

		waves = append(waves, domain.Wave{Level: level, Modules: frontier})
		processed += len(frontier)
		frontier = next
	}

	if processed != len(profiles) {
		var cyclic []string
		for name, deg := range inDegree {
			if deg > 0 {
				cyclic = append(cyclic, name)
			}
		}
		sort.Strings(cyclic)
		return nil, fmt.Errorf("%w: %v", domain.ErrCyclicDependency, cyclic)
	}

	return waves, nil
}
