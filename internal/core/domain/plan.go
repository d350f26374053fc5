// internal/core/domain/plan.go
package domain

// ExecutionPlan is the resolved schedule for one job: ordered waves where
// every module's dependencies lie in an earlier wave. Modules inside a wave
// are mutually independent and run concurrently. The plan is derived at
// planning time and never mutated.
type ExecutionPlan struct {
	Waves []Wave
}

// Wave is one concurrency level of the plan.
type Wave struct {
	Level   int
	Modules []string
}

// Contains reports whether the plan schedules the named module.
func (p *ExecutionPlan) Contains(name string) bool {
	return p.WaveOf(name) >= 0
}

// WaveOf returns the wave level of a module, or -1 when unscheduled.
func (p *ExecutionPlan) WaveOf(name string) int {
	for _, wave := range p.Waves {
		for _, m := range wave.Modules {
			if m == name {
				return wave.Level
			}
		}
	}
	return -1
}

// Modules returns every scheduled module in wave order.
func (p *ExecutionPlan) Modules() []string {
	var all []string
	for _, wave := range p.Waves {
		all = append(all, wave.Modules...)
	}
	return all
}
