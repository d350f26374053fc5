// internal/core/domain/module_profile.go
package domain

import (
	"fmt"
	"time"
)

// ModuleProfile describes one scan module's capabilities. Profiles are
// registry data: the engine dispatches on declared capabilities instead of
// branching per module in code. Profiles are created out-of-band and are
// read-only during execution.
type ModuleProfile struct {
	// Name is the unique module identifier (e.g. "subenum", "dnsx").
	Name string `json:"name"`

	// Version of the underlying scanner binary.
	Version string `json:"version"`

	// SupportsBatching indicates the module accepts more than one input
	// unit per launch. MaxBatchSize bounds one launch when true.
	SupportsBatching bool `json:"supports_batching"`
	MaxBatchSize     int  `json:"max_batch_size"`

	// ResourceTiers ordered scaling table. The sizer picks the first tier
	// whose inclusive [MinInput, MaxInput] range contains the cardinality.
	ResourceTiers []ResourceTier `json:"resource_tiers"`

	// EstimatedDurationPerUnit feeds the derived launch timeout.
	EstimatedDurationPerUnit time.Duration `json:"estimated_duration_per_unit"`

	// Dependencies names modules whose completion this module requires.
	Dependencies []string `json:"dependencies,omitempty"`

	// RateLimit is non-nil for quota-constrained modules.
	RateLimit *RateLimitPolicy `json:"rate_limit,omitempty"`

	// Consumes/Produces declare stream participation. Produces.Module must
	// equal Name; Consumes points at the producing module.
	Consumes *StreamSpec `json:"consumes,omitempty"`
	Produces *StreamSpec `json:"produces,omitempty"`

	// OutputSink identifies the single sink this module writes to.
	OutputSink string `json:"output_sink"`

	// TTL is non-nil for modules whose findings go stale and get re-probed.
	TTL *TTLPolicy `json:"ttl,omitempty"`

	Active bool `json:"active"`
}

// ResourceTier maps an input cardinality range to a compute allocation.
// Bounds are inclusive on both ends.
type ResourceTier struct {
	MinInput int    `json:"min_input"`
	MaxInput int    `json:"max_input"`
	CPU      int    `json:"cpu"`
	MemoryMB int    `json:"memory_mb"`
	Label    string `json:"label,omitempty"`
}

// Contains reports whether cardinality falls inside the tier range.
func (t ResourceTier) Contains(cardinality int) bool {
	return cardinality >= t.MinInput && cardinality <= t.MaxInput
}

// Allocation is the concrete compute assignment for one launch.
type Allocation struct {
	CPU      int    `json:"cpu"`
	MemoryMB int    `json:"memory_mb"`
	Tier     string `json:"tier,omitempty"`
}

// RateLimitPolicy governs external-API credential usage for a module.
type RateLimitPolicy struct {
	// QuotaPerKey is the per-interval call budget of a single credential.
	QuotaPerKey int `json:"quota_per_key"`

	// RotationInterval is the minimum time between two uses of the same
	// credential.
	RotationInterval time.Duration `json:"rotation_interval"`

	// DailyCap is a pool-wide cap across all keys (0 = uncapped).
	DailyCap int `json:"daily_cap,omitempty"`
}

// StreamSpec identifies a discovery stream by producing module and output
// kind. The resolved key follows the {jobID}:{module}:{kind} contract.
type StreamSpec struct {
	Module string `json:"module"`
	Kind   string `json:"kind"`
}

// Key resolves the stream key for a concrete job.
func (s StreamSpec) Key(jobID string) string {
	return fmt.Sprintf("%s:%s:%s", jobID, s.Module, s.Kind)
}

// TTLPolicy defines the re-scan interval after which a discovered item is
// considered stale.
type TTLPolicy struct {
	RescanAfter time.Duration `json:"rescan_after"`
}

// IsRateLimited reports whether the module draws from a credential pool.
func (p ModuleProfile) IsRateLimited() bool { return p.RateLimit != nil }

// ProducesStream reports whether the module emits a discovery stream.
func (p ModuleProfile) ProducesStream() bool { return p.Produces != nil }

// ConsumesStream reports whether the module reads a discovery stream.
func (p ModuleProfile) ConsumesStream() bool { return p.Consumes != nil }

// Batchable reports whether the module accepts batched input.
func (p ModuleProfile) Batchable() bool { return p.SupportsBatching }

// Validate checks internal consistency of a single profile. Cross-module
// checks (dependency existence, cycles) belong to the registry.
func (p ModuleProfile) Validate() error {
	if p.Name == "" {
		return ErrEmptyModuleName
	}
	if p.SupportsBatching && p.MaxBatchSize <= 0 {
		return fmt.Errorf("%w: module %s declares batching without max_batch_size", ErrInvalidProfile, p.Name)
	}
	if len(p.ResourceTiers) == 0 {
		return fmt.Errorf("%w: module %s has no resource tiers", ErrInvalidProfile, p.Name)
	}
	for _, tier := range p.ResourceTiers {
		if tier.MinInput > tier.MaxInput {
			return fmt.Errorf("%w: module %s tier %q has min_input > max_input", ErrInvalidProfile, p.Name, tier.Label)
		}
	}
	if p.Produces != nil && p.Produces.Module != p.Name {
		return fmt.Errorf("%w: module %s declares produced stream owned by %s", ErrInvalidProfile, p.Name, p.Produces.Module)
	}
	if p.Consumes != nil && p.Consumes.Module == p.Name {
		return fmt.Errorf("%w: module %s consumes its own stream", ErrInvalidProfile, p.Name)
	}
	if p.RateLimit != nil && p.RateLimit.RotationInterval <= 0 {
		return fmt.Errorf("%w: module %s has non-positive rotation interval", ErrInvalidProfile, p.Name)
	}
	return nil
}
