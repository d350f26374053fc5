// internal/platform/sizing/sizer.go

// Package sizing maps input cardinality to compute allocations using a
// module's tiered scaling table.
package sizing

import (
	"fmt"

	"reconwave/internal/core/domain"
)

// Allocate returns the compute allocation for a launch of the given
// cardinality. Tiers are scanned in declaration order and the first tier
// whose inclusive range contains the cardinality wins, so the result is
// deterministic. Registry well-formedness is not re-validated here; that
// belongs to registration.
//
// A cardinality above every tier's max fails with CardinalityOutOfRange:
// the caller must split the input into batches of at most MaxBatchSize.
func Allocate(profile domain.ModuleProfile, cardinality int) (domain.Allocation, error) {
	if cardinality <= 0 {
		return domain.Allocation{}, fmt.Errorf("%w: cardinality %d for module %s", domain.ErrCardinalityOutOfRange, cardinality, profile.Name)
	}
	if !profile.SupportsBatching && cardinality != 1 {
		return domain.Allocation{}, fmt.Errorf("%w: module %s got cardinality %d", domain.ErrBatchingNotSupported, profile.Name, cardinality)
	}

	for _, tier := range profile.ResourceTiers {
		if tier.Contains(cardinality) {
			return domain.Allocation{
				CPU:      tier.CPU,
				MemoryMB: tier.MemoryMB,
				Tier:     tier.Label,
			}, nil
		}
	}

	return domain.Allocation{}, fmt.Errorf("%w: module %s cardinality %d", domain.ErrCardinalityOutOfRange, profile.Name, cardinality)
}

// SplitBatches chunks inputs into slices of at most size, preserving order.
func SplitBatches(inputs []string, size int) [][]string {
	if size <= 0 || len(inputs) == 0 {
		if len(inputs) == 0 {
			return nil
		}
		return [][]string{inputs}
	}

	batches := make([][]string, 0, (len(inputs)+size-1)/size)
	for start := 0; start < len(inputs); start += size {
		end := start + size
		if end > len(inputs) {
			end = len(inputs)
		}
		batches = append(batches, inputs[start:end])
	}
	return batches
}
