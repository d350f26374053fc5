// internal/core/domain/errors.go
package domain

import "errors"

// Common domain errors. Planning-time errors abort a job before any
// resource is consumed; per-module errors stay local unless a later wave
// hard-depends on the failed module.
var (
	// Planning-time errors
	ErrCyclicDependency = errors.New("cyclic dependency between modules")
	ErrUnknownModule    = errors.New("unknown module")
	ErrInactiveModule   = errors.New("inactive module")
	ErrEmptyRequest     = errors.New("no modules requested")

	// Sizing errors (contract violations, fail fast)
	ErrCardinalityOutOfRange = errors.New("cardinality exceeds every resource tier")
	ErrBatchingNotSupported  = errors.New("module does not support batching")

	// Dispatch errors
	ErrLaunchFailure    = errors.New("task launch failed")
	ErrModuleRunFailure = errors.New("module run failed")
	ErrModuleTimeout    = errors.New("module exceeded derived timeout")
	ErrDependencyFailed = errors.New("hard dependency did not complete")

	// Rate limiter errors
	ErrQuotaExhausted     = errors.New("no credential eligible before deadline")
	ErrDailyQuotaExceeded = errors.New("pool-wide daily quota exceeded")

	// Stream errors
	ErrStreamClosed      = errors.New("stream closed")
	ErrStreamNotProduced = errors.New("consumed stream is not produced")

	// Job errors
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrJobCanceled       = errors.New("job canceled")
	ErrJobBudgetExceeded = errors.New("job wall-clock budget exceeded")

	// Profile/registry errors
	ErrEmptyModuleName = errors.New("module name cannot be empty")
	ErrInvalidProfile  = errors.New("invalid module profile")
	ErrDuplicateModule = errors.New("module already registered")

	// Target errors
	ErrEmptyTarget   = errors.New("target cannot be empty")
	ErrInvalidDomain = errors.New("invalid domain format")
)
