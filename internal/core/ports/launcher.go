// internal/core/ports/launcher.go
package ports

import (
	"context"
	"time"

	"reconwave/internal/core/domain"
)

// TaskSpec describes one isolated execution unit handed to the launcher.
// It carries the full task environment contract: job id, input batch, the
// module's output sink, resolved stream keys and (for rate-limited modules)
// the acquired credential.
type TaskSpec struct {
	JobID  string
	Module string

	// Batch is the domain/URL list for this launch.
	Batch []string

	Allocation domain.Allocation

	// Env is the flattened environment handed to the execution unit.
	Env map[string]string

	// Timeout is the derived per-launch deadline. Zero means none.
	Timeout time.Duration

	// OnLine, when set, receives each stdout line as the task emits it.
	// Producer modules stream their discoveries through it.
	OnLine func(line string)
}

// TaskResult is the terminal outcome of one launched unit.
type TaskResult struct {
	ExitCode int
	Err      error
	Duration time.Duration
}

// Failed reports whether the task ended in error.
func (r TaskResult) Failed() bool { return r.Err != nil }

// TaskHandle tracks one in-flight launch.
type TaskHandle interface {
	// Wait blocks until the task reaches a terminal state or ctx is done.
	Wait(ctx context.Context) TaskResult

	// Stop signals the task to terminate. Idempotent.
	Stop()
}

// Launcher is the task-launcher capability of the execution substrate:
// it accepts a resource spec and environment and returns a handle.
// An error from Launch is an infra-level failure (retryable); failures of
// the task itself surface through the handle.
type Launcher interface {
	Launch(ctx context.Context, spec TaskSpec) (TaskHandle, error)
}
