// internal/core/usecases/dispatcher.go
package usecases

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"reconwave/internal/core/domain"
	"reconwave/internal/core/ports"
	"reconwave/internal/platform/logx"
	"reconwave/internal/platform/sizing"
)

// TaskEnv carries the per-run context of one module invocation: the job,
// the input batch, resolved stream keys and the line sink for streamed
// output.
type TaskEnv struct {
	JobID  string
	Target string

	// Inputs is the full input set; the dispatcher splits it into batches
	// according to the module's batching contract.
	Inputs []string

	StreamInKey  string
	StreamOutKey string

	// OnLine receives each stdout line of the running task.
	OnLine func(line string)
}

// Dispatcher launches module work as isolated execution units with a
// computed resource allocation and environment. Launches that fail to start
// (infra errors) are retried with bounded backoff; a launch that starts but
// exits in error is reported and not retried.
type Dispatcher struct {
	launcher ports.Launcher
	keys     ports.KeyProvider
	logger   logx.Logger

	maxLaunchRetries  int
	backoffBase       time.Duration
	backoffMultiplier float64
	safetyFactor      float64
}

// DispatcherOptions configures the dispatcher.
type DispatcherOptions struct {
	Launcher ports.Launcher
	Keys     ports.KeyProvider
	Logger   logx.Logger

	MaxLaunchRetries  int
	BackoffBase       time.Duration
	BackoffMultiplier float64

	// SafetyFactor pads the derived timeout:
	// estimated_duration_per_unit x max_batch_size x SafetyFactor.
	SafetyFactor float64
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	if opts.MaxLaunchRetries < 0 {
		opts.MaxLaunchRetries = 0
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 1 * time.Second
	}
	if opts.BackoffMultiplier < 1.0 {
		opts.BackoffMultiplier = 2.0
	}
	if opts.SafetyFactor <= 0 {
		opts.SafetyFactor = 1.5
	}
	if opts.Logger == nil {
		opts.Logger = logx.New()
	}

	return &Dispatcher{
		launcher:          opts.Launcher,
		keys:              opts.Keys,
		logger:            opts.Logger.With("component", "dispatcher"),
		maxLaunchRetries:  opts.MaxLaunchRetries,
		backoffBase:       opts.BackoffBase,
		backoffMultiplier: opts.BackoffMultiplier,
		safetyFactor:      opts.SafetyFactor,
	}
}

// Run executes one module over env.Inputs, splitting into batches of at
// most MaxBatchSize. Batches run sequentially inside one module run; the
// engine provides concurrency across modules.
func (d *Dispatcher) Run(ctx context.Context, profile domain.ModuleProfile, env TaskEnv) error {
	if len(env.Inputs) == 0 {
		return nil
	}

	var batches [][]string
	if profile.Batchable() {
		batches = sizing.SplitBatches(env.Inputs, profile.MaxBatchSize)
	} else {
		// One launch per input unit.
		for _, in := range env.Inputs {
			batches = append(batches, []string{in})
		}
	}

	for _, batch := range batches {
		if err := d.runBatch(ctx, profile, env, batch); err != nil {
			return err
		}
	}
	return nil
}

// runBatch sizes, launches and joins one execution unit.
func (d *Dispatcher) runBatch(ctx context.Context, profile domain.ModuleProfile, env TaskEnv, batch []string) error {
	alloc, err := sizing.Allocate(profile, len(batch))
	if err != nil {
		return err
	}

	spec := ports.TaskSpec{
		JobID:      env.JobID,
		Module:     profile.Name,
		Batch:      batch,
		Allocation: alloc,
		Env:        d.taskEnvironment(profile, env, batch),
		Timeout:    d.deriveTimeout(profile),
		OnLine:     env.OnLine,
	}

	if profile.IsRateLimited() {
		cred, err := d.keys.Acquire(ctx, profile.Name)
		if err != nil {
			return err
		}
		spec.Env["RECONWAVE_API_KEY"] = cred.Secret
		spec.Env["RECONWAVE_API_KEY_ID"] = cred.ID
	}

	handle, err := d.launchWithRetry(ctx, spec)
	if err != nil {
		return err
	}

	waitCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	result := handle.Wait(waitCtx)
	if result.Err != nil {
		if errors.Is(result.Err, context.DeadlineExceeded) && ctx.Err() == nil {
			handle.Stop()
			d.logger.Warn("module timed out",
				"module", profile.Name,
				"timeout", spec.Timeout.String(),
			)
			return fmt.Errorf("%w: %s after %s", domain.ErrModuleTimeout, profile.Name, spec.Timeout)
		}
		if ctx.Err() != nil {
			handle.Stop()
			return ctx.Err()
		}
		// The unit started and exited in error: report, never auto-retry.
		return fmt.Errorf("%w: %s exit=%d: %v", domain.ErrModuleRunFailure, profile.Name, result.ExitCode, result.Err)
	}

	d.logger.Debug("batch completed",
		"module", profile.Name,
		"batch_size", len(batch),
		"duration_ms", result.Duration.Milliseconds(),
	)
	return nil
}

// launchWithRetry retries infra-level launch failures with exponential
// backoff.
func (d *Dispatcher) launchWithRetry(ctx context.Context, spec ports.TaskSpec) (ports.TaskHandle, error) {
	var lastErr error
	for attempt := 0; attempt <= d.maxLaunchRetries; attempt++ {
		if attempt > 0 {
			backoff := d.calculateBackoff(attempt - 1)
			d.logger.Warn("retrying launch",
				"module", spec.Module,
				"attempt", attempt,
				"backoff_ms", backoff.Milliseconds(),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %s: %v", domain.ErrLaunchFailure, spec.Module, ctx.Err())
			}
		}

		handle, err := d.launcher.Launch(ctx, spec)
		if err == nil {
			return handle, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %v", domain.ErrLaunchFailure, spec.Module, d.maxLaunchRetries+1, lastErr)
}

// deriveTimeout computes the per-launch deadline from the module's declared
// throughput: estimated_duration_per_unit x max_batch_size x safety_factor.
func (d *Dispatcher) deriveTimeout(profile domain.ModuleProfile) time.Duration {
	if profile.EstimatedDurationPerUnit <= 0 {
		return 0
	}
	units := profile.MaxBatchSize
	if units < 1 {
		units = 1
	}
	return time.Duration(float64(profile.EstimatedDurationPerUnit) * float64(units) * d.safetyFactor)
}

// taskEnvironment builds the environment handed to the execution unit per
// the task environment contract.
func (d *Dispatcher) taskEnvironment(profile domain.ModuleProfile, env TaskEnv, batch []string) map[string]string {
	out := map[string]string{
		"RECONWAVE_JOB_ID": env.JobID,
		"RECONWAVE_MODULE": profile.Name,
		"RECONWAVE_TARGET": env.Target,
		"RECONWAVE_BATCH":  strings.Join(batch, ","),
		"RECONWAVE_SINK":   profile.OutputSink,
	}
	if env.StreamInKey != "" {
		out["RECONWAVE_STREAM_IN"] = env.StreamInKey
	}
	if env.StreamOutKey != "" {
		out["RECONWAVE_STREAM_OUT"] = env.StreamOutKey
	}
	return out
}

// calculateBackoff computes the exponential backoff delay, capped.
func (d *Dispatcher) calculateBackoff(attempt int) time.Duration {
	multiplier := math.Pow(d.backoffMultiplier, float64(attempt))
	backoff := time.Duration(float64(d.backoffBase) * multiplier)

	maxBackoff := 60 * time.Second
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}
