// internal/adapters/launcher/localexec.go

// Package launcher executes module tasks as local subprocesses. Scanner
// binaries receive their work through the task environment contract and
// stream discoveries line by line on stdout.
package launcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	"reconwave/internal/core/ports"
	"reconwave/internal/platform/logx"
)

const stopGrace = 5 * time.Second

// LocalExec implements ports.Launcher over os/exec. One launch is one
// subprocess; the resource allocation is advisory on a local substrate and
// only exported into the environment.
type LocalExec struct {
	binPrefix string
	logger    logx.Logger
}

// Options configures the local launcher.
type Options struct {
	// BinPrefix is prepended to the module name to form the binary name,
	// e.g. "reconwave-" resolves module dnsx to reconwave-dnsx on PATH.
	BinPrefix string

	Logger logx.Logger
}

// New creates a local subprocess launcher.
func New(opts Options) *LocalExec {
	if opts.BinPrefix == "" {
		opts.BinPrefix = "reconwave-"
	}
	if opts.Logger == nil {
		opts.Logger = logx.New()
	}
	return &LocalExec{
		binPrefix: opts.BinPrefix,
		logger:    opts.Logger.With("component", "launcher"),
	}
}

// Launch starts the module binary. A resolution or start error is an
// infra-level failure; anything after a successful start surfaces through
// the returned handle.
func (l *LocalExec) Launch(ctx context.Context, spec ports.TaskSpec) (ports.TaskHandle, error) {
	path, err := exec.LookPath(l.binPrefix + spec.Module)
	if err != nil {
		return nil, fmt.Errorf("resolve %s%s: %w", l.binPrefix, spec.Module, err)
	}

	cmd := exec.CommandContext(ctx, path, spec.Batch...)
	cmd.Env = mergedEnv(spec.Env)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", path, err)
	}

	logger := l.logger.With("module", spec.Module, "job", spec.JobID)
	logger.Debug("subprocess started",
		"pid", cmd.Process.Pid,
		"batch_size", len(spec.Batch),
		"cpu", spec.Allocation.CPU,
		"memory_mb", spec.Allocation.MemoryMB,
	)

	h := &procHandle{
		cmd:    cmd,
		done:   make(chan struct{}),
		logger: logger,
	}

	// Stderr drains in the background so a chatty scanner cannot block on
	// a full pipe.
	var stderrOut []byte
	var stderrMu sync.Mutex
	var ioWg sync.WaitGroup
	ioWg.Add(2)

	go func() {
		defer ioWg.Done()
		data, readErr := io.ReadAll(stderr)
		if readErr != nil {
			logger.Warn("error reading stderr", "error", readErr.Error())
		}
		stderrMu.Lock()
		stderrOut = data
		stderrMu.Unlock()
	}()

	go func() {
		defer ioWg.Done()
		scanner := bufio.NewScanner(stdout)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 10*1024*1024)
		for scanner.Scan() {
			if spec.OnLine != nil {
				spec.OnLine(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Warn("scanner error", "error", err.Error())
		}
	}()

	go func() {
		start := time.Now()
		ioWg.Wait()
		waitErr := cmd.Wait()

		result := ports.TaskResult{Duration: time.Since(start)}
		if waitErr != nil {
			result.Err = waitErr
			result.ExitCode = cmd.ProcessState.ExitCode()
			stderrMu.Lock()
			tail := lastLines(string(stderrOut), 5)
			stderrMu.Unlock()
			if tail != "" {
				logger.Warn("subprocess stderr", "tail", tail)
			}
		}
		h.finish(result)
	}()

	return h, nil
}

// procHandle tracks one running subprocess.
type procHandle struct {
	cmd    *exec.Cmd
	logger logx.Logger

	mu     sync.Mutex
	result ports.TaskResult
	done   chan struct{}

	stopOnce sync.Once
}

func (h *procHandle) finish(result ports.TaskResult) {
	h.mu.Lock()
	h.result = result
	h.mu.Unlock()
	close(h.done)
}

// Wait implements ports.TaskHandle.
func (h *procHandle) Wait(ctx context.Context) ports.TaskResult {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.result
	case <-ctx.Done():
		return ports.TaskResult{Err: ctx.Err(), ExitCode: -1}
	}
}

// Stop terminates the subprocess: SIGTERM first, SIGKILL after a grace
// period. Idempotent.
func (h *procHandle) Stop() {
	h.stopOnce.Do(func() {
		proc := h.cmd.Process
		if proc == nil {
			return
		}
		if err := proc.Signal(syscall.SIGTERM); err != nil {
			return
		}
		go func() {
			select {
			case <-h.done:
			case <-time.After(stopGrace):
				h.logger.Warn("subprocess ignored SIGTERM, killing", "pid", proc.Pid)
				proc.Kill()
			}
		}()
	})
}

// mergedEnv overlays the task environment on the parent environment.
func mergedEnv(taskEnv map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(taskEnv))
	for k := range taskEnv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+taskEnv[k])
	}
	return env
}

func lastLines(s string, n int) string {
	if s == "" {
		return ""
	}
	lines := 0
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			lines++
			if lines > n {
				return s[i+1:]
			}
		}
	}
	return s
}
