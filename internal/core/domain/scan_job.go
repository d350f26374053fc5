// internal/core/domain/scan_job.go
package domain

import (
	"fmt"
	"sync"
	"time"
)

// JobState is the orchestration state of one scan job.
// Transitions are monotonic: Planning -> Running -> terminal.
type JobState string

const (
	JobStatePlanning        JobState = "planning"
	JobStateRunning         JobState = "running"
	JobStateCompleted       JobState = "completed"
	JobStatePartiallyFailed JobState = "partially_failed"
	JobStateFailed          JobState = "failed"
)

// jobStateRank orders states so transitions can only move forward.
var jobStateRank = map[JobState]int{
	JobStatePlanning:        0,
	JobStateRunning:         1,
	JobStateCompleted:       2,
	JobStatePartiallyFailed: 2,
	JobStateFailed:          2,
}

// Terminal reports whether the job state accepts no further transitions.
func (s JobState) Terminal() bool { return jobStateRank[s] >= 2 }

// ModuleState is the per-module run state within a job.
type ModuleState string

const (
	ModuleStatePending   ModuleState = "pending"
	ModuleStateRunning   ModuleState = "running"
	ModuleStateStreaming ModuleState = "streaming"
	ModuleStateCompleted ModuleState = "completed"
	ModuleStateFailed    ModuleState = "failed"
)

var moduleStateRank = map[ModuleState]int{
	ModuleStatePending:   0,
	ModuleStateRunning:   1,
	ModuleStateStreaming: 2,
	ModuleStateCompleted: 3,
	ModuleStateFailed:    3,
}

// Terminal reports whether the module reached a final state.
func (s ModuleState) Terminal() bool { return moduleStateRank[s] >= 3 }

// ScanJob is one orchestration request: a target, its apex domains, the
// requested module set and the per-module run state. The resolved plan is
// computed once during planning and is immutable afterwards.
//
// ScanJob is safe for concurrent use: the engine mutates it while the
// status endpoint reads snapshots.
type ScanJob struct {
	mu sync.RWMutex

	ID          string
	Target      string
	ApexDomains []string
	Requested   []string

	// AllowPartial tolerates failed independent branches; with it false
	// any module failure fails the whole job.
	AllowPartial bool

	plan         *ExecutionPlan
	state        JobState
	moduleStates map[string]ModuleState
	moduleErrors map[string]error
	streamCounts map[string]int64

	CreatedAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
}

// NewScanJob creates a job in Planning state.
func NewScanJob(id, target string, apex, requested []string, allowPartial bool) *ScanJob {
	return &ScanJob{
		ID:           id,
		Target:       target,
		ApexDomains:  apex,
		Requested:    requested,
		AllowPartial: allowPartial,
		state:        JobStatePlanning,
		moduleStates: make(map[string]ModuleState),
		moduleErrors: make(map[string]error),
		streamCounts: make(map[string]int64),
		CreatedAt:    time.Now(),
	}
}

// SetPlan records the resolved execution plan. It may be set exactly once.
func (j *ScanJob) SetPlan(plan *ExecutionPlan) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.plan != nil {
		return fmt.Errorf("%w: plan already resolved", ErrInvalidTransition)
	}
	j.plan = plan
	for _, wave := range plan.Waves {
		for _, name := range wave.Modules {
			j.moduleStates[name] = ModuleStatePending
		}
	}
	return nil
}

// Plan returns the resolved plan (nil until planning succeeds).
func (j *ScanJob) Plan() *ExecutionPlan {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.plan
}

// State returns the current job state.
func (j *ScanJob) State() JobState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// SetState advances the job state. Backward transitions are rejected.
func (j *ScanJob) SetState(next JobState) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if jobStateRank[next] < jobStateRank[j.state] || j.state.Terminal() {
		return fmt.Errorf("%w: job %s cannot move %s -> %s", ErrInvalidTransition, j.ID, j.state, next)
	}
	if next == JobStateRunning && j.startedAt.IsZero() {
		j.startedAt = time.Now()
	}
	if next.Terminal() {
		j.finishedAt = time.Now()
	}
	j.state = next
	return nil
}

// ModuleState returns the state of one module in the plan.
func (j *ScanJob) ModuleState(name string) ModuleState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.moduleStates[name]
}

// SetModuleState advances one module's state. Backward transitions are
// rejected so terminal states stick.
func (j *ScanJob) SetModuleState(name string, next ModuleState) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	current, ok := j.moduleStates[name]
	if !ok {
		return fmt.Errorf("%w: %s not in plan for job %s", ErrUnknownModule, name, j.ID)
	}
	if moduleStateRank[next] < moduleStateRank[current] || current.Terminal() {
		return fmt.Errorf("%w: module %s cannot move %s -> %s", ErrInvalidTransition, name, current, next)
	}
	j.moduleStates[name] = next
	return nil
}

// SetModuleError records the failure reason alongside the failed state.
func (j *ScanJob) SetModuleError(name string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.moduleErrors[name] = err
}

// ModuleError returns the recorded failure reason for a module, if any.
func (j *ScanJob) ModuleError(name string) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.moduleErrors[name]
}

// AddStreamRecords bumps the running record count for a streaming module.
func (j *ScanJob) AddStreamRecords(module string, n int64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.streamCounts[module] += n
}

// ModuleStatus is the externally visible state of one module.
type ModuleStatus struct {
	State   ModuleState `json:"state"`
	Records int64       `json:"records,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// JobSnapshot is a point-in-time copy of a job for status reporting and
// persistence.
type JobSnapshot struct {
	ID          string                  `json:"id"`
	Target      string                  `json:"target"`
	ApexDomains []string                `json:"apex_domains"`
	Requested   []string                `json:"requested"`
	State       JobState                `json:"state"`
	Modules     map[string]ModuleStatus `json:"modules"`
	Waves       [][]string              `json:"waves,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	StartedAt   time.Time               `json:"started_at,omitempty"`
	FinishedAt  time.Time               `json:"finished_at,omitempty"`
}

// Snapshot copies the job state for external consumers.
func (j *ScanJob) Snapshot() JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	snap := JobSnapshot{
		ID:          j.ID,
		Target:      j.Target,
		ApexDomains: append([]string{}, j.ApexDomains...),
		Requested:   append([]string{}, j.Requested...),
		State:       j.state,
		Modules:     make(map[string]ModuleStatus, len(j.moduleStates)),
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.startedAt,
		FinishedAt:  j.finishedAt,
	}
	for name, state := range j.moduleStates {
		status := ModuleStatus{State: state, Records: j.streamCounts[name]}
		if err := j.moduleErrors[name]; err != nil {
			status.Error = err.Error()
		}
		snap.Modules[name] = status
	}
	if j.plan != nil {
		for _, wave := range j.plan.Waves {
			snap.Waves = append(snap.Waves, append([]string{}, wave.Modules...))
		}
	}
	return snap
}
