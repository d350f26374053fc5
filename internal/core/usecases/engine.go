// internal/core/usecases/engine.go
package usecases

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"reconwave/internal/core/domain"
	"reconwave/internal/core/ports"
	"reconwave/internal/platform/logx"
	"reconwave/internal/platform/registry"
	"reconwave/internal/platform/validator"
)

// ScanRequest is one orchestration request as submitted by a caller.
type ScanRequest struct {
	Target  string
	Modules []string

	// AllowPartial tolerates failed independent branches. Defaults to the
	// engine-wide setting when nil.
	AllowPartial *bool
}

// Engine drives a scan job through its lifecycle: plan, execute in waves,
// finalize. It owns the per-job state machines and is the only writer of
// job and module states.
type Engine struct {
	registry   *registry.ModuleRegistry
	planner    *Planner
	dispatcher *Dispatcher
	bus        ports.StreamBus
	assets     ports.AssetStore
	jobStore   ports.JobStore
	notifiers  []ports.Notifier
	logger     logx.Logger

	jobBudget    time.Duration
	allowPartial bool

	mu   sync.RWMutex
	jobs map[string]*jobEntry
}

type jobEntry struct {
	job    *domain.ScanJob
	cancel context.CancelFunc
}

// EngineOptions wires the engine's collaborators.
type EngineOptions struct {
	Registry   *registry.ModuleRegistry
	Planner    *Planner
	Dispatcher *Dispatcher
	Bus        ports.StreamBus
	Assets     ports.AssetStore
	JobStore   ports.JobStore
	Notifiers  []ports.Notifier
	Logger     logx.Logger

	// JobBudget bounds one job's total runtime. Zero means unbounded.
	JobBudget time.Duration

	// AllowPartial is the default partial-failure tolerance.
	AllowPartial bool
}

// NewEngine creates the orchestration engine.
func NewEngine(opts EngineOptions) *Engine {
	if opts.Logger == nil {
		opts.Logger = logx.New()
	}
	return &Engine{
		registry:     opts.Registry,
		planner:      opts.Planner,
		dispatcher:   opts.Dispatcher,
		bus:          opts.Bus,
		assets:       opts.Assets,
		jobStore:     opts.JobStore,
		notifiers:    opts.Notifiers,
		logger:       opts.Logger.With("component", "engine"),
		jobBudget:    opts.JobBudget,
		allowPartial: opts.AllowPartial,
		jobs:         make(map[string]*jobEntry),
	}
}

// Execute runs one scan job to completion and returns its final snapshot.
// Planning failures reject the request before any task launches.
func (e *Engine) Execute(ctx context.Context, req ScanRequest) (domain.JobSnapshot, error) {
	target := validator.NormalizeDomain(req.Target)
	if !validator.IsDomain(target) {
		return domain.JobSnapshot{}, fmt.Errorf("%w: %s", domain.ErrInvalidDomain, req.Target)
	}

	allowPartial := e.allowPartial
	if req.AllowPartial != nil {
		allowPartial = *req.AllowPartial
	}

	apex := []string{target}
	if a := validator.Apex(target); a != target {
		apex = append(apex, a)
	}

	job := domain.NewScanJob(newJobID(), target, apex, req.Modules, allowPartial)
	logger := e.logger.With("job", job.ID, "target", target)

	jobCtx := ctx
	var cancel context.CancelFunc
	if e.jobBudget > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, e.jobBudget)
	} else {
		jobCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	e.mu.Lock()
	e.jobs[job.ID] = &jobEntry{job: job, cancel: cancel}
	e.mu.Unlock()

	plan, err := e.planner.Plan(req.Modules)
	if err != nil {
		logger.Err(err, "stage", "planning")
		job.SetState(domain.JobStateFailed)
		e.notify(ports.NewEvent(ports.EventTypeJobFailed, job.ID, "", "planning failed: "+err.Error()))
		e.persist(job)
		return job.Snapshot(), err
	}
	if err := job.SetPlan(plan); err != nil {
		return job.Snapshot(), err
	}
	e.notify(ports.NewEvent(ports.EventTypeJobPlanned, job.ID, "",
		fmt.Sprintf("%d modules in %d waves", len(plan.Modules()), len(plan.Waves))))

	// Every consumer subscribes before any producer starts: the stream
	// sequence is non-restartable.
	subs, err := e.subscribeConsumers(job, plan)
	if err != nil {
		job.SetState(domain.JobStateFailed)
		e.persist(job)
		return job.Snapshot(), err
	}

	job.SetState(domain.JobStateRunning)
	e.notify(ports.NewEvent(ports.EventTypeJobStarted, job.ID, "", "execution started"))
	logger.Info("job started", "modules", len(plan.Modules()), "waves", len(plan.Waves))

	for _, wave := range plan.Waves {
		if jobCtx.Err() != nil {
			break
		}
		var wg sync.WaitGroup
		for _, name := range wave.Modules {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				e.runModule(jobCtx, job, name, subs[name])
			}(name)
		}
		wg.Wait()
	}

	snap := e.finalize(jobCtx, job, plan)
	e.bus.CloseJob(job.ID)
	e.persist(job)
	return snap, nil
}

// Cancel aborts a running job. Modules already completed keep their results.
func (e *Engine) Cancel(jobID string) error {
	e.mu.RLock()
	entry := e.jobs[jobID]
	e.mu.RUnlock()

	if entry == nil {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	if entry.job.State().Terminal() {
		return fmt.Errorf("%w: job %s already %s", domain.ErrInvalidTransition, jobID, entry.job.State())
	}
	entry.cancel()
	e.notify(ports.NewEvent(ports.EventTypeJobCanceled, jobID, "", "canceled by caller"))
	return nil
}

// JobSnapshot returns the current state of a job, falling back to the job
// store for jobs no longer in memory.
func (e *Engine) JobSnapshot(ctx context.Context, jobID string) (domain.JobSnapshot, error) {
	e.mu.RLock()
	entry := e.jobs[jobID]
	e.mu.RUnlock()

	if entry != nil {
		return entry.job.Snapshot(), nil
	}
	if e.jobStore != nil {
		return e.jobStore.LoadJob(ctx, jobID)
	}
	return domain.JobSnapshot{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
}

// subscribeConsumers attaches one subscription per stream-consuming module.
func (e *Engine) subscribeConsumers(job *domain.ScanJob, plan *domain.ExecutionPlan) (map[string]ports.Subscription, error) {
	subs := make(map[string]ports.Subscription)
	for _, name := range plan.Modules() {
		profile, ok := e.registry.Get(name)
		if !ok || !profile.ConsumesStream() {
			continue
		}
		sub, err := e.bus.Subscribe(job.ID, profile.Consumes.Key(job.ID))
		if err != nil {
			for _, s := range subs {
				s.Close()
			}
			return nil, err
		}
		subs[name] = sub
	}
	return subs, nil
}

// runModule executes one scheduled module: dependency gate, input
// resolution, dispatch, state bookkeeping.
func (e *Engine) runModule(ctx context.Context, job *domain.ScanJob, name string, sub ports.Subscription) {
	profile, ok := e.registry.Get(name)
	if !ok {
		job.SetModuleState(name, domain.ModuleStateFailed)
		job.SetModuleError(name, fmt.Errorf("%w: %s", domain.ErrUnknownModule, name))
		return
	}

	// A producer key must always complete, even when the module never
	// launches, so blocked consumers can finish.
	if profile.ProducesStream() {
		defer e.bus.EndProduce(profile.Produces.Key(job.ID))
	}

	for _, dep := range profile.Dependencies {
		if job.ModuleState(dep) != domain.ModuleStateCompleted {
			err := fmt.Errorf("%w: %s requires %s", domain.ErrDependencyFailed, name, dep)
			job.SetModuleState(name, domain.ModuleStateFailed)
			job.SetModuleError(name, err)
			if sub != nil {
				sub.Close()
			}
			e.notify(ports.NewEvent(ports.EventTypeModuleFailed, job.ID, name, err.Error()))
			return
		}
	}

	job.SetModuleState(name, domain.ModuleStateRunning)
	e.notify(ports.NewEvent(ports.EventTypeModuleStarted, job.ID, name, ""))

	var err error
	if profile.ConsumesStream() {
		err = e.runConsumer(ctx, job, profile, sub)
	} else {
		err = e.runSource(ctx, job, profile)
	}

	if err != nil {
		e.logger.Err(err, "job", job.ID, "module", name)
		job.SetModuleState(name, domain.ModuleStateFailed)
		job.SetModuleError(name, err)
		e.notify(ports.NewEvent(ports.EventTypeModuleFailed, job.ID, name, err.Error()))
		return
	}

	job.SetModuleState(name, domain.ModuleStateCompleted)
	e.notify(ports.NewEvent(ports.EventTypeModuleCompleted, job.ID, name, ""))
}

// runSource runs a module whose inputs are the job's apex domains, plus
// any of its own findings due for a re-probe.
func (e *Engine) runSource(ctx context.Context, job *domain.ScanJob, profile domain.ModuleProfile) error {
	env := e.taskEnv(job, profile)
	env.Inputs = append([]string{}, job.ApexDomains...)
	for _, a := range e.staleFindings(ctx, job, profile) {
		env.Inputs = append(env.Inputs, a.Value)
	}
	return e.dispatcher.Run(ctx, profile, env)
}

// staleFindings returns the module's own sink entries not seen within its
// TTL window. Feeding them back keeps previously discovered assets fresh
// without waiting for upstream modules to rediscover them.
func (e *Engine) staleFindings(ctx context.Context, job *domain.ScanJob, profile domain.ModuleProfile) []ports.Asset {
	if profile.TTL == nil || e.assets == nil {
		return nil
	}
	cutoff := time.Now().Add(-profile.TTL.RescanAfter)
	stale, err := e.assets.StaleAssets(ctx, job.Target, profile.OutputSink, cutoff)
	if err != nil {
		e.logger.Warn("stale asset query failed",
			"job", job.ID, "module", profile.Name, "error", err.Error())
		return nil
	}
	return stale
}

// runConsumer drains the module's input stream into batches, launching each
// batch and persisting its records idempotently after a successful run.
// At-least-once delivery is absorbed by content-keyed upserts.
func (e *Engine) runConsumer(ctx context.Context, job *domain.ScanJob, profile domain.ModuleProfile, sub ports.Subscription) error {
	if sub == nil {
		return fmt.Errorf("%w: no subscription for %s", domain.ErrStreamClosed, profile.Name)
	}
	defer sub.Close()

	batchCap := 1
	if profile.Batchable() {
		batchCap = profile.MaxBatchSize
	}

	var batch []domain.StreamRecord
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		env := e.taskEnv(job, profile)
		for _, rec := range batch {
			env.Inputs = append(env.Inputs, rec.Value)
		}
		if err := e.dispatcher.Run(ctx, profile, env); err != nil {
			return err
		}
		for _, rec := range batch {
			if err := e.persistRecord(ctx, job, profile, rec); err != nil {
				return err
			}
		}
		batch = batch[:0]
		return nil
	}

	// Findings past their TTL are re-probed ahead of the live stream; the
	// run afterwards refreshes their last-seen timestamps.
	for _, a := range e.staleFindings(ctx, job, profile) {
		batch = append(batch, domain.NewStreamRecord(job.ID, a.Source, a.Kind, a.Value))
		if len(batch) >= batchCap {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	streaming := false
	for {
		select {
		case rec, open := <-sub.Records():
			if !open {
				return flush()
			}
			if !streaming {
				streaming = true
				job.SetModuleState(profile.Name, domain.ModuleStateStreaming)
				e.notify(ports.NewEvent(ports.EventTypeModuleStreaming, job.ID, profile.Name, ""))
			}
			batch = append(batch, rec)
			if len(batch) >= batchCap {
				if err := flush(); err != nil {
					return err
				}
			}
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("%w: %s", domain.ErrJobBudgetExceeded, profile.Name)
			}
			return fmt.Errorf("%w: %s", domain.ErrJobCanceled, profile.Name)
		}
	}
}

// taskEnv builds the dispatch environment shared by all of one module's
// launches, wiring stream keys and the producer line sink.
func (e *Engine) taskEnv(job *domain.ScanJob, profile domain.ModuleProfile) TaskEnv {
	env := TaskEnv{
		JobID:  job.ID,
		Target: job.Target,
	}
	if profile.ConsumesStream() {
		env.StreamInKey = profile.Consumes.Key(job.ID)
	}
	if profile.ProducesStream() {
		outKey := profile.Produces.Key(job.ID)
		env.StreamOutKey = outKey
		streaming := false
		env.OnLine = func(line string) {
			value := strings.TrimSpace(line)
			if value == "" {
				return
			}
			rec := domain.NewStreamRecord(job.ID, profile.Name, profile.Produces.Kind, value)
			if err := e.bus.Publish(context.Background(), outKey, rec); err != nil {
				e.logger.Err(err, "job", job.ID, "module", profile.Name, "stage", "publish")
				return
			}
			job.AddStreamRecords(profile.Name, 1)
			if !streaming {
				streaming = true
				job.SetModuleState(profile.Name, domain.ModuleStateStreaming)
				e.notify(ports.NewEvent(ports.EventTypeModuleStreaming, job.ID, profile.Name, ""))
			}
			if e.assets != nil {
				// Producer persistence is best-effort: the record is already
				// on the stream, so its consumers still see it.
				if err := e.persistRecord(context.Background(), job, profile, rec); err != nil {
					e.logger.Err(err, "job", job.ID, "module", profile.Name, "stage", "persist")
				}
			}
		}
	}
	return env
}

// persistRecord upserts one discovery into the module's output sink.
func (e *Engine) persistRecord(ctx context.Context, job *domain.ScanJob, profile domain.ModuleProfile, rec domain.StreamRecord) error {
	if e.assets == nil {
		return nil
	}
	now := time.Now()
	return e.assets.UpsertAsset(ctx, ports.Asset{
		Target:    job.Target,
		Sink:      profile.OutputSink,
		Kind:      rec.Kind,
		Value:     domain.NormalizeValue(rec.Value),
		Source:    profile.Name,
		JobID:     job.ID,
		FirstSeen: now,
		LastSeen:  now,
	})
}

// finalize derives the terminal job state from per-module outcomes.
func (e *Engine) finalize(ctx context.Context, job *domain.ScanJob, plan *domain.ExecutionPlan) domain.JobSnapshot {
	if ctx.Err() != nil {
		job.SetState(domain.JobStateFailed)
		if ctx.Err() == context.DeadlineExceeded {
			e.notify(ports.NewEvent(ports.EventTypeJobFailed, job.ID, "", "job budget exceeded"))
		} else {
			e.notify(ports.NewEvent(ports.EventTypeJobCanceled, job.ID, "", "job canceled"))
		}
		return job.Snapshot()
	}

	var failed []string
	for _, name := range plan.Modules() {
		if job.ModuleState(name) == domain.ModuleStateFailed {
			failed = append(failed, name)
		}
	}

	switch {
	case len(failed) == 0:
		job.SetState(domain.JobStateCompleted)
		e.notify(ports.NewEvent(ports.EventTypeJobCompleted, job.ID, "", "all modules completed"))
	case !job.AllowPartial, e.failureCascades(plan, failed):
		job.SetState(domain.JobStateFailed)
		e.notify(ports.NewEvent(ports.EventTypeJobFailed, job.ID, "",
			fmt.Sprintf("%d modules failed", len(failed))))
	default:
		job.SetState(domain.JobStatePartiallyFailed)
		e.notify(ports.NewEvent(ports.EventTypeJobPartial, job.ID, "",
			fmt.Sprintf("%d independent modules failed", len(failed))))
	}
	return job.Snapshot()
}

// failureCascades reports whether any failed module has scheduled
// dependents, meaning the failure propagated beyond its own branch.
func (e *Engine) failureCascades(plan *domain.ExecutionPlan, failed []string) bool {
	failedSet := make(map[string]bool, len(failed))
	for _, name := range failed {
		failedSet[name] = true
	}
	for _, name := range plan.Modules() {
		profile, ok := e.registry.Get(name)
		if !ok {
			continue
		}
		for _, dep := range profile.Dependencies {
			if failedSet[dep] {
				return true
			}
		}
	}
	return false
}

// notify fans an event out to every notifier. Notification failures are
// logged and never affect the job.
func (e *Engine) notify(event ports.Event) {
	for _, n := range e.notifiers {
		if err := n.Notify(context.Background(), event); err != nil {
			e.logger.Warn("notify failed", "type", string(event.Type), "error", err.Error())
		}
	}
}

// persist saves the job snapshot for post-completion status queries.
func (e *Engine) persist(job *domain.ScanJob) {
	if e.jobStore == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.jobStore.SaveJob(ctx, job.Snapshot()); err != nil {
		e.logger.Warn("failed to persist job", "job", job.ID, "error", err.Error())
	}
}

// newJobID returns a random 12-hex-char job identifier.
func newJobID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("job-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
