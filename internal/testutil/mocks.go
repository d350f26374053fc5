// internal/testutil/mocks.go
package testutil

import (
	"context"
	"sync"
	"time"

	"reconwave/internal/core/domain"
	"reconwave/internal/core/ports"
)

// FakeLauncher records launches and simulates task execution through a
// per-module behavior function.
type FakeLauncher struct {
	mu sync.Mutex

	// Behavior runs in place of the task. Its return value becomes the
	// task result error. Nil Behavior means instant success.
	Behavior func(spec ports.TaskSpec) error

	// LaunchErrs is consumed one per Launch call; a non-nil entry makes
	// that Launch fail at the infra level.
	LaunchErrs []error

	launches []ports.TaskSpec
}

// NewFakeLauncher creates a launcher whose tasks all succeed.
func NewFakeLauncher() *FakeLauncher {
	return &FakeLauncher{}
}

// Launch implements ports.Launcher.
func (f *FakeLauncher) Launch(ctx context.Context, spec ports.TaskSpec) (ports.TaskHandle, error) {
	f.mu.Lock()
	if len(f.LaunchErrs) > 0 {
		err := f.LaunchErrs[0]
		f.LaunchErrs = f.LaunchErrs[1:]
		if err != nil {
			f.mu.Unlock()
			return nil, err
		}
	}
	f.launches = append(f.launches, spec)
	behavior := f.Behavior
	f.mu.Unlock()

	h := &fakeHandle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		start := time.Now()
		var err error
		if behavior != nil {
			err = behavior(spec)
		}
		h.result = ports.TaskResult{Err: err, Duration: time.Since(start)}
		if err != nil {
			h.result.ExitCode = 1
		}
	}()
	return h, nil
}

// Launches returns a copy of all recorded launch specs.
func (f *FakeLauncher) Launches() []ports.TaskSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.TaskSpec{}, f.launches...)
}

// LaunchCount returns how many launches started successfully.
func (f *FakeLauncher) LaunchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.launches)
}

type fakeHandle struct {
	done    chan struct{}
	result  ports.TaskResult
	stopped bool
	mu      sync.Mutex
}

func (h *fakeHandle) Wait(ctx context.Context) ports.TaskResult {
	select {
	case <-h.done:
		return h.result
	case <-ctx.Done():
		return ports.TaskResult{Err: ctx.Err(), ExitCode: -1}
	}
}

func (h *fakeHandle) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
}

// MemoryAssetStore is an in-memory ports.AssetStore keyed like the SQL
// store: (target, sink, content key).
type MemoryAssetStore struct {
	mu     sync.Mutex
	assets map[string]ports.Asset

	// UpsertErr, when set, fails every UpsertAsset call.
	UpsertErr error
}

// NewMemoryAssetStore creates an empty store.
func NewMemoryAssetStore() *MemoryAssetStore {
	return &MemoryAssetStore{assets: make(map[string]ports.Asset)}
}

// UpsertAsset implements ports.AssetStore.
func (m *MemoryAssetStore) UpsertAsset(ctx context.Context, a ports.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	id := a.Target + "|" + a.Sink + "|" + a.Key()
	if existing, ok := m.assets[id]; ok {
		existing.LastSeen = a.LastSeen
		m.assets[id] = existing
		return nil
	}
	m.assets[id] = a
	return nil
}

// CountAssets implements ports.AssetStore.
func (m *MemoryAssetStore) CountAssets(ctx context.Context, target, sink string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.assets {
		if a.Target == target && a.Sink == sink {
			n++
		}
	}
	return n, nil
}

// StaleAssets implements ports.AssetStore.
func (m *MemoryAssetStore) StaleAssets(ctx context.Context, target, sink string, cutoff time.Time) ([]ports.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stale []ports.Asset
	for _, a := range m.assets {
		if a.Target == target && a.Sink == sink && a.LastSeen.Before(cutoff) {
			stale = append(stale, a)
		}
	}
	return stale, nil
}

// Close implements ports.AssetStore.
func (m *MemoryAssetStore) Close() error { return nil }

// All returns every stored asset.
func (m *MemoryAssetStore) All() []ports.Asset {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ports.Asset
	for _, a := range m.assets {
		out = append(out, a)
	}
	return out
}

// MemoryJobStore is an in-memory ports.JobStore.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]domain.JobSnapshot
}

// NewMemoryJobStore creates an empty job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]domain.JobSnapshot)}
}

// SaveJob implements ports.JobStore.
func (m *MemoryJobStore) SaveJob(ctx context.Context, snap domain.JobSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[snap.ID] = snap
	return nil
}

// LoadJob implements ports.JobStore.
func (m *MemoryJobStore) LoadJob(ctx context.Context, id string) (domain.JobSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.jobs[id]
	if !ok {
		return domain.JobSnapshot{}, domain.ErrJobNotFound
	}
	return snap, nil
}

// RecordingNotifier captures lifecycle events for assertions.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []ports.Event
}

// NewRecordingNotifier creates an empty notifier.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

// Notify implements ports.Notifier.
func (r *RecordingNotifier) Notify(ctx context.Context, event ports.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Close implements ports.Notifier.
func (r *RecordingNotifier) Close() error { return nil }

// Events returns a copy of captured events.
func (r *RecordingNotifier) Events() []ports.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.Event{}, r.events...)
}

// HasEvent reports whether an event of the given type was captured.
func (r *RecordingNotifier) HasEvent(eventType ports.EventType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Type == eventType {
			return true
		}
	}
	return false
}

// StaticKeyProvider always hands out the same credential.
type StaticKeyProvider struct {
	Cred ports.Credential
	Err  error

	mu    sync.Mutex
	calls int
}

// Acquire implements ports.KeyProvider.
func (s *StaticKeyProvider) Acquire(ctx context.Context, module string) (ports.Credential, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.Err != nil {
		return ports.Credential{}, s.Err
	}
	return s.Cred, nil
}

// AcquireCount returns how many times Acquire was called.
func (s *StaticKeyProvider) AcquireCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
