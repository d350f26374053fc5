// internal/platform/keypool/keypool.go

// Package keypool schedules external-API calls for quota-limited modules
// against a rotating credential pool. A pool is process-wide state shared by
// every concurrently running instance of its module, because quota is
// enforced per credential by the external service.
package keypool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"reconwave/internal/core/domain"
	"reconwave/internal/core/ports"
	"reconwave/internal/platform/logx"
)

// Pool is a round-robin credential pool with time-based eligibility.
// All mutation happens inside a single mutex critical section.
type Pool struct {
	mu sync.Mutex

	rotation time.Duration
	quota    int // uses per key per rotation interval
	dailyCap int // pool-wide cap, 0 = uncapped

	entries []*entry
	cursor  int

	dailyUsed int
	dayStart  time.Time

	now    func() time.Time // test hook
	logger logx.Logger
}

type entry struct {
	cred         ports.Credential
	windowStart  time.Time
	usedInWindow int
}

// New creates a pool from a credential set and a rate-limit policy.
func New(creds []ports.Credential, policy domain.RateLimitPolicy, logger logx.Logger) *Pool {
	quota := policy.QuotaPerKey
	if quota <= 0 {
		quota = 1
	}

	p := &Pool{
		rotation: policy.RotationInterval,
		quota:    quota,
		dailyCap: policy.DailyCap,
		now:      time.Now,
		logger:   logger.With("component", "keypool"),
	}
	for _, c := range creds {
		p.entries = append(p.entries, &entry{cred: c})
	}
	return p
}

// Acquire blocks until a credential is eligible, marks it used and returns
// it. Eligibility is consumed regardless of what the caller does with the
// credential: a failing external call still burns the interval.
//
// When every key is ineligible, Acquire waits for the earliest eligible
// time; if the context deadline elapses first it fails with QuotaExhausted.
// A reached daily cap fails fast with DailyQuotaExceeded irrespective of
// per-key eligibility.
func (p *Pool) Acquire(ctx context.Context) (ports.Credential, error) {
	for {
		cred, wait, err := p.TryAcquire()
		if err != nil {
			return ports.Credential{}, err
		}
		if wait == 0 {
			return cred, nil
		}

		select {
		case <-ctx.Done():
			return ports.Credential{}, fmt.Errorf("%w: next key eligible in %s: %v", domain.ErrQuotaExhausted, wait, ctx.Err())
		case <-time.After(wait):
		}
	}
}

// TryAcquire attempts a non-blocking acquisition. On success it returns the
// credential and zero wait. When no key is eligible it returns the wait
// until the earliest one becomes eligible.
func (p *Pool) TryAcquire() (ports.Credential, time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.rollDay(now)

	if len(p.entries) == 0 {
		return ports.Credential{}, 0, fmt.Errorf("%w: empty credential pool", domain.ErrQuotaExhausted)
	}
	if p.dailyCap > 0 && p.dailyUsed >= p.dailyCap {
		return ports.Credential{}, 0, fmt.Errorf("%w: %d calls today", domain.ErrDailyQuotaExceeded, p.dailyUsed)
	}

	// Round-robin scan from the cursor; a key is never dispatched before
	// its eligible time.
	n := len(p.entries)
	for i := 0; i < n; i++ {
		idx := (p.cursor + i) % n
		e := p.entries[idx]
		if e.eligibleAt(p.rotation, p.quota, now).After(now) {
			continue
		}

		if now.Sub(e.windowStart) >= p.rotation {
			e.windowStart = now
			e.usedInWindow = 0
		}
		e.usedInWindow++
		p.dailyUsed++
		p.cursor = (idx + 1) % n

		p.logger.Debug("credential acquired",
			"key", e.cred.ID,
			"window_uses", e.usedInWindow,
			"daily_used", p.dailyUsed,
		)
		return e.cred, 0, nil
	}

	earliest := p.entries[0].eligibleAt(p.rotation, p.quota, now)
	for _, e := range p.entries[1:] {
		if t := e.eligibleAt(p.rotation, p.quota, now); t.Before(earliest) {
			earliest = t
		}
	}
	return ports.Credential{}, earliest.Sub(now), nil
}

// NextEligible reports when the pool can next hand out a credential. Useful
// as a wait estimate for queued callers.
func (p *Pool) NextEligible() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if len(p.entries) == 0 {
		return now
	}
	earliest := p.entries[0].eligibleAt(p.rotation, p.quota, now)
	for _, e := range p.entries[1:] {
		if t := e.eligibleAt(p.rotation, p.quota, now); t.Before(earliest) {
			earliest = t
		}
	}
	return earliest
}

// eligibleAt returns the time at which the entry may next be used.
func (e *entry) eligibleAt(rotation time.Duration, quota int, now time.Time) time.Time {
	if now.Sub(e.windowStart) >= rotation {
		return now
	}
	if e.usedInWindow < quota {
		return now
	}
	return e.windowStart.Add(rotation)
}

// rollDay resets the pool-wide counter at the day boundary.
// Must be called with p.mu held.
func (p *Pool) rollDay(now time.Time) {
	day := now.Truncate(24 * time.Hour)
	if day.After(p.dayStart) {
		p.dayStart = day
		p.dailyUsed = 0
	}
}

// Manager owns one pool per rate-limited module and implements
// ports.KeyProvider. It is a single process-wide instance shared across
// jobs.
type Manager struct {
	mu     sync.RWMutex
	pools  map[string]*Pool
	logger logx.Logger
}

// NewManager creates an empty pool manager.
func NewManager(logger logx.Logger) *Manager {
	return &Manager{
		pools:  make(map[string]*Pool),
		logger: logger.With("component", "keypool-manager"),
	}
}

// Configure installs the credential pool for one module.
func (m *Manager) Configure(module string, creds []ports.Credential, policy domain.RateLimitPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pools[module] = New(creds, policy, m.logger)
	m.logger.Info("credential pool configured",
		"module", module,
		"keys", len(creds),
		"rotation", policy.RotationInterval.String(),
	)
}

// Acquire implements ports.KeyProvider.
func (m *Manager) Acquire(ctx context.Context, module string) (ports.Credential, error) {
	m.mu.RLock()
	pool, ok := m.pools[module]
	m.mu.RUnlock()

	if !ok {
		return ports.Credential{}, fmt.Errorf("%w: no credential pool for module %s", domain.ErrQuotaExhausted, module)
	}
	return pool.Acquire(ctx)
}
