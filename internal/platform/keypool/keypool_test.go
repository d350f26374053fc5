// internal/platform/keypool/keypool_test.go
package keypool

import (
	"context"
	"errors"
	"testing"
	"time"

	"reconwave/internal/core/domain"
	"reconwave/internal/core/ports"
	"reconwave/internal/platform/logx"
)

func twoKeyPool(rotation time.Duration, dailyCap int) *Pool {
	return New(
		[]ports.Credential{{ID: "key-a", Secret: "sa"}, {ID: "key-b", Secret: "sb"}},
		domain.RateLimitPolicy{QuotaPerKey: 1, RotationInterval: rotation, DailyCap: dailyCap},
		logx.NewSilent(),
	)
}

func TestPool_RoundRobinRotation(t *testing.T) {
	pool := twoKeyPool(15*time.Second, 0)
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	pool.now = func() time.Time { return now }

	// t=0: key A, then key B, both immediately.
	a, wait, err := pool.TryAcquire()
	if err != nil || wait != 0 {
		t.Fatalf("first acquire: wait=%s err=%v", wait, err)
	}
	b, wait, err := pool.TryAcquire()
	if err != nil || wait != 0 {
		t.Fatalf("second acquire: wait=%s err=%v", wait, err)
	}
	if a.ID == b.ID {
		t.Fatalf("round robin should alternate keys, got %s twice", a.ID)
	}

	// Third call must wait the full rotation interval.
	_, wait, err = pool.TryAcquire()
	if err != nil {
		t.Fatalf("third acquire errored: %v", err)
	}
	if wait != 15*time.Second {
		t.Errorf("third acquire wait: got %s, want 15s", wait)
	}

	// At t=15s key A is eligible again, in rotation order.
	now = now.Add(15 * time.Second)
	c, wait, err := pool.TryAcquire()
	if err != nil || wait != 0 {
		t.Fatalf("acquire after rotation: wait=%s err=%v", wait, err)
	}
	if c.ID != a.ID {
		t.Errorf("rotation should return to %s, got %s", a.ID, c.ID)
	}
}

func TestPool_NeverSameKeyWithinInterval(t *testing.T) {
	pool := twoKeyPool(15*time.Second, 0)
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	pool.now = func() time.Time { return now }

	lastUse := make(map[string]time.Time)
	for i := 0; i < 20; i++ {
		cred, wait, err := pool.TryAcquire()
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		if wait > 0 {
			now = now.Add(wait)
			continue
		}
		if prev, ok := lastUse[cred.ID]; ok {
			if gap := now.Sub(prev); gap < 15*time.Second {
				t.Fatalf("key %s dispatched twice within %s", cred.ID, gap)
			}
		}
		lastUse[cred.ID] = now
	}
}

func TestPool_AcquireBlocksUntilEligible(t *testing.T) {
	pool := twoKeyPool(40*time.Millisecond, 0)
	ctx := context.Background()

	if _, err := pool.Acquire(ctx); err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	if _, err := pool.Acquire(ctx); err != nil {
		t.Fatalf("acquire 2: %v", err)
	}

	start := time.Now()
	if _, err := pool.Acquire(ctx); err != nil {
		t.Fatalf("acquire 3: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("third acquire returned after %s, should have waited the rotation", elapsed)
	}
}

func TestPool_QuotaExhaustedOnDeadline(t *testing.T) {
	pool := twoKeyPool(5*time.Second, 0)
	ctx := context.Background()

	pool.Acquire(ctx)
	pool.Acquire(ctx)

	deadlineCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	_, err := pool.Acquire(deadlineCtx)
	if !errors.Is(err, domain.ErrQuotaExhausted) {
		t.Fatalf("expected ErrQuotaExhausted, got %v", err)
	}
}

func TestPool_DailyCapFailsFast(t *testing.T) {
	pool := twoKeyPool(time.Millisecond, 2)
	ctx := context.Background()

	pool.Acquire(ctx)
	pool.Acquire(ctx)

	_, _, err := pool.TryAcquire()
	if !errors.Is(err, domain.ErrDailyQuotaExceeded) {
		t.Fatalf("expected ErrDailyQuotaExceeded, got %v", err)
	}
}

func TestPool_QuotaPerKeyWindow(t *testing.T) {
	pool := New(
		[]ports.Credential{{ID: "key-a"}},
		domain.RateLimitPolicy{QuotaPerKey: 2, RotationInterval: 15 * time.Second},
		logx.NewSilent(),
	)
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	pool.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		_, wait, err := pool.TryAcquire()
		if err != nil || wait != 0 {
			t.Fatalf("in-window acquire %d: wait=%s err=%v", i, wait, err)
		}
	}
	_, wait, _ := pool.TryAcquire()
	if wait == 0 {
		t.Error("exhausted window should force a wait")
	}
}

func TestManager_AcquireUnconfigured(t *testing.T) {
	m := NewManager(logx.NewSilent())
	_, err := m.Acquire(context.Background(), "threatintel")
	if err == nil {
		t.Fatal("acquire on unconfigured module should fail")
	}
}

func TestManager_SharedAcrossCallers(t *testing.T) {
	m := NewManager(logx.NewSilent())
	m.Configure("threatintel",
		[]ports.Credential{{ID: "key-a"}},
		domain.RateLimitPolicy{QuotaPerKey: 1, RotationInterval: 5 * time.Second},
	)

	ctx := context.Background()
	if _, err := m.Acquire(ctx, "threatintel"); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	// Second caller sees the same pool state: key is burned.
	deadlineCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := m.Acquire(deadlineCtx, "threatintel"); !errors.Is(err, domain.ErrQuotaExhausted) {
		t.Fatalf("expected ErrQuotaExhausted, got %v", err)
	}
}
