// internal/core/usecases/planner_test.go
package usecases

import (
	"testing"
	"time"

	"reconwave/internal/core/domain"
	"reconwave/internal/platform/logx"
	"reconwave/internal/platform/registry"
	"reconwave/internal/testutil"
)

func testProfile(name string, deps ...string) domain.ModuleProfile {
	return domain.ModuleProfile{
		Name:                     name,
		Version:                  "1.0.0",
		SupportsBatching:         true,
		MaxBatchSize:             50,
		EstimatedDurationPerUnit: time.Second,
		Dependencies:             deps,
		ResourceTiers: []domain.ResourceTier{
			{MinInput: 1, MaxInput: 1000, CPU: 1, MemoryMB: 256, Label: "default"},
		},
		OutputSink: name + "_out",
		Active:     true,
	}
}

func newTestRegistry(t *testing.T, profiles ...domain.ModuleProfile) *registry.ModuleRegistry {
	t.Helper()
	reg := registry.NewModuleRegistry(logx.NewSilent())
	if err := reg.RegisterAll(profiles); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}
	return reg
}

func TestPlanner_WavesRespectDependencies(t *testing.T) {
	reg := newTestRegistry(t,
		testProfile("subenum"),
		testProfile("dnsx", "subenum"),
		testProfile("httpprobe", "dnsx"),
		testProfile("crawler", "httpprobe"),
		testProfile("wayback"),
	)
	planner := NewPlanner(reg, logx.NewSilent()).WithImplicitInclusions(nil)

	plan, err := planner.Plan([]string{"crawler", "wayback", "subenum", "dnsx", "httpprobe"})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	// Every module's dependencies must sit in a strictly earlier wave.
	for _, name := range plan.Modules() {
		profile, _ := reg.Get(name)
		for _, dep := range profile.Dependencies {
			if plan.WaveOf(dep) >= plan.WaveOf(name) {
				t.Errorf("%s (wave %d) depends on %s (wave %d)",
					name, plan.WaveOf(name), dep, plan.WaveOf(dep))
			}
		}
	}

	// Independent roots share wave 0.
	if plan.WaveOf("subenum") != 0 || plan.WaveOf("wayback") != 0 {
		t.Errorf("independent modules should share wave 0: subenum=%d wayback=%d",
			plan.WaveOf("subenum"), plan.WaveOf("wayback"))
	}
}

func TestPlanner_DeterministicWaveMembership(t *testing.T) {
	reg := newTestRegistry(t,
		testProfile("subenum"),
		testProfile("wayback"),
		testProfile("threatintel"),
	)
	planner := NewPlanner(reg, logx.NewSilent()).WithImplicitInclusions(nil)

	first, err := planner.Plan([]string{"threatintel", "subenum", "wayback"})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		plan, err := planner.Plan([]string{"wayback", "threatintel", "subenum"})
		if err != nil {
			t.Fatalf("Plan iteration %d failed: %v", i, err)
		}
		testutil.AssertEqual(t, len(plan.Waves), len(first.Waves), "wave count")
		for w := range plan.Waves {
			if len(plan.Waves[w].Modules) != len(first.Waves[w].Modules) {
				t.Fatalf("wave %d membership changed between runs", w)
			}
			for j := range plan.Waves[w].Modules {
				if plan.Waves[w].Modules[j] != first.Waves[w].Modules[j] {
					t.Fatalf("wave %d order changed: %v vs %v",
						w, plan.Waves[w].Modules, first.Waves[w].Modules)
				}
			}
		}
	}
}

func TestPlanner_CycleRejectedBeforeAnyLaunch(t *testing.T) {
	a := testProfile("modA", "modB")
	b := testProfile("modB", "modA")
	// Register individually: RegisterAll's graph validation would reject the
	// cycle before the planner is exercised.
	reg := registry.NewModuleRegistry(logx.NewSilent())
	for _, p := range []domain.ModuleProfile{a, b} {
		if err := reg.Register(p); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	planner := NewPlanner(reg, logx.NewSilent()).WithImplicitInclusions(nil)

	_, err := planner.Plan([]string{"modA", "modB"})
	testutil.AssertErrorIs(t, err, domain.ErrCyclicDependency, "cycle rejection")
}

func TestPlanner_UnknownModule(t *testing.T) {
	reg := newTestRegistry(t, testProfile("subenum"))
	planner := NewPlanner(reg, logx.NewSilent())

	_, err := planner.Plan([]string{"ghost"})
	testutil.AssertErrorIs(t, err, domain.ErrUnknownModule, "unknown module")
}

func TestPlanner_InactiveModule(t *testing.T) {
	inactive := testProfile("wayback")
	inactive.Active = false
	reg := newTestRegistry(t, testProfile("subenum"), inactive)
	planner := NewPlanner(reg, logx.NewSilent())

	_, err := planner.Plan([]string{"wayback"})
	testutil.AssertErrorIs(t, err, domain.ErrInactiveModule, "inactive module")
}

func TestPlanner_EmptyRequest(t *testing.T) {
	reg := newTestRegistry(t, testProfile("subenum"))
	planner := NewPlanner(reg, logx.NewSilent())

	_, err := planner.Plan(nil)
	testutil.AssertErrorIs(t, err, domain.ErrEmptyRequest, "empty request")
}

func TestPlanner_DependencyClosure(t *testing.T) {
	reg := newTestRegistry(t,
		testProfile("subenum"),
		testProfile("dnsx", "subenum"),
		testProfile("httpprobe", "dnsx"),
	)
	planner := NewPlanner(reg, logx.NewSilent()).WithImplicitInclusions(nil)

	// Requesting only the leaf schedules its full dependency chain.
	plan, err := planner.Plan([]string{"httpprobe"})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	for _, want := range []string{"subenum", "dnsx", "httpprobe"} {
		if !plan.Contains(want) {
			t.Errorf("plan missing %s: %v", want, plan.Modules())
		}
	}
}

func TestPlanner_ImplicitInclusionWithoutOrderingEdge(t *testing.T) {
	subenum := testProfile("subenum")
	subenum.Produces = &domain.StreamSpec{Module: "subenum", Kind: "subdomain"}
	dnsx := testProfile("dnsx")
	dnsx.Consumes = &domain.StreamSpec{Module: "subenum", Kind: "subdomain"}

	reg := newTestRegistry(t, subenum, dnsx)
	planner := NewPlanner(reg, logx.NewSilent())

	plan, err := planner.Plan([]string{"subenum"})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if !plan.Contains("dnsx") {
		t.Fatalf("subenum request should implicitly include dnsx: %v", plan.Modules())
	}
	// Inclusion carries no ordering edge: both may share wave 0 so the
	// consumer can overlap the producer's stream.
	if plan.WaveOf("subenum") != 0 || plan.WaveOf("dnsx") != 0 {
		t.Errorf("implicit companion gained an ordering edge: subenum=%d dnsx=%d",
			plan.WaveOf("subenum"), plan.WaveOf("dnsx"))
	}
}

func TestPlanner_MismatchedStreamWiringRejected(t *testing.T) {
	// Registered one by one, bypassing the registry's graph validation, so
	// the planner is the last line of defense.
	reg := registry.NewModuleRegistry(logx.NewSilent())
	subenum := testProfile("subenum")
	dnsx := testProfile("dnsx")
	dnsx.Consumes = &domain.StreamSpec{Module: "subenum", Kind: "subdomain"}
	for _, p := range []domain.ModuleProfile{subenum, dnsx} {
		if err := reg.Register(p); err != nil {
			t.Fatalf("Register(%s) failed: %v", p.Name, err)
		}
	}
	planner := NewPlanner(reg, logx.NewSilent()).WithImplicitInclusions(nil)

	_, err := planner.Plan([]string{"dnsx"})
	testutil.AssertErrorIs(t, err, domain.ErrStreamNotProduced, "consumer of an unproduced stream")
}

func TestPlanner_StreamSourceIncluded(t *testing.T) {
	subenum := testProfile("subenum")
	subenum.Produces = &domain.StreamSpec{Module: "subenum", Kind: "subdomain"}
	urlresolve := testProfile("urlresolve")
	urlresolve.Consumes = &domain.StreamSpec{Module: "subenum", Kind: "subdomain"}

	reg := newTestRegistry(t, subenum, urlresolve)
	planner := NewPlanner(reg, logx.NewSilent()).WithImplicitInclusions(nil)

	plan, err := planner.Plan([]string{"urlresolve"})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if !plan.Contains("subenum") {
		t.Fatalf("consumer request should include its stream source: %v", plan.Modules())
	}
}
