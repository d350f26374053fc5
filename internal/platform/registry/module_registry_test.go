// internal/platform/registry/module_registry_test.go
package registry

import (
	"errors"
	"testing"

	"reconwave/internal/core/domain"
	"reconwave/internal/platform/logx"
)

func profile(name string, deps ...string) domain.ModuleProfile {
	return domain.ModuleProfile{
		Name:          name,
		ResourceTiers: []domain.ResourceTier{{MinInput: 1, MaxInput: 100, CPU: 256, MemoryMB: 512}},
		Dependencies:  deps,
		Active:        true,
	}
}

func TestModuleRegistry_Register(t *testing.T) {
	r := NewModuleRegistry(logx.NewSilent())

	if err := r.Register(profile("subenum")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(profile("subenum")); !errors.Is(err, domain.ErrDuplicateModule) {
		t.Fatalf("expected ErrDuplicateModule, got %v", err)
	}
	if _, ok := r.Get("subenum"); !ok {
		t.Error("registered module should be retrievable")
	}
}

func TestModuleRegistry_ValidateGraph_UnknownDependency(t *testing.T) {
	r := NewModuleRegistry(logx.NewSilent())

	err := r.RegisterAll([]domain.ModuleProfile{profile("httpprobe", "dnsx")})
	if !errors.Is(err, domain.ErrUnknownModule) {
		t.Fatalf("expected ErrUnknownModule, got %v", err)
	}
}

func TestModuleRegistry_ValidateGraph_InactiveDependency(t *testing.T) {
	r := NewModuleRegistry(logx.NewSilent())
	inactive := profile("dnsx")
	inactive.Active = false

	err := r.RegisterAll([]domain.ModuleProfile{inactive, profile("httpprobe", "dnsx")})
	if !errors.Is(err, domain.ErrInactiveModule) {
		t.Fatalf("expected ErrInactiveModule, got %v", err)
	}
}

func TestModuleRegistry_ValidateGraph_ConsumerWithoutProducer(t *testing.T) {
	r := NewModuleRegistry(logx.NewSilent())
	dnsx := profile("dnsx")
	dnsx.Consumes = &domain.StreamSpec{Module: "subenum", Kind: "subdomain"}

	// subenum declares no produced stream at all.
	err := r.RegisterAll([]domain.ModuleProfile{profile("subenum"), dnsx})
	if !errors.Is(err, domain.ErrStreamNotProduced) {
		t.Fatalf("expected ErrStreamNotProduced, got %v", err)
	}
}

func TestModuleRegistry_ValidateGraph_ConsumedKindMismatch(t *testing.T) {
	r := NewModuleRegistry(logx.NewSilent())
	subenum := profile("subenum")
	subenum.Produces = &domain.StreamSpec{Module: "subenum", Kind: "subdomain"}
	dnsx := profile("dnsx")
	dnsx.Consumes = &domain.StreamSpec{Module: "subenum", Kind: "subdomains"}

	err := r.RegisterAll([]domain.ModuleProfile{subenum, dnsx})
	if !errors.Is(err, domain.ErrStreamNotProduced) {
		t.Fatalf("expected ErrStreamNotProduced, got %v", err)
	}
}

func TestModuleRegistry_ValidateGraph_ConsumerOfUnknownModule(t *testing.T) {
	r := NewModuleRegistry(logx.NewSilent())
	dnsx := profile("dnsx")
	dnsx.Consumes = &domain.StreamSpec{Module: "subenum", Kind: "subdomain"}

	err := r.RegisterAll([]domain.ModuleProfile{dnsx})
	if !errors.Is(err, domain.ErrUnknownModule) {
		t.Fatalf("expected ErrUnknownModule, got %v", err)
	}
}

func TestModuleRegistry_ValidateGraph_Cycle(t *testing.T) {
	r := NewModuleRegistry(logx.NewSilent())

	err := r.RegisterAll([]domain.ModuleProfile{
		profile("a", "b"),
		profile("b", "a"),
	})
	if !errors.Is(err, domain.ErrCyclicDependency) {
		t.Fatalf("expected ErrCyclicDependency, got %v", err)
	}
}

func TestModuleRegistry_List(t *testing.T) {
	r := NewModuleRegistry(logx.NewSilent())
	for _, name := range []string{"wayback", "subenum", "dnsx"} {
		if err := r.Register(profile(name)); err != nil {
			t.Fatalf("Register(%s) failed: %v", name, err)
		}
	}

	names := r.List()
	want := []string{"dnsx", "subenum", "wayback"}
	if len(names) != len(want) {
		t.Fatalf("List: got %d names, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("List[%d]: got %s, want %s", i, names[i], want[i])
		}
	}
}
