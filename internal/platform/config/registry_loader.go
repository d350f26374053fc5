// internal/platform/config/registry_loader.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"reconwave/internal/core/domain"
)

// registryFile is the YAML shape of a module registry. Durations are
// strings ("15s", "24h") so operators write them naturally.
type registryFile struct {
	Modules []moduleSpec        `yaml:"modules"`
	APIKeys map[string][]string `yaml:"api_keys"`
}

type moduleSpec struct {
	Name             string     `yaml:"name"`
	Version          string     `yaml:"version"`
	SupportsBatching bool       `yaml:"supports_batching"`
	MaxBatchSize     int        `yaml:"max_batch_size"`
	Tiers            []tierSpec `yaml:"resource_tiers"`
	DurationPerUnit  string     `yaml:"estimated_duration_per_unit"`
	Dependencies     []string   `yaml:"dependencies"`
	RateLimit        *rateSpec  `yaml:"rate_limit"`
	Consumes         *streamRef `yaml:"consumes"`
	Produces         *streamRef `yaml:"produces"`
	OutputSink       string     `yaml:"output_sink"`
	TTL              string     `yaml:"ttl"`
	Active           *bool      `yaml:"active"`
}

type tierSpec struct {
	MinInput int    `yaml:"min_input"`
	MaxInput int    `yaml:"max_input"`
	CPU      int    `yaml:"cpu"`
	MemoryMB int    `yaml:"memory_mb"`
	Label    string `yaml:"label"`
}

type rateSpec struct {
	QuotaPerKey      int    `yaml:"quota_per_key"`
	RotationInterval string `yaml:"rotation_interval"`
	DailyCap         int    `yaml:"daily_cap"`
}

type streamRef struct {
	Module string `yaml:"module"`
	Kind   string `yaml:"kind"`
}

// LoadRegistry reads module profiles and API keys from a YAML file.
func LoadRegistry(path string) ([]domain.ModuleProfile, map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read registry %s: %w", path, err)
	}
	return parseRegistry(data)
}

func parseRegistry(data []byte) ([]domain.ModuleProfile, map[string][]string, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parse registry: %w", err)
	}

	profiles := make([]domain.ModuleProfile, 0, len(file.Modules))
	for _, spec := range file.Modules {
		profile, err := spec.toProfile()
		if err != nil {
			return nil, nil, err
		}
		profiles = append(profiles, profile)
	}

	keys := file.APIKeys
	if keys == nil {
		keys = make(map[string][]string)
	}
	return profiles, keys, nil
}

func (m moduleSpec) toProfile() (domain.ModuleProfile, error) {
	perUnit, err := parseDuration(m.DurationPerUnit, m.Name, "estimated_duration_per_unit")
	if err != nil {
		return domain.ModuleProfile{}, err
	}

	profile := domain.ModuleProfile{
		Name:                     m.Name,
		Version:                  m.Version,
		SupportsBatching:         m.SupportsBatching,
		MaxBatchSize:             m.MaxBatchSize,
		EstimatedDurationPerUnit: perUnit,
		Dependencies:             m.Dependencies,
		OutputSink:               m.OutputSink,
		Active:                   true,
	}
	if m.Active != nil {
		profile.Active = *m.Active
	}

	for _, t := range m.Tiers {
		profile.ResourceTiers = append(profile.ResourceTiers, domain.ResourceTier{
			MinInput: t.MinInput,
			MaxInput: t.MaxInput,
			CPU:      t.CPU,
			MemoryMB: t.MemoryMB,
			Label:    t.Label,
		})
	}

	if m.RateLimit != nil {
		rotation, err := parseDuration(m.RateLimit.RotationInterval, m.Name, "rotation_interval")
		if err != nil {
			return domain.ModuleProfile{}, err
		}
		profile.RateLimit = &domain.RateLimitPolicy{
			QuotaPerKey:      m.RateLimit.QuotaPerKey,
			RotationInterval: rotation,
			DailyCap:         m.RateLimit.DailyCap,
		}
	}
	if m.Consumes != nil {
		profile.Consumes = &domain.StreamSpec{Module: m.Consumes.Module, Kind: m.Consumes.Kind}
	}
	if m.Produces != nil {
		profile.Produces = &domain.StreamSpec{Module: m.Produces.Module, Kind: m.Produces.Kind}
	}
	if m.TTL != "" {
		ttl, err := parseDuration(m.TTL, m.Name, "ttl")
		if err != nil {
			return domain.ModuleProfile{}, err
		}
		profile.TTL = &domain.TTLPolicy{RescanAfter: ttl}
	}
	return profile, nil
}

func parseDuration(raw, module, field string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("module %s: invalid %s %q: %w", module, field, raw, err)
	}
	return d, nil
}
