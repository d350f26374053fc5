// internal/platform/config/catalog.go
package config

import (
	"time"

	"reconwave/internal/core/domain"
)

// DefaultProfiles is the built-in module catalog, used when no registry
// file is given. Operators override it wholesale with --registry.
func DefaultProfiles() []domain.ModuleProfile {
	return []domain.ModuleProfile{
		{
			Name:                     "subenum",
			Version:                  "1.4.0",
			SupportsBatching:         false,
			EstimatedDurationPerUnit: 10 * time.Minute,
			ResourceTiers: []domain.ResourceTier{
				{MinInput: 1, MaxInput: 5, CPU: 1, MemoryMB: 512, Label: "default"},
			},
			Produces:   &domain.StreamSpec{Module: "subenum", Kind: "subdomain"},
			OutputSink: "subdomains",
			Active:     true,
		},
		{
			Name:                     "dnsx",
			Version:                  "2.1.0",
			SupportsBatching:         true,
			MaxBatchSize:             100,
			EstimatedDurationPerUnit: 2 * time.Second,
			ResourceTiers: []domain.ResourceTier{
				{MinInput: 1, MaxInput: 20, CPU: 1, MemoryMB: 256, Label: "small"},
				{MinInput: 21, MaxInput: 100, CPU: 2, MemoryMB: 512, Label: "large"},
			},
			Consumes:   &domain.StreamSpec{Module: "subenum", Kind: "subdomain"},
			OutputSink: "resolved",
			Active:     true,
		},
		{
			Name:                     "httpprobe",
			Version:                  "1.7.2",
			SupportsBatching:         true,
			MaxBatchSize:             50,
			EstimatedDurationPerUnit: 5 * time.Second,
			Dependencies:             []string{"dnsx"},
			ResourceTiers: []domain.ResourceTier{
				{MinInput: 1, MaxInput: 20, CPU: 1, MemoryMB: 256, Label: "small"},
				{MinInput: 21, MaxInput: 50, CPU: 2, MemoryMB: 1024, Label: "large"},
			},
			OutputSink: "http_services",
			TTL:        &domain.TTLPolicy{RescanAfter: 24 * time.Hour},
			Active:     true,
		},
		{
			Name:                     "crawler",
			Version:                  "0.9.1",
			SupportsBatching:         false,
			EstimatedDurationPerUnit: 15 * time.Minute,
			Dependencies:             []string{"httpprobe"},
			ResourceTiers: []domain.ResourceTier{
				{MinInput: 1, MaxInput: 1, CPU: 2, MemoryMB: 2048, Label: "default"},
			},
			OutputSink: "crawled_urls",
			Active:     true,
		},
		{
			Name:                     "wayback",
			Version:                  "1.0.3",
			SupportsBatching:         false,
			EstimatedDurationPerUnit: 5 * time.Minute,
			ResourceTiers: []domain.ResourceTier{
				{MinInput: 1, MaxInput: 5, CPU: 1, MemoryMB: 512, Label: "default"},
			},
			Produces:   &domain.StreamSpec{Module: "wayback", Kind: "url"},
			OutputSink: "archive_urls",
			Active:     true,
		},
		{
			Name:                     "urlresolve",
			Version:                  "0.6.0",
			SupportsBatching:         true,
			MaxBatchSize:             200,
			EstimatedDurationPerUnit: time.Second,
			ResourceTiers: []domain.ResourceTier{
				{MinInput: 1, MaxInput: 200, CPU: 1, MemoryMB: 512, Label: "default"},
			},
			Consumes:   &domain.StreamSpec{Module: "wayback", Kind: "url"},
			OutputSink: "resolved_urls",
			Active:     true,
		},
		{
			Name:                     "threatintel",
			Version:                  "2.3.0",
			SupportsBatching:         true,
			MaxBatchSize:             25,
			EstimatedDurationPerUnit: 20 * time.Second,
			Dependencies:             []string{"dnsx"},
			ResourceTiers: []domain.ResourceTier{
				{MinInput: 1, MaxInput: 25, CPU: 1, MemoryMB: 256, Label: "default"},
			},
			RateLimit: &domain.RateLimitPolicy{
				QuotaPerKey:      1,
				RotationInterval: 15 * time.Second,
				DailyCap:         450,
			},
			OutputSink: "threat_matches",
			TTL:        &domain.TTLPolicy{RescanAfter: 7 * 24 * time.Hour},
			Active:     true,
		},
	}
}
