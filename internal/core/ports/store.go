// internal/core/ports/store.go
package ports

import (
	"context"
	"time"

	"reconwave/internal/core/domain"
)

// Asset is one persisted discovery, scoped to a target and written to
// exactly one output sink.
type Asset struct {
	Target string
	Sink   string
	Kind   string
	Value  string

	// Source is the producing module.
	Source string
	JobID  string

	FirstSeen time.Time
	LastSeen  time.Time
}

// Key returns the stable content identity used for idempotent upserts.
func (a Asset) Key() string {
	return domain.ContentKey(a.Target, a.Kind, a.Value)
}

// AssetStore persists discoveries. Upserts are idempotent: writing the same
// content twice leaves exactly one row with a refreshed last-seen timestamp.
// TTL-governed modules rely on LastSeen to decide re-probing.
type AssetStore interface {
	UpsertAsset(ctx context.Context, a Asset) error
	CountAssets(ctx context.Context, target, sink string) (int, error)

	// StaleAssets returns assets in a sink not seen since the cutoff.
	StaleAssets(ctx context.Context, target, sink string, cutoff time.Time) ([]Asset, error)

	Close() error
}

// JobStore retains job snapshots for post-completion status queries.
type JobStore interface {
	SaveJob(ctx context.Context, snap domain.JobSnapshot) error
	LoadJob(ctx context.Context, id string) (domain.JobSnapshot, error)
}
