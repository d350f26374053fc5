// internal/adapters/store/sqlite.go

// Package store persists discoveries and job snapshots in SQLite. The
// asset table's primary key is the content identity, so redelivered
// records collapse into one row.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"reconwave/internal/core/domain"
	"reconwave/internal/core/ports"
	"reconwave/internal/platform/errors"
	"reconwave/internal/platform/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS assets (
	target     TEXT NOT NULL,
	sink       TEXT NOT NULL,
	dedup_key  TEXT NOT NULL,
	kind       TEXT NOT NULL,
	value      TEXT NOT NULL,
	source     TEXT NOT NULL,
	job_id     TEXT NOT NULL,
	first_seen TIMESTAMP NOT NULL,
	last_seen  TIMESTAMP NOT NULL,
	PRIMARY KEY (target, sink, dedup_key)
);

CREATE INDEX IF NOT EXISTS idx_assets_last_seen ON assets (target, sink, last_seen);

CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	snapshot   TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// SQLite implements ports.AssetStore and ports.JobStore over one database
// file.
type SQLite struct {
	db     *sql.DB
	logger logx.Logger
}

// Open creates or opens the database at path and applies the schema.
// Use ":memory:" for an ephemeral store.
func Open(path string, logger logx.Logger) (*SQLite, error) {
	if logger == nil {
		logger = logx.New()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %s", path)
	}
	// SQLite serializes writers anyway; one connection avoids lock errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	return &SQLite{db: db, logger: logger.With("component", "store")}, nil
}

// UpsertAsset implements ports.AssetStore. Writing the same content twice
// refreshes last_seen and leaves exactly one row.
func (s *SQLite) UpsertAsset(ctx context.Context, a ports.Asset) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (target, sink, dedup_key, kind, value, source, job_id, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (target, sink, dedup_key) DO UPDATE SET
			last_seen = excluded.last_seen,
			job_id    = excluded.job_id`,
		a.Target, a.Sink, a.Key(), a.Kind, a.Value, a.Source, a.JobID, a.FirstSeen, a.LastSeen,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert asset %s/%s", a.Sink, a.Value)
	}
	return nil
}

// CountAssets implements ports.AssetStore.
func (s *SQLite) CountAssets(ctx context.Context, target, sink string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assets WHERE target = ? AND sink = ?`,
		target, sink,
	).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "count assets")
	}
	return n, nil
}

// StaleAssets implements ports.AssetStore.
func (s *SQLite) StaleAssets(ctx context.Context, target, sink string, cutoff time.Time) ([]ports.Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT target, sink, kind, value, source, job_id, first_seen, last_seen
		FROM assets
		WHERE target = ? AND sink = ? AND last_seen < ?
		ORDER BY last_seen ASC`,
		target, sink, cutoff,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query stale assets")
	}
	defer rows.Close()

	var stale []ports.Asset
	for rows.Next() {
		var a ports.Asset
		if err := rows.Scan(&a.Target, &a.Sink, &a.Kind, &a.Value, &a.Source, &a.JobID, &a.FirstSeen, &a.LastSeen); err != nil {
			return nil, errors.Wrap(err, "scan asset")
		}
		stale = append(stale, a)
	}
	return stale, rows.Err()
}

// SaveJob implements ports.JobStore.
func (s *SQLite) SaveJob(ctx context.Context, snap domain.JobSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrapf(err, "marshal job %s", snap.ID)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, state, snapshot, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			state      = excluded.state,
			snapshot   = excluded.snapshot,
			updated_at = excluded.updated_at`,
		snap.ID, string(snap.State), payload, time.Now(),
	)
	if err != nil {
		return errors.Wrapf(err, "save job %s", snap.ID)
	}
	return nil
}

// LoadJob implements ports.JobStore.
func (s *SQLite) LoadJob(ctx context.Context, id string) (domain.JobSnapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM jobs WHERE id = ?`, id,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return domain.JobSnapshot{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	if err != nil {
		return domain.JobSnapshot{}, errors.Wrapf(err, "load job %s", id)
	}

	var snap domain.JobSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return domain.JobSnapshot{}, errors.Wrapf(err, "decode job %s", id)
	}
	return snap, nil
}

// Close implements ports.AssetStore.
func (s *SQLite) Close() error {
	return s.db.Close()
}
