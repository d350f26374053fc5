// internal/platform/stream/spill.go
package stream

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	"reconwave/internal/core/domain"
	"reconwave/internal/platform/errors"
)

// spillQueue is the durable overflow of one subscription: records that did
// not fit the in-memory buffer are appended to a JSONL file and replayed in
// order. Spilling instead of dropping keeps delivery at-least-once under
// slow consumers.
type spillQueue struct {
	path string

	w  *os.File
	r  *bufio.Reader
	rf *os.File

	appended int
	consumed int
}

func newSpillQueue(dir, name string) *spillQueue {
	return &spillQueue{path: filepath.Join(dir, name+".jsonl")}
}

// Append persists one record at the tail of the spill file.
func (q *spillQueue) Append(rec domain.StreamRecord) error {
	if q.w == nil {
		if err := os.MkdirAll(filepath.Dir(q.path), 0o755); err != nil {
			return errors.Wrap(err, "failed to create spill directory")
		}
		f, err := os.OpenFile(q.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return errors.Wrap(err, "failed to open spill file")
		}
		q.w = f
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "failed to encode spill record")
	}
	if _, err := q.w.Write(append(data, '\n')); err != nil {
		return errors.Wrap(err, "failed to append spill record")
	}
	q.appended++
	return nil
}

// Next replays the oldest unconsumed record. ok is false when the spill is
// fully drained.
func (q *spillQueue) Next() (domain.StreamRecord, bool, error) {
	var zero domain.StreamRecord
	if q.consumed >= q.appended {
		return zero, false, nil
	}

	if q.r == nil {
		f, err := os.Open(q.path)
		if err != nil {
			return zero, false, errors.Wrap(err, "failed to open spill file for replay")
		}
		q.rf = f
		q.r = bufio.NewReader(f)
	}

	line, err := q.r.ReadBytes('\n')
	if err != nil {
		return zero, false, errors.Wrap(err, "failed to read spill record")
	}

	var rec domain.StreamRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return zero, false, errors.Wrap(err, "failed to decode spill record")
	}
	q.consumed++
	return rec, true, nil
}

// Len returns the number of records waiting in the spill.
func (q *spillQueue) Len() int {
	return q.appended - q.consumed
}

// Close releases file handles. The file itself is removed with the job's
// spill directory.
func (q *spillQueue) Close() {
	if q.w != nil {
		q.w.Close()
		q.w = nil
	}
	if q.rf != nil {
		q.rf.Close()
		q.rf = nil
		q.r = nil
	}
}
