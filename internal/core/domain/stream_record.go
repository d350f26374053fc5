// internal/core/domain/stream_record.go
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// StreamRecord is one discovery unit flowing from a producer module to its
// consumers. Delivery is at-least-once: consumers must persist idempotently
// using DedupKey.
type StreamRecord struct {
	JobID     string            `json:"job_id"`
	Module    string            `json:"module"`
	Kind      string            `json:"kind"`
	Value     string            `json:"value"`
	Meta      map[string]string `json:"meta,omitempty"`
	EmittedAt time.Time         `json:"emitted_at"`
}

// NewStreamRecord tags a discovery with its job and producing module.
func NewStreamRecord(jobID, module, kind, value string) StreamRecord {
	return StreamRecord{
		JobID:     jobID,
		Module:    module,
		Kind:      kind,
		Value:     value,
		EmittedAt: time.Now(),
	}
}

// DedupKey derives the stable content identity of the record scoped to a
// target. Equal discoveries from redelivery or concurrent producers map to
// the same key, so upserts collapse to one row.
func (r StreamRecord) DedupKey(target string) string {
	return ContentKey(target, r.Kind, r.Value)
}

// ContentKey hashes a normalized value scoped to target and kind.
func ContentKey(target, kind, value string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(target) + "|" + kind + "|" + NormalizeValue(value)))
	return hex.EncodeToString(sum[:16])
}

// NormalizeValue canonicalizes a discovered value before hashing: lowercase,
// trimmed whitespace, no trailing dot or slash.
func NormalizeValue(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.TrimSuffix(v, ".")
	v = strings.TrimSuffix(v, "/")
	return v
}
