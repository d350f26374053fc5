// internal/core/ports/stream.go
package ports

import (
	"context"

	"reconwave/internal/core/domain"
)

// StreamBus coordinates discovery hand-off between producer and consumer
// modules within a job. Delivery is at-least-once per subscription; no
// cross-record ordering is guaranteed beyond single-producer order, and
// consumers must not rely even on that.
type StreamBus interface {
	// Publish fans a record out to every subscription of the key. It never
	// drops records: when a subscriber's buffer is full the record goes to
	// its durable spill.
	Publish(ctx context.Context, key string, rec domain.StreamRecord) error

	// Subscribe attaches a consumer to a stream key. The returned
	// subscription yields a non-restartable record sequence, so consumers
	// subscribe before their producer starts.
	Subscribe(jobID, key string) (Subscription, error)

	// EndProduce marks the producer done. Subscriptions drain their
	// backlog and then close, letting consumers distinguish completion
	// from a transient gap.
	EndProduce(key string) error

	// CloseJob tears down every stream of a job and removes spill files.
	CloseJob(jobID string)
}

// Subscription is one consumer's view of a stream.
type Subscription interface {
	// Records yields records until the producer is done and the backlog
	// is drained, then closes.
	Records() <-chan domain.StreamRecord

	// Close detaches the subscription early.
	Close()
}

// KeyProvider hands out external-API credentials for rate-limited modules.
// Acquire blocks until a credential is eligible or the context deadline
// elapses. A returned credential is consumed regardless of call outcome.
type KeyProvider interface {
	Acquire(ctx context.Context, module string) (Credential, error)
}

// Credential is one entry of an API key pool.
type Credential struct {
	ID     string
	Secret string
}
