// internal/platform/stream/bus.go

// Package stream implements the in-process discovery hand-off between
// producer and consumer modules: per-key fan-out with bounded in-memory
// buffering and durable spill on overflow. Dropping records is never
// acceptable; a slow consumer degrades to disk, not to loss.
package stream

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"reconwave/internal/core/domain"
	"reconwave/internal/core/ports"
	"reconwave/internal/platform/logx"
)

const defaultBufferSize = 256

// Bus implements ports.StreamBus.
type Bus struct {
	mu sync.Mutex

	spillDir   string
	bufferSize int

	streams map[string]*stream
	jobKeys map[string]map[string]bool
	counts  map[string]int64

	logger logx.Logger
}

// Options configures the bus.
type Options struct {
	// SpillDir is the base directory for durable overflow files. One
	// subdirectory per job is created beneath it.
	SpillDir string

	// BufferSize bounds each subscription's in-memory queue.
	BufferSize int

	Logger logx.Logger
}

// NewBus creates a stream bus.
func NewBus(opts Options) *Bus {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.SpillDir == "" {
		opts.SpillDir = filepath.Join(os.TempDir(), "reconwave_spill")
	}
	if opts.Logger == nil {
		opts.Logger = logx.New()
	}

	return &Bus{
		spillDir:   opts.SpillDir,
		bufferSize: opts.BufferSize,
		streams:    make(map[string]*stream),
		jobKeys:    make(map[string]map[string]bool),
		counts:     make(map[string]int64),
		logger:     opts.Logger.With("component", "stream-bus"),
	}
}

// Publish fans one record out to every subscription of the key.
func (b *Bus) Publish(ctx context.Context, key string, rec domain.StreamRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	s := b.streams[key]
	if s == nil {
		s = newStream(key)
		b.streams[key] = s
		b.trackJobKey(rec.JobID, key)
	}
	b.counts[key]++
	b.mu.Unlock()

	return s.publish(rec)
}

// Subscribe attaches a consumer to a stream key. Subscriptions wired before
// the producer starts observe every record.
func (b *Bus) Subscribe(jobID, key string) (ports.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.streams[key]
	if s == nil {
		s = newStream(key)
		b.streams[key] = s
		b.trackJobKey(jobID, key)
	}

	spillName := fmt.Sprintf("%s_sub%d", sanitizeKey(key), s.subSeq)
	sub := newSubscription(
		b.bufferSize,
		newSpillQueue(filepath.Join(b.spillDir, jobID), spillName),
		b.logger.With("stream", key),
	)
	s.attach(sub)

	b.logger.Debug("subscription attached", "key", key, "job", jobID)
	return sub, nil
}

// EndProduce marks the producer of a key done. Every subscription drains
// its backlog and then closes its record channel.
func (b *Bus) EndProduce(key string) error {
	b.mu.Lock()
	s := b.streams[key]
	b.mu.Unlock()

	if s == nil {
		return fmt.Errorf("%w: %s", domain.ErrStreamClosed, key)
	}
	s.end()
	b.logger.Debug("producer done", "key", key)
	return nil
}

// Count returns the number of records published to a key so far.
func (b *Bus) Count(key string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[key]
}

// CloseJob tears down every stream of a job and removes its spill files.
func (b *Bus) CloseJob(jobID string) {
	b.mu.Lock()
	keys := b.jobKeys[jobID]
	delete(b.jobKeys, jobID)
	var closing []*stream
	for key := range keys {
		if s := b.streams[key]; s != nil {
			closing = append(closing, s)
			delete(b.streams, key)
		}
	}
	b.mu.Unlock()

	for _, s := range closing {
		s.close()
	}
	if err := os.RemoveAll(filepath.Join(b.spillDir, jobID)); err != nil {
		b.logger.Warn("failed to remove spill directory", "job", jobID, "error", err.Error())
	}
}

// trackJobKey records key ownership. Must be called with b.mu held.
func (b *Bus) trackJobKey(jobID, key string) {
	if jobID == "" {
		return
	}
	if b.jobKeys[jobID] == nil {
		b.jobKeys[jobID] = make(map[string]bool)
	}
	b.jobKeys[jobID][key] = true
}

func sanitizeKey(key string) string {
	out := []byte(key)
	for i, c := range out {
		switch c {
		case ':', '/', '\\':
			out[i] = '_'
		}
	}
	return string(out)
}

// stream is the fan-out point of one key.
type stream struct {
	mu     sync.Mutex
	key    string
	subs   []*subscription
	subSeq int
	done   bool
}

func newStream(key string) *stream {
	return &stream{key: key}
}

func (s *stream) attach(sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
	s.subSeq++
	if s.done {
		sub.end()
	}
}

func (s *stream) publish(rec domain.StreamRecord) error {
	s.mu.Lock()
	subs := append([]*subscription{}, s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		if err := sub.deliver(rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *stream) end() {
	s.mu.Lock()
	s.done = true
	subs := append([]*subscription{}, s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.end()
	}
}

func (s *stream) close() {
	s.mu.Lock()
	subs := append([]*subscription{}, s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
