// internal/platform/stream/subscription.go
package stream

import (
	"sync"

	"reconwave/internal/core/domain"
	"reconwave/internal/platform/logx"
)

// subscription is one consumer's view of a stream. Records queue in a
// bounded in-memory buffer; overflow goes to the durable spill. A pump
// goroutine replays memory first, then spill, preserving producer order.
type subscription struct {
	mu   sync.Mutex
	cond *sync.Cond

	memq    []domain.StreamRecord
	memCap  int
	spill   *spillQueue
	spilled bool // once spilling starts, stay on spill until drained

	done   bool // producer-done marker observed
	closed bool

	out  chan domain.StreamRecord
	quit chan struct{}

	closeOnce sync.Once
	logger    logx.Logger
}

func newSubscription(bufferSize int, spill *spillQueue, logger logx.Logger) *subscription {
	sub := &subscription{
		memCap: bufferSize,
		spill:  spill,
		out:    make(chan domain.StreamRecord),
		quit:   make(chan struct{}),
		logger: logger,
	}
	sub.cond = sync.NewCond(&sub.mu)
	go sub.pump()
	return sub
}

// Records implements ports.Subscription.
func (s *subscription) Records() <-chan domain.StreamRecord {
	return s.out
}

// Close detaches the subscription. Undelivered records are discarded; the
// consumer is gone, and downstream persistence is idempotent by contract.
func (s *subscription) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.quit)
		s.cond.Signal()
	})
}

// deliver enqueues one record, spilling on overflow. Never drops.
func (s *subscription) deliver(rec domain.StreamRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	// Once the spill is in use, later records must follow it to keep
	// producer order.
	if s.spilled || len(s.memq) >= s.memCap {
		if err := s.spill.Append(rec); err != nil {
			return err
		}
		s.spilled = true
	} else {
		s.memq = append(s.memq, rec)
	}

	s.cond.Signal()
	return nil
}

// end marks the producer done.
func (s *subscription) end() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
	s.cond.Signal()
}

// pump moves records from the buffer and spill to the consumer channel.
func (s *subscription) pump() {
	for {
		s.mu.Lock()
		for len(s.memq) == 0 && s.spill.Len() == 0 && !s.done && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			s.spill.Close()
			return
		}

		var rec domain.StreamRecord
		var ok bool
		if len(s.memq) > 0 {
			rec, ok = s.memq[0], true
			s.memq = s.memq[1:]
		} else if s.spill.Len() > 0 {
			var err error
			rec, ok, err = s.spill.Next()
			if err != nil {
				// Spill corruption is unrecoverable for this
				// subscription; close it rather than skip records
				// silently.
				s.logger.Err(err, "stage", "spill-replay")
				s.mu.Unlock()
				s.Close()
				close(s.out)
				s.spill.Close()
				return
			}
			if s.spill.Len() == 0 {
				s.spilled = false
			}
		}

		if !ok {
			// Backlog drained and producer done: complete the stream.
			s.mu.Unlock()
			close(s.out)
			s.spill.Close()
			return
		}
		s.mu.Unlock()

		select {
		case s.out <- rec:
		case <-s.quit:
			s.spill.Close()
			return
		}
	}
}
