// internal/platform/stream/bus_test.go
package stream

import (
	"context"
	"fmt"
	"testing"
	"time"

	"reconwave/internal/core/domain"
	"reconwave/internal/platform/logx"
)

func newTestBus(t *testing.T, bufferSize int) *Bus {
	t.Helper()
	return NewBus(Options{
		SpillDir:   t.TempDir(),
		BufferSize: bufferSize,
		Logger:     logx.NewSilent(),
	})
}

func collect(t *testing.T, sub interface{ Records() <-chan domain.StreamRecord }) []domain.StreamRecord {
	t.Helper()
	var got []domain.StreamRecord
	timeout := time.After(5 * time.Second)
	for {
		select {
		case rec, ok := <-sub.Records():
			if !ok {
				return got
			}
			got = append(got, rec)
		case <-timeout:
			t.Fatalf("timed out waiting for stream close, got %d records", len(got))
		}
	}
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := newTestBus(t, 16)
	ctx := context.Background()
	key := "job-1:subenum:subdomains"

	sub, err := bus.Subscribe("job-1", key)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	for _, v := range []string{"api.example.com", "www.example.com"} {
		if err := bus.Publish(ctx, key, domain.NewStreamRecord("job-1", "subenum", "subdomain", v)); err != nil {
			t.Fatalf("Publish(%s) failed: %v", v, err)
		}
	}
	if err := bus.EndProduce(key); err != nil {
		t.Fatalf("EndProduce failed: %v", err)
	}

	got := collect(t, sub)
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].Value != "api.example.com" || got[1].Value != "www.example.com" {
		t.Errorf("producer order not preserved: %v", got)
	}
	if bus.Count(key) != 2 {
		t.Errorf("Count: got %d, want 2", bus.Count(key))
	}
	bus.CloseJob("job-1")
}

func TestBus_FanOutToAllSubscribers(t *testing.T) {
	bus := newTestBus(t, 16)
	ctx := context.Background()
	key := "job-1:subenum:subdomains"

	subA, _ := bus.Subscribe("job-1", key)
	subB, _ := bus.Subscribe("job-1", key)

	bus.Publish(ctx, key, domain.NewStreamRecord("job-1", "subenum", "subdomain", "api.example.com"))
	bus.EndProduce(key)

	if got := collect(t, subA); len(got) != 1 {
		t.Errorf("subscriber A: got %d records, want 1", len(got))
	}
	if got := collect(t, subB); len(got) != 1 {
		t.Errorf("subscriber B: got %d records, want 1", len(got))
	}
	bus.CloseJob("job-1")
}

func TestBus_OverflowSpillsWithoutLoss(t *testing.T) {
	// Tiny buffer plus a consumer that only starts reading after all
	// publishes: everything past the buffer must survive via spill.
	bus := newTestBus(t, 4)
	ctx := context.Background()
	key := "job-1:subenum:subdomains"

	sub, _ := bus.Subscribe("job-1", key)

	const total = 200
	for i := 0; i < total; i++ {
		rec := domain.NewStreamRecord("job-1", "subenum", "subdomain", fmt.Sprintf("host%d.example.com", i))
		if err := bus.Publish(ctx, key, rec); err != nil {
			t.Fatalf("Publish %d failed: %v", i, err)
		}
	}
	bus.EndProduce(key)

	got := collect(t, sub)
	if len(got) != total {
		t.Fatalf("got %d records, want %d (records were dropped)", len(got), total)
	}
	for i, rec := range got {
		want := fmt.Sprintf("host%d.example.com", i)
		if rec.Value != want {
			t.Fatalf("record %d out of order: got %s, want %s", i, rec.Value, want)
		}
	}
	bus.CloseJob("job-1")
}

func TestBus_DoneMarkerClosesStream(t *testing.T) {
	bus := newTestBus(t, 16)
	key := "job-1:subenum:subdomains"

	sub, _ := bus.Subscribe("job-1", key)
	bus.EndProduce(key)

	select {
	case _, ok := <-sub.Records():
		if ok {
			t.Fatal("empty completed stream should close without records")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after producer done")
	}
	bus.CloseJob("job-1")
}

func TestBus_EndProduceUnknownKey(t *testing.T) {
	bus := newTestBus(t, 16)
	if err := bus.EndProduce("job-1:ghost:none"); err == nil {
		t.Fatal("EndProduce on unknown key should fail")
	}
}

func TestBus_LateSubscriberAfterDone(t *testing.T) {
	bus := newTestBus(t, 16)
	ctx := context.Background()
	key := "job-1:subenum:subdomains"

	bus.Publish(ctx, key, domain.NewStreamRecord("job-1", "subenum", "subdomain", "api.example.com"))
	bus.EndProduce(key)

	// The sequence is non-restartable: a late subscriber sees a closed
	// stream, not a replay.
	sub, _ := bus.Subscribe("job-1", key)
	got := collect(t, sub)
	if len(got) != 0 {
		t.Errorf("late subscriber: got %d records, want 0", len(got))
	}
	bus.CloseJob("job-1")
}

func TestSpillQueue_AppendNext(t *testing.T) {
	q := newSpillQueue(t.TempDir(), "test")

	for i := 0; i < 3; i++ {
		rec := domain.NewStreamRecord("job-1", "subenum", "subdomain", fmt.Sprintf("h%d.example.com", i))
		if err := q.Append(rec); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("Len: got %d, want 3", q.Len())
	}

	for i := 0; i < 3; i++ {
		rec, ok, err := q.Next()
		if err != nil || !ok {
			t.Fatalf("Next %d: ok=%v err=%v", i, ok, err)
		}
		want := fmt.Sprintf("h%d.example.com", i)
		if rec.Value != want {
			t.Errorf("Next %d: got %s, want %s", i, rec.Value, want)
		}
	}
	if _, ok, _ := q.Next(); ok {
		t.Error("drained queue should report no records")
	}
	q.Close()
}

func TestSpillQueue_InterleavedAppendNext(t *testing.T) {
	q := newSpillQueue(t.TempDir(), "test")

	q.Append(domain.NewStreamRecord("j", "m", "k", "one"))
	rec, ok, err := q.Next()
	if err != nil || !ok || rec.Value != "one" {
		t.Fatalf("first replay: rec=%v ok=%v err=%v", rec, ok, err)
	}

	q.Append(domain.NewStreamRecord("j", "m", "k", "two"))
	rec, ok, err = q.Next()
	if err != nil || !ok || rec.Value != "two" {
		t.Fatalf("second replay after append: rec=%v ok=%v err=%v", rec, ok, err)
	}
	q.Close()
}
