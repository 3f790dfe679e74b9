package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

// fakeReader serves queued messages then blocks until the context ends.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	onCommit  func(kafka.Message)
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	hook := r.onCommit
	r.mu.Unlock()
	if hook != nil {
		for _, m := range msgs {
			hook(m)
		}
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func testMessage(t *testing.T, offset int64, id string) kafka.Message {
	t.Helper()
	value, err := json.Marshal(Event{EventID: id, EventType: RequestCreated})
	if err != nil {
		t.Fatal(err)
	}
	return kafka.Message{Offset: offset, Value: value}
}

func TestKafkaConsumerRetriesBeforeCommitting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{queue: []kafka.Message{
		{Offset: 0, Value: []byte("not json")},
		testMessage(t, 1, "e1"),
		testMessage(t, 2, "e2"),
	}}
	reader.onCommit = func(m kafka.Message) {
		if m.Offset == 2 {
			cancel()
		}
	}
	c := &KafkaConsumer{reader: reader, retryMin: time.Millisecond, retryMax: 4 * time.Millisecond}

	var calls []string
	failures := 2
	h := func(_ context.Context, e Event) error {
		calls = append(calls, e.EventID)
		if e.EventID == "e1" && failures > 0 {
			failures--
			return errors.New("store unavailable")
		}
		return nil
	}

	if err := c.Run(ctx, h); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"e1", "e1", "e1", "e2"}
	if len(calls) != len(want) {
		t.Fatalf("expected handler calls %v, got %v", want, calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("expected handler calls %v, got %v", want, calls)
		}
	}

	reader.mu.Lock()
	defer reader.mu.Unlock()
	if len(reader.committed) != 3 || reader.committed[0] != 0 || reader.committed[1] != 1 || reader.committed[2] != 2 {
		t.Errorf("expected offsets committed in order [0 1 2], got %v", reader.committed)
	}
}

func TestKafkaConsumerStopsWithoutCommittingFailedEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{queue: []kafka.Message{
		testMessage(t, 7, "e1"),
		testMessage(t, 8, "e2"),
	}}
	c := &KafkaConsumer{reader: reader, retryMin: time.Millisecond, retryMax: time.Millisecond}

	attempts := 0
	h := func(_ context.Context, e Event) error {
		if e.EventID != "e1" {
			t.Errorf("handler reached %s while e1 was still failing", e.EventID)
		}
		attempts++
		if attempts == 3 {
			cancel()
		}
		return errors.New("store unavailable")
	}

	if err := c.Run(ctx, h); err != nil {
		t.Fatalf("Run: %v", err)
	}

	reader.mu.Lock()
	defer reader.mu.Unlock()
	if len(reader.committed) != 0 {
		t.Errorf("expected nothing committed, got %v", reader.committed)
	}
	if len(reader.queue) != 1 {
		t.Errorf("expected e2 left unfetched, got %d queued", len(reader.queue))
	}
}
