package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestDispatcherDeliversAndDrains(t *testing.T) {
	var mu sync.Mutex
	var got []string

	d := NewDispatcher(func(_ context.Context, e Event) error {
		mu.Lock()
		got = append(got, e.EventID)
		mu.Unlock()
		return nil
	}, 16)

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := d.Publish(ctx, Event{EventID: id}); err != nil {
			t.Fatalf("Publish(%s): %v", id, err)
		}
	}
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("expected events delivered in order before Close returns, got %v", got)
	}

	if err := d.Publish(ctx, Event{EventID: "late"}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}

	// Close is safe to call twice.
	d.Close()
}

func TestDispatcherQueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	d := NewDispatcher(func(_ context.Context, e Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	}, 1)

	ctx := context.Background()
	d.Publish(ctx, Event{EventID: "1"})
	<-started // worker is now blocked on the first event

	if err := d.Publish(ctx, Event{EventID: "2"}); err != nil {
		t.Fatalf("expected second event to fit in the queue, got %v", err)
	}
	if err := d.Publish(ctx, Event{EventID: "3"}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}

	close(release)
	d.Close()
}

func TestDispatcherSurvivesHandlerErrors(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	d := NewDispatcher(func(_ context.Context, e Event) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return errors.New("boom")
	}, 4)

	d.Publish(context.Background(), Event{EventID: "1"})
	d.Publish(context.Background(), Event{EventID: "2"})
	d.Close()

	if calls != 2 {
		t.Errorf("expected both events handled despite errors, got %d", calls)
	}
}

func TestEventHelpers(t *testing.T) {
	e := NewEvent("gudang", StatusEvent("request", "approved"), "req-1", Payload{RequesterID: 7})
	if e.EventID == "" || e.EventVersion != EventVersion {
		t.Errorf("expected stamped envelope, got %+v", e)
	}
	if e.Kind() != "request" {
		t.Errorf("expected kind 'request', got %q", e.Kind())
	}
	if e.Created() {
		t.Error("approved event must not count as created")
	}
	if !(Event{EventType: LoanCreated}).Created() {
		t.Error("expected loan.created to count as created")
	}
}

func TestEventMessage(t *testing.T) {
	e := NewEvent("gudang", LoanOverdue, "loan-9", Payload{RequesterID: 3, Status: "overdue"})
	msg, err := eventMessage(e)
	if err != nil {
		t.Fatalf("eventMessage: %v", err)
	}
	if string(msg.Key) != "loan-9" {
		t.Errorf("expected key to be the correlation id, got %q", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != LoanOverdue {
		t.Errorf("expected event-type header, got %+v", msg.Headers)
	}
}
