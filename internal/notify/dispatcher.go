package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrQueueFull is returned when the dispatcher cannot take another event.
	ErrQueueFull = errors.New("notify: queue full")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("notify: dispatcher closed")
)

// Dispatcher delivers events to a handler on a single background worker.
// Publish never blocks.
type Dispatcher struct {
	handler Handler
	queue   chan Event
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts a dispatcher with room for size queued events.
func NewDispatcher(h Handler, size int) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	d := &Dispatcher{
		handler: h,
		queue:   make(chan Event, size),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.queue {
		if err := d.handler(context.Background(), e); err != nil {
			slog.Error("failed to handle event", "event", e.EventType, "id", e.EventID, "error", err)
		}
	}
}

// Publish queues e for delivery.
func (d *Dispatcher) Publish(_ context.Context, e Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting events and waits until the queued ones are handled.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}
