// Package notify carries domain events from the workflow to the
// notification consumer, either in process or over Kafka.
package notify

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event types. Status changes use "<kind>.<status>", e.g. request.approved
// or loan.returned.
const (
	RequestCreated = "request.created"
	LoanCreated    = "loan.created"
	LoanOverdue    = "loan.overdue"
)

// EventVersion is the envelope version written by this build.
const EventVersion = 1

// Event is the envelope of one domain event.
type Event struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	EventVersion  int       `json:"event_version"`
	OccurredAt    time.Time `json:"occurred_at"`
	Producer      string    `json:"producer"`
	CorrelationID string    `json:"correlation_id"` // request or loan id
	Payload       Payload   `json:"payload"`
}

// Payload is what the consumer needs to address and word a notification.
type Payload struct {
	RequesterID int64  `json:"requester_id"`
	ActorID     int64  `json:"actor_id,omitempty"`
	Status      string `json:"status"`
	Subject     string `json:"subject"`
}

// NewEvent stamps a new envelope.
func NewEvent(producer, eventType, correlationID string, p Payload) Event {
	return Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  EventVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       p,
	}
}

// StatusEvent returns the event type for a request or loan moving to status.
func StatusEvent(kind, status string) string {
	return kind + "." + status
}

// Kind returns the entity part of the event type ("request" or "loan").
func (e Event) Kind() string {
	kind, _, _ := strings.Cut(e.EventType, ".")
	return kind
}

// Created reports whether the event announces a new request or loan.
func (e Event) Created() bool {
	return strings.HasSuffix(e.EventType, ".created")
}

// Publisher hands events to the notification consumer.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Handler processes one event.
type Handler func(ctx context.Context, e Event) error

// SyncPublisher runs the handler inline.
type SyncPublisher struct {
	Handler Handler
}

// Publish calls the handler and returns its error.
func (p SyncPublisher) Publish(ctx context.Context, e Event) error {
	return p.Handler(ctx, e)
}
