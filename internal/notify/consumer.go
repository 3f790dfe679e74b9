package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/gudangmitra/gudang/internal/model"
	"github.com/gudangmitra/gudang/internal/store"
)

var statusMessages = map[string]string{
	"request.approved":     "Your request was approved",
	"request.denied":       "Your request was denied",
	"request.fulfilled":    "Your request was fulfilled",
	"request.out_of_stock": "Your request could not be filled: out of stock",
	"loan.active":          "Your loan was approved",
	"loan.rejected":        "Your loan was rejected",
	"loan.returned":        "Your loan was marked returned",
	"loan.cancelled":       "Your loan was cancelled",
	LoanOverdue:            "Your loan is overdue",
}

// Consumer turns events into notification rows.
type Consumer struct {
	DB    *sqlx.DB
	Dedup Deduper // optional
}

// Handle writes the notifications for e. A creation goes to every admin
// and manager except its author; anything else goes to the requester.
// All rows of one event commit together, and the event id is marked
// handled only after that commit, so a failed event can be redelivered.
func (c *Consumer) Handle(ctx context.Context, e Event) error {
	if c.Dedup != nil {
		seen, err := c.Dedup.Seen(ctx, e.EventID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}

	recipients, err := c.recipients(ctx, e)
	if err != nil {
		return err
	}
	if err := store.CreateNotifications(ctx, c.DB, recipients, e.EventType, Message(e), e.CorrelationID); err != nil {
		return fmt.Errorf("delivering %s: %w", e.EventType, err)
	}

	if c.Dedup != nil {
		// The rows are committed; a redelivery at worst duplicates them.
		if err := c.Dedup.Mark(ctx, e.EventID); err != nil {
			slog.Warn("failed to record handled event", "event", e.EventType, "id", e.EventID, "error", err)
		}
	}
	return nil
}

func (c *Consumer) recipients(ctx context.Context, e Event) ([]int64, error) {
	if !e.Created() {
		if e.Payload.RequesterID <= 0 {
			return nil, nil
		}
		return []int64{e.Payload.RequesterID}, nil
	}

	staff, err := store.ListUsersByRole(ctx, c.DB, model.RoleAdmin, model.RoleManager)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for _, u := range staff {
		if u.ID != e.Payload.ActorID {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}

// Message returns the notification text for e.
func Message(e Event) string {
	if e.Created() {
		subject := e.Payload.Subject
		if subject == "" {
			subject = "Someone"
		}
		return fmt.Sprintf("%s submitted a new %s", subject, e.Kind())
	}
	if msg, ok := statusMessages[e.EventType]; ok {
		return msg
	}
	return fmt.Sprintf("Your %s is now %s", e.Kind(), e.Payload.Status)
}
