package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gudangmitra/gudang/internal/db"
	"github.com/gudangmitra/gudang/internal/model"
	"github.com/gudangmitra/gudang/internal/store"
)

func TestConsumerFansOutCreatedEvents(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin, _ := store.CreateUser(ctx, database, "Admin", "admin@example.com", "hash", model.RoleAdmin)
	mgr, _ := store.CreateUser(ctx, database, "Manager", "mgr@example.com", "hash", model.RoleManager)
	user, _ := store.CreateUser(ctx, database, "User", "user@example.com", "hash", model.RoleUser)

	c := &Consumer{DB: database}
	e := NewEvent("test", RequestCreated, "req-1", Payload{RequesterID: user.ID, ActorID: user.ID, Status: "pending", Subject: "User"})
	if err := c.Handle(ctx, e); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	for _, u := range []*model.User{admin, mgr} {
		list, _ := store.ListNotifications(ctx, database, u.ID)
		if len(list) != 1 {
			t.Fatalf("expected 1 notification for %s, got %d", u.Email, len(list))
		}
		if list[0].Type != RequestCreated || list[0].RelatedID != "req-1" {
			t.Errorf("unexpected notification: %+v", list[0])
		}
		if list[0].Message != "User submitted a new request" {
			t.Errorf("unexpected message %q", list[0].Message)
		}
	}
	if list, _ := store.ListNotifications(ctx, database, user.ID); len(list) != 0 {
		t.Errorf("expected no notification for the requester, got %d", len(list))
	}
}

func TestConsumerNotifiesRequester(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mgr, _ := store.CreateUser(ctx, database, "Manager", "mgr@example.com", "hash", model.RoleManager)
	user, _ := store.CreateUser(ctx, database, "User", "user@example.com", "hash", model.RoleUser)

	c := &Consumer{DB: database, Dedup: NewMemoryDeduper(time.Hour)}
	e := NewEvent("test", StatusEvent("loan", "active"), "loan-1", Payload{RequesterID: user.ID, ActorID: mgr.ID, Status: "active"})

	// Redelivery of the same event writes one row.
	for i := 0; i < 2; i++ {
		if err := c.Handle(ctx, e); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}

	list, _ := store.ListNotifications(ctx, database, user.ID)
	if len(list) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(list))
	}
	if list[0].Message != "Your loan was approved" {
		t.Errorf("unexpected message %q", list[0].Message)
	}
	if got, _ := store.ListNotifications(ctx, database, mgr.ID); len(got) != 0 {
		t.Errorf("expected no notification for the manager, got %d", len(got))
	}
}

func TestConsumerRedeliversAfterFailedWrite(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin, _ := store.CreateUser(ctx, database, "Admin", "admin@example.com", "hash", model.RoleAdmin)
	mgr, _ := store.CreateUser(ctx, database, "Manager", "mgr@example.com", "hash", model.RoleManager)
	user, _ := store.CreateUser(ctx, database, "User", "user@example.com", "hash", model.RoleUser)

	// Writes for the manager fail until the trigger is dropped.
	if _, err := database.Exec(`CREATE TRIGGER fail_notify BEFORE INSERT ON notifications
		WHEN NEW.user_id = ` + fmt.Sprint(mgr.ID) + `
		BEGIN SELECT RAISE(ABORT, 'disk full'); END`); err != nil {
		t.Fatalf("creating trigger: %v", err)
	}

	c := &Consumer{DB: database, Dedup: NewMemoryDeduper(time.Hour)}
	e := NewEvent("test", RequestCreated, "req-1", Payload{RequesterID: user.ID, ActorID: user.ID, Subject: "User"})

	if err := c.Handle(ctx, e); err == nil {
		t.Fatal("expected Handle to fail while the store rejects writes")
	}
	for _, u := range []*model.User{admin, mgr} {
		if list, _ := store.ListNotifications(ctx, database, u.ID); len(list) != 0 {
			t.Fatalf("expected no rows for %s after a failed delivery, got %d", u.Email, len(list))
		}
	}
	if seen, _ := c.Dedup.Seen(ctx, e.EventID); seen {
		t.Fatal("failed event must not be marked handled")
	}

	if _, err := database.Exec(`DROP TRIGGER fail_notify`); err != nil {
		t.Fatalf("dropping trigger: %v", err)
	}

	// Redelivered twice: the first writes, the second is a duplicate.
	for i := 0; i < 2; i++ {
		if err := c.Handle(ctx, e); err != nil {
			t.Fatalf("Handle after recovery: %v", err)
		}
	}
	for _, u := range []*model.User{admin, mgr} {
		if list, _ := store.ListNotifications(ctx, database, u.ID); len(list) != 1 {
			t.Errorf("expected exactly 1 notification for %s, got %d", u.Email, len(list))
		}
	}
}

func TestMemoryDeduperExpires(t *testing.T) {
	now := time.Now()
	d := NewMemoryDeduper(time.Minute)
	d.now = func() time.Time { return now }

	ctx := context.Background()
	if seen, _ := d.Seen(ctx, "e1"); seen {
		t.Fatal("expected unknown id to be unseen")
	}
	if seen, _ := d.Seen(ctx, "e1"); seen {
		t.Fatal("checking must not record the id")
	}
	d.Mark(ctx, "e1")
	if seen, _ := d.Seen(ctx, "e1"); !seen {
		t.Fatal("expected marked id to be seen")
	}

	now = now.Add(2 * time.Minute)
	if seen, _ := d.Seen(ctx, "e1"); seen {
		t.Error("expected id to be forgotten after the TTL")
	}
}

func TestMessageFallback(t *testing.T) {
	e := Event{EventType: "request.archived", Payload: Payload{Status: "archived"}}
	if got := Message(e); got != "Your request is now archived" {
		t.Errorf("unexpected fallback message %q", got)
	}
}
