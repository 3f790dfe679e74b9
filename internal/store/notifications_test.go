package store

import (
	"context"
	"errors"
	"testing"

	"github.com/gudangmitra/gudang/internal/apperr"
	"github.com/gudangmitra/gudang/internal/db"
	"github.com/gudangmitra/gudang/internal/model"
)

func TestNotifications(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	u := seedUser(t, database, "user@example.com", model.RoleUser)
	other := seedUser(t, database, "other@example.com", model.RoleUser)

	n1, err := CreateNotification(ctx, database, u.ID, "request.approved", "Your request was approved", "req-1")
	if err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}
	if n1.IsRead {
		t.Error("expected new notification to be unread")
	}
	CreateNotification(ctx, database, u.ID, "loan.active", "Your loan is active", "loan-1")
	CreateNotification(ctx, database, other.ID, "loan.active", "Your loan is active", "loan-2")

	list, err := ListNotifications(ctx, database, u.ID)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(list))
	}

	if err := MarkNotificationRead(ctx, database, n1.ID); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	if unread, _ := CountUnread(ctx, database, u.ID); unread != 1 {
		t.Errorf("expected 1 unread, got %d", unread)
	}

	changed, err := MarkAllNotificationsRead(ctx, database, u.ID)
	if err != nil {
		t.Fatalf("MarkAllNotificationsRead: %v", err)
	}
	if changed != 1 {
		t.Errorf("expected 1 notification to change, got %d", changed)
	}
	if unread, _ := CountUnread(ctx, database, other.ID); unread != 1 {
		t.Errorf("expected other user's notification untouched, got %d unread", unread)
	}

	if err := MarkNotificationRead(ctx, database, 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
