package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/gudangmitra/gudang/internal/apperr"
	"github.com/gudangmitra/gudang/internal/model"
)

const notificationSelect = `SELECT id, user_id, type, message, related_id, is_read, created_at FROM notifications`

// CreateNotification stores a notification for one user.
func CreateNotification(ctx context.Context, db *sqlx.DB, userID int64, kind, message, relatedID string) (*model.Notification, error) {
	id, err := insertID(ctx, db,
		`INSERT INTO notifications (user_id, type, message, related_id) VALUES (?, ?, ?, ?)`,
		userID, kind, message, relatedID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}
	return GetNotification(ctx, db, id)
}

// CreateNotifications stores the same notification for every user in one
// transaction: either all of them get it or none do.
func CreateNotifications(ctx context.Context, db *sqlx.DB, userIDs []int64, kind, message, relatedID string) error {
	if len(userIDs) == 0 {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, uid := range userIDs {
		if _, err := exec(ctx, tx,
			`INSERT INTO notifications (user_id, type, message, related_id) VALUES (?, ?, ?, ?)`,
			uid, kind, message, relatedID,
		); err != nil {
			return fmt.Errorf("notifying user %d: %w", uid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing notifications: %w", err)
	}
	return nil
}

// GetNotification returns a notification by ID.
func GetNotification(ctx context.Context, db *sqlx.DB, id int64) (*model.Notification, error) {
	n := &model.Notification{}
	err := get(ctx, db, n, notificationSelect+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns a user's notifications, newest first.
func ListNotifications(ctx context.Context, db *sqlx.DB, userID int64) ([]model.Notification, error) {
	var list []model.Notification
	if err := selectAll(ctx, db, &list,
		notificationSelect+` WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID,
	); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return list, nil
}

// CountUnread returns how many of a user's notifications are unread.
func CountUnread(ctx context.Context, db *sqlx.DB, userID int64) (int, error) {
	var n int
	if err := get(ctx, db, &n,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = FALSE`, userID,
	); err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return n, nil
}

// MarkNotificationRead marks one notification read.
func MarkNotificationRead(ctx context.Context, db *sqlx.DB, id int64) error {
	res, err := exec(ctx, db, `UPDATE notifications SET is_read = TRUE WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("notification %d not found", id)
	}
	return nil
}

// MarkAllNotificationsRead marks every notification of a user read and
// returns how many changed.
func MarkAllNotificationsRead(ctx context.Context, db *sqlx.DB, userID int64) (int64, error) {
	res, err := exec(ctx, db,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = ? AND is_read = FALSE`, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
