package api

import (
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/gudangmitra/gudang/internal/model"
	"github.com/gudangmitra/gudang/internal/store"
)

// NotificationsHandler handles a user's notification inbox.
type NotificationsHandler struct {
	DB *sqlx.DB
	responder
}

// List handles GET /api/notifications/user/{id}. Admins may read any inbox.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, valid := pathID(r)
	if !valid {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	claims := GetClaims(r.Context())
	if claims.UserID != userID && claims.Role != model.RoleAdmin {
		jsonError(w, http.StatusForbidden, "not your notifications")
		return
	}

	list, err := store.ListNotifications(r.Context(), h.DB, userID)
	if err != nil {
		h.fail(w, r, "failed to list notifications", err)
		return
	}
	ok(w, http.StatusOK, "", nonNil(list))
}

// MarkRead handles PATCH /api/notifications/{id}/read. Other users'
// notifications are reported as not found.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, valid := pathID(r)
	if !valid {
		jsonError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	n, err := store.GetNotification(r.Context(), h.DB, id)
	if err != nil {
		h.fail(w, r, "failed to get notification", err)
		return
	}
	if n == nil || n.UserID != GetClaims(r.Context()).UserID {
		jsonError(w, http.StatusNotFound, "notification not found")
		return
	}

	if err := store.MarkNotificationRead(r.Context(), h.DB, id); err != nil {
		h.fail(w, r, "failed to mark notification read", err)
		return
	}
	n.IsRead = true
	ok(w, http.StatusOK, "notification marked as read", n)
}

// MarkAllRead handles PATCH /api/notifications/user/{id}/read-all.
func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, valid := pathID(r)
	if !valid {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if GetClaims(r.Context()).UserID != userID {
		jsonError(w, http.StatusForbidden, "not your notifications")
		return
	}

	count, err := store.MarkAllNotificationsRead(r.Context(), h.DB, userID)
	if err != nil {
		h.fail(w, r, "failed to mark notifications read", err)
		return
	}
	ok(w, http.StatusOK, "all notifications marked as read", map[string]int64{"updated": count})
}
