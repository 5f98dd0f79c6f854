package handlers

import (
	"net/http"

	"campusmarket/models"
)

// GetNotificationsHandler отдает уведомления пользователя, опционально только непрочитанные
func (h *Handler) GetNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	unreadOnly := r.URL.Query().Get("unread") == "true"

	list, err := h.Store.ListNotifications(r.Context(), principal(r).UserID, unreadOnly, params.Limit, params.Offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) UnreadCountHandler(w http.ResponseWriter, r *http.Request) {
	count, err := h.Store.CountUnreadNotifications(r.Context(), principal(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// MarkNotificationReadHandler помечает одно уведомление; чужое уведомление дает 404
func (h *Handler) MarkNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.MarkNotificationRead(r.Context(), id, principal(r).UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Notification marked as read"})
}

func (h *Handler) MarkAllNotificationsReadHandler(w http.ResponseWriter, r *http.Request) {
	updated, err := h.Store.MarkAllNotificationsRead(r.Context(), principal(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}
