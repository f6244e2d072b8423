package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type notificationsResponse struct {
	Unread int `json:"unread"`
	Items  any `json:"items"`
}

// ListNotifications возвращает уведомления текущего пользователя и число непрочитанных.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListNotifications(r.Context(), currentUser(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	unread := 0
	for _, n := range list {
		if !n.Read {
			unread++
		}
	}
	h.writeJSON(w, http.StatusOK, notificationsResponse{Unread: unread, Items: nonNil(list)})
}

// MarkNotificationRead отмечает уведомление прочитанным.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.service.MarkRead(r.Context(), currentUser(r), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
