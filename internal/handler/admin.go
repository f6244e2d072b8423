package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/engagemart/internal/model"
)

// AdminListUsers возвращает всех пользователей.
func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context(), currentUser(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, nonNil(users))
}

// AdminListTransactions возвращает проводки всех пользователей, ?status= фильтрует по статусу.
func (h *Handler) AdminListTransactions(w http.ResponseWriter, r *http.Request) {
	status := model.TransactionStatus(r.URL.Query().Get("status"))
	list, err := h.service.ListAllTransactions(r.Context(), currentUser(r), status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, nonNil(list))
}

type reviewRequest struct {
	Status model.TransactionStatus `json:"status"`
}

// AdminReviewTransaction одобряет или отклоняет проводку в ожидании.
func (h *Handler) AdminReviewTransaction(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.service.ReviewTransaction(r.Context(), currentUser(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}

type adjustRequest struct {
	Amount model.Money `json:"amount"`
	Reason string      `json:"reason"`
}

// AdminAdjustBalance изменяет баланс пользователя на сумму со знаком.
func (h *Handler) AdminAdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.service.AdjustBalance(r.Context(), currentUser(r), chi.URLParam(r, "id"), req.Amount, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}

// AdminApproveVerification выдаёт пользователю допуск.
func (h *Handler) AdminApproveVerification(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.ApproveVerification(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, u)
}

// AdminRejectVerification отказывает пользователю в допуске.
func (h *Handler) AdminRejectVerification(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.RejectVerification(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, u)
}

type notifyRequest struct {
	UserID  string                 `json:"user_id"`
	Type    model.NotificationType `json:"type"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
}

// AdminNotify отправляет уведомление пользователю или, без user_id, всем.
func (h *Handler) AdminNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var err error
	if req.UserID == "" || req.UserID == model.BroadcastUserID {
		err = h.service.Broadcast(r.Context(), currentUser(r), req.Type, req.Title, req.Message)
	} else {
		if req.Type == "" {
			req.Type = model.NotificationInfo
		}
		err = h.service.Notify(r.Context(), req.UserID, req.Type, req.Title, req.Message)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// AdminReconcile запускает сверку немедленно.
func (h *Handler) AdminReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Reconcile(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}
