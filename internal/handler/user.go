package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/mmeshcher/engagemart/internal/model"
	"github.com/mmeshcher/engagemart/internal/service"
	"github.com/mmeshcher/engagemart/internal/session"
)

type registerRequest struct {
	Login    string     `json:"login"`
	Password string     `json:"password"`
	Name     string     `json:"name"`
	Role     model.Role `json:"role"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Login == "" || req.Password == "" {
		http.Error(w, "login and password are required", http.StatusBadRequest)
		return
	}

	u, err := h.service.RegisterUser(r.Context(), req.Login, req.Password, req.Name, req.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, u.ID)
	h.writeJSON(w, http.StatusOK, u)
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию пользователя и устанавливает cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Login == "" || req.Password == "" {
		http.Error(w, "login and password are required", http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// Logout удаляет cookie авторизации.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

type sessionRequest struct {
	Event session.Event `json:"event"`
	Token string        `json:"token"`
}

// Session принимает событие внешнего провайдера аутентификации.
// SIGNED_IN выдаёт cookie существующему пользователю, SIGNED_OUT удаляет cookie.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.sessions.Resolve(r.Context(), req.Event, req.Token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if u == nil {
		h.authMiddleware.ClearAuthCookie(w)
		w.WriteHeader(http.StatusOK)
		return
	}

	h.authMiddleware.SetAuthCookie(w, u.ID)
	h.writeJSON(w, http.StatusOK, u)
}

type profileResponse struct {
	*model.User
	UnreadNotifications int `json:"unread_notifications"`
}

// Me возвращает профиль текущего пользователя.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	u, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	unread, err := h.service.UnreadCount(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, profileResponse{User: u, UnreadNotifications: unread})
}

// GetBalance возвращает баланс текущего пользователя.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.GetBalance(r.Context(), currentUser(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, balance)
}

// GetTransactions возвращает журнал проводок текущего пользователя.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListTransactions(r.Context(), currentUser(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, nonNil(list))
}

type paymentRequest struct {
	Amount  model.Money `json:"amount"`
	Method  string      `json:"method"`
	Details string      `json:"details"`
}

// Withdraw создаёт заявку на вывод средств.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.service.RequestWithdrawal(r.Context(), currentUser(r), service.PaymentRequest(req))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, t)
}

// Deposit создаёт заявку на пополнение.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.service.RequestDeposit(r.Context(), currentUser(r), service.PaymentRequest(req))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, t)
}

// VerificationFee регистрирует оплату взноса за допуск.
func (h *Handler) VerificationFee(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.service.SubmitVerificationFee(r.Context(), currentUser(r), req.Method, req.Details)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, t)
}

// Leaderboard возвращает таблицу лидеров по опыту.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			http.Error(w, "limit must be between 1 and 100", http.StatusBadRequest)
			return
		}
		limit = n
	}

	board, err := h.service.Leaderboard(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, nonNil(board))
}
