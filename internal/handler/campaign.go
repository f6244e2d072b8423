package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/engagemart/internal/model"
	"github.com/mmeshcher/engagemart/internal/service"
)

type campaignRequest struct {
	Title         string      `json:"title"`
	Platform      string      `json:"platform"`
	Action        string      `json:"action"`
	TargetURL     string      `json:"target_url"`
	Instructions  string      `json:"instructions"`
	TotalBudget   model.Money `json:"total_budget"`
	RewardPerTask model.Money `json:"reward_per_task"`
}

// CreateCampaign создаёт и оплачивает кампанию текущего пользователя.
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.service.CreateCampaign(r.Context(), currentUser(r), service.CampaignInput(req))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, c)
}

// ListCampaigns возвращает кампании текущего пользователя.
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListCampaigns(r.Context(), currentUser(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, nonNil(list))
}

// GetCampaign возвращает кампанию по идентификатору.
func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetCampaign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

// CampaignInsights возвращает советы по кампании.
func (h *Handler) CampaignInsights(w http.ResponseWriter, r *http.Request) {
	text, err := h.service.CampaignInsights(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"insights": text})
}

// ListTasks возвращает задания, доступные текущему исполнителю.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.AvailableTasks(r.Context(), currentUser(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, nonNil(tasks))
}

type submitTaskRequest struct {
	Proof string `json:"proof"`
}

// SubmitTask принимает доказательство выполнения задания. Отклонённое
// доказательство не считается ошибкой запроса, ответ 200 с approved=false.
func (h *Handler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req submitTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.service.SubmitTask(r.Context(), currentUser(r), chi.URLParam(r, "campaignID"), req.Proof)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}
