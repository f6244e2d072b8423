package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/engagemart/internal/model"
	"github.com/mmeshcher/engagemart/internal/service"
)

type gigRequest struct {
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Category     string      `json:"category"`
	Price        model.Money `json:"price"`
	DeliveryDays int         `json:"delivery_days"`
}

// CreateGig публикует услугу текущего пользователя.
func (h *Handler) CreateGig(w http.ResponseWriter, r *http.Request) {
	var req gigRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	g, err := h.service.CreateGig(r.Context(), currentUser(r), service.GigInput(req))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, g)
}

// ListGigs возвращает все услуги.
func (h *Handler) ListGigs(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListGigs(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, nonNil(list))
}

// GetGig возвращает услугу.
func (h *Handler) GetGig(w http.ResponseWriter, r *http.Request) {
	g, err := h.service.GetGig(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, g)
}

// PurchaseGig покупает услугу.
func (h *Handler) PurchaseGig(w http.ResponseWriter, r *http.Request) {
	g, err := h.service.PurchaseGig(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, g)
}

type storefrontRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateStorefront создаёт витрину текущего пользователя.
func (h *Handler) CreateStorefront(w http.ResponseWriter, r *http.Request) {
	var req storefrontRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	st, err := h.service.CreateStorefront(r.Context(), currentUser(r), req.Name, req.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, st)
}

// GetStorefront возвращает витрину по адресу вместе с товарами.
func (h *Handler) GetStorefront(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetStorefront(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view.Products = nonNil(view.Products)
	h.writeJSON(w, http.StatusOK, view)
}

type productRequest struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Price       model.Money `json:"price"`
	FileKey     string      `json:"file_key"`
}

// CreateProduct добавляет цифровой товар на витрину текущего пользователя.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.CreateProduct(r.Context(), currentUser(r), service.ProductInput(req))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, p)
}

// ListProducts возвращает все цифровые товары.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, nonNil(list))
}

// GetProduct возвращает цифровой товар.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// PurchaseProduct покупает цифровой товар.
func (h *Handler) PurchaseProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.PurchaseProduct(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// DownloadProduct возвращает временную ссылку на файл товара.
func (h *Handler) DownloadProduct(w http.ResponseWriter, r *http.Request) {
	url, err := h.service.ProductDownloadURL(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

type videoRequest struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Platform string `json:"platform"`
}

// CreateVideo сохраняет промо-ролик.
func (h *Handler) CreateVideo(w http.ResponseWriter, r *http.Request) {
	var req videoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	v, err := h.service.CreateVideo(r.Context(), currentUser(r), req.Title, req.URL, req.Platform)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, v)
}

// ListVideos возвращает все ролики.
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListVideos(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, nonNil(list))
}
