package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	custommiddleware "github.com/mmeshcher/engagemart/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.Metrics)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	auth := h.authMiddleware.Middleware

	r.Route("/api", func(r chi.Router) {
		r.Get("/leaderboard", h.Leaderboard)

		r.Route("/user", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Post("/session", h.Session)

			r.Group(func(r chi.Router) {
				r.Use(auth)

				r.Get("/me", h.Me)
				r.Get("/balance", h.GetBalance)
				r.Post("/balance/withdraw", h.Withdraw)
				r.Post("/balance/deposit", h.Deposit)
				r.Get("/transactions", h.GetTransactions)
				r.Post("/verification/fee", h.VerificationFee)
			})
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Use(auth)

			r.Get("/", h.ListCampaigns)
			r.Post("/", h.CreateCampaign)
			r.Get("/{id}", h.GetCampaign)
			r.Get("/{id}/insights", h.CampaignInsights)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Use(auth)

			r.Get("/", h.ListTasks)
			r.Post("/{campaignID}/submit", h.SubmitTask)
		})

		r.Route("/gigs", func(r chi.Router) {
			r.Get("/", h.ListGigs)
			r.Get("/{id}", h.GetGig)
			r.With(auth).Post("/", h.CreateGig)
			r.With(auth).Post("/{id}/purchase", h.PurchaseGig)
		})

		r.Get("/stores/{slug}", h.GetStorefront)
		r.With(auth).Post("/stores", h.CreateStorefront)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Get("/{id}", h.GetProduct)
			r.With(auth).Post("/", h.CreateProduct)
			r.With(auth).Post("/{id}/purchase", h.PurchaseProduct)
			r.With(auth).Get("/{id}/download", h.DownloadProduct)
		})

		r.Route("/videos", func(r chi.Router) {
			r.Get("/", h.ListVideos)
			r.With(auth).Post("/", h.CreateVideo)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(auth)

			r.Get("/", h.ListNotifications)
			r.Post("/{id}/read", h.MarkNotificationRead)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth)
			r.Use(custommiddleware.RequireAdmin(h.service, h.logger))

			r.Get("/users", h.AdminListUsers)
			r.Post("/users/{id}/adjust", h.AdminAdjustBalance)
			r.Post("/users/{id}/verification/approve", h.AdminApproveVerification)
			r.Post("/users/{id}/verification/reject", h.AdminRejectVerification)
			r.Get("/transactions", h.AdminListTransactions)
			r.Post("/transactions/{id}/review", h.AdminReviewTransaction)
			r.Post("/notifications", h.AdminNotify)
			r.Get("/reconcile", h.AdminReconcile)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
