// Package handler содержит HTTP-обработчики API маркетплейса.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/engagemart/internal/middleware"
	"github.com/mmeshcher/engagemart/internal/model"
	"github.com/mmeshcher/engagemart/internal/repository"
	"github.com/mmeshcher/engagemart/internal/service"
	"github.com/mmeshcher/engagemart/internal/session"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password, name string, role model.Role) (*model.User, error)
	AuthenticateUser(ctx context.Context, login, password string) (string, error)
	Profile(ctx context.Context, userID string) (*model.User, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
	Leaderboard(ctx context.Context, limit int) ([]service.LeaderboardEntry, error)
	ListUsers(ctx context.Context, adminID string) ([]model.User, error)

	GetBalance(ctx context.Context, userID string) (*model.Balance, error)
	ListTransactions(ctx context.Context, userID string) ([]model.Transaction, error)
	ListAllTransactions(ctx context.Context, adminID string, status model.TransactionStatus) ([]model.Transaction, error)
	RequestWithdrawal(ctx context.Context, userID string, req service.PaymentRequest) (*model.Transaction, error)
	RequestDeposit(ctx context.Context, userID string, req service.PaymentRequest) (*model.Transaction, error)
	ReviewTransaction(ctx context.Context, adminID, txID string, status model.TransactionStatus) (*model.Transaction, error)
	AdjustBalance(ctx context.Context, adminID, userID string, amount model.Money, reason string) (*model.Transaction, error)

	SubmitVerificationFee(ctx context.Context, userID, method, details string) (*model.Transaction, error)
	ApproveVerification(ctx context.Context, adminID, userID string) (*model.User, error)
	RejectVerification(ctx context.Context, adminID, userID string) (*model.User, error)

	CreateCampaign(ctx context.Context, creatorID string, in service.CampaignInput) (*model.Campaign, error)
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, creatorID string) ([]model.Campaign, error)
	CampaignInsights(ctx context.Context, userID, campaignID string) (string, error)
	AvailableTasks(ctx context.Context, userID string) ([]model.Task, error)
	SubmitTask(ctx context.Context, userID, campaignID, proof string) (*service.TaskResult, error)

	CreateGig(ctx context.Context, sellerID string, in service.GigInput) (*model.Gig, error)
	ListGigs(ctx context.Context) ([]model.Gig, error)
	GetGig(ctx context.Context, id string) (*model.Gig, error)
	PurchaseGig(ctx context.Context, buyerID, gigID string) (*model.Gig, error)
	CreateStorefront(ctx context.Context, ownerID, name, description string) (*model.Storefront, error)
	GetStorefront(ctx context.Context, slug string) (*service.StorefrontView, error)
	CreateProduct(ctx context.Context, sellerID string, in service.ProductInput) (*model.DigitalProduct, error)
	ListProducts(ctx context.Context) ([]model.DigitalProduct, error)
	GetProduct(ctx context.Context, id string) (*model.DigitalProduct, error)
	PurchaseProduct(ctx context.Context, buyerID, productID string) (*model.DigitalProduct, error)
	ProductDownloadURL(ctx context.Context, userID, productID string) (string, error)
	CreateVideo(ctx context.Context, ownerID, title, url, platform string) (*model.Video, error)
	ListVideos(ctx context.Context) ([]model.Video, error)

	Broadcast(ctx context.Context, adminID string, typ model.NotificationType, title, message string) error
	Notify(ctx context.Context, userID string, typ model.NotificationType, title, message string) error
	ListNotifications(ctx context.Context, userID string) ([]model.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, notificationID string) error

	Reconcile(ctx context.Context) (*service.ReconcileReport, error)
}

// SessionResolver сопоставляет сессию внешнего провайдера с локальным пользователем.
type SessionResolver interface {
	Resolve(ctx context.Context, event session.Event, token string) (*model.User, error)
}

// Handler реализует HTTP-обработчики API маркетплейса.
type Handler struct {
	service        Service
	sessions       SessionResolver
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, sessions SessionResolver, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		sessions:       sessions,
		logger:         logger,
		authMiddleware: auth,
	}
}

const maxBodySize = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

// nonNil заменяет nil пустым срезом: в ответе всегда массив.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// writeError отображает ошибки бизнес-логики в коды ответа.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrSelfPurchase),
		errors.Is(err, session.ErrUnknownEvent):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, session.ErrInvalidToken),
		errors.Is(err, session.ErrUserNotFound):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrInsufficientBalance):
		status = http.StatusPaymentRequired
	case errors.Is(err, service.ErrNotVerified),
		errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrUserExists),
		errors.Is(err, repository.ErrAlreadyCompleted),
		errors.Is(err, repository.ErrStoreExists),
		errors.Is(err, service.ErrTransactionFinalized),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrCampaignUnavailable):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, service.ErrStorageDisabled),
		errors.Is(err, session.ErrDisabled):
		status = http.StatusServiceUnavailable
	default:
		h.logger.Error("request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		status = http.StatusInternalServerError
	}
	http.Error(w, http.StatusText(status), status)
}

func currentUser(r *http.Request) string {
	id, _ := middleware.GetUserIDFromContext(r.Context())
	return id
}
