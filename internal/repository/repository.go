// Package repository содержит хранилище записей маркетплейса:
// реализацию в PostgreSQL и реализацию в памяти с одинаковой семантикой.
package repository

import (
	"context"
	"errors"

	"github.com/mmeshcher/engagemart/internal/model"
)

var (
	// ErrNotFound возвращается, если запись с указанным идентификатором отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrUserExists возвращается при попытке создать пользователя с уже существующим логином.
	ErrUserExists = errors.New("user already exists")
	// ErrAlreadyCompleted возвращается при повторном выполнении задания кампании тем же пользователем.
	ErrAlreadyCompleted = errors.New("task already completed by user")
	// ErrStoreExists возвращается, если у владельца уже есть витрина или адрес занят.
	ErrStoreExists = errors.New("storefront already exists")
)

// TransactionFilter ограничивает выборку проводок. Пустые поля не фильтруют.
type TransactionFilter struct {
	UserID      string
	Type        model.TransactionType
	Status      model.TransactionStatus
	ReferenceID string
}

// CampaignFilter ограничивает выборку кампаний. Пустые поля не фильтруют.
type CampaignFilter struct {
	CreatorID string
	Status    model.CampaignStatus
}

// Tx описывает единицу работы. Все чтения и записи одной бизнес-операции выполняются
// в одной транзакции. Get-методы блокируют запись до конца транзакции.
// Выборки возвращают записи от новых к старым.
type Tx interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error
	ListUsers(ctx context.Context) ([]model.User, error)

	CreateTransaction(ctx context.Context, t *model.Transaction) error
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	UpdateTransaction(ctx context.Context, t *model.Transaction) error
	ListTransactions(ctx context.Context, f TransactionFilter) ([]model.Transaction, error)

	CreateCampaign(ctx context.Context, c *model.Campaign) error
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	UpdateCampaign(ctx context.Context, c *model.Campaign) error
	ListCampaigns(ctx context.Context, f CampaignFilter) ([]model.Campaign, error)

	CreateTaskCompletion(ctx context.Context, c *model.TaskCompletion) error
	ListTaskCompletions(ctx context.Context, userID string) ([]model.TaskCompletion, error)

	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error

	CreateGig(ctx context.Context, g *model.Gig) error
	GetGig(ctx context.Context, id string) (*model.Gig, error)
	UpdateGig(ctx context.Context, g *model.Gig) error
	ListGigs(ctx context.Context) ([]model.Gig, error)

	CreateStorefront(ctx context.Context, s *model.Storefront) error
	GetStorefrontBySlug(ctx context.Context, slug string) (*model.Storefront, error)
	GetStorefrontByOwner(ctx context.Context, ownerID string) (*model.Storefront, error)

	CreateProduct(ctx context.Context, p *model.DigitalProduct) error
	GetProduct(ctx context.Context, id string) (*model.DigitalProduct, error)
	UpdateProduct(ctx context.Context, p *model.DigitalProduct) error
	ListProducts(ctx context.Context, storeID string) ([]model.DigitalProduct, error)

	CreateVideo(ctx context.Context, v *model.Video) error
	ListVideos(ctx context.Context) ([]model.Video, error)
}

// Store открывает транзакции над хранилищем. Если fn возвращает ошибку,
// ни одна запись транзакции не сохраняется.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
