package service

import (
	"context"
	"strings"

	"github.com/gosimple/slug"

	"github.com/mmeshcher/engagemart/internal/model"
	"github.com/mmeshcher/engagemart/internal/repository"
	"github.com/mmeshcher/engagemart/internal/validation"
)

// GigInput описывает новую услугу.
type GigInput struct {
	Title        string
	Description  string
	Category     string
	Price        model.Money
	DeliveryDays int
}

// ProductInput описывает новый цифровой товар.
type ProductInput struct {
	Title       string
	Description string
	Price       model.Money
	FileKey     string
}

// StorefrontView: витрина вместе с её товарами.
type StorefrontView struct {
	model.Storefront
	Products []model.DigitalProduct `json:"products"`
}

// purchase списывает цену с покупателя и записывает покупку в журнал.
// Покупатель и продавец блокируются в порядке идентификаторов.
func (s *Service) purchase(ctx context.Context, tx repository.Tx, buyerID, sellerID string, price model.Money, refID, title string, saleType model.TransactionType) error {
	if buyerID == sellerID {
		return ErrSelfPurchase
	}

	users, err := lockUsers(ctx, tx, buyerID, sellerID)
	if err != nil {
		return err
	}
	buyer, seller := users[buyerID], users[sellerID]
	if buyer.Balance < price {
		return ErrInsufficientBalance
	}

	buyer.Balance -= price
	if err := tx.UpdateUser(ctx, buyer); err != nil {
		return err
	}
	err = s.record(ctx, tx, &model.Transaction{
		UserID:      buyerID,
		Type:        model.TransactionPurchase,
		Status:      model.TransactionCompleted,
		Amount:      price,
		Direction:   model.DirectionDebit,
		Details:     title,
		ReferenceID: refID,
	})
	if err != nil {
		return err
	}

	if !s.opts.CreditSellers {
		return nil
	}

	if err := credit(seller, price); err != nil {
		return err
	}
	if err := tx.UpdateUser(ctx, seller); err != nil {
		return err
	}
	err = s.record(ctx, tx, &model.Transaction{
		UserID:      sellerID,
		Type:        saleType,
		Status:      model.TransactionCompleted,
		Amount:      price,
		Direction:   model.DirectionCredit,
		Details:     title,
		ReferenceID: refID,
	})
	if err != nil {
		return err
	}
	return s.notify(ctx, tx, sellerID, model.NotificationSuccess, "New sale",
		"You sold "+title+" for "+price.String()+".")
}

// CreateGig публикует услугу продавца.
func (s *Service) CreateGig(ctx context.Context, sellerID string, in GigInput) (*model.Gig, error) {
	in.Title = strings.TrimSpace(in.Title)
	switch {
	case in.Title == "":
		return nil, invalid("gig title is required")
	case in.Price <= 0:
		return nil, invalid("price must be positive")
	case in.Price > model.MaxAmount:
		return nil, invalid("price must not exceed %s", model.MaxAmount)
	case in.DeliveryDays < 0:
		return nil, invalid("delivery days must not be negative")
	}

	g := &model.Gig{
		ID:           newID(),
		SellerID:     sellerID,
		Title:        in.Title,
		Description:  in.Description,
		Category:     in.Category,
		Price:        in.Price,
		DeliveryDays: in.DeliveryDays,
		CreatedAt:    s.now(),
	}
	err := s.withTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetUser(ctx, sellerID); err != nil {
			return err
		}
		return tx.CreateGig(ctx, g)
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ListGigs возвращает услуги от новых к старым.
func (s *Service) ListGigs(ctx context.Context) ([]model.Gig, error) {
	var res []model.Gig
	err := s.withTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.ListGigs(ctx)
		return err
	})
	return res, err
}

// GetGig возвращает услугу по идентификатору.
func (s *Service) GetGig(ctx context.Context, id string) (*model.Gig, error) {
	var res *model.Gig
	err := s.withTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.GetGig(ctx, id)
		return err
	})
	return res, err
}

// PurchaseGig покупает услугу.
func (s *Service) PurchaseGig(ctx context.Context, buyerID, gigID string) (*model.Gig, error) {
	var res *model.Gig
	err := s.withTx(ctx, func(tx repository.Tx) error {
		g, err := tx.GetGig(ctx, gigID)
		if err != nil {
			return err
		}
		if err := s.purchase(ctx, tx, buyerID, g.SellerID, g.Price, g.ID, "gig: "+g.Title, model.TransactionEarning); err != nil {
			return err
		}
		g.SalesCount++
		res = g
		return tx.UpdateGig(ctx, g)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CreateStorefront создаёт витрину продавца. Адрес витрины строится из названия.
func (s *Service) CreateStorefront(ctx context.Context, ownerID, name, description string) (*model.Storefront, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("store name is required")
	}
	addr := slug.Make(name)
	if addr == "" {
		return nil, invalid("store name must contain letters or digits")
	}

	st := &model.Storefront{
		ID:          newID(),
		OwnerID:     ownerID,
		Name:        name,
		Slug:        addr,
		Description: description,
		CreatedAt:   s.now(),
	}
	err := s.withTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetUser(ctx, ownerID); err != nil {
			return err
		}
		return tx.CreateStorefront(ctx, st)
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// GetStorefront возвращает витрину по адресу вместе с товарами.
func (s *Service) GetStorefront(ctx context.Context, addr string) (*StorefrontView, error) {
	var res *StorefrontView
	err := s.withTx(ctx, func(tx repository.Tx) error {
		st, err := tx.GetStorefrontBySlug(ctx, addr)
		if err != nil {
			return err
		}
		products, err := tx.ListProducts(ctx, st.ID)
		if err != nil {
			return err
		}
		res = &StorefrontView{Storefront: *st, Products: products}
		return nil
	})
	return res, err
}

// CreateProduct добавляет цифровой товар на витрину продавца.
func (s *Service) CreateProduct(ctx context.Context, sellerID string, in ProductInput) (*model.DigitalProduct, error) {
	in.Title = strings.TrimSpace(in.Title)
	switch {
	case in.Title == "":
		return nil, invalid("product title is required")
	case in.Price <= 0:
		return nil, invalid("price must be positive")
	case in.Price > model.MaxAmount:
		return nil, invalid("price must not exceed %s", model.MaxAmount)
	}

	var res *model.DigitalProduct
	err := s.withTx(ctx, func(tx repository.Tx) error {
		st, err := tx.GetStorefrontByOwner(ctx, sellerID)
		if isNotFound(err) {
			return invalid("create a storefront first")
		}
		if err != nil {
			return err
		}

		res = &model.DigitalProduct{
			ID:          newID(),
			SellerID:    sellerID,
			StoreID:     st.ID,
			Title:       in.Title,
			Description: in.Description,
			Price:       in.Price,
			FileKey:     in.FileKey,
			CreatedAt:   s.now(),
		}
		return tx.CreateProduct(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ListProducts возвращает цифровые товары всех витрин от новых к старым.
func (s *Service) ListProducts(ctx context.Context) ([]model.DigitalProduct, error) {
	var res []model.DigitalProduct
	err := s.withTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.ListProducts(ctx, "")
		return err
	})
	return res, err
}

// GetProduct возвращает цифровой товар по идентификатору.
func (s *Service) GetProduct(ctx context.Context, id string) (*model.DigitalProduct, error) {
	var res *model.DigitalProduct
	err := s.withTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.GetProduct(ctx, id)
		return err
	})
	return res, err
}

// PurchaseProduct покупает цифровой товар.
func (s *Service) PurchaseProduct(ctx context.Context, buyerID, productID string) (*model.DigitalProduct, error) {
	var res *model.DigitalProduct
	err := s.withTx(ctx, func(tx repository.Tx) error {
		p, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if err := s.purchase(ctx, tx, buyerID, p.SellerID, p.Price, p.ID, "product: "+p.Title, model.TransactionDigitalSale); err != nil {
			return err
		}
		p.SalesCount++
		res = p
		return tx.UpdateProduct(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ProductDownloadURL возвращает временную ссылку на файл товара.
// Ссылка выдаётся продавцу и покупателям товара.
func (s *Service) ProductDownloadURL(ctx context.Context, userID, productID string) (string, error) {
	if s.files == nil {
		return "", ErrStorageDisabled
	}

	var key string
	err := s.withTx(ctx, func(tx repository.Tx) error {
		p, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if p.SellerID != userID {
			bought, err := tx.ListTransactions(ctx, repository.TransactionFilter{
				UserID:      userID,
				Type:        model.TransactionPurchase,
				Status:      model.TransactionCompleted,
				ReferenceID: productID,
			})
			if err != nil {
				return err
			}
			if len(bought) == 0 {
				return ErrForbidden
			}
		}
		if p.FileKey == "" {
			return repository.ErrNotFound
		}
		key = p.FileKey
		return nil
	})
	if err != nil {
		return "", err
	}
	return s.files.PresignDownload(ctx, key)
}

// CreateVideo сохраняет промо-ролик пользователя.
func (s *Service) CreateVideo(ctx context.Context, ownerID, title, url, platform string) (*model.Video, error) {
	title = strings.TrimSpace(title)
	platform = strings.ToLower(strings.TrimSpace(platform))
	switch {
	case title == "":
		return nil, invalid("video title is required")
	case !validation.IsValidURL(url):
		return nil, invalid("video url must be an http or https link")
	case !validation.IsValidPlatform(platform):
		return nil, invalid("unsupported platform %q", platform)
	}

	v := &model.Video{
		ID:        newID(),
		OwnerID:   ownerID,
		Title:     title,
		URL:       url,
		Platform:  platform,
		CreatedAt: s.now(),
	}
	err := s.withTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetUser(ctx, ownerID); err != nil {
			return err
		}
		return tx.CreateVideo(ctx, v)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ListVideos возвращает ролики от новых к старым.
func (s *Service) ListVideos(ctx context.Context) ([]model.Video, error) {
	var res []model.Video
	err := s.withTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.ListVideos(ctx)
		return err
	})
	return res, err
}
