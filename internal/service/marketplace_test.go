package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/engagemart/internal/model"
	"github.com/mmeshcher/engagemart/internal/repository"
)

func (e *env) product(t *testing.T, price model.Money) (*model.User, *model.DigitalProduct) {
	t.Helper()
	ctx := context.Background()
	seller := e.user(t, model.RoleCreator)

	_, err := e.svc.CreateStorefront(ctx, seller.ID, "Preset Shop "+seller.ID[:8], "")
	require.NoError(t, err)
	p, err := e.svc.CreateProduct(ctx, seller.ID, ProductInput{
		Title:   "Lightroom presets",
		Price:   price,
		FileKey: "products/presets.zip",
	})
	require.NoError(t, err)
	return seller, p
}

func TestConcurrentPurchasesCannotOverdraw(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, p := e.product(t, 500)
	buyer := e.user(t, model.RoleEngager)
	e.fund(t, buyer.ID, 500)

	const attempts = 2
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.svc.PurchaseProduct(ctx, buyer.ID, p.ID)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, ErrInsufficientBalance)
	}
	assert.Equal(t, 1, ok, "exactly one purchase fits the balance")
	assert.Equal(t, model.Money(0), e.balance(t, buyer.ID))

	got, err := e.svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.SalesCount)
	e.assertReconciled(t)
}

func TestPurchase_SellerNotCreditedByDefault(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seller, p := e.product(t, 300)
	buyer := e.user(t, model.RoleEngager)
	e.fund(t, buyer.ID, 1000)

	_, err := e.svc.PurchaseProduct(ctx, buyer.ID, p.ID)
	require.NoError(t, err)

	assert.Equal(t, model.Money(700), e.balance(t, buyer.ID))
	assert.Equal(t, model.Money(0), e.balance(t, seller.ID))

	list, err := e.svc.ListTransactions(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionPurchase, list[0].Type)
	assert.Equal(t, p.ID, list[0].ReferenceID)

	_, err = e.svc.PurchaseProduct(ctx, seller.ID, p.ID)
	assert.ErrorIs(t, err, ErrSelfPurchase)
	e.assertReconciled(t)
}

func TestPurchase_CreditSellers(t *testing.T) {
	e := newEnv(t, func(o *Options) { o.CreditSellers = true })
	ctx := context.Background()
	seller, p := e.product(t, 300)
	buyer := e.user(t, model.RoleEngager)
	e.fund(t, buyer.ID, 1000)

	_, err := e.svc.PurchaseProduct(ctx, buyer.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Money(300), e.balance(t, seller.ID))

	sales, err := e.svc.ListTransactions(ctx, seller.ID)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, model.TransactionDigitalSale, sales[0].Type)
	assert.Equal(t, model.DirectionCredit, sales[0].Direction)
	assert.Len(t, e.notifications(t, seller.ID, model.NotificationSuccess), 1)
	e.assertReconciled(t)
}

func TestGigs(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seller := e.user(t, model.RoleCreator)

	_, err := e.svc.CreateGig(ctx, seller.ID, GigInput{Title: "Logo", Price: 0})
	assert.ErrorIs(t, err, ErrValidation)

	g, err := e.svc.CreateGig(ctx, seller.ID, GigInput{Title: "Logo design", Category: "design", Price: 2500, DeliveryDays: 3})
	require.NoError(t, err)

	buyer := e.user(t, model.RoleCreator)
	_, err = e.svc.PurchaseGig(ctx, buyer.ID, g.ID)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	e.fund(t, buyer.ID, 2500)
	bought, err := e.svc.PurchaseGig(ctx, buyer.ID, g.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), bought.SalesCount)
	assert.Equal(t, model.Money(0), e.balance(t, buyer.ID))

	_, err = e.svc.PurchaseGig(ctx, buyer.ID, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	gigs, err := e.svc.ListGigs(ctx)
	require.NoError(t, err)
	require.Len(t, gigs, 1)
	assert.Equal(t, int64(1), gigs[0].SalesCount)
}

func TestStorefronts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, model.RoleCreator)

	_, err := e.svc.CreateProduct(ctx, owner.ID, ProductInput{Title: "Ebook", Price: 100})
	assert.ErrorIs(t, err, ErrValidation, "products need a storefront")

	st, err := e.svc.CreateStorefront(ctx, owner.ID, "Maria Design Shop!", "")
	require.NoError(t, err)
	assert.Equal(t, "maria-design-shop", st.Slug)

	_, err = e.svc.CreateStorefront(ctx, owner.ID, "Second shop", "")
	assert.ErrorIs(t, err, repository.ErrStoreExists)

	other := e.user(t, model.RoleCreator)
	_, err = e.svc.CreateStorefront(ctx, other.ID, "maria design shop", "")
	assert.ErrorIs(t, err, repository.ErrStoreExists, "slug collision")

	_, err = e.svc.CreateStorefront(ctx, other.ID, "!!!", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.svc.CreateProduct(ctx, owner.ID, ProductInput{Title: "Ebook", Price: 100})
	require.NoError(t, err)

	view, err := e.svc.GetStorefront(ctx, "maria-design-shop")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, view.OwnerID)
	assert.Len(t, view.Products, 1)

	_, err = e.svc.GetStorefront(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestProductDownloadURL(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seller, p := e.product(t, 100)

	_, err := e.svc.ProductDownloadURL(ctx, seller.ID, p.ID)
	assert.ErrorIs(t, err, ErrStorageDisabled)

	e.svc.files = fakePresigner{}

	url, err := e.svc.ProductDownloadURL(ctx, seller.ID, p.ID)
	require.NoError(t, err)
	assert.Contains(t, url, "products/presets.zip")

	buyer := e.user(t, model.RoleEngager)
	_, err = e.svc.ProductDownloadURL(ctx, buyer.ID, p.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	e.fund(t, buyer.ID, 100)
	_, err = e.svc.PurchaseProduct(ctx, buyer.ID, p.ID)
	require.NoError(t, err)

	url, err = e.svc.ProductDownloadURL(ctx, buyer.ID, p.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, url)
}

func TestVideos(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, model.RoleCreator)

	_, err := e.svc.CreateVideo(ctx, u.ID, "Promo", "not a url", "tiktok")
	assert.ErrorIs(t, err, ErrValidation)

	v, err := e.svc.CreateVideo(ctx, u.ID, "Promo", "https://tiktok.com/@me/video/1", "TikTok")
	require.NoError(t, err)
	assert.Equal(t, "tiktok", v.Platform)

	list, err := e.svc.ListVideos(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, v.ID, list[0].ID)
}
