package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/engagemart/internal/metrics"

	"github.com/mmeshcher/engagemart/internal/model"
	"github.com/mmeshcher/engagemart/internal/repository"
)

func TestRequestWithdrawal_InsufficientBalance(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, model.RoleEngager)
	e.fund(t, u.ID, 1000)

	_, err := e.svc.RequestWithdrawal(ctx, u.ID, PaymentRequest{Amount: 1500, Method: "paypal", Details: "me@example.com"})
	require.ErrorIs(t, err, ErrInsufficientBalance)

	assert.Equal(t, model.Money(1000), e.balance(t, u.ID))
	list, err := e.svc.ListTransactions(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1, "only the funding adjustment exists")
	assert.Equal(t, model.TransactionAdjustment, list[0].Type)
}

func TestRequestWithdrawal_Validation(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, model.RoleEngager)
	e.fund(t, u.ID, 1000)

	tests := []struct {
		name string
		req  PaymentRequest
	}{
		{"zero amount", PaymentRequest{Amount: 0, Method: "paypal"}},
		{"negative amount", PaymentRequest{Amount: -100, Method: "paypal"}},
		{"no method", PaymentRequest{Amount: 100}},
		{"bad card", PaymentRequest{Amount: 100, Method: "card", Details: "4111 1111 1111 1112"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.RequestWithdrawal(context.Background(), u.ID, tt.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Equal(t, model.Money(1000), e.balance(t, u.ID))
}

func TestWithdrawal_RejectRefundsOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, model.RoleEngager)
	e.fund(t, u.ID, 1000)

	w, err := e.svc.RequestWithdrawal(ctx, u.ID, PaymentRequest{Amount: 400, Method: "card", Details: "4111 1111 1111 1111"})
	require.NoError(t, err)
	assert.Equal(t, model.TransactionPending, w.Status)
	assert.Equal(t, model.DirectionDebit, w.Direction)
	assert.Equal(t, model.Money(600), e.balance(t, u.ID))

	bal, err := e.svc.GetBalance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Balance{Current: 600, Pending: 400}, *bal)

	reviewed, err := e.svc.ReviewTransaction(ctx, e.admin, w.ID, model.TransactionRejected)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionRejected, reviewed.Status)
	assert.Equal(t, model.Money(1000), e.balance(t, u.ID))

	_, err = e.svc.ReviewTransaction(ctx, e.admin, w.ID, model.TransactionRejected)
	require.ErrorIs(t, err, ErrTransactionFinalized)
	assert.Equal(t, model.Money(1000), e.balance(t, u.ID), "second rejection must not refund again")

	assert.Len(t, e.notifications(t, u.ID, model.NotificationError), 1)
	e.assertReconciled(t)
}

func TestWithdrawal_Approve(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, model.RoleEngager)
	e.fund(t, u.ID, 1000)

	w, err := e.svc.RequestWithdrawal(ctx, u.ID, PaymentRequest{Amount: 250, Method: "paypal"})
	require.NoError(t, err)

	_, err = e.svc.ReviewTransaction(ctx, e.admin, w.ID, model.TransactionCompleted)
	require.NoError(t, err)

	bal, err := e.svc.GetBalance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Balance{Current: 750, Withdrawn: 250}, *bal)
	assert.Len(t, e.notifications(t, u.ID, model.NotificationSuccess), 1)
	e.assertReconciled(t)
}

func TestDeposit_CreditsOnApproval(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, model.RoleCreator)

	d, err := e.svc.RequestDeposit(ctx, u.ID, PaymentRequest{Amount: 5000, Method: "bank", Details: "ref 42"})
	require.NoError(t, err)
	assert.Equal(t, model.Money(0), e.balance(t, u.ID))

	_, err = e.svc.ReviewTransaction(ctx, e.admin, d.ID, model.TransactionCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.Money(5000), e.balance(t, u.ID))

	_, err = e.svc.ReviewTransaction(ctx, e.admin, d.ID, model.TransactionRejected)
	assert.ErrorIs(t, err, ErrTransactionFinalized)
	e.assertReconciled(t)
}

func TestReviewTransaction_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.ReviewTransaction(ctx, e.admin, "missing", model.TransactionCompleted)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = e.svc.ReviewTransaction(ctx, e.admin, "missing", model.TransactionPending)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAdjustBalance(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, model.RoleEngager)

	adj, err := e.svc.AdjustBalance(ctx, e.admin, u.ID, -300, "chargeback")
	require.NoError(t, err)
	assert.Equal(t, model.Money(-300), adj.Amount, "amount keeps its sign")
	assert.Equal(t, model.DirectionDebit, adj.Direction)
	assert.Equal(t, model.TransactionCompleted, adj.Status)
	assert.Equal(t, model.Money(-300), e.balance(t, u.ID), "adjustments may go negative")

	_, err = e.svc.AdjustBalance(ctx, e.admin, u.ID, 0, "nothing")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = e.svc.AdjustBalance(ctx, e.admin, u.ID, 100, "  ")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = e.svc.AdjustBalance(ctx, e.admin, "missing", 100, "gift")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.Len(t, e.notifications(t, u.ID, model.NotificationInfo), 1)
	e.assertReconciled(t)
}

func TestListAllTransactions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, model.RoleEngager)
	e.fund(t, u.ID, 1000)
	_, err := e.svc.RequestDeposit(ctx, u.ID, PaymentRequest{Amount: 100, Method: "bank"})
	require.NoError(t, err)

	pending, err := e.svc.ListAllTransactions(ctx, e.admin, model.TransactionPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.TransactionDeposit, pending[0].Type)

	all, err := e.svc.ListAllTransactions(ctx, e.admin, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = e.svc.ListAllTransactions(ctx, e.admin, "weird")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBalance_OverflowRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, model.RoleEngager)

	const nearMax = model.Money(math.MaxInt64 - 10)
	require.NoError(t, e.store.WithTx(ctx, func(tx repository.Tx) error {
		stored, err := tx.GetUser(ctx, u.ID)
		if err != nil {
			return err
		}
		stored.Balance = nearMax
		return tx.UpdateUser(ctx, stored)
	}))

	_, err := e.svc.AdjustBalance(ctx, e.admin, u.ID, 100, "bonus")
	require.ErrorIs(t, err, ErrValidation)

	dep, err := e.svc.RequestDeposit(ctx, u.ID, PaymentRequest{Amount: 100, Method: "bank"})
	require.NoError(t, err)
	_, err = e.svc.ReviewTransaction(ctx, e.admin, dep.ID, model.TransactionCompleted)
	require.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, nearMax, e.balance(t, u.ID))
	pending, err := e.svc.ListAllTransactions(ctx, e.admin, model.TransactionPending)
	require.NoError(t, err)
	require.Len(t, pending, 1, "failed approval leaves the deposit pending")
}

func TestAmounts_AboveLimitRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, model.RoleEngager)

	_, err := e.svc.AdjustBalance(ctx, e.admin, u.ID, model.MaxAmount+1, "too much")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = e.svc.AdjustBalance(ctx, e.admin, u.ID, -model.MaxAmount-1, "too much")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = e.svc.RequestDeposit(ctx, u.ID, PaymentRequest{Amount: model.MaxAmount + 1, Method: "bank"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = e.svc.RequestWithdrawal(ctx, u.ID, PaymentRequest{Amount: model.MaxAmount + 1, Method: "paypal"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.svc.AdjustBalance(ctx, e.admin, u.ID, model.MaxAmount, "largest allowed")
	require.NoError(t, err)
}

var errAborted = errors.New("attempt aborted")

// flakyStore откатывает первые failures транзакций после успешного fn,
// как это делает повтор при сбое сериализации.
type flakyStore struct {
	repository.Store
	failures int
	always   bool
}

func (f *flakyStore) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	abort := func(tx repository.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		return errAborted
	}
	if f.always {
		return f.Store.WithTx(ctx, abort)
	}
	for ; f.failures > 0; f.failures-- {
		if err := f.Store.WithTx(ctx, abort); !errors.Is(err, errAborted) {
			return err
		}
	}
	return f.Store.WithTx(ctx, fn)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestLedgerMetrics_CountCommittedOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, model.RoleEngager)
	counter := metrics.LedgerTransactions.WithLabelValues(string(model.TransactionAdjustment), string(model.TransactionCompleted))

	retried := NewService(&flakyStore{Store: e.store, failures: 2}, e.ai, nil, zap.NewNop(), e.svc.opts)
	before := counterValue(t, counter)
	_, err := retried.AdjustBalance(ctx, e.admin, u.ID, 100, "bonus")
	require.NoError(t, err)
	assert.Equal(t, before+1, counterValue(t, counter), "retried attempts are not counted")
	assert.Equal(t, model.Money(100), e.balance(t, u.ID))

	failing := NewService(&flakyStore{Store: e.store, always: true}, e.ai, nil, zap.NewNop(), e.svc.opts)
	before = counterValue(t, counter)
	_, err = failing.AdjustBalance(ctx, e.admin, u.ID, 100, "bonus")
	require.ErrorIs(t, err, errAborted)
	assert.Equal(t, before, counterValue(t, counter), "rolled back transactions are not counted")
	assert.Equal(t, model.Money(100), e.balance(t, u.ID))
}
