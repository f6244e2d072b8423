package service

import (
	"context"
	"errors"
	"strings"

	"github.com/mmeshcher/engagemart/internal/model"
	"github.com/mmeshcher/engagemart/internal/repository"
	"github.com/mmeshcher/engagemart/internal/rules"
	"github.com/mmeshcher/engagemart/internal/validation"
)

// PaymentRequest описывает заявку на вывод или пополнение средств.
type PaymentRequest struct {
	Amount  model.Money
	Method  string
	Details string
}

func (r PaymentRequest) validate() error {
	if r.Amount <= 0 {
		return invalid("amount must be positive")
	}
	if r.Amount > model.MaxAmount {
		return invalid("amount must not exceed %s", model.MaxAmount)
	}
	if strings.TrimSpace(r.Method) == "" {
		return invalid("payment method is required")
	}
	return nil
}

// GetBalance возвращает текущий баланс, сумму выведенных средств и сумму заявок на вывод в обработке.
func (s *Service) GetBalance(ctx context.Context, userID string) (*model.Balance, error) {
	var res model.Balance
	err := s.withTx(ctx, func(tx repository.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		res.Current = u.Balance

		withdrawals, err := tx.ListTransactions(ctx, repository.TransactionFilter{
			UserID: userID,
			Type:   model.TransactionWithdrawal,
		})
		if err != nil {
			return err
		}
		for _, w := range withdrawals {
			switch w.Status {
			case model.TransactionCompleted:
				res.Withdrawn += w.Amount
			case model.TransactionPending:
				res.Pending += w.Amount
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// RequestWithdrawal создаёт заявку на вывод. Сумма удерживается с баланса сразу,
// при отклонении заявки она возвращается. При ошибке ничего не записывается.
func (s *Service) RequestWithdrawal(ctx context.Context, userID string, req PaymentRequest) (*model.Transaction, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.Method == "card" && !validation.IsValidCardNumber(req.Details) {
		return nil, invalid("invalid card number")
	}

	var res *model.Transaction
	err := s.withTx(ctx, func(tx repository.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if u.Balance < req.Amount {
			return ErrInsufficientBalance
		}

		u.Balance -= req.Amount
		if err := tx.UpdateUser(ctx, u); err != nil {
			return err
		}

		res = &model.Transaction{
			UserID:    userID,
			Type:      model.TransactionWithdrawal,
			Status:    model.TransactionPending,
			Amount:    req.Amount,
			Direction: model.DirectionDebit,
			Method:    req.Method,
			Details:   req.Details,
		}
		return s.record(ctx, tx, res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RequestDeposit создаёт заявку на пополнение. Баланс меняется только после одобрения.
func (s *Service) RequestDeposit(ctx context.Context, userID string, req PaymentRequest) (*model.Transaction, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var res *model.Transaction
	err := s.withTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		res = &model.Transaction{
			UserID:    userID,
			Type:      model.TransactionDeposit,
			Status:    model.TransactionPending,
			Amount:    req.Amount,
			Direction: model.DirectionCredit,
			Method:    req.Method,
			Details:   req.Details,
		}
		return s.record(ctx, tx, res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ReviewTransaction переводит проводку в ожидании в completed или rejected
// и применяет последствия в той же транзакции. Повторное рассмотрение
// возвращает ErrTransactionFinalized.
func (s *Service) ReviewTransaction(ctx context.Context, adminID, txID string, status model.TransactionStatus) (*model.Transaction, error) {
	if status != model.TransactionCompleted && status != model.TransactionRejected {
		return nil, invalid("status must be completed or rejected")
	}

	var res *model.Transaction
	err := s.withTx(ctx, func(tx repository.Tx) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}

		t, err := tx.GetTransaction(ctx, txID)
		if err != nil {
			return err
		}
		if !rules.CanTransition(t.Status, status) {
			return ErrTransactionFinalized
		}

		u, err := tx.GetUser(ctx, t.UserID)
		if err != nil {
			return err
		}

		if t.Type == model.TransactionFee {
			res = t
			return s.settleVerification(ctx, tx, u, t, status == model.TransactionCompleted)
		}

		t.Status = status
		t.UpdatedAt = s.now()
		if err := tx.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		countLedger(tx, t)

		approved := status == model.TransactionCompleted
		refund := t.Type == model.TransactionWithdrawal && !approved
		if refund || (t.Type == model.TransactionDeposit && approved) {
			if err := credit(u, t.Amount); err != nil {
				return err
			}
		}
		if err := tx.UpdateUser(ctx, u); err != nil {
			return err
		}

		res = t
		return s.notifyReview(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) notifyReview(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	kind := strings.ToUpper(string(t.Type[:1])) + string(t.Type[1:])
	if t.Status == model.TransactionCompleted {
		return s.notify(ctx, tx, t.UserID, model.NotificationSuccess,
			kind+" approved", "Your "+string(t.Type)+" of "+t.Amount.String()+" was approved.")
	}

	msg := "Your " + string(t.Type) + " of " + t.Amount.String() + " was rejected."
	if t.Type == model.TransactionWithdrawal {
		msg += " The amount was returned to your balance."
	}
	return s.notify(ctx, tx, t.UserID, model.NotificationError, kind+" rejected", msg)
}

// AdjustBalance изменяет баланс на сумму со знаком. Баланс может стать отрицательным.
func (s *Service) AdjustBalance(ctx context.Context, adminID, userID string, amount model.Money, reason string) (*model.Transaction, error) {
	reason = strings.TrimSpace(reason)
	if amount == 0 {
		return nil, invalid("adjustment amount must not be zero")
	}
	if amount.Abs() > model.MaxAmount {
		return nil, invalid("adjustment must not exceed %s", model.MaxAmount)
	}
	if reason == "" {
		return nil, invalid("adjustment reason is required")
	}

	var res *model.Transaction
	err := s.withTx(ctx, func(tx repository.Tx) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}

		if err := credit(u, amount); err != nil {
			return err
		}
		if err := tx.UpdateUser(ctx, u); err != nil {
			return err
		}

		res = &model.Transaction{
			UserID:  userID,
			Type:    model.TransactionAdjustment,
			Status:  model.TransactionCompleted,
			Amount:  amount,
			Details: reason,
		}
		if err := s.record(ctx, tx, res); err != nil {
			return err
		}
		return s.notify(ctx, tx, userID, model.NotificationInfo,
			"Balance adjusted", "Your balance was adjusted by "+amount.String()+": "+reason)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ListTransactions возвращает проводки пользователя от новых к старым.
func (s *Service) ListTransactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	var res []model.Transaction
	err := s.withTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.ListTransactions(ctx, repository.TransactionFilter{UserID: userID})
		return err
	})
	return res, err
}

// ListAllTransactions возвращает проводки всех пользователей с необязательным фильтром по статусу.
func (s *Service) ListAllTransactions(ctx context.Context, adminID string, status model.TransactionStatus) ([]model.Transaction, error) {
	switch status {
	case "", model.TransactionPending, model.TransactionCompleted, model.TransactionRejected:
	default:
		return nil, invalid("unknown transaction status %q", status)
	}

	var res []model.Transaction
	err := s.withTx(ctx, func(tx repository.Tx) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		var err error
		res, err = tx.ListTransactions(ctx, repository.TransactionFilter{Status: status})
		return err
	})
	return res, err
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
