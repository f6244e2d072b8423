package service

import (
	"context"
	"strings"

	"github.com/mmeshcher/engagemart/internal/model"
	"github.com/mmeshcher/engagemart/internal/repository"
	"github.com/mmeshcher/engagemart/internal/rules"
)

// SubmitVerificationFee регистрирует оплату взноса за допуск. Доступно только
// из статуса unpaid; взнос ожидает рассмотрения администратором.
func (s *Service) SubmitVerificationFee(ctx context.Context, userID, method, details string) (*model.Transaction, error) {
	if strings.TrimSpace(method) == "" {
		return nil, invalid("payment method is required")
	}

	var res *model.Transaction
	err := s.withTx(ctx, func(tx repository.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if u.VerificationStatus != model.VerificationUnpaid {
			return ErrInvalidState
		}

		res = &model.Transaction{
			UserID:    userID,
			Type:      model.TransactionFee,
			Status:    model.TransactionPending,
			Amount:    s.opts.VerificationFee,
			Direction: model.DirectionDebit,
			Method:    method,
			Details:   details,
		}
		if err := s.record(ctx, tx, res); err != nil {
			return err
		}

		u.VerificationStatus = model.VerificationPending
		if err := tx.UpdateUser(ctx, u); err != nil {
			return err
		}
		return s.notify(ctx, tx, userID, model.NotificationInfo,
			"Payment submitted", "Your verification payment is waiting for review.")
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ApproveVerification выдаёт пользователю допуск. Если есть взнос в ожидании,
// он принимается; иначе статус меняется напрямую.
func (s *Service) ApproveVerification(ctx context.Context, adminID, userID string) (*model.User, error) {
	return s.decideVerification(ctx, adminID, userID, true)
}

// RejectVerification отказывает пользователю в допуске и отклоняет взнос в ожидании, если он есть.
func (s *Service) RejectVerification(ctx context.Context, adminID, userID string) (*model.User, error) {
	return s.decideVerification(ctx, adminID, userID, false)
}

func (s *Service) decideVerification(ctx context.Context, adminID, userID string, approve bool) (*model.User, error) {
	var res *model.User
	err := s.withTx(ctx, func(tx repository.Tx) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}

		pending, err := tx.ListTransactions(ctx, repository.TransactionFilter{
			UserID: userID,
			Type:   model.TransactionFee,
			Status: model.TransactionPending,
		})
		if err != nil {
			return err
		}

		var fee *model.Transaction
		if len(pending) > 0 {
			if fee, err = tx.GetTransaction(ctx, pending[0].ID); err != nil {
				return err
			}
		}

		res = u
		return s.settleVerification(ctx, tx, u, fee, approve)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// settleVerification применяет решение по допуску: закрывает взнос (если есть),
// меняет статус пользователя и отправляет ровно одно уведомление.
func (s *Service) settleVerification(ctx context.Context, tx repository.Tx, u *model.User, fee *model.Transaction, approve bool) error {
	target := model.VerificationRejected
	if approve {
		target = model.VerificationVerified
	}
	if !rules.CanTransitionVerification(u.VerificationStatus, target) {
		return ErrInvalidState
	}

	if fee != nil {
		fee.Status = model.TransactionRejected
		if approve {
			fee.Status = model.TransactionCompleted
		}
		fee.UpdatedAt = s.now()
		if err := tx.UpdateTransaction(ctx, fee); err != nil {
			return err
		}
		countLedger(tx, fee)
	}

	u.VerificationStatus = target
	if err := tx.UpdateUser(ctx, u); err != nil {
		return err
	}

	if approve {
		return s.notify(ctx, tx, u.ID, model.NotificationSuccess,
			"Access approved", "Your account is verified. Tasks are now available.")
	}
	return s.notify(ctx, tx, u.ID, model.NotificationError,
		"Access rejected", "Your verification was rejected. Contact support for details.")
}
