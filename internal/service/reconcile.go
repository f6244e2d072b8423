package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mmeshcher/engagemart/internal/metrics"
	"github.com/mmeshcher/engagemart/internal/model"
	"github.com/mmeshcher/engagemart/internal/repository"
	"github.com/mmeshcher/engagemart/internal/rules"
)

// Finding: расхождение, найденное сверкой.
type Finding struct {
	Entity  string `json:"entity"`
	ID      string `json:"id"`
	Problem string `json:"problem"`
}

// ReconcileReport: итог сверки.
type ReconcileReport struct {
	CheckedAt        time.Time `json:"checked_at"`
	CheckedUsers     int       `json:"checked_users"`
	CheckedCampaigns int       `json:"checked_campaigns"`
	Findings         []Finding `json:"findings"`
}

// ledgerEffect возвращает изменение баланса, которое вносит проводка.
// Вывод удерживается с момента заявки и возвращается при отклонении.
func ledgerEffect(t model.Transaction) model.Money {
	switch t.Type {
	case model.TransactionAdjustment:
		return t.Amount
	case model.TransactionWithdrawal:
		if t.Status == model.TransactionRejected {
			return 0
		}
		return -t.Amount
	case model.TransactionFee:
		return 0
	}

	if t.Status != model.TransactionCompleted {
		return 0
	}
	if t.Direction == model.DirectionDebit {
		return -t.Amount
	}
	return t.Amount
}

// Reconcile сверяет бюджеты кампаний и балансы пользователей с журналом проводок.
func (s *Service) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{CheckedAt: s.now(), Findings: []Finding{}}

	err := s.withTx(ctx, func(tx repository.Tx) error {
		campaigns, err := tx.ListCampaigns(ctx, repository.CampaignFilter{})
		if err != nil {
			return err
		}
		for _, c := range campaigns {
			for _, problem := range rules.CampaignViolations(c) {
				report.Findings = append(report.Findings, Finding{Entity: "campaign", ID: c.ID, Problem: problem})
			}
		}
		report.CheckedCampaigns = len(campaigns)

		users, err := tx.ListUsers(ctx)
		if err != nil {
			return err
		}
		all, err := tx.ListTransactions(ctx, repository.TransactionFilter{})
		if err != nil {
			return err
		}

		expected := make(map[string]model.Money, len(users))
		adjusted := make(map[string]bool)
		for _, t := range all {
			expected[t.UserID] += ledgerEffect(t)
			if t.Type == model.TransactionAdjustment && t.Amount < 0 {
				adjusted[t.UserID] = true
			}
		}

		for _, u := range users {
			if want := expected[u.ID]; u.Balance != want {
				report.Findings = append(report.Findings, Finding{
					Entity:  "user",
					ID:      u.ID,
					Problem: fmt.Sprintf("balance %s does not match ledger total %s", u.Balance, want),
				})
			}
			if u.Balance < 0 && !adjusted[u.ID] {
				report.Findings = append(report.Findings, Finding{
					Entity:  "user",
					ID:      u.ID,
					Problem: fmt.Sprintf("balance %s is negative without a debit adjustment", u.Balance),
				})
			}
		}
		report.CheckedUsers = len(users)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ReconcileFindings.Set(float64(len(report.Findings)))
	return report, nil
}
