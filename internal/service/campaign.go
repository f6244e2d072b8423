package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/engagemart/internal/ai"
	"github.com/mmeshcher/engagemart/internal/metrics"
	"github.com/mmeshcher/engagemart/internal/model"
	"github.com/mmeshcher/engagemart/internal/repository"
	"github.com/mmeshcher/engagemart/internal/rules"
	"github.com/mmeshcher/engagemart/internal/validation"
)

// CampaignInput описывает новую кампанию.
type CampaignInput struct {
	Title         string
	Platform      string
	Action        string
	TargetURL     string
	Instructions  string
	TotalBudget   model.Money
	RewardPerTask model.Money
}

func (in CampaignInput) validate() error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return invalid("campaign title is required")
	case !validation.IsValidPlatform(in.Platform):
		return invalid("unsupported platform %q", in.Platform)
	case !validation.IsValidAction(in.Action):
		return invalid("unsupported action %q", in.Action)
	case !validation.IsValidURL(in.TargetURL):
		return invalid("target url must be an http or https link")
	case in.RewardPerTask <= 0:
		return invalid("reward per task must be positive")
	case in.TotalBudget < in.RewardPerTask:
		return invalid("total budget must cover at least one task")
	case in.TotalBudget > model.MaxAmount:
		return invalid("total budget must not exceed %s", model.MaxAmount)
	}
	return nil
}

// TaskResult: итог отправки доказательства выполнения задания.
type TaskResult struct {
	Approved          bool        `json:"approved"`
	Reason            string      `json:"reason"`
	Confidence        int         `json:"confidence"`
	Earned            model.Money `json:"earned"`
	CampaignCompleted bool        `json:"campaign_completed"`
}

// CreateCampaign оплачивает кампанию с баланса создателя и запускает её.
// Списание, запись в журнал и создание кампании происходят в одной транзакции.
func (s *Service) CreateCampaign(ctx context.Context, creatorID string, in CampaignInput) (*model.Campaign, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Platform = strings.ToLower(strings.TrimSpace(in.Platform))
	in.Action = strings.ToLower(strings.TrimSpace(in.Action))
	if err := in.validate(); err != nil {
		return nil, err
	}

	var res *model.Campaign
	err := s.withTx(ctx, func(tx repository.Tx) error {
		u, err := tx.GetUser(ctx, creatorID)
		if err != nil {
			return err
		}
		if u.Role != model.RoleCreator && u.Role != model.RoleAdmin {
			return ErrForbidden
		}
		if u.Balance < in.TotalBudget {
			return ErrInsufficientBalance
		}

		c := &model.Campaign{
			ID:              newID(),
			CreatorID:       creatorID,
			Title:           in.Title,
			Platform:        in.Platform,
			Action:          in.Action,
			TargetURL:       in.TargetURL,
			Instructions:    in.Instructions,
			TotalBudget:     in.TotalBudget,
			RewardPerTask:   in.RewardPerTask,
			RemainingBudget: in.TotalBudget,
			Status:          model.CampaignActive,
			CreatedAt:       s.now(),
		}
		if err := tx.CreateCampaign(ctx, c); err != nil {
			return err
		}

		u.Balance -= in.TotalBudget
		if err := tx.UpdateUser(ctx, u); err != nil {
			return err
		}

		err = s.record(ctx, tx, &model.Transaction{
			UserID:      creatorID,
			Type:        model.TransactionPurchase,
			Status:      model.TransactionCompleted,
			Amount:      in.TotalBudget,
			Direction:   model.DirectionDebit,
			Details:     "campaign: " + c.Title,
			ReferenceID: c.ID,
		})
		if err != nil {
			return err
		}

		res = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GetCampaign возвращает кампанию по идентификатору.
func (s *Service) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	var res *model.Campaign
	err := s.withTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.GetCampaign(ctx, id)
		return err
	})
	return res, err
}

// ListCampaigns возвращает кампании создателя от новых к старым.
func (s *Service) ListCampaigns(ctx context.Context, creatorID string) ([]model.Campaign, error) {
	var res []model.Campaign
	err := s.withTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.ListCampaigns(ctx, repository.CampaignFilter{CreatorID: creatorID})
		return err
	})
	return res, err
}

// checkEngager проверяет, что пользователь может выполнять задания.
func checkEngager(u *model.User) error {
	if u.Role != model.RoleEngager {
		return ErrForbidden
	}
	if u.VerificationStatus != model.VerificationVerified {
		return ErrNotVerified
	}
	return nil
}

func completedCampaigns(ctx context.Context, tx repository.Tx, userID string) (map[string]bool, error) {
	list, err := tx.ListTaskCompletions(ctx, userID)
	if err != nil {
		return nil, err
	}
	res := make(map[string]bool, len(list))
	for _, c := range list {
		res[c.CampaignID] = true
	}
	return res, nil
}

// AvailableTasks возвращает задания, доступные исполнителю. Без допуска возвращает ErrNotVerified.
func (s *Service) AvailableTasks(ctx context.Context, userID string) ([]model.Task, error) {
	var res []model.Task
	err := s.withTx(ctx, func(tx repository.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := checkEngager(u); err != nil {
			return err
		}

		campaigns, err := tx.ListCampaigns(ctx, repository.CampaignFilter{Status: model.CampaignActive})
		if err != nil {
			return err
		}
		completed, err := completedCampaigns(ctx, tx, userID)
		if err != nil {
			return err
		}

		res = rules.AvailableTasks(campaigns, userID, completed)
		return nil
	})
	return res, err
}

// SubmitTask проверяет доказательство выполнения задания через AI-сервис и,
// если оно принято, начисляет вознаграждение. Проверка выполняется вне
// транзакции хранилища; отклонённое доказательство ничего не меняет.
func (s *Service) SubmitTask(ctx context.Context, userID, campaignID, proof string) (*TaskResult, error) {
	proof = strings.TrimSpace(proof)
	if proof == "" {
		return nil, invalid("proof is required")
	}

	var campaign model.Campaign
	err := s.withTx(ctx, func(tx repository.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := checkEngager(u); err != nil {
			return err
		}
		c, err := tx.GetCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if c.CreatorID == userID || !rules.IsTaskAvailable(*c) {
			return ErrCampaignUnavailable
		}
		completed, err := completedCampaigns(ctx, tx, userID)
		if err != nil {
			return err
		}
		if completed[campaignID] {
			return repository.ErrAlreadyCompleted
		}
		campaign = *c
		return nil
	})
	if err != nil {
		return nil, err
	}

	verdict, err := s.ai.VerifyTask(ctx, ai.VerificationRequest{
		TaskTitle: campaign.Title,
		Platform:  campaign.Platform,
		ProofText: proof,
	})
	if err != nil {
		metrics.AIFailures.WithLabelValues("verify").Inc()
		s.logger.Warn("task verification unavailable",
			zap.String("campaign_id", campaignID),
			zap.Error(err),
		)
	}

	res := &TaskResult{
		Approved:   verdict.IsValid,
		Reason:     verdict.Reason,
		Confidence: verdict.ConfidenceScore,
	}
	if !verdict.IsValid {
		metrics.TaskSubmissions.WithLabelValues("rejected").Inc()
		return res, nil
	}

	err = s.withTx(ctx, func(tx repository.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		c, err := tx.GetCampaign(ctx, campaignID)
		if err != nil {
			return err
		}

		finished, err := rules.CompleteTask(c)
		if errors.Is(err, rules.ErrCampaignExhausted) {
			return ErrCampaignUnavailable
		}
		if err != nil {
			return err
		}

		err = tx.CreateTaskCompletion(ctx, &model.TaskCompletion{
			CampaignID: campaignID,
			UserID:     userID,
			Proof:      proof,
			Confidence: verdict.ConfidenceScore,
			CreatedAt:  s.now(),
		})
		if err != nil {
			return err
		}
		if err := tx.UpdateCampaign(ctx, c); err != nil {
			return err
		}

		if err := credit(u, c.RewardPerTask); err != nil {
			return err
		}
		u.XP += s.opts.XPPerTask
		if err := tx.UpdateUser(ctx, u); err != nil {
			return err
		}

		err = s.record(ctx, tx, &model.Transaction{
			UserID:      userID,
			Type:        model.TransactionEarning,
			Status:      model.TransactionCompleted,
			Amount:      c.RewardPerTask,
			Direction:   model.DirectionCredit,
			Details:     "task: " + c.Title,
			ReferenceID: c.ID,
		})
		if err != nil {
			return err
		}

		err = s.notify(ctx, tx, userID, model.NotificationSuccess, "Task approved",
			fmt.Sprintf("You earned %s for %q.", c.RewardPerTask, c.Title))
		if err != nil {
			return err
		}

		res.Earned = c.RewardPerTask
		res.CampaignCompleted = finished
		if finished {
			return s.notify(ctx, tx, c.CreatorID, model.NotificationInfo, "Campaign completed",
				fmt.Sprintf("%q finished after %d tasks.", c.Title, c.CompletedCount))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TaskSubmissions.WithLabelValues("approved").Inc()
	if res.CampaignCompleted {
		metrics.CampaignsCompleted.Inc()
	}
	return res, nil
}

// CampaignInsights возвращает советы AI-сервиса по кампании. Доступно создателю
// кампании и администратору. При недоступности сервиса возвращаются общие советы.
func (s *Service) CampaignInsights(ctx context.Context, userID, campaignID string) (string, error) {
	var campaign model.Campaign
	err := s.withTx(ctx, func(tx repository.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		c, err := tx.GetCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if c.CreatorID != userID && u.Role != model.RoleAdmin {
			return ErrForbidden
		}
		campaign = *c
		return nil
	})
	if err != nil {
		return "", err
	}

	text, err := s.ai.GenerateInsights(ctx, ai.InsightRequest{
		CampaignTitle: campaign.Title,
		Platform:      campaign.Platform,
		Completions:   campaign.CompletedCount,
	})
	if err != nil {
		metrics.AIFailures.WithLabelValues("insights").Inc()
		s.logger.Warn("campaign insights unavailable",
			zap.String("campaign_id", campaignID),
			zap.Error(err),
		)
	}
	return text, nil
}
