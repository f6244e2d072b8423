// Package rules содержит чистые функции бизнес-правил: исчерпание бюджета кампании,
// проекцию доступных заданий и допустимые переходы статусов.
package rules

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mmeshcher/engagemart/internal/model"
)

// ErrCampaignExhausted возвращается, если кампания больше не может оплатить задание.
var ErrCampaignExhausted = errors.New("campaign cannot pay another task")

// IsTaskAvailable сообщает, может ли кампания оплатить ещё одно задание.
func IsTaskAvailable(c model.Campaign) bool {
	return c.Status == model.CampaignActive && c.RemainingBudget >= c.RewardPerTask && c.RewardPerTask > 0
}

// CompleteTask списывает вознаграждение с бюджета кампании.
// Кампания завершается, как только остатка не хватает на следующее задание,
// а не когда он становится нулевым. Возвращает true, если кампания завершилась.
func CompleteTask(c *model.Campaign) (bool, error) {
	if !IsTaskAvailable(*c) {
		return false, ErrCampaignExhausted
	}

	c.RemainingBudget -= c.RewardPerTask
	c.CompletedCount++

	if c.RemainingBudget < c.RewardPerTask {
		c.Status = model.CampaignCompleted
		return true, nil
	}
	return false, nil
}

// AvailableTasks строит список заданий для исполнителя: только активные кампании
// с достаточным остатком, кроме собственных и уже выполненных им. Новые идут первыми.
func AvailableTasks(campaigns []model.Campaign, userID string, completed map[string]bool) []model.Task {
	sorted := make([]model.Campaign, len(campaigns))
	copy(sorted, campaigns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	tasks := make([]model.Task, 0, len(sorted))
	for _, c := range sorted {
		if !IsTaskAvailable(c) || c.CreatorID == userID || completed[c.ID] {
			continue
		}
		tasks = append(tasks, model.Task{
			CampaignID:   c.ID,
			Title:        c.Title,
			Platform:     c.Platform,
			Action:       c.Action,
			TargetURL:    c.TargetURL,
			Instructions: c.Instructions,
			Reward:       c.RewardPerTask,
			Remaining:    int64(c.RemainingBudget / c.RewardPerTask),
		})
	}
	return tasks
}

// CanTransition проверяет переход статуса проводки: только из pending в терминальный статус.
func CanTransition(from, to model.TransactionStatus) bool {
	if from != model.TransactionPending {
		return false
	}
	return to == model.TransactionCompleted || to == model.TransactionRejected
}

// CanTransitionVerification проверяет переход статуса допуска.
func CanTransitionVerification(from, to model.VerificationStatus) bool {
	switch from {
	case model.VerificationUnpaid:
		return to == model.VerificationPending || to == model.VerificationVerified || to == model.VerificationRejected
	case model.VerificationPending:
		return to == model.VerificationVerified || to == model.VerificationRejected
	default:
		return false
	}
}

// CampaignViolations возвращает нарушения бюджетных инвариантов кампании.
func CampaignViolations(c model.Campaign) []string {
	var res []string

	if c.RemainingBudget < 0 {
		res = append(res, fmt.Sprintf("remaining budget %s is negative", c.RemainingBudget))
	}
	if c.RemainingBudget > c.TotalBudget {
		res = append(res, fmt.Sprintf("remaining budget %s exceeds total %s", c.RemainingBudget, c.TotalBudget))
	}
	if spent := c.TotalBudget - c.RemainingBudget; model.Money(c.CompletedCount)*c.RewardPerTask != spent {
		res = append(res, fmt.Sprintf("%d completions at %s do not match spent %s", c.CompletedCount, c.RewardPerTask, spent))
	}
	if c.Status == model.CampaignActive && c.RemainingBudget < c.RewardPerTask {
		res = append(res, "campaign is active but cannot pay another task")
	}
	return res
}
