package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/engagemart/internal/ai"
	"github.com/mmeshcher/engagemart/internal/model"
	"github.com/mmeshcher/engagemart/internal/repository"
)

func testCampaign(total, reward model.Money) CampaignInput {
	return CampaignInput{
		Title:         "Follow our channel",
		Platform:      "YouTube",
		Action:        "subscribe",
		TargetURL:     "https://youtube.com/@example",
		TotalBudget:   total,
		RewardPerTask: reward,
	}
}

func (e *env) campaign(t *testing.T, total, reward model.Money) (*model.User, *model.Campaign) {
	t.Helper()
	creator := e.user(t, model.RoleCreator)
	e.fund(t, creator.ID, total)

	c, err := e.svc.CreateCampaign(context.Background(), creator.ID, testCampaign(total, reward))
	require.NoError(t, err)
	return creator, c
}

func TestCreateCampaign(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	creator, c := e.campaign(t, 1000, 100)

	assert.Equal(t, model.CampaignActive, c.Status)
	assert.Equal(t, "youtube", c.Platform)
	assert.Equal(t, model.Money(1000), c.RemainingBudget)
	assert.Equal(t, model.Money(0), e.balance(t, creator.ID))

	list, err := e.svc.ListTransactions(ctx, creator.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, model.TransactionPurchase, list[0].Type)
	assert.Equal(t, c.ID, list[0].ReferenceID)

	mine, err := e.svc.ListCampaigns(ctx, creator.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, c.ID, mine[0].ID)
	e.assertReconciled(t)
}

func TestCreateCampaign_Rejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	creator := e.user(t, model.RoleCreator)
	e.fund(t, creator.ID, 500)

	_, err := e.svc.CreateCampaign(ctx, creator.ID, testCampaign(1000, 100))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	engager := e.user(t, model.RoleEngager)
	e.fund(t, engager.ID, 5000)
	_, err = e.svc.CreateCampaign(ctx, engager.ID, testCampaign(1000, 100))
	assert.ErrorIs(t, err, ErrForbidden)

	bad := []CampaignInput{
		func() CampaignInput { in := testCampaign(100, 100); in.Title = " "; return in }(),
		func() CampaignInput { in := testCampaign(100, 100); in.Platform = "myspace"; return in }(),
		func() CampaignInput { in := testCampaign(100, 100); in.Action = "dance"; return in }(),
		func() CampaignInput { in := testCampaign(100, 100); in.TargetURL = "ftp://x"; return in }(),
		testCampaign(100, 0),
		testCampaign(50, 100),
	}
	for _, in := range bad {
		_, err := e.svc.CreateCampaign(ctx, creator.ID, in)
		assert.ErrorIs(t, err, ErrValidation, "%+v", in)
	}

	assert.Equal(t, model.Money(500), e.balance(t, creator.ID))
	mine, err := e.svc.ListCampaigns(ctx, creator.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestCampaignExhaustsAfterLastTask(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	creator, c := e.campaign(t, 1000, 100)

	for i := 0; i < 10; i++ {
		engager := e.verified(t)

		tasks, err := e.svc.AvailableTasks(ctx, engager.ID)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, int64(10-i), tasks[0].Remaining)

		res, err := e.svc.SubmitTask(ctx, engager.ID, c.ID, "screenshot of my subscription")
		require.NoError(t, err)
		assert.True(t, res.Approved)
		assert.Equal(t, model.Money(100), res.Earned)
		assert.Equal(t, i == 9, res.CampaignCompleted, "task %d", i+1)

		u, err := e.svc.Profile(ctx, engager.ID)
		require.NoError(t, err)
		assert.Equal(t, model.Money(100), u.Balance)
		assert.Equal(t, int64(10), u.XP)
	}

	got, err := e.svc.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignCompleted, got.Status)
	assert.Equal(t, model.Money(0), got.RemainingBudget)
	assert.Equal(t, int64(10), got.CompletedCount)

	late := e.verified(t)
	tasks, err := e.svc.AvailableTasks(ctx, late.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	_, err = e.svc.SubmitTask(ctx, late.ID, c.ID, "proof")
	assert.ErrorIs(t, err, ErrCampaignUnavailable)

	assert.Len(t, e.notifications(t, creator.ID, model.NotificationInfo), 2, "funding and completion")
	e.assertReconciled(t)
}

func TestCampaignCompletesWhenRemainderCannotPay(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, c := e.campaign(t, 250, 100)

	for i := 0; i < 2; i++ {
		_, err := e.svc.SubmitTask(ctx, e.verified(t).ID, c.ID, "done")
		require.NoError(t, err)
	}

	got, err := e.svc.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignCompleted, got.Status)
	assert.Equal(t, model.Money(50), got.RemainingBudget)
}

func TestSubmitTask_RejectedProofChangesNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, c := e.campaign(t, 1000, 100)
	engager := e.verified(t)

	e.ai.verdict = ai.VerificationResult{IsValid: false, Reason: ai.UnavailableReason}
	e.ai.err = errors.New("connection refused")

	res, err := e.svc.SubmitTask(ctx, engager.ID, c.ID, "trust me")
	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Equal(t, ai.UnavailableReason, res.Reason)
	assert.Equal(t, model.Money(0), res.Earned)

	got, err := e.svc.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Money(1000), got.RemainingBudget)
	assert.Equal(t, int64(0), got.CompletedCount)
	assert.Equal(t, model.Money(0), e.balance(t, engager.ID))

	tasks, err := e.svc.AvailableTasks(ctx, engager.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 1, "a rejected proof can be resubmitted")
}

func TestSubmitTask_OncePerEngager(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, c := e.campaign(t, 1000, 100)
	engager := e.verified(t)

	_, err := e.svc.SubmitTask(ctx, engager.ID, c.ID, "done")
	require.NoError(t, err)

	_, err = e.svc.SubmitTask(ctx, engager.ID, c.ID, "done again")
	assert.ErrorIs(t, err, repository.ErrAlreadyCompleted)
	assert.Equal(t, int32(1), e.ai.calls.Load(), "verifier is not called for a repeated claim")

	tasks, err := e.svc.AvailableTasks(ctx, engager.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestSubmitTask_Gate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	creator, c := e.campaign(t, 1000, 100)

	unpaid := e.user(t, model.RoleEngager)
	_, err := e.svc.AvailableTasks(ctx, unpaid.ID)
	assert.ErrorIs(t, err, ErrNotVerified)
	_, err = e.svc.SubmitTask(ctx, unpaid.ID, c.ID, "proof")
	assert.ErrorIs(t, err, ErrNotVerified)

	_, err = e.svc.SubmitTask(ctx, creator.ID, c.ID, "proof")
	assert.ErrorIs(t, err, ErrForbidden)

	engager := e.verified(t)
	_, err = e.svc.SubmitTask(ctx, engager.ID, c.ID, "   ")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = e.svc.SubmitTask(ctx, engager.ID, "missing", "proof")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.Zero(t, e.ai.calls.Load())
}

func TestCampaignInsights(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	creator, c := e.campaign(t, 1000, 100)
	e.ai.insights = "Post at 6pm."

	text, err := e.svc.CampaignInsights(ctx, creator.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Post at 6pm.", text)

	text, err = e.svc.CampaignInsights(ctx, e.admin, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Post at 6pm.", text)

	other := e.user(t, model.RoleCreator)
	_, err = e.svc.CampaignInsights(ctx, other.ID, c.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	e.ai.err = errors.New("timeout")
	text, err = e.svc.CampaignInsights(ctx, creator.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, ai.FallbackInsights, text)
}
