package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/engagemart/internal/model"
)

func newCampaign(total, reward model.Money) model.Campaign {
	return model.Campaign{
		ID:              "c1",
		CreatorID:       "creator",
		TotalBudget:     total,
		RewardPerTask:   reward,
		RemainingBudget: total,
		Status:          model.CampaignActive,
	}
}

func TestCompleteTask_ExhaustsAfterLastPayableTask(t *testing.T) {
	c := newCampaign(1000, 100)

	for i := 1; i <= 10; i++ {
		exhausted, err := CompleteTask(&c)
		require.NoError(t, err)
		assert.Equal(t, i == 10, exhausted, "completion %d", i)
		assert.Empty(t, CampaignViolations(c))
	}

	assert.Equal(t, model.Money(0), c.RemainingBudget)
	assert.Equal(t, int64(10), c.CompletedCount)
	assert.Equal(t, model.CampaignCompleted, c.Status)

	_, err := CompleteTask(&c)
	assert.ErrorIs(t, err, ErrCampaignExhausted)
	assert.Equal(t, model.CampaignCompleted, c.Status)
	assert.Equal(t, int64(10), c.CompletedCount)
}

func TestCompleteTask_CompletesBeforeZeroWhenRemainderTooSmall(t *testing.T) {
	c := newCampaign(250, 100)

	exhausted, err := CompleteTask(&c)
	require.NoError(t, err)
	assert.False(t, exhausted)

	exhausted, err = CompleteTask(&c)
	require.NoError(t, err)
	assert.True(t, exhausted)
	assert.Equal(t, model.Money(50), c.RemainingBudget)
	assert.Equal(t, model.CampaignCompleted, c.Status)
	assert.Empty(t, CampaignViolations(c))
}

func TestAvailableTasks(t *testing.T) {
	now := time.Now()

	older := newCampaign(500, 100)
	older.ID = "older"
	older.CreatedAt = now.Add(-time.Hour)

	newer := newCampaign(300, 100)
	newer.ID = "newer"
	newer.CreatedAt = now

	own := newCampaign(300, 100)
	own.ID = "own"
	own.CreatorID = "engager"

	done := newCampaign(300, 100)
	done.ID = "done"

	drained := newCampaign(300, 100)
	drained.ID = "drained"
	drained.RemainingBudget = 50

	finished := newCampaign(300, 100)
	finished.ID = "finished"
	finished.Status = model.CampaignCompleted

	tasks := AvailableTasks(
		[]model.Campaign{older, own, done, drained, finished, newer},
		"engager",
		map[string]bool{"done": true},
	)

	require.Len(t, tasks, 2)
	assert.Equal(t, "newer", tasks[0].CampaignID)
	assert.Equal(t, int64(3), tasks[0].Remaining)
	assert.Equal(t, "older", tasks[1].CampaignID)
	assert.Equal(t, model.Money(100), tasks[1].Reward)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to model.TransactionStatus
		want     bool
	}{
		{model.TransactionPending, model.TransactionCompleted, true},
		{model.TransactionPending, model.TransactionRejected, true},
		{model.TransactionPending, model.TransactionPending, false},
		{model.TransactionCompleted, model.TransactionRejected, false},
		{model.TransactionRejected, model.TransactionCompleted, false},
		{model.TransactionCompleted, model.TransactionPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestCanTransitionVerification(t *testing.T) {
	assert.True(t, CanTransitionVerification(model.VerificationUnpaid, model.VerificationPending))
	assert.True(t, CanTransitionVerification(model.VerificationUnpaid, model.VerificationVerified))
	assert.True(t, CanTransitionVerification(model.VerificationPending, model.VerificationVerified))
	assert.True(t, CanTransitionVerification(model.VerificationPending, model.VerificationRejected))
	assert.False(t, CanTransitionVerification(model.VerificationVerified, model.VerificationPending))
	assert.False(t, CanTransitionVerification(model.VerificationRejected, model.VerificationVerified))
	assert.False(t, CanTransitionVerification(model.VerificationPending, model.VerificationUnpaid))
}

func TestCampaignViolations(t *testing.T) {
	c := newCampaign(1000, 100)
	c.RemainingBudget = 750
	c.CompletedCount = 2

	violations := CampaignViolations(c)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "do not match")
}
