package service

import (
	"context"
	"testing"

	"ctfarena/internal/models"
	"ctfarena/internal/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAllowed(t *testing.T) {
	t.Parallel()

	actions := []Action{
		ActionApproveSubmission, ActionRejectSubmission, ActionViewReviewQueue,
		ActionCreateChallenge, ActionEditChallenge, ActionDeleteChallenge,
		ActionChangeRole, ActionDeleteUser, ActionListUsers,
		ActionEditContent, ActionDeleteContent, ActionResetSolves, ActionViewDashboard,
		ActionViewHiddenChallenges,
	}
	for _, action := range actions {
		assert.True(t, Allowed(models.Actor{UserID: 1, Role: models.RoleAdmin}, action), action)
		assert.False(t, Allowed(models.Actor{UserID: 2, Role: models.RoleMember}, action), action)
		assert.False(t, Allowed(models.Actor{}, action), action)
	}
}

func TestModerationGate_Authorize(t *testing.T) {
	gate := NewModerationGate()
	ctx := context.Background()

	before := testutil.ToFloat64(observability.ModerationDenials.WithLabelValues(string(ActionResetSolves)))

	assert.NoError(t, gate.Authorize(ctx, models.Actor{UserID: 1, Role: models.RoleAdmin}, ActionResetSolves))

	err := gate.Authorize(ctx, models.Actor{UserID: 2, Role: models.RoleMember}, ActionResetSolves)
	assertDenied(t, err)

	after := testutil.ToFloat64(observability.ModerationDenials.WithLabelValues(string(ActionResetSolves)))
	assert.Equal(t, before+1, after)
}
