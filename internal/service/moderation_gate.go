package service

import (
	"context"

	"ctfarena/internal/models"
	"ctfarena/internal/observability"
)

// Action names a privileged operation checked by the ModerationGate.
type Action string

const (
	ActionApproveSubmission Action = "approve_submission"
	ActionRejectSubmission  Action = "reject_submission"
	ActionViewReviewQueue   Action = "view_review_queue"
	ActionCreateChallenge   Action = "create_challenge"
	ActionEditChallenge     Action = "edit_challenge"
	ActionDeleteChallenge   Action = "delete_challenge"
	ActionChangeRole        Action = "change_role"
	ActionDeleteUser        Action = "delete_user"
	ActionListUsers         Action = "list_users"
	ActionEditContent       Action = "edit_content"
	ActionDeleteContent     Action = "delete_content"
	ActionResetSolves       Action = "reset_solves"
	ActionViewDashboard     Action = "view_dashboard"

	// ActionViewHiddenChallenges covers admin reads that include flags and hidden entries.
	ActionViewHiddenChallenges Action = "view_hidden_challenges"
)

// Allowed is the gate predicate. Every privileged action requires the admin role.
func Allowed(actor models.Actor, _ Action) bool {
	return actor.Role == models.RoleAdmin
}

// ModerationGate authorizes privileged actions and records each decision.
type ModerationGate struct {
	audit *observability.AuditLogger
}

func NewModerationGate() *ModerationGate {
	return &ModerationGate{audit: observability.NewAuditLogger("moderation_gate")}
}

// Authorize returns an AuthorizationDenied error unless actor may perform action.
// It must run before any state is touched.
func (g *ModerationGate) Authorize(ctx context.Context, actor models.Actor, action Action) error {
	allowed := Allowed(actor, action)
	g.audit.LogDecision(ctx, actor.UserID, string(action), allowed, map[string]interface{}{
		"role": string(actor.Role),
	})
	if !allowed {
		observability.ModerationDenials.WithLabelValues(string(action)).Inc()
		return models.NewAuthorizationDeniedError(string(action))
	}
	return nil
}

// Record logs a completed privileged mutation.
func (g *ModerationGate) Record(ctx context.Context, actor models.Actor, action Action, fields map[string]interface{}) {
	g.audit.LogEvent(ctx, actor.UserID, string(action), fields)
}
