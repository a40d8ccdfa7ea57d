package service

import (
	"context"

	"ctfarena/internal/models"
	"ctfarena/internal/repository"
)

// DashboardStats aggregates the counts staff see on the admin landing page.
type DashboardStats struct {
	Users              int64               `json:"users"`
	Admins             int64               `json:"admins"`
	Challenges         int64               `json:"challenges"`
	PendingSubmissions int64               `json:"pending_submissions"`
	Posts              int64               `json:"posts"`
	Solves             int64               `json:"solves"`
	RecentPending      []models.Submission `json:"recent_pending"`
}

// recentPendingLimit is how many pending proposals the dashboard previews.
const recentPendingLimit = 5

// ModerationService provides the admin dashboard.
type ModerationService struct {
	users       repository.UserRepository
	challenges  repository.ChallengeRepository
	submissions repository.SubmissionRepository
	posts       repository.PostRepository
	solves      repository.SolveRepository
	gate        *ModerationGate
}

// NewModerationService returns a new ModerationService.
func NewModerationService(
	users repository.UserRepository,
	challenges repository.ChallengeRepository,
	submissions repository.SubmissionRepository,
	posts repository.PostRepository,
	solves repository.SolveRepository,
	gate *ModerationGate,
) *ModerationService {
	return &ModerationService{
		users:       users,
		challenges:  challenges,
		submissions: submissions,
		posts:       posts,
		solves:      solves,
		gate:        gate,
	}
}

// Dashboard returns platform totals and the oldest pending proposals.
func (s *ModerationService) Dashboard(ctx context.Context, actor models.Actor) (*DashboardStats, error) {
	if err := s.gate.Authorize(ctx, actor, ActionViewDashboard); err != nil {
		return nil, err
	}

	var (
		stats DashboardStats
		err   error
	)
	if stats.Users, err = s.users.Count(ctx); err != nil {
		return nil, err
	}
	if stats.Admins, err = s.users.CountByRole(ctx, models.RoleAdmin); err != nil {
		return nil, err
	}
	if stats.Challenges, err = s.challenges.Count(ctx); err != nil {
		return nil, err
	}
	if stats.PendingSubmissions, err = s.submissions.CountByStatus(ctx, models.SubmissionStatusPending); err != nil {
		return nil, err
	}
	if stats.Posts, err = s.posts.Count(ctx); err != nil {
		return nil, err
	}
	if stats.Solves, err = s.solves.Count(ctx); err != nil {
		return nil, err
	}

	stats.RecentPending, err = s.submissions.ListByStatus(ctx, models.SubmissionStatusPending, repository.Page{Limit: recentPendingLimit})
	if err != nil {
		return nil, err
	}
	if stats.RecentPending == nil {
		stats.RecentPending = []models.Submission{}
	}
	return &stats, nil
}
