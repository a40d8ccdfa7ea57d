package service

import (
	"context"
	"sort"
	"time"

	"ctfarena/internal/cache"
	"ctfarena/internal/models"
	"ctfarena/internal/observability"
	"ctfarena/internal/repository"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultFeedLimit is the number of recent solves the feed shows.
	DefaultFeedLimit = 20
	// MaxFeedLimit caps client-requested feed sizes.
	MaxFeedLimit = 100
	// LeaderboardTTL bounds how stale a cached standing may get if an
	// invalidation is lost.
	LeaderboardTTL = 30 * time.Second
)

// UserScore is one participant's standing. Rank is 0 when the user has no solves.
type UserScore struct {
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	Rank       int    `json:"rank"`
	TotalScore int    `json:"total_score"`
	SolveCount int    `json:"solve_count"`
}

// ScoreboardService derives standings from the solve ledger. Nothing it
// returns is stored; every figure is recomputed from ledger rows.
type ScoreboardService struct {
	solves    repository.SolveRepository
	users     repository.UserRepository
	gate      *ModerationGate
	publisher EventPublisher
	rdb       *redis.Client
	ttl       time.Duration
}

func NewScoreboardService(
	solves repository.SolveRepository,
	users repository.UserRepository,
	gate *ModerationGate,
	publisher EventPublisher,
	rdb *redis.Client,
) *ScoreboardService {
	return &ScoreboardService{
		solves:    solves,
		users:     users,
		gate:      gate,
		publisher: publisher,
		rdb:       rdb,
		ttl:       LeaderboardTTL,
	}
}

// WithCacheTTL overrides how long cached standings live. Zero disables caching.
func (s *ScoreboardService) WithCacheTTL(ttl time.Duration) *ScoreboardService {
	s.ttl = ttl
	return s
}

// Leaderboard returns users with at least one counted solve, best first.
// limit <= 0 returns every ranked user.
func (s *ScoreboardService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit < 0 {
		limit = 0
	}
	var entries []models.LeaderboardEntry
	hit, err := cache.AsideStanding(ctx, s.rdb, func(gen int64) string { return cache.LeaderboardKey(gen, limit) }, &entries, s.ttl, func() error {
		rows, err := s.solves.ListRows(ctx)
		if err != nil {
			return err
		}
		entries = AggregateLeaderboard(rows)
		if limit > 0 && len(entries) > limit {
			entries = entries[:limit]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if hit {
		observability.LeaderboardCacheResults.WithLabelValues("hit").Inc()
	} else {
		observability.LeaderboardCacheResults.WithLabelValues("miss").Inc()
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	return entries, nil
}

// AggregateLeaderboard folds ledger rows into ranked entries. Higher totals
// rank first; equal totals go to whoever reached that total earlier, which is
// the time of their latest solve. The user ID breaks any remaining tie.
func AggregateLeaderboard(rows []models.SolveRow) []models.LeaderboardEntry {
	byUser := make(map[uint]*models.LeaderboardEntry)
	for _, row := range rows {
		e, ok := byUser[row.UserID]
		if !ok {
			e = &models.LeaderboardEntry{UserID: row.UserID, Username: row.Username}
			byUser[row.UserID] = e
		}
		e.TotalScore += row.Points
		e.SolveCount++
		if row.SolvedAt.After(e.LastSolveAt) {
			e.LastSolveAt = row.SolvedAt
		}
	}

	out := make([]models.LeaderboardEntry, 0, len(byUser))
	for _, e := range byUser {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if !a.LastSolveAt.Equal(b.LastSolveAt) {
			return a.LastSolveAt.Before(b.LastSolveAt)
		}
		return a.UserID < b.UserID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// UserScore returns the standing of one user.
func (s *ScoreboardService) UserScore(ctx context.Context, userID uint) (*UserScore, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	score := UserScore{UserID: user.ID, Username: user.Username}
	_, err = cache.AsideStanding(ctx, s.rdb, func(gen int64) string { return cache.UserScoreKey(gen, user.ID) }, &score, s.ttl, func() error {
		board, err := s.Leaderboard(ctx, 0)
		if err != nil {
			return err
		}
		for _, e := range board {
			if e.UserID == user.ID {
				score.Rank = e.Rank
				score.TotalScore = e.TotalScore
				score.SolveCount = e.SolveCount
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &score, nil
}

// Feed returns the most recent counted solves, newest first. First-blood tags
// are cleared when showFirstBlood is false.
func (s *ScoreboardService) Feed(ctx context.Context, limit int, showFirstBlood bool) ([]models.FeedItem, error) {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	if limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}
	var items []models.FeedItem
	_, err := cache.AsideStanding(ctx, s.rdb, func(gen int64) string { return cache.FeedKey(gen, limit) }, &items, s.ttl, func() error {
		var err error
		items, err = s.solves.Recent(ctx, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.FeedItem{}
	}
	if !showFirstBlood {
		for i := range items {
			items[i].FirstBlood = false
		}
	}
	return items, nil
}

// ResetSolves wipes the ledger. Every score drops to zero.
func (s *ScoreboardService) ResetSolves(ctx context.Context, actor models.Actor) (int64, error) {
	if err := s.gate.Authorize(ctx, actor, ActionResetSolves); err != nil {
		return 0, err
	}
	n, err := s.solves.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.gate.Record(ctx, actor, ActionResetSolves, map[string]interface{}{"solves_deleted": n})

	if err := cache.InvalidateLeaderboard(ctx, s.rdb); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "leaderboard invalidation failed", "error", err)
	}
	if s.publisher != nil {
		publishAsync(ctx, "publish_reset", nil, s.publisher.PublishReset)
	}
	return n, nil
}
