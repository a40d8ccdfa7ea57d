package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"ctfarena/internal/cache"
	"ctfarena/internal/models"
	"ctfarena/internal/repository"
	"ctfarena/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateLeaderboard(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	row := func(user uint, name string, points int, offset time.Duration) models.SolveRow {
		return models.SolveRow{UserID: user, Username: name, Points: points, SolvedAt: t0.Add(offset)}
	}

	tests := []struct {
		name  string
		rows  []models.SolveRow
		order []uint
		total []int
	}{
		{
			name:  "empty ledger",
			rows:  nil,
			order: []uint{},
			total: []int{},
		},
		{
			name: "higher total first",
			rows: []models.SolveRow{
				row(1, "a", 100, 0), row(2, "b", 300, time.Minute), row(1, "a", 100, 2*time.Minute),
			},
			order: []uint{2, 1},
			total: []int{300, 200},
		},
		{
			name: "equal totals go to the earlier finisher",
			rows: []models.SolveRow{
				row(1, "a", 100, 0), row(1, "a", 100, 10*time.Minute),
				row(2, "b", 200, 5*time.Minute),
			},
			order: []uint{2, 1},
			total: []int{200, 200},
		},
		{
			name: "identical timing falls back to user id",
			rows: []models.SolveRow{
				row(7, "g", 50, time.Minute), row(3, "c", 50, time.Minute),
			},
			order: []uint{3, 7},
			total: []int{50, 50},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			board := AggregateLeaderboard(tt.rows)
			gotOrder := make([]uint, 0, len(board))
			gotTotal := make([]int, 0, len(board))
			for i, e := range board {
				assert.Equal(t, i+1, e.Rank)
				gotOrder = append(gotOrder, e.UserID)
				gotTotal = append(gotTotal, e.TotalScore)
			}
			assert.Equal(t, tt.order, gotOrder)
			assert.Equal(t, tt.total, gotTotal)
		})
	}
}

func TestAggregateLeaderboard_CountsAndLastSolve(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	board := AggregateLeaderboard([]models.SolveRow{
		{UserID: 1, Username: "a", Points: 100, SolvedAt: t0.Add(time.Hour)},
		{UserID: 1, Username: "a", Points: 50, SolvedAt: t0},
	})
	require.Len(t, board, 1)
	assert.Equal(t, 150, board[0].TotalScore)
	assert.Equal(t, 2, board[0].SolveCount)
	assert.True(t, board[0].LastSolveAt.Equal(t0.Add(time.Hour)))
}

func TestScoreboardService_Leaderboard(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	t0 := time.Now().Add(-time.Hour).UTC()

	bob := testutil.CreateUser(t, e.db, "bob", models.RoleMember)
	testutil.CreateUser(t, e.db, "idle", models.RoleMember)
	web := testutil.CreateChallenge(t, e.db, "Web", 100, "flag{web}")
	pwn := testutil.CreateChallenge(t, e.db, "Pwn", 400, "flag{pwn}")
	testutil.CreateSolve(t, e.db, e.member.UserID, web.ID, t0)
	testutil.CreateSolve(t, e.db, bob.ID, web.ID, t0.Add(time.Minute))
	testutil.CreateSolve(t, e.db, bob.ID, pwn.ID, t0.Add(2*time.Minute))

	sb := e.scoreboard()

	board, err := sb.Leaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, board, 2, "users without solves are not ranked")
	assert.Equal(t, "bob", board[0].Username)
	assert.Equal(t, 500, board[0].TotalScore)
	assert.Equal(t, 100, board[1].TotalScore)
	assert.True(t, e.mr.Exists(cache.LeaderboardKey(0, 0)))

	top, err := sb.Leaderboard(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, bob.ID, top[0].UserID)

	// Deleting a challenge drops its points from every total.
	require.NoError(t, NewChallengeService(e.challenges, e.gate, e.rdb).Delete(ctx, e.admin, pwn.ID))
	board, err = sb.Leaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, e.member.UserID, board[0].UserID, "alice reached 100 first")
	assert.Equal(t, 100, board[0].TotalScore)
	assert.Equal(t, 100, board[1].TotalScore)
}

func TestScoreboardService_HiddenChallengeStillCounts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	challenge := testutil.CreateChallenge(t, e.db, "Retired", 200, "flag{retired}")
	testutil.CreateSolve(t, e.db, e.member.UserID, challenge.ID, time.Now().UTC())

	require.NoError(t, NewChallengeService(e.challenges, e.gate, e.rdb).SetHidden(ctx, e.admin, challenge.ID, true))

	score, err := e.scoreboard().UserScore(ctx, e.member.UserID)
	require.NoError(t, err)
	assert.Equal(t, 200, score.TotalScore)
	assert.Equal(t, 1, score.Rank)
}

func TestScoreboardService_UserScore(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sb := e.scoreboard()

	score, err := sb.UserScore(ctx, e.member.UserID)
	require.NoError(t, err)
	assert.Equal(t, 0, score.Rank)
	assert.Equal(t, 0, score.TotalScore)
	assert.Equal(t, "alice", score.Username)

	_, err = sb.UserScore(ctx, 9999)
	assertCode(t, err, models.CodeNotFound)

	challenge := testutil.CreateChallenge(t, e.db, "Points", 75, "flag{points}")
	_, _, err = e.ledger().RecordSolve(ctx, e.member.UserID, challenge.ID)
	require.NoError(t, err)

	score, err = sb.UserScore(ctx, e.member.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, score.Rank)
	assert.Equal(t, 75, score.TotalScore)
	assert.Equal(t, 1, score.SolveCount)
}

func TestScoreboardService_Feed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	t0 := time.Now().Add(-time.Hour).UTC()
	bob := testutil.CreateUser(t, e.db, "bob", models.RoleMember)
	challenge := testutil.CreateChallenge(t, e.db, "Feed", 100, "flag{feed}")
	testutil.CreateSolve(t, e.db, e.member.UserID, challenge.ID, t0)
	testutil.CreateSolve(t, e.db, bob.ID, challenge.ID, t0.Add(time.Minute))

	items, err := e.scoreboard().Feed(ctx, 10, true)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "bob", items[0].Username)
	assert.False(t, items[0].FirstBlood)
	assert.True(t, items[1].FirstBlood)

	items, err = e.scoreboard().Feed(ctx, 10, false)
	require.NoError(t, err)
	for _, item := range items {
		assert.False(t, item.FirstBlood)
	}
}

func TestScoreboardService_ResetSolves(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	challenge := testutil.CreateChallenge(t, e.db, "Reset", 100, "flag{reset}")
	testutil.CreateSolve(t, e.db, e.member.UserID, challenge.ID, time.Now().UTC())
	sb := e.scoreboard()

	_, err := sb.ResetSolves(ctx, e.member)
	assertDenied(t, err)
	assert.Equal(t, int64(1), e.countSolves(t))

	_, err = sb.Leaderboard(ctx, 0)
	require.NoError(t, err)

	n, err := sb.ResetSolves(ctx, e.admin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(0), e.countSolves(t))
	assert.False(t, e.mr.Exists(cache.LeaderboardKey(0, 0)))

	board, err := sb.Leaderboard(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, board)
	require.Eventually(t, func() bool { return e.pub.resetCount() == 1 }, time.Second, 10*time.Millisecond)
}

// solveDuringRead returns the ledger rows as they were, then credits a solve
// before the caller gets to cache them.
type solveDuringRead struct {
	repository.SolveRepository
	once   sync.Once
	credit func()
}

func (r *solveDuringRead) ListRows(ctx context.Context) ([]models.SolveRow, error) {
	rows, err := r.SolveRepository.ListRows(ctx)
	r.once.Do(r.credit)
	return rows, err
}

func TestLeaderboard_SolveDuringReadIsNotHidden(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	challenge := testutil.CreateChallenge(t, e.db, "Kernel", 500, "flag{kernel}")

	racing := &solveDuringRead{SolveRepository: e.solves}
	racing.credit = func() {
		result, _, err := e.ledger().RecordSolve(ctx, e.member.UserID, challenge.ID)
		require.NoError(t, err)
		require.Equal(t, models.Credited, result)
	}
	sb := NewScoreboardService(racing, e.users, e.gate, e.pub, e.rdb)

	board, err := sb.Leaderboard(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, board, "the read began before the solve")

	board, err = sb.Leaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, 500, board[0].TotalScore)
	assert.Equal(t, e.member.UserID, board[0].UserID)
}
