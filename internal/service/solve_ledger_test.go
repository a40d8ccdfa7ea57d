package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ctfarena/internal/cache"
	"ctfarena/internal/models"
	"ctfarena/internal/testutil"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveLedger_RecordSolveOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	challenge := testutil.CreateChallenge(t, e.db, "Once", 100, "flag{once}")
	ledger := e.ledger()

	first, solve, err := ledger.RecordSolve(ctx, e.member.UserID, challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Credited, first)
	require.NotNil(t, solve)

	second, existing, err := ledger.RecordSolve(ctx, e.member.UserID, challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlreadyCredited, second)
	require.NotNil(t, existing)
	assert.Equal(t, solve.ID, existing.ID)
	assert.Equal(t, int64(1), e.countSolves(t))
}

func TestSolveLedger_ConcurrentRecordSolve(t *testing.T) {
	e := newEnv(t)
	challenge := testutil.CreateChallenge(t, e.db, "Race", 250, "flag{race}")
	ledger := e.ledger()

	const workers = 12
	results := make([]models.CreditResult, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], _, errs[i] = ledger.RecordSolve(context.Background(), e.member.UserID, challenge.ID)
		}(i)
	}
	close(start)
	wg.Wait()

	credited := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		if results[i] == models.Credited {
			credited++
		} else {
			assert.Equal(t, models.AlreadyCredited, results[i])
		}
	}
	assert.Equal(t, 1, credited)
	assert.Equal(t, int64(1), e.countSolves(t))

	board, err := e.scoreboard().Leaderboard(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, 250, board[0].TotalScore)
}

func TestSolveLedger_InvalidatesLeaderboard(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	challenge := testutil.CreateChallenge(t, e.db, "Cache", 100, "flag{cache}")

	require.NoError(t, cache.SetJSON(ctx, e.rdb, cache.LeaderboardKey(0, 10), []models.LeaderboardEntry{}, time.Minute))

	_, _, err := e.ledger().RecordSolve(ctx, e.member.UserID, challenge.ID)
	require.NoError(t, err)
	assert.False(t, e.mr.Exists(cache.LeaderboardKey(0, 10)))
}

func TestSolveLedger_RejectsZeroIDs(t *testing.T) {
	e := newEnv(t)
	_, _, err := e.ledger().RecordSolve(context.Background(), 0, 1)
	assertValidationError(t, err)
}

// flakySolveRepo fails Insert with err for the first failures calls.
type flakySolveRepo struct {
	noopSolveRepo
	failures int
	err      error
	calls    int
}

func (r *flakySolveRepo) Insert(_ context.Context, solve *models.Solve) (models.CreditResult, error) {
	r.calls++
	if r.calls <= r.failures {
		return "", r.err
	}
	solve.ID = 1
	return models.Credited, nil
}

func TestSolveLedger_RetriesTransientConflicts(t *testing.T) {
	t.Parallel()

	serialization := &pgconn.PgError{Code: "40001"}
	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   bool
	}{
		{"serialization failure then success", 2, serialization, 3, false},
		{"deadlock then success", 1, &pgconn.PgError{Code: "40P01"}, 2, false},
		{"sqlite busy then success", 1, errors.New("database is locked"), 2, false},
		{"gives up after three attempts", 5, serialization, 3, true},
		{"permanent error not retried", 5, errors.New("no such table: solves"), 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := &flakySolveRepo{failures: tt.failures, err: tt.err}
			ledger := NewSolveLedger(repo, nil)
			ledger.backoff = time.Millisecond

			result, _, err := ledger.RecordSolve(context.Background(), 1, 1)
			assert.Equal(t, tt.wantCalls, repo.calls)
			if tt.wantErr {
				assertCode(t, err, models.CodeInternal)
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.Credited, result)
		})
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	assert.True(t, isTransient(&pgconn.PgError{Code: "55P03"}))
	assert.True(t, isTransient(errors.New("ERROR: deadlock detected")))
	assert.False(t, isTransient(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isTransient(errors.New("connection refused")))
	assert.False(t, isTransient(nil))
}
