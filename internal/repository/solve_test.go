package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"ctfarena/internal/models"
	"ctfarena/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var solveInsertSQL = regexp.QuoteMeta(`INSERT INTO "solves"`) + `.*` +
	regexp.QuoteMeta(`ON CONFLICT ("user_id","challenge_id") DO NOTHING`)

func TestSolveRepository_Insert_SQL(t *testing.T) {
	tests := []struct {
		name     string
		rows     *sqlmock.Rows
		expected models.CreditResult
	}{
		{"new pair is credited", sqlmock.NewRows([]string{"id"}).AddRow(1), models.Credited},
		{"existing pair inserts nothing", sqlmock.NewRows([]string{"id"}), models.AlreadyCredited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := NewSolveRepository(db)

			mock.ExpectBegin()
			mock.ExpectQuery(solveInsertSQL).WillReturnRows(tt.rows)
			mock.ExpectCommit()

			result, err := repo.Insert(context.Background(), &models.Solve{UserID: 1, ChallengeID: 2, SolvedAt: time.Now()})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSolveRepository_Insert_StorageError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSolveRepository(db)
	boom := errors.New("connection reset")

	mock.ExpectBegin()
	mock.ExpectQuery(solveInsertSQL).WillReturnError(boom)
	mock.ExpectRollback()

	_, err := repo.Insert(context.Background(), &models.Solve{UserID: 1, ChallengeID: 2, SolvedAt: time.Now()})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSolveRepository_InsertTwice(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := NewSolveRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "alice", models.RoleMember)
	ch := testutil.CreateChallenge(t, db, "warmup", 100, "flag{a}")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := repo.Insert(ctx, &models.Solve{UserID: user.ID, ChallengeID: ch.ID, SolvedAt: now})
	require.NoError(t, err)
	assert.Equal(t, models.Credited, first)

	second, err := repo.Insert(ctx, &models.Solve{UserID: user.ID, ChallengeID: ch.ID, SolvedAt: now.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, models.AlreadyCredited, second)

	stored, err := repo.Get(ctx, user.ID, ch.ID)
	require.NoError(t, err)
	assert.True(t, stored.SolvedAt.Equal(now), "the original timestamp is kept")

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSolveRepository_ListRows_SkipsDeletedChallenges(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := NewSolveRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "bob", models.RoleMember)
	kept := testutil.CreateChallenge(t, db, "kept", 200, "flag{k}")
	removed := testutil.CreateChallenge(t, db, "removed", 300, "flag{r}")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testutil.CreateSolve(t, db, user.ID, kept.ID, now)
	testutil.CreateSolve(t, db, user.ID, removed.ID, now.Add(time.Minute))

	require.NoError(t, NewChallengeRepository(db).Delete(ctx, removed.ID))

	rows, err := repo.ListRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, kept.ID, rows[0].ChallengeID)
	assert.Equal(t, 200, rows[0].Points)
	assert.Equal(t, "bob", rows[0].Username)
}

func TestSolveRepository_RecentMarksFirstBlood(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := NewSolveRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice", models.RoleMember)
	bob := testutil.CreateUser(t, db, "bob", models.RoleMember)
	ch := testutil.CreateChallenge(t, db, "heap", 500, "flag{h}")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testutil.CreateSolve(t, db, alice.ID, ch.ID, base)
	second := testutil.CreateSolve(t, db, bob.ID, ch.ID, base.Add(time.Minute))

	items, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, bob.ID, items[0].UserID)
	assert.False(t, items[0].FirstBlood)
	assert.Equal(t, alice.ID, items[1].UserID)
	assert.True(t, items[1].FirstBlood)
	assert.Equal(t, "heap", items[1].ChallengeTitle)

	first, err := repo.IsFirst(ctx, second)
	require.NoError(t, err)
	assert.False(t, first)
}

func TestSolveRepository_DeleteAll(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := NewSolveRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "carol", models.RoleMember)
	a := testutil.CreateChallenge(t, db, "a", 100, "flag{a}")
	b := testutil.CreateChallenge(t, db, "b", 100, "flag{b}")
	testutil.CreateSolve(t, db, user.ID, a.ID, time.Now().UTC())
	testutil.CreateSolve(t, db, user.ID, b.ID, time.Now().UTC())

	removed, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	count, err := repo.CountByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSolveRepository_RecordAttempt(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := NewSolveRepository(db)

	attempt := &models.FlagAttempt{UserID: 1, ChallengeID: 2, Result: models.FlagResultIncorrect, IPAddress: "10.0.0.1"}
	require.NoError(t, repo.RecordAttempt(context.Background(), attempt))
	assert.NotZero(t, attempt.ID)
}
