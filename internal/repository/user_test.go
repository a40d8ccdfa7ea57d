package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"ctfarena/internal/models"
	"ctfarena/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tests := []struct {
		name         string
		userID       uint
		mockBehavior func()
		expectedCode string
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(sqlmock.NewRows([]string{"id", "username", "role"}).AddRow(1, "root", "admin"))
			},
		},
		{
			name:   "Not Found",
			userID: 2,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
					WithArgs(2, 1).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			expectedCode: models.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)
			if tt.expectedCode != "" {
				assert.True(t, models.HasCode(err, tt.expectedCode))
				assert.Nil(t, user)
			} else {
				require.NoError(t, err)
				assert.True(t, user.IsAdmin())
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Username: "eve", Email: "eve@example.com", Password: "x"}))
	err := repo.Create(ctx, &models.User{Username: "eve", Email: "other@example.com", Password: "x"})
	assert.True(t, models.HasCode(err, models.CodeConflict))

	found, err := repo.GetByUsername(ctx, "eve")
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, found.Role)

	missing, err := repo.GetByEmail(ctx, "nobody@example.com")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserRepository_DeleteBlockedBySolves(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	solver := testutil.CreateUser(t, db, "solver", models.RoleMember)
	idle := testutil.CreateUser(t, db, "idle", models.RoleMember)
	ch := testutil.CreateChallenge(t, db, "c", 100, "flag{c}")
	testutil.CreateSolve(t, db, solver.ID, ch.ID, time.Now().UTC())

	err := repo.Delete(ctx, solver.ID)
	assert.True(t, models.HasCode(err, models.CodeConflict))
	_, err = repo.GetByID(ctx, solver.ID)
	assert.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, idle.ID))
	_, err = repo.GetByID(ctx, idle.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
	assert.True(t, models.HasCode(repo.Delete(ctx, idle.ID), models.CodeNotFound))
}

func TestUserRepository_SetRoleAndCounts(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, "frank", models.RoleMember)
	testutil.CreateUser(t, db, "grace", models.RoleMember)

	require.NoError(t, repo.SetRole(ctx, u.ID, models.RoleAdmin))
	admins, err := repo.ListByRole(ctx, models.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "frank", admins[0].Username)

	n, err := repo.CountByRole(ctx, models.RoleMember)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.True(t, models.HasCode(repo.SetRole(ctx, 999, models.RoleAdmin), models.CodeNotFound))
}

func TestUserRepository_DeleteLocksUserBeforeCountingSolves(t *testing.T) {
	lockUser := regexp.QuoteMeta(`SELECT "id" FROM "users" WHERE`) + `.*FOR UPDATE`
	countSolves := regexp.QuoteMeta(`SELECT count(*) FROM "solves" WHERE user_id = $1`)
	softDelete := regexp.QuoteMeta(`UPDATE "users" SET "deleted_at"=`)

	t.Run("no solves", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockUser).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectQuery(countSolves).WithArgs(7).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec(softDelete).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, NewUserRepository(db).Delete(context.Background(), 7))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("owns solves", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockUser).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectQuery(countSolves).WithArgs(7).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectRollback()

		err := NewUserRepository(db).Delete(context.Background(), 7)
		assert.True(t, models.HasCode(err, models.CodeConflict))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockUser).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		err := NewUserRepository(db).Delete(context.Background(), 7)
		assert.True(t, models.HasCode(err, models.CodeNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
