package repository

import (
	"context"
	"regexp"
	"testing"

	"ctfarena/internal/models"
	"ctfarena/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_Upvote_SQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "upvotes"`) + `.*` +
		regexp.QuoteMeta(`ON CONFLICT ("user_id","post_id") DO NOTHING`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	result, err := repo.Upvote(context.Background(), 3, 9)
	require.NoError(t, err)
	assert.Equal(t, models.AlreadyCredited, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_UpvoteLedger(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author", models.RoleMember)
	voter := testutil.CreateUser(t, db, "voter", models.RoleMember)
	post := &models.Post{Title: "Writeup: heap", Content: "tcache poisoning", UserID: author.ID}
	require.NoError(t, repo.Create(ctx, post))

	first, err := repo.Upvote(ctx, voter.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Credited, first)

	again, err := repo.Upvote(ctx, voter.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlreadyCredited, again)

	count, err := repo.UpvoteCount(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	seen, err := repo.GetByID(ctx, post.ID, voter.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, seen.UpvoteCount)
	assert.True(t, seen.Upvoted)

	anonymous, err := repo.GetByID(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.False(t, anonymous.Upvoted)
}

func TestPostRepository_DeleteCascades(t *testing.T) {
	db := testutil.OpenSQLite(t)
	posts := NewPostRepository(db)
	comments := NewCommentRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author", models.RoleMember)
	post := &models.Post{Title: "Team up?", Content: "looking for pwn people", UserID: author.ID}
	require.NoError(t, posts.Create(ctx, post))
	require.NoError(t, comments.Create(ctx, &models.Comment{Content: "me", PostID: post.ID, UserID: author.ID}))
	require.NoError(t, comments.Create(ctx, &models.Comment{Content: "me too", PostID: post.ID, UserID: author.ID}))
	_, err := posts.Upvote(ctx, author.ID, post.ID)
	require.NoError(t, err)

	withDetails, err := posts.GetByID(ctx, post.ID, author.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, withDetails.CommentCount)
	assert.Len(t, withDetails.Comments, 2)

	require.NoError(t, posts.Delete(ctx, post.ID))

	left, err := comments.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	_, err = posts.GetByID(ctx, post.ID, 0)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
	assert.True(t, models.HasCode(posts.Delete(ctx, post.ID), models.CodeNotFound))
}

func TestPostRepository_ListNewestFirst(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author", models.RoleMember)
	for _, title := range []string{"one", "two", "three"} {
		require.NoError(t, repo.Create(ctx, &models.Post{Title: title, Content: "body", UserID: author.ID}))
	}

	page, total, err := repo.List(ctx, Page{Limit: 2}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Greater(t, page[0].ID, page[1].ID)
}
