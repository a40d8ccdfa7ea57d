package service

import (
	"context"
	"strings"
	"testing"

	"ctfarena/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn     func(context.Context, *models.Comment) error
	getByIDFn    func(context.Context, uint) (*models.Comment, error)
	listByPostFn func(context.Context, uint) ([]models.Comment, error)
	deleteFn     func(context.Context, uint) error
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	return s.listByPostFn(ctx, postID)
}
func (s *commentRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn:     func(_ context.Context, _ *models.Comment) error { return nil },
		getByIDFn:    func(_ context.Context, _ uint) (*models.Comment, error) { return &models.Comment{}, nil },
		listByPostFn: func(_ context.Context, _ uint) ([]models.Comment, error) { return nil, nil },
		deleteFn:     func(_ context.Context, _ uint) error { return nil },
	}
}

func TestCommentService_CreateComment_Validation(t *testing.T) {
	t.Parallel()

	svc := NewCommentService(noopCommentRepo(), noopPostRepo(), NewModerationGate())
	ctx := context.Background()

	t.Run("empty content", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreateComment(ctx, member, CreateCommentInput{PostID: 1, Content: "  "})
		assertValidationError(t, err)
	})

	t.Run("content too long", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreateComment(ctx, member, CreateCommentInput{
			PostID:  1,
			Content: strings.Repeat("x", 10001),
		})
		assertValidationError(t, err)
	})

	t.Run("post not found propagates repo error", func(t *testing.T) {
		t.Parallel()
		postRepo := noopPostRepo()
		postRepo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return nil, models.NewNotFoundError("Post", id)
		}
		svc2 := NewCommentService(noopCommentRepo(), postRepo, NewModerationGate())
		_, err := svc2.CreateComment(ctx, member, CreateCommentInput{PostID: 99, Content: "hi"})
		assertCode(t, err, models.CodeNotFound)
	})
}

func TestCommentService_CreateComment_Success(t *testing.T) {
	t.Parallel()

	repo := noopCommentRepo()
	var saved *models.Comment
	repo.createFn = func(_ context.Context, c *models.Comment) error {
		c.ID = 5
		saved = c
		return nil
	}
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
		return &models.Comment{ID: id, Content: saved.Content, UserID: saved.UserID}, nil
	}

	svc := NewCommentService(repo, noopPostRepo(), NewModerationGate())
	comment, err := svc.CreateComment(context.Background(), member, CreateCommentInput{PostID: 1, Content: " gg "})
	require.NoError(t, err)
	assert.Equal(t, uint(5), comment.ID)
	assert.Equal(t, "gg", comment.Content)
	assert.Equal(t, member.UserID, comment.UserID)
}

func TestCommentService_DeleteComment_RequiresAdmin(t *testing.T) {
	t.Parallel()

	repo := noopCommentRepo()
	var deletedID uint
	repo.deleteFn = func(_ context.Context, id uint) error {
		deletedID = id
		return nil
	}
	svc := NewCommentService(repo, noopPostRepo(), NewModerationGate())
	ctx := context.Background()

	assertDenied(t, svc.DeleteComment(ctx, member, 3))
	assert.Zero(t, deletedID)

	require.NoError(t, svc.DeleteComment(ctx, models.Actor{UserID: 1, Role: models.RoleAdmin}, 3))
	assert.Equal(t, uint(3), deletedID)
}
