package service

import (
	"context"
	"strings"

	"ctfarena/internal/models"
	"ctfarena/internal/repository"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	gate        *ModerationGate
}

type CreateCommentInput struct {
	PostID  uint
	Content string
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	gate *ModerationGate,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		gate:        gate,
	}
}

func (s *CommentService) CreateComment(ctx context.Context, actor models.Actor, in CreateCommentInput) (*models.Comment, error) {
	const maxCommentLen = 10000

	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(content) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 10000 characters)")
	}
	if _, err := s.postRepo.GetByID(ctx, in.PostID, 0); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		Content: content,
		UserID:  actor.UserID,
		PostID:  in.PostID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	return s.commentRepo.GetByID(ctx, comment.ID)
}

func (s *CommentService) ListComments(ctx context.Context, postID uint) ([]models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID, 0); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByPost(ctx, postID)
}

// DeleteComment is a staff action.
func (s *CommentService) DeleteComment(ctx context.Context, actor models.Actor, commentID uint) error {
	if err := s.gate.Authorize(ctx, actor, ActionDeleteContent); err != nil {
		return err
	}
	if err := s.commentRepo.Delete(ctx, commentID); err != nil {
		return err
	}
	s.gate.Record(ctx, actor, ActionDeleteContent, map[string]interface{}{"comment_id": commentID})
	return nil
}
