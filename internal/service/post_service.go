package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"ctfarena/internal/models"
	"ctfarena/internal/observability"
	"ctfarena/internal/repository"
)

const (
	maxPostTitleLen   = 300
	maxPostContentLen = 20000
)

type PostService struct {
	postRepo repository.PostRepository
	gate     *ModerationGate
	attempts int
}

type CreatePostInput struct {
	Title   string
	Content string
}

type ListPostsInput struct {
	Page          int
	PerPage       int
	CurrentUserID uint
}

// PostPage is one page of the community board.
type PostPage struct {
	Posts   []models.Post `json:"posts"`
	Total   int64         `json:"total"`
	Page    int           `json:"page"`
	PerPage int           `json:"per_page"`
}

// UpvoteResult reports the ledger outcome and the post's recomputed count.
type UpvoteResult struct {
	Result      models.CreditResult `json:"result"`
	UpvoteCount int64               `json:"upvote_count"`
}

func NewPostService(postRepo repository.PostRepository, gate *ModerationGate) *PostService {
	return &PostService{postRepo: postRepo, gate: gate, attempts: defaultLedgerAttempts}
}

func validatePost(in CreatePostInput) (CreatePostInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	fields := map[string]string{}
	switch {
	case in.Title == "":
		fields["title"] = "title is required"
	case utf8.RuneCountInString(in.Title) > maxPostTitleLen:
		fields["title"] = "title must not exceed 300 characters"
	}
	switch {
	case in.Content == "":
		fields["content"] = "content is required"
	case utf8.RuneCountInString(in.Content) > maxPostContentLen:
		fields["content"] = "content must not exceed 20000 characters"
	}
	if len(fields) > 0 {
		return in, models.NewFieldValidationError(fields)
	}
	return in, nil
}

func (s *PostService) CreatePost(ctx context.Context, actor models.Actor, in CreatePostInput) (*models.Post, error) {
	in, err := validatePost(in)
	if err != nil {
		return nil, err
	}
	post := &models.Post{Title: in.Title, Content: in.Content, UserID: actor.UserID}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID, actor.UserID)
}

func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) (*PostPage, error) {
	window, page, perPage := Pagination(in.Page, in.PerPage)
	posts, total, err := s.postRepo.List(ctx, window, in.CurrentUserID)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return &PostPage{Posts: posts, Total: total, Page: page, PerPage: perPage}, nil
}

func (s *PostService) GetPost(ctx context.Context, postID, currentUserID uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, postID, currentUserID)
}

// UpdatePost is a staff edit.
func (s *PostService) UpdatePost(ctx context.Context, actor models.Actor, postID uint, in CreatePostInput) (*models.Post, error) {
	if err := s.gate.Authorize(ctx, actor, ActionEditContent); err != nil {
		return nil, err
	}
	in, err := validatePost(in)
	if err != nil {
		return nil, err
	}
	post := &models.Post{ID: postID, Title: in.Title, Content: in.Content}
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	s.gate.Record(ctx, actor, ActionEditContent, map[string]interface{}{"post_id": postID})
	return s.postRepo.GetByID(ctx, postID, actor.UserID)
}

// DeletePost removes the post with its comments and upvotes.
func (s *PostService) DeletePost(ctx context.Context, actor models.Actor, postID uint) error {
	if err := s.gate.Authorize(ctx, actor, ActionDeleteContent); err != nil {
		return err
	}
	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return err
	}
	s.gate.Record(ctx, actor, ActionDeleteContent, map[string]interface{}{"post_id": postID})
	return nil
}

// Upvote records at most one vote per user and post. Repeating it is a no-op.
func (s *PostService) Upvote(ctx context.Context, actor models.Actor, postID uint) (*UpvoteResult, error) {
	if _, err := s.postRepo.GetByID(ctx, postID, 0); err != nil {
		return nil, err
	}

	var result models.CreditResult
	err := retryTransient(ctx, s.attempts, defaultLedgerBackoff, func() error {
		var err error
		result, err = s.postRepo.Upvote(ctx, actor.UserID, postID)
		return err
	}, nil)
	if err != nil {
		observability.UpvotesRecorded.WithLabelValues("error").Inc()
		return nil, models.NewInternalError(err)
	}
	observability.UpvotesRecorded.WithLabelValues(string(result)).Inc()

	count, err := s.postRepo.UpvoteCount(ctx, postID)
	if err != nil {
		return nil, err
	}
	return &UpvoteResult{Result: result, UpvoteCount: count}, nil
}
