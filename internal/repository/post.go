package repository

import (
	"context"

	"ctfarena/internal/models"
	"ctfarena/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines persistence operations for community posts and their upvote ledger.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Post, error)
	List(ctx context.Context, page Page, currentUserID uint) ([]models.Post, int64, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context) (int64, error)
	// Upvote inserts the (user, post) pair unless it already exists.
	Upvote(ctx context.Context, userID, postID uint) (models.CreditResult, error)
	UpvoteCount(ctx context.Context, postID uint) (int64, error)
}

type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository returns a new PostRepository implementation.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"post_id": post.ID, "user_id": post.UserID})
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Post, error) {
	var post models.Post
	err := r.applyDetails(r.db.WithContext(ctx).Model(&models.Post{}), currentUserID).
		Preload("User").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("comments.created_at ASC").Order("comments.id ASC")
		}).
		Preload("Comments.User").
		Where("posts.id = ?", id).
		First(&post).Error
	if err != nil {
		return nil, notFoundOr(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, page Page, currentUserID uint) ([]models.Post, int64, error) {
	var total int64
	if err := readDB(r.db).WithContext(ctx).Model(&models.Post{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var posts []models.Post
	q := r.applyDetails(readDB(r.db).WithContext(ctx).Model(&models.Post{}), currentUserID).
		Preload("User").
		Order("posts.created_at DESC").
		Order("posts.id DESC")
	if err := page.apply(q).Find(&posts).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	result := r.db.WithContext(ctx).Model(post).Select("Title", "Content").Updates(post)
	if result.Error != nil {
		r.log.LogError(ctx, result.Error, "update")
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Post", post.ID)
	}
	return nil
}

// Delete removes the post together with its comments and upvotes.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Upvote{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Post{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.NewNotFoundError("Post", id)
		}
		return nil
	})
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return err
		}
		r.log.LogError(ctx, err, "delete")
		return models.NewInternalError(err)
	}
	r.log.LogDelete(ctx, map[string]interface{}{"post_id": id})
	return nil
}

func (r *postRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := readDB(r.db).WithContext(ctx).Model(&models.Post{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *postRepository) Upvote(ctx context.Context, userID, postID uint) (models.CreditResult, error) {
	defer observability.TrackQuery("insert", "upvotes")()

	vote := models.Upvote{UserID: userID, PostID: postID}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "post_id"}},
			DoNothing: true,
		}).
		Create(&vote)
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected == 0 {
		return models.AlreadyCredited, nil
	}
	return models.Credited, nil
}

func (r *postRepository) UpvoteCount(ctx context.Context, postID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Upvote{}).Where("post_id = ?", postID).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

// applyDetails selects the derived counters. Both are counted from their
// ledgers on every read and never stored.
func (r *postRepository) applyDetails(db *gorm.DB, currentUserID uint) *gorm.DB {
	selects := "posts.*, " +
		"(SELECT COUNT(*) FROM upvotes WHERE upvotes.post_id = posts.id) AS upvote_count, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comment_count"
	if currentUserID == 0 {
		return db.Select(selects + ", false AS upvoted")
	}
	return db.Select(selects+", EXISTS (SELECT 1 FROM upvotes WHERE upvotes.post_id = posts.id AND upvotes.user_id = ?) AS upvoted", currentUserID)
}
