package repository

import (
	"context"
	"errors"
	"time"

	"ctfarena/internal/models"
	"ctfarena/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReviewDecision carries the reviewer's side of a state transition.
type ReviewDecision struct {
	ReviewerID uint
	Notes      string
	At         time.Time
}

// SubmissionRepository persists community proposals and their review transitions.
type SubmissionRepository interface {
	Create(ctx context.Context, sub *models.Submission) error
	GetByID(ctx context.Context, id uint) (*models.Submission, error)
	ListByAuthor(ctx context.Context, authorID uint) ([]models.Submission, error)
	ListByStatus(ctx context.Context, status models.SubmissionStatus, page Page) ([]models.Submission, error)
	CountByStatus(ctx context.Context, status models.SubmissionStatus) (int64, error)
	// Approve moves a pending submission to approved and creates its live
	// community challenge in the same transaction.
	Approve(ctx context.Context, id uint, decision ReviewDecision) (*models.Submission, *models.Challenge, error)
	// Reject moves a pending submission to rejected.
	Reject(ctx context.Context, id uint, decision ReviewDecision) (*models.Submission, error)
}

type submissionRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewSubmissionRepository returns a new SubmissionRepository implementation.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db, log: observability.NewRepoLogger("submissions")}
}

func (r *submissionRepository) Create(ctx context.Context, sub *models.Submission) error {
	sub.Status = models.SubmissionStatusPending
	if err := r.db.WithContext(ctx).Create(sub).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"submission_id": sub.ID, "author_id": sub.AuthorID})
	return nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (*models.Submission, error) {
	var sub models.Submission
	if err := r.db.WithContext(ctx).Preload("Author").Preload("Reviewer").First(&sub, id).Error; err != nil {
		return nil, notFoundOr(err, "Submission", id)
	}
	return &sub, nil
}

func (r *submissionRepository) ListByAuthor(ctx context.Context, authorID uint) ([]models.Submission, error) {
	var subs []models.Submission
	err := r.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&subs).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return subs, nil
}

func (r *submissionRepository) ListByStatus(ctx context.Context, status models.SubmissionStatus, page Page) ([]models.Submission, error) {
	var subs []models.Submission
	q := readDB(r.db).WithContext(ctx).Preload("Author")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	// Oldest first so the review queue is worked in arrival order.
	q = q.Order("created_at ASC").Order("id ASC")
	if err := page.apply(q).Find(&subs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return subs, nil
}

func (r *submissionRepository) CountByStatus(ctx context.Context, status models.SubmissionStatus) (int64, error) {
	var n int64
	err := readDB(r.db).WithContext(ctx).Model(&models.Submission{}).Where("status = ?", status).Count(&n).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *submissionRepository) Approve(ctx context.Context, id uint, decision ReviewDecision) (*models.Submission, *models.Challenge, error) {
	var (
		sub       models.Submission
		challenge models.Challenge
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPending(tx, id, models.SubmissionStatusApproved, &sub); err != nil {
			return err
		}

		authorID := sub.AuthorID
		challenge = models.Challenge{
			Title:       sub.Title,
			Description: sub.Description,
			Category:    sub.Category,
			Difficulty:  sub.Difficulty,
			Points:      sub.Points,
			Flag:        sub.Flag,
			FileRef:     sub.FileRef,
			Provenance:  models.ProvenanceCommunity,
			Status:      models.ChallengeStatusLive,
			AuthorID:    &authorID,
		}
		if err := tx.Create(&challenge).Error; err != nil {
			return err
		}

		return transition(tx, &sub, models.SubmissionStatusApproved, decision, map[string]interface{}{
			"challenge_id": challenge.ID,
		})
	})
	if err != nil {
		return nil, nil, r.reviewError(ctx, err, "approve")
	}
	r.log.LogUpdate(ctx, map[string]interface{}{
		"submission_id": id, "status": sub.Status, "challenge_id": challenge.ID,
	})
	return &sub, &challenge, nil
}

func (r *submissionRepository) Reject(ctx context.Context, id uint, decision ReviewDecision) (*models.Submission, error) {
	var sub models.Submission
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPending(tx, id, models.SubmissionStatusRejected, &sub); err != nil {
			return err
		}
		return transition(tx, &sub, models.SubmissionStatusRejected, decision, nil)
	})
	if err != nil {
		return nil, r.reviewError(ctx, err, "reject")
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"submission_id": id, "status": sub.Status})
	return &sub, nil
}

// lockPending loads the submission with a row lock and refuses anything that
// is not pending.
func lockPending(tx *gorm.DB, id uint, to models.SubmissionStatus, sub *models.Submission) error {
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(sub, id).Error; err != nil {
		return notFoundOr(err, "Submission", id)
	}
	if sub.Status != models.SubmissionStatusPending {
		return models.NewInvalidTransitionError(sub.Status, to)
	}
	return nil
}

// transition writes the terminal status. The pending guard in the WHERE clause
// makes the update a no-op for a concurrent reviewer that lost the race.
func transition(tx *gorm.DB, sub *models.Submission, to models.SubmissionStatus, decision ReviewDecision, extra map[string]interface{}) error {
	reviewerID := decision.ReviewerID
	reviewedAt := decision.At
	updates := map[string]interface{}{
		"status":       to,
		"reviewer_id":  reviewerID,
		"review_notes": decision.Notes,
		"reviewed_at":  reviewedAt,
	}
	for k, v := range extra {
		updates[k] = v
	}

	result := tx.Model(&models.Submission{}).
		Where("id = ? AND status = ?", sub.ID, models.SubmissionStatusPending).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.NewInvalidTransitionError(models.SubmissionStatusPending, to)
	}

	sub.Status = to
	sub.ReviewerID = &reviewerID
	sub.ReviewNotes = decision.Notes
	sub.ReviewedAt = &reviewedAt
	if id, ok := extra["challenge_id"].(uint); ok {
		sub.ChallengeID = &id
	}
	return nil
}

func (r *submissionRepository) reviewError(ctx context.Context, err error, op string) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	r.log.LogError(ctx, err, op)
	return models.NewInternalError(err)
}
