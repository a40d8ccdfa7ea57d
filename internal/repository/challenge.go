package repository

import (
	"context"
	"strings"

	"ctfarena/internal/models"
	"ctfarena/internal/observability"

	"gorm.io/gorm"
)

// ChallengeFilter narrows a challenge listing. Empty fields do not filter.
type ChallengeFilter struct {
	Category   string
	Difficulty string
	Provenance models.Provenance
	Query      string
	// IncludeHidden lists hidden challenges too; staff views only.
	IncludeHidden bool
}

// ChallengeRepository defines persistence operations for challenges.
type ChallengeRepository interface {
	Create(ctx context.Context, challenge *models.Challenge) error
	GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Challenge, error)
	List(ctx context.Context, filter ChallengeFilter, page Page, currentUserID uint) ([]models.Challenge, int64, error)
	Update(ctx context.Context, challenge *models.Challenge) error
	SetStatus(ctx context.Context, id uint, status models.ChallengeStatus) error
	Delete(ctx context.Context, id uint) error
	FindSimilar(ctx context.Context, title, flag string) ([]uint, error)
	Count(ctx context.Context) (int64, error)
}

type challengeRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewChallengeRepository returns a new ChallengeRepository implementation.
func NewChallengeRepository(db *gorm.DB) ChallengeRepository {
	return &challengeRepository{db: db, log: observability.NewRepoLogger("challenges")}
}

func (r *challengeRepository) Create(ctx context.Context, challenge *models.Challenge) error {
	if err := r.db.WithContext(ctx).Create(challenge).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"challenge_id": challenge.ID, "provenance": challenge.Provenance})
	return nil
}

// GetByID reads the primary so a flag check never races a replica.
func (r *challengeRepository) GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Challenge, error) {
	var challenge models.Challenge
	err := r.applyDetails(r.db.WithContext(ctx), currentUserID).
		Preload("Author").
		First(&challenge, id).Error
	if err != nil {
		return nil, notFoundOr(err, "Challenge", id)
	}
	return &challenge, nil
}

func (r *challengeRepository) List(ctx context.Context, filter ChallengeFilter, page Page, currentUserID uint) ([]models.Challenge, int64, error) {
	base := r.applyFilter(readDB(r.db).WithContext(ctx).Model(&models.Challenge{}), filter)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var challenges []models.Challenge
	q := r.applyDetails(base.Session(&gorm.Session{}), currentUserID).
		Preload("Author").
		Order("challenges.created_at DESC").
		Order("challenges.id DESC")
	if err := page.apply(q).Find(&challenges).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return challenges, total, nil
}

func (r *challengeRepository) applyFilter(db *gorm.DB, filter ChallengeFilter) *gorm.DB {
	if !filter.IncludeHidden {
		db = db.Where("challenges.status = ?", models.ChallengeStatusLive)
	}
	if filter.Category != "" {
		db = db.Where("challenges.category = ?", filter.Category)
	}
	if filter.Difficulty != "" {
		db = db.Where("challenges.difficulty = ?", filter.Difficulty)
	}
	if filter.Provenance != "" {
		db = db.Where("challenges.provenance = ?", filter.Provenance)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		db = db.Where("LOWER(challenges.title) LIKE ? OR LOWER(challenges.description) LIKE ?", like, like)
	}
	return db
}

// applyDetails adds the derived solve count and, for a signed-in caller, whether they solved it.
func (r *challengeRepository) applyDetails(db *gorm.DB, currentUserID uint) *gorm.DB {
	selectQuery := "challenges.*, " +
		"(SELECT COUNT(*) FROM solves WHERE solves.challenge_id = challenges.id) AS solve_count"

	if currentUserID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM solves WHERE solves.challenge_id = challenges.id AND solves.user_id = ?) AS solved", currentUserID)
	}
	return db.Select(selectQuery + ", false AS solved")
}

func (r *challengeRepository) Update(ctx context.Context, challenge *models.Challenge) error {
	err := r.db.WithContext(ctx).Model(challenge).
		Select("Title", "Description", "Category", "Difficulty", "Points", "Flag", "FileRef", "Status").
		Updates(challenge).Error
	if err != nil {
		r.log.LogError(ctx, err, "update")
		return models.NewInternalError(err)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"challenge_id": challenge.ID})
	return nil
}

func (r *challengeRepository) SetStatus(ctx context.Context, id uint, status models.ChallengeStatus) error {
	result := r.db.WithContext(ctx).Model(&models.Challenge{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Challenge", id)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"challenge_id": id, "status": status})
	return nil
}

// Delete soft-deletes the challenge. Solve rows stay in the ledger and the
// challenge stops contributing to scores.
func (r *challengeRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Challenge{}, id)
	if result.Error != nil {
		r.log.LogError(ctx, result.Error, "delete")
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Challenge", id)
	}
	r.log.LogDelete(ctx, map[string]interface{}{"challenge_id": id})
	return nil
}

// FindSimilar returns ids of existing challenges sharing the title (case-insensitive) or the secret.
func (r *challengeRepository) FindSimilar(ctx context.Context, title, flag string) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Challenge{}).
		Where("LOWER(title) = ? OR flag = ?", strings.ToLower(strings.TrimSpace(title)), flag).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *challengeRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := readDB(r.db).WithContext(ctx).Model(&models.Challenge{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
