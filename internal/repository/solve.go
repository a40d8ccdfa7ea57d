package repository

import (
	"context"

	"ctfarena/internal/models"
	"ctfarena/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SolveRepository is the storage side of the solve ledger.
type SolveRepository interface {
	// Insert writes the solve unless the (user, challenge) pair already exists.
	// The check and insert are a single statement guarded by the unique index.
	Insert(ctx context.Context, solve *models.Solve) (models.CreditResult, error)
	Get(ctx context.Context, userID, challengeID uint) (*models.Solve, error)
	ListRows(ctx context.Context) ([]models.SolveRow, error)
	Recent(ctx context.Context, limit int) ([]models.FeedItem, error)
	IsFirst(ctx context.Context, solve *models.Solve) (bool, error)
	CountByUser(ctx context.Context, userID uint) (int64, error)
	Count(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	RecordAttempt(ctx context.Context, attempt *models.FlagAttempt) error
}

type solveRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewSolveRepository returns a new SolveRepository implementation.
func NewSolveRepository(db *gorm.DB) SolveRepository {
	return &solveRepository{db: db, log: observability.NewRepoLogger("solves")}
}

func (r *solveRepository) Insert(ctx context.Context, solve *models.Solve) (models.CreditResult, error) {
	defer observability.TrackQuery("insert", "solves")()
	ctx, span := observability.StartRepoSpan(ctx, "Insert", "solves")
	defer span.End()

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "challenge_id"}},
			DoNothing: true,
		}).
		Create(solve)
	if result.Error != nil {
		observability.RecordErrorInContext(ctx, result.Error)
		return "", result.Error
	}
	if result.RowsAffected == 0 {
		return models.AlreadyCredited, nil
	}
	r.log.LogCreate(ctx, map[string]interface{}{"user_id": solve.UserID, "challenge_id": solve.ChallengeID})
	return models.Credited, nil
}

func (r *solveRepository) Get(ctx context.Context, userID, challengeID uint) (*models.Solve, error) {
	var solve models.Solve
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND challenge_id = ?", userID, challengeID).
		First(&solve).Error
	if err != nil {
		return nil, notFoundOr(err, "Solve", challengeID)
	}
	return &solve, nil
}

// ListRows returns every ledger row that still counts: the challenge is not
// deleted and the user still exists.
func (r *solveRepository) ListRows(ctx context.Context) ([]models.SolveRow, error) {
	defer observability.TrackQuery("select", "solves")()

	var rows []models.SolveRow
	err := r.db.WithContext(ctx).
		Table("solves").
		Select("solves.user_id, users.username, solves.challenge_id, challenges.points, solves.solved_at").
		Joins("JOIN users ON users.id = solves.user_id AND users.deleted_at IS NULL").
		Joins("JOIN challenges ON challenges.id = solves.challenge_id AND challenges.deleted_at IS NULL").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

// Recent returns the newest solves. A solve is first blood when no other solve
// of the same challenge is older (ties broken by id).
func (r *solveRepository) Recent(ctx context.Context, limit int) ([]models.FeedItem, error) {
	var items []models.FeedItem
	q := r.db.WithContext(ctx).
		Table("solves").
		Select("solves.user_id, users.username, solves.challenge_id, challenges.title AS challenge_title, " +
			"challenges.points, solves.solved_at, " +
			"NOT EXISTS (SELECT 1 FROM solves earlier WHERE earlier.challenge_id = solves.challenge_id " +
			"AND (earlier.solved_at < solves.solved_at OR (earlier.solved_at = solves.solved_at AND earlier.id < solves.id))) AS first_blood").
		Joins("JOIN users ON users.id = solves.user_id AND users.deleted_at IS NULL").
		Joins("JOIN challenges ON challenges.id = solves.challenge_id AND challenges.deleted_at IS NULL").
		Order("solves.solved_at DESC").
		Order("solves.id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(&items).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

func (r *solveRepository) IsFirst(ctx context.Context, solve *models.Solve) (bool, error) {
	var earlier int64
	err := r.db.WithContext(ctx).Model(&models.Solve{}).
		Where("challenge_id = ? AND (solved_at < ? OR (solved_at = ? AND id < ?))",
			solve.ChallengeID, solve.SolvedAt, solve.SolvedAt, solve.ID).
		Count(&earlier).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return earlier == 0, nil
}

func (r *solveRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Solve{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *solveRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := readDB(r.db).WithContext(ctx).Model(&models.Solve{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

// DeleteAll is the competition reset: every solve row is removed.
func (r *solveRepository) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Solve{})
	if result.Error != nil {
		r.log.LogError(ctx, result.Error, "delete_all")
		return 0, models.NewInternalError(result.Error)
	}
	r.log.LogDelete(ctx, map[string]interface{}{"rows": result.RowsAffected})
	return result.RowsAffected, nil
}

func (r *solveRepository) RecordAttempt(ctx context.Context, attempt *models.FlagAttempt) error {
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		r.log.LogError(ctx, err, "record_attempt")
		return models.NewInternalError(err)
	}
	return nil
}
