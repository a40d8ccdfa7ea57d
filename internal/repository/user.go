package repository

import (
	"context"
	"errors"

	"ctfarena/internal/models"
	"ctfarena/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SetRole(ctx context.Context, id uint, role models.Role) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, page Page) ([]models.User, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
	CountByRole(ctx context.Context, role models.Role) (int64, error)
}

type userRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db, log: observability.NewRepoLogger("users")}
}

// GetByID always reads the primary: the role it returns feeds authorization.
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "User", id)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("username or email already taken")
		}
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"user_id": user.ID})
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Model(user).Select("Username", "Email", "Password").Updates(user).Error
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("username or email already taken")
		}
		r.log.LogError(ctx, err, "update")
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) SetRole(ctx context.Context, id uint, role models.Role) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("role", role)
	if result.Error != nil {
		r.log.LogError(ctx, result.Error, "set_role")
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"user_id": id, "role": role})
	return nil
}

// Delete removes a user that owns no solves. The user row is locked first: a
// solve insert takes a key-share lock on it through the foreign key, so an
// in-flight solve either commits before the count sees it or waits until the
// delete is done.
func (r *userRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&user, id).Error; err != nil {
			return notFoundOr(err, "User", id)
		}

		var solves int64
		if err := tx.Model(&models.Solve{}).Where("user_id = ?", id).Count(&solves).Error; err != nil {
			return err
		}
		if solves > 0 {
			return models.NewConflictError("user owns solve records and cannot be deleted")
		}
		result := tx.Delete(&models.User{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.NewNotFoundError("User", id)
		}
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		r.log.LogError(ctx, err, "delete")
		return models.NewInternalError(err)
	}
	r.log.LogDelete(ctx, map[string]interface{}{"user_id": id})
	return nil
}

func (r *userRepository) List(ctx context.Context, page Page) ([]models.User, error) {
	var users []models.User
	if err := page.apply(readDB(r.db).WithContext(ctx).Order("id ASC")).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Where("role = ?", role).Order("id ASC").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := readDB(r.db).WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *userRepository) CountByRole(ctx context.Context, role models.Role) (int64, error) {
	var n int64
	if err := readDB(r.db).WithContext(ctx).Model(&models.User{}).Where("role = ?", role).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
