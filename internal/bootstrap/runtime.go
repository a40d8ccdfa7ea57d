// Package bootstrap wires the database, cache and first-run data for the binaries.
package bootstrap

import (
	"errors"
	"fmt"
	"strings"

	"ctfarena/internal/cache"
	"ctfarena/internal/config"
	"ctfarena/internal/database"
	"ctfarena/internal/middleware"
	"ctfarena/internal/models"
	"ctfarena/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedWarmups inserts the built-in warm-up challenges on an empty board.
	SeedWarmups bool
}

// InitRuntime connects to DB and Redis and optionally runs built-in seeding.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis is optional; a nil client disables caching and the live feed.
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := EnsureDevRootAdmin(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	if opts.SeedWarmups {
		if err := seed.Warmups(db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed warm-up challenges: %w", err)
		}
	}

	return db, r, nil
}

// EnsureDevRootAdmin creates (or re-promotes) the development root account.
// It does nothing outside development or when DEV_BOOTSTRAP_ROOT is off.
func EnsureDevRootAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "admin"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "admin@ctfarena.local"
	}
	password := cfg.DevRootPassword
	if password == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var root models.User
		findErr := tx.Where("username = ?", username).First(&root).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			root = models.User{
				Username: username,
				Email:    email,
				Password: string(hashedPassword),
				Role:     models.RoleAdmin,
			}
			return tx.Create(&root).Error
		case findErr != nil:
			return findErr
		default:
			return tx.Model(&models.User{}).Where("id = ?", root.ID).Update("role", models.RoleAdmin).Error
		}
	})
	if err != nil {
		return err
	}

	middleware.Logger.Info("development root admin ensured", "username", username, "email", email)
	return nil
}
