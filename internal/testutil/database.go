// Package testutil provides shared fixtures for backend tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ctfarena/internal/database"
	"ctfarena/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Uint64

// OpenSQLite returns a migrated in-memory database private to the test.
// The pool holds a single connection so concurrent writers serialize the same
// way they do against a file-backed sqlite deployment.
func OpenSQLite(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=on&_busy_timeout=5000",
		name, dbSeq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(database.PersistentModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// CreateUser inserts a member (or admin) with a unique username.
func CreateUser(t testing.TB, db *gorm.DB, username string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "$2a$10$abcdefghijklmnopqrstuv",
		Role:     role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

// CreateChallenge inserts a live official challenge.
func CreateChallenge(t testing.TB, db *gorm.DB, title string, points int, flag string) *models.Challenge {
	t.Helper()
	challenge := &models.Challenge{
		Title:       title,
		Description: title + " description",
		Category:    models.CategoryWeb,
		Difficulty:  models.DifficultyEasy,
		Points:      points,
		Flag:        flag,
		Provenance:  models.ProvenanceOfficial,
		Status:      models.ChallengeStatusLive,
	}
	if err := db.Create(challenge).Error; err != nil {
		t.Fatalf("create challenge %s: %v", title, err)
	}
	return challenge
}

// CreateSolve writes a ledger row directly, bypassing verification.
func CreateSolve(t testing.TB, db *gorm.DB, userID, challengeID uint, at time.Time) *models.Solve {
	t.Helper()
	solve := &models.Solve{UserID: userID, ChallengeID: challengeID, SolvedAt: at}
	if err := db.Create(solve).Error; err != nil {
		t.Fatalf("create solve: %v", err)
	}
	return solve
}
