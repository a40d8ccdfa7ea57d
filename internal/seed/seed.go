package seed

import (
	"fmt"

	"ctfarena/internal/middleware"
	"ctfarena/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers      int
	NumChallenges int
	NumPosts      int
	// SolveRate is the percentage chance (0-100) that a user solved a given challenge.
	SolveRate   int
	ShouldClean bool
	Factory     SeedOptions
}

// Summary reports what a Seed run created.
type Summary struct {
	Users       int
	Challenges  int
	Solves      int
	Submissions int
	Posts       int
}

// Seed populates the database with demo data.
func Seed(db *gorm.DB, opts Options) (Summary, error) {
	var sum Summary
	log := middleware.Logger.With("component", "seed")

	if opts.ShouldClean {
		if err := ClearData(db); err != nil {
			return sum, fmt.Errorf("clear data: %w", err)
		}
	}
	if err := Warmups(db); err != nil {
		return sum, fmt.Errorf("warm-ups: %w", err)
	}

	f := NewFactory(db, opts.Factory)

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		u, err := f.CreateUser()
		if err != nil {
			return sum, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	sum.Users = len(users)

	challenges := make([]*models.Challenge, 0, opts.NumChallenges)
	for i := 0; i < opts.NumChallenges; i++ {
		c, err := f.CreateChallenge()
		if err != nil {
			return sum, fmt.Errorf("create challenge: %w", err)
		}
		challenges = append(challenges, c)
	}
	sum.Challenges = len(challenges)

	for _, u := range users {
		for _, c := range challenges {
			if f.faker.Number(1, 100) > opts.SolveRate {
				continue
			}
			if err := f.CreateSolve(u, c); err != nil {
				return sum, fmt.Errorf("create solve: %w", err)
			}
			sum.Solves++
		}
	}

	// A handful of proposals keeps the review queue non-empty.
	for i := 0; i < len(users) && i < 3; i++ {
		if _, err := f.CreateSubmission(users[i]); err != nil {
			return sum, fmt.Errorf("create submission: %w", err)
		}
		sum.Submissions++
	}

	if len(users) > 0 {
		for i := 0; i < opts.NumPosts; i++ {
			author := users[f.faker.Number(0, len(users)-1)]
			post, err := f.CreatePost(author)
			if err != nil {
				return sum, fmt.Errorf("create post: %w", err)
			}
			sum.Posts++
			for j := f.faker.Number(0, 3); j > 0; j-- {
				if _, err := f.CreateComment(users[f.faker.Number(0, len(users)-1)], post); err != nil {
					return sum, fmt.Errorf("create comment: %w", err)
				}
			}
			for j := f.faker.Number(0, len(users)); j > 0; j-- {
				if err := f.CreateUpvote(users[f.faker.Number(0, len(users)-1)], post); err != nil {
					return sum, fmt.Errorf("create upvote: %w", err)
				}
			}
		}
	}

	log.Info("seed complete",
		"users", sum.Users, "challenges", sum.Challenges, "solves", sum.Solves,
		"submissions", sum.Submissions, "posts", sum.Posts)
	return sum, nil
}

// ClearData removes every competition and community row.
func ClearData(db *gorm.DB) error {
	if db.Dialector.Name() == "postgres" {
		return db.Exec(`TRUNCATE TABLE upvotes, comments, posts, flag_attempts, solves, submissions, challenges, users RESTART IDENTITY CASCADE`).Error
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&models.Upvote{}, &models.Comment{}, &models.Post{}, &models.FlagAttempt{},
			&models.Solve{}, &models.Submission{}, &models.Challenge{}, &models.User{},
		} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
