// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"strings"
	"time"

	"ctfarena/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPassword is the password every seeded account gets.
const DefaultPassword = "password123"

// SeedOptions tune the factory.
type SeedOptions struct {
	// Seed makes generated content reproducible; 0 picks a time-based seed.
	Seed int64
	// SkipBcrypt stores a cheap hash placeholder instead of a real bcrypt hash.
	SkipBcrypt bool
	// MaxDays bounds how far back generated timestamps are spread.
	MaxDays int
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db    *gorm.DB
	opts  SeedOptions
	faker *gofakeit.Faker
	hash  string
	now   time.Time
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts SeedOptions) *Factory {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 14
	}
	return &Factory{db: db, opts: opts, faker: gofakeit.New(seed), now: time.Now().UTC()}
}

func (f *Factory) passwordHash() (string, error) {
	if f.hash != "" {
		return f.hash, nil
	}
	if f.opts.SkipBcrypt {
		f.hash = DefaultPassword
		return f.hash, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash seed password: %w", err)
	}
	f.hash = string(hashed)
	return f.hash, nil
}

// pastTime returns a timestamp within the configured window before now.
func (f *Factory) pastTime() time.Time {
	minutes := f.faker.Number(1, f.opts.MaxDays*24*60)
	return f.now.Add(-time.Duration(minutes) * time.Minute)
}

// CreateUser constructs and persists a sample member.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.passwordHash()
	if err != nil {
		return nil, err
	}
	name := strings.ToLower(f.faker.Username())
	if len(name) > 24 {
		name = name[:24]
	}
	user := &models.User{
		Username: fmt.Sprintf("%s%d", name, f.faker.Number(100, 999)),
		Email:    fmt.Sprintf("%s.%s", f.faker.LetterN(6), f.faker.Email()),
		Password: hash,
		Role:     models.RoleMember,
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

var (
	categories   = []string{models.CategoryWeb, models.CategoryCrypto, models.CategoryPwn, models.CategoryReverse, models.CategoryForensics, models.CategoryOSINT, models.CategoryMisc}
	difficulties = []string{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard}
)

func (f *Factory) challengeFields() (title, description, category, difficulty string, points int, flag string) {
	title = capitalize(f.faker.HackerAdjective()) + " " + capitalize(f.faker.HackerNoun())
	description = f.faker.HackerPhrase() + " " + f.faker.Sentence(12)
	category = f.faker.RandomString(categories)
	difficulty = f.faker.RandomString(difficulties)
	points = f.faker.Number(1, 10) * 50
	flag = fmt.Sprintf("flag{%s}", strings.ReplaceAll(f.faker.UUID(), "-", "")[:16])
	return
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// CreateChallenge constructs and persists a live official challenge.
func (f *Factory) CreateChallenge(overrides ...func(*models.Challenge)) (*models.Challenge, error) {
	title, description, category, difficulty, points, flag := f.challengeFields()
	challenge := &models.Challenge{
		Title:       title,
		Description: description,
		Category:    category,
		Difficulty:  difficulty,
		Points:      points,
		Flag:        flag,
		Provenance:  models.ProvenanceOfficial,
		Status:      models.ChallengeStatusLive,
		CreatedAt:   f.pastTime(),
	}
	for _, override := range overrides {
		override(challenge)
	}
	if err := f.db.Create(challenge).Error; err != nil {
		return nil, err
	}
	return challenge, nil
}

// CreateSubmission persists a pending community proposal by author.
func (f *Factory) CreateSubmission(author *models.User, overrides ...func(*models.Submission)) (*models.Submission, error) {
	title, description, category, difficulty, points, flag := f.challengeFields()
	sub := &models.Submission{
		Title:       title,
		Description: description,
		Category:    category,
		Difficulty:  difficulty,
		Points:      points,
		Flag:        flag,
		AuthorID:    author.ID,
		Status:      models.SubmissionStatusPending,
	}
	for _, override := range overrides {
		override(sub)
	}
	if err := f.db.Create(sub).Error; err != nil {
		return nil, err
	}
	return sub, nil
}

// CreateSolve credits user for challenge at a time after the challenge appeared.
// An existing pair is left untouched.
func (f *Factory) CreateSolve(user *models.User, challenge *models.Challenge) error {
	solvedAt := f.pastTime()
	if solvedAt.Before(challenge.CreatedAt) {
		solvedAt = challenge.CreatedAt.Add(time.Duration(f.faker.Number(1, 600)) * time.Second)
	}
	solve := &models.Solve{UserID: user.ID, ChallengeID: challenge.ID, SolvedAt: solvedAt}
	return f.db.Clauses(clause.OnConflict{DoNothing: true}).Create(solve).Error
}

// CreatePost constructs and persists a sample post for the given user.
func (f *Factory) CreatePost(user *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := &models.Post{
		Title:     f.faker.Sentence(6),
		Content:   f.faker.Paragraph(1, 3, 12, "\n"),
		UserID:    user.ID,
		CreatedAt: f.pastTime(),
	}
	for _, override := range overrides {
		override(post)
	}
	if err := f.db.Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment persists a comment by user on post.
func (f *Factory) CreateComment(user *models.User, post *models.Post) (*models.Comment, error) {
	comment := &models.Comment{
		Content: f.faker.Sentence(f.faker.Number(4, 20)),
		PostID:  post.ID,
		UserID:  user.ID,
	}
	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateUpvote records user's vote on post; repeats are ignored.
func (f *Factory) CreateUpvote(user *models.User, post *models.Post) error {
	return f.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Upvote{UserID: user.ID, PostID: post.ID}).Error
}
