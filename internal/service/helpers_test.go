package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ctfarena/internal/featureflags"
	"ctfarena/internal/models"
	"ctfarena/internal/notifications"
	"ctfarena/internal/repository"
	"ctfarena/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// env wires real repositories over an in-memory database and miniredis.
type env struct {
	db    *gorm.DB
	mr    *miniredis.Miniredis
	rdb   *redis.Client
	gate  *ModerationGate
	flags *featureflags.Manager
	pub   *recordingPublisher

	users       repository.UserRepository
	challenges  repository.ChallengeRepository
	solves      repository.SolveRepository
	submissions repository.SubmissionRepository
	posts       repository.PostRepository
	comments    repository.CommentRepository

	admin  models.Actor
	member models.Actor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.OpenSQLite(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	admin := testutil.CreateUser(t, db, "root", models.RoleAdmin)
	member := testutil.CreateUser(t, db, "alice", models.RoleMember)

	return &env{
		db:          db,
		mr:          mr,
		rdb:         rdb,
		gate:        NewModerationGate(),
		flags:       featureflags.NewManager("community_submissions=on,live_feed=on,first_blood=on"),
		pub:         &recordingPublisher{},
		users:       repository.NewUserRepository(db),
		challenges:  repository.NewChallengeRepository(db),
		solves:      repository.NewSolveRepository(db),
		submissions: repository.NewSubmissionRepository(db),
		posts:       repository.NewPostRepository(db),
		comments:    repository.NewCommentRepository(db),
		admin:       models.ActorFor(admin),
		member:      models.ActorFor(member),
	}
}

func (e *env) ledger() *SolveLedger {
	return NewSolveLedger(e.solves, e.rdb)
}

func (e *env) scoreboard() *ScoreboardService {
	return NewScoreboardService(e.solves, e.users, e.gate, e.pub, e.rdb)
}

func (e *env) countSolves(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.Solve{}).Count(&n).Error)
	return n
}

// recordingPublisher captures events published asynchronously.
type recordingPublisher struct {
	mu      sync.Mutex
	solves  []notifications.SolveEvent
	reviews []notifications.ReviewEvent
	resets  int
}

func (p *recordingPublisher) PublishSolve(_ context.Context, event notifications.SolveEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.solves = append(p.solves, event)
	return nil
}

func (p *recordingPublisher) PublishReview(_ context.Context, event notifications.ReviewEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reviews = append(p.reviews, event)
	return nil
}

func (p *recordingPublisher) PublishReset(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets++
	return nil
}

func (p *recordingPublisher) solveEvents() []notifications.SolveEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notifications.SolveEvent(nil), p.solves...)
}

func (p *recordingPublisher) reviewEvents() []notifications.ReviewEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notifications.ReviewEvent(nil), p.reviews...)
}

func (p *recordingPublisher) resetCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resets
}

// assertCode asserts that err is an AppError carrying code.
func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeValidation)
}

func assertDenied(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeAuthorizationDenied)
}

// noopSolveRepo satisfies repository.SolveRepository with empty results.
type noopSolveRepo struct{}

func (noopSolveRepo) Insert(context.Context, *models.Solve) (models.CreditResult, error) {
	return models.Credited, nil
}
func (noopSolveRepo) Get(_ context.Context, userID, challengeID uint) (*models.Solve, error) {
	return &models.Solve{UserID: userID, ChallengeID: challengeID}, nil
}
func (noopSolveRepo) ListRows(context.Context) ([]models.SolveRow, error) { return nil, nil }
func (noopSolveRepo) Recent(context.Context, int) ([]models.FeedItem, error) { return nil, nil }
func (noopSolveRepo) IsFirst(context.Context, *models.Solve) (bool, error) { return false, nil }
func (noopSolveRepo) CountByUser(context.Context, uint) (int64, error) { return 0, nil }
func (noopSolveRepo) Count(context.Context) (int64, error) { return 0, nil }
func (noopSolveRepo) DeleteAll(context.Context) (int64, error) { return 0, nil }
func (noopSolveRepo) RecordAttempt(context.Context, *models.FlagAttempt) error { return nil }
