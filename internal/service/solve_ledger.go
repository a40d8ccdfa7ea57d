package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"ctfarena/internal/cache"
	"ctfarena/internal/models"
	"ctfarena/internal/observability"
	"ctfarena/internal/repository"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLedgerAttempts = 3
	defaultLedgerBackoff  = 15 * time.Millisecond
)

// SolveLedger records solves. A (user, challenge) pair is credited at most
// once no matter how many requests race for it.
type SolveLedger struct {
	solves   repository.SolveRepository
	rdb      *redis.Client
	now      func() time.Time
	attempts int
	backoff  time.Duration
}

func NewSolveLedger(solves repository.SolveRepository, rdb *redis.Client) *SolveLedger {
	return &SolveLedger{
		solves:   solves,
		rdb:      rdb,
		now:      time.Now,
		attempts: defaultLedgerAttempts,
		backoff:  defaultLedgerBackoff,
	}
}

// RecordSolve credits userID for challengeID. The returned solve is the row that
// holds the credit, which for AlreadyCredited is the earlier one.
func (l *SolveLedger) RecordSolve(ctx context.Context, userID, challengeID uint) (models.CreditResult, *models.Solve, error) {
	if userID == 0 || challengeID == 0 {
		return "", nil, models.NewValidationError("user and challenge are required")
	}

	solve := &models.Solve{UserID: userID, ChallengeID: challengeID, SolvedAt: l.now().UTC()}
	result, err := backoff.Retry(ctx, func() (models.CreditResult, error) {
		solve.ID = 0
		result, err := l.solves.Insert(ctx, solve)
		if err != nil && !isTransient(err) {
			return "", backoff.Permanent(err)
		}
		return result, err
	},
		backoff.WithBackOff(l.retryPolicy()),
		backoff.WithMaxTries(uint(l.attempts)),
		backoff.WithNotify(func(error, time.Duration) { observability.SolveRetries.Inc() }),
	)
	if err != nil {
		observability.SolvesRecorded.WithLabelValues("error").Inc()
		return "", nil, models.NewInternalError(err)
	}
	observability.SolvesRecorded.WithLabelValues(string(result)).Inc()

	if result == models.AlreadyCredited {
		existing, err := l.solves.Get(ctx, userID, challengeID)
		if err != nil {
			return result, nil, err
		}
		return result, existing, nil
	}

	if err := cache.InvalidateLeaderboard(ctx, l.rdb); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "leaderboard invalidation failed", "error", err)
	}
	return result, solve, nil
}

// retryPolicy backs off exponentially from l.backoff with a little jitter so
// racing submitters do not retry in lockstep.
func (l *SolveLedger) retryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.backoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxInterval = 20 * l.backoff
	return b
}

// isTransient reports storage conflicts that succeed when simply retried.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "deadlock")
}
