package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	LeaderboardPattern   = "leaderboard:*"
	LeaderboardKeyPrefix = "leaderboard:top:g%d:%d"
	FeedKeyPrefix        = "leaderboard:feed:g%d:%d"
	UserScoreKeyPrefix   = "leaderboard:user:g%d:%d"
	// LeaderboardGenKey lives outside LeaderboardPattern so invalidation never resets it.
	LeaderboardGenKey = "scoreboard:generation"
	UserKeyPrefix        = "user:%d"
	ChallengeKeyPrefix   = "challenge:%d"
	BlacklistKeyPrefix   = "blacklist:%s"
)

const (
	UserTTL      = 5 * time.Minute
	ChallengeTTL = 2 * time.Minute
)

// Standing keys carry the ledger generation they were computed under. A
// reader that raced a solve stores its result under a generation nobody reads.

// LeaderboardKey caches a ranked page truncated to limit entries (0 means all).
func LeaderboardKey(gen int64, limit int) string {
	return fmt.Sprintf(LeaderboardKeyPrefix, gen, limit)
}

func FeedKey(gen int64, limit int) string {
	return fmt.Sprintf(FeedKeyPrefix, gen, limit)
}

func UserScoreKey(gen int64, userID uint) string {
	return fmt.Sprintf(UserScoreKeyPrefix, gen, userID)
}

// LeaderboardGeneration returns the current ledger generation. ok is false
// when Redis is absent or unreachable, in which case standings are not cached.
func LeaderboardGeneration(ctx context.Context, rdb *redis.Client) (gen int64, ok bool) {
	if rdb == nil {
		return 0, false
	}
	gen, err := rdb.Get(ctx, LeaderboardGenKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		return 0, false
	}
	return gen, true
}

// AsideStanding is Aside for ledger-derived values. The generation is read
// before fetch runs, so a ledger write during the fetch retires the key.
func AsideStanding(ctx context.Context, rdb *redis.Client, key func(gen int64) string, dest any, ttl time.Duration, fetch func() error) (bool, error) {
	gen, ok := LeaderboardGeneration(ctx, rdb)
	if !ok {
		return false, fetch()
	}
	return Aside(ctx, rdb, key(gen), dest, ttl, fetch)
}

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func ChallengeKey(challengeID uint) string {
	return fmt.Sprintf(ChallengeKeyPrefix, challengeID)
}

func Invalidate(ctx context.Context, rdb *redis.Client, keys ...string) {
	if rdb != nil && len(keys) > 0 {
		rdb.Del(ctx, keys...)
	}
}

// BlacklistKey marks a revoked access token by its jti until the token would expire anyway.
func BlacklistKey(jti string) string {
	return fmt.Sprintf(BlacklistKeyPrefix, jti)
}

func InvalidateUser(ctx context.Context, rdb *redis.Client, userID uint) {
	Invalidate(ctx, rdb, UserKey(userID))
}

func InvalidateChallenge(ctx context.Context, rdb *redis.Client, challengeID uint) {
	Invalidate(ctx, rdb, ChallengeKey(challengeID))
}

// InvalidateLeaderboard must run after every ledger write. It bumps the
// generation, then drops the pages, feed and per-user scores cached so far.
func InvalidateLeaderboard(ctx context.Context, rdb *redis.Client) error {
	if rdb == nil {
		return nil
	}
	if err := rdb.Incr(ctx, LeaderboardGenKey).Err(); err != nil {
		return err
	}
	return DeletePattern(ctx, rdb, LeaderboardPattern)
}
