package models

import "time"

// Solve credits a user for a challenge. The (user_id, challenge_id) pair is unique.
type Solve struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;uniqueIndex:idx_solves_user_challenge;index" json:"user_id"`
	User        *User      `gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT" json:"user,omitempty"`
	ChallengeID uint       `gorm:"not null;uniqueIndex:idx_solves_user_challenge;index" json:"challenge_id"`
	Challenge   *Challenge `gorm:"foreignKey:ChallengeID;constraint:OnDelete:RESTRICT" json:"challenge,omitempty"`
	SolvedAt    time.Time  `gorm:"not null;index" json:"solved_at"`
}

// CreditResult is the outcome of an idempotent ledger insert.
type CreditResult string

const (
	// Credited means a new ledger row was written.
	Credited CreditResult = "credited"
	// AlreadyCredited means the row existed and nothing changed.
	AlreadyCredited CreditResult = "already_credited"
)

// FlagResult classifies a flag attempt.
type FlagResult string

const (
	FlagResultCorrect   FlagResult = "correct"
	FlagResultIncorrect FlagResult = "incorrect"
	FlagResultDuplicate FlagResult = "already_solved"
)

// FlagAttempt is an audit row for every flag submission. The candidate itself is not stored.
type FlagAttempt struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;index" json:"user_id"`
	ChallengeID uint       `gorm:"not null;index" json:"challenge_id"`
	Result      FlagResult `gorm:"type:varchar(16);not null;index" json:"result"`
	IPAddress   string     `gorm:"size:45" json:"ip_address,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SolveRow is one ledger row joined with challenge points and username.
type SolveRow struct {
	UserID      uint      `json:"user_id"`
	Username    string    `json:"username"`
	ChallengeID uint      `json:"challenge_id"`
	Points      int       `json:"points"`
	SolvedAt    time.Time `json:"solved_at"`
}

// LeaderboardEntry is a derived standing for one user.
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	UserID      uint      `json:"user_id"`
	Username    string    `json:"username"`
	TotalScore  int       `json:"total_score"`
	SolveCount  int       `json:"solve_count"`
	LastSolveAt time.Time `json:"last_solve_at"`
}

// FeedItem is a recent solve for the public feed.
type FeedItem struct {
	UserID         uint      `json:"user_id"`
	Username       string    `json:"username"`
	ChallengeID    uint      `json:"challenge_id"`
	ChallengeTitle string    `json:"challenge_title"`
	Points         int       `json:"points"`
	FirstBlood     bool      `json:"first_blood"`
	SolvedAt       time.Time `json:"solved_at"`
}
