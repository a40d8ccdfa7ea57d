package models

import (
	"time"

	"gorm.io/gorm"
)

// Provenance records where a challenge came from.
type Provenance string

const (
	ProvenanceOfficial  Provenance = "official"
	ProvenanceCommunity Provenance = "community"
)

// ChallengeStatus controls whether a challenge can be solved.
type ChallengeStatus string

const (
	// ChallengeStatusLive challenges are listed and accept flags.
	ChallengeStatusLive ChallengeStatus = "live"
	// ChallengeStatusHidden challenges exist but are withheld from participants.
	ChallengeStatusHidden ChallengeStatus = "hidden"
)

// Challenge categories accepted by the platform.
const (
	CategoryWeb       = "web"
	CategoryCrypto    = "crypto"
	CategoryPwn       = "pwn"
	CategoryReverse   = "reverse"
	CategoryForensics = "forensics"
	CategoryOSINT     = "osint"
	CategoryMisc      = "misc"
)

// Challenge difficulties accepted by the platform.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Challenge is a solvable task. Flag is the secret and is never serialized.
type Challenge struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Title       string          `gorm:"size:200;not null" json:"title"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Category    string          `gorm:"size:32;not null;index" json:"category"`
	Difficulty  string          `gorm:"size:16;not null" json:"difficulty"`
	Points      int             `gorm:"not null" json:"points"`
	Flag        string          `gorm:"size:255;not null" json:"-"`
	FileRef     string          `gorm:"size:512" json:"file_ref,omitempty"`
	Provenance  Provenance      `gorm:"type:varchar(16);not null;default:'official';index" json:"provenance"`
	Status      ChallengeStatus `gorm:"type:varchar(16);not null;default:'live';index" json:"status"`
	AuthorID    *uint           `gorm:"index" json:"author_id,omitempty"`
	Author      *User           `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	// SolveCount is not persisted; computed at query time
	SolveCount int `gorm:"->;-:migration" json:"solve_count"`
	// Solved indicates whether the requesting user solved this challenge (computed)
	Solved    bool           `gorm:"->;-:migration" json:"solved"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsLive reports whether participants may submit flags for the challenge.
func (c *Challenge) IsLive() bool {
	return c.Status == ChallengeStatusLive
}

// AdminChallenge exposes the flag for staff views.
type AdminChallenge struct {
	Challenge
	Flag string `json:"flag"`
}

// ToAdminView wraps a challenge for admin responses.
func (c Challenge) ToAdminView() AdminChallenge {
	return AdminChallenge{Challenge: c, Flag: c.Flag}
}
