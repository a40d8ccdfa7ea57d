package models

import "time"

// SubmissionStatus defines lifecycle states for community challenge proposals.
type SubmissionStatus string

const (
	// SubmissionStatusPending indicates the proposal is awaiting review.
	SubmissionStatusPending SubmissionStatus = "pending"
	// SubmissionStatusApproved indicates the proposal was accepted and materialized.
	SubmissionStatusApproved SubmissionStatus = "approved"
	// SubmissionStatusRejected indicates the proposal was declined.
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

// IsTerminal reports whether no further transition is allowed.
func (s SubmissionStatus) IsTerminal() bool {
	return s == SubmissionStatusApproved || s == SubmissionStatusRejected
}

// Submission is a member-proposed challenge. Rows are never deleted.
type Submission struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	Title       string           `gorm:"size:200;not null" json:"title"`
	Description string           `gorm:"type:text;not null" json:"description"`
	Category    string           `gorm:"size:32;not null" json:"category"`
	Difficulty  string           `gorm:"size:16;not null" json:"difficulty"`
	Points      int              `gorm:"not null" json:"points"`
	Flag        string           `gorm:"size:255;not null" json:"-"`
	FileRef     string           `gorm:"size:512" json:"file_ref,omitempty"`
	AuthorID    uint             `gorm:"not null;index" json:"author_id"`
	Author      *User            `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Status      SubmissionStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	ReviewerID  *uint            `json:"reviewer_id,omitempty"`
	Reviewer    *User            `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`
	ReviewNotes string           `gorm:"type:text" json:"review_notes,omitempty"`
	ReviewedAt  *time.Time       `json:"reviewed_at,omitempty"`
	ChallengeID *uint            `gorm:"uniqueIndex" json:"challenge_id,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ReviewQueueItem is an admin view of a submission with duplicate hints.
type ReviewQueueItem struct {
	Submission
	Flag              string `json:"flag"`
	SimilarChallenges []uint `json:"similar_challenges,omitempty"`
}
