package models

import "time"

// Post is a community discussion thread.
type Post struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Title   string `gorm:"size:300;not null" json:"title"`
	Content string `gorm:"type:text;not null" json:"content"`
	UserID  uint   `gorm:"not null;index" json:"user_id"`
	User    *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	// UpvoteCount is not persisted; computed at query time
	UpvoteCount int `gorm:"->;-:migration" json:"upvote_count"`
	// CommentCount is not persisted; computed at query time
	CommentCount int `gorm:"->;-:migration" json:"comment_count"`
	// Upvoted indicates whether the requesting user upvoted this post (computed)
	Upvoted   bool      `gorm:"->;-:migration" json:"upvoted"`
	Comments  []Comment `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Comment belongs to a post and is removed with it.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Upvote records one user's vote on a post.
// The combination of UserID and PostID must be unique.
type Upvote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_upvotes_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_upvotes_user_post;index" json:"post_id"`
	Post      *Post     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
