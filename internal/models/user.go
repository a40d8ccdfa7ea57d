// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Role is a user's privilege level.
type Role string

const (
	// RoleMember is a regular participant.
	RoleMember Role = "member"
	// RoleAdmin is competition staff.
	RoleAdmin Role = "admin"
)

// User represents a participant account.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"size:30;uniqueIndex;not null" json:"username"`
	Email     string         `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Password  string         `gorm:"not null" json:"-"`
	Role      Role           `gorm:"type:varchar(16);not null;default:'member';index" json:"role"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Actor is the authenticated identity performing an operation.
type Actor struct {
	UserID uint
	Role   Role
}

// ActorFor builds the Actor for a loaded user.
func ActorFor(u *User) Actor {
	return Actor{UserID: u.ID, Role: u.Role}
}
