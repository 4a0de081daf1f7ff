package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole defines a user's access level.
type UserRole string

const (
	// UserRoleAdmin can manage machines and users.
	UserRoleAdmin UserRole = "admin"
	// UserRoleViewer has read-only access to the dashboard.
	UserRoleViewer UserRole = "viewer"
)

// User represents a dashboard user authenticated with a password.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser creates a new User with the given username and password hash.
func NewUser(username, passwordHash string, role UserRole) *User {
	now := time.Now().UTC()
	return &User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsAdmin returns true if the user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}
