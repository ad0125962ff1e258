package models

import (
	"strings"
	"time"
)

// Role is the capability set an actor acts under.
type Role string

const (
	RoleUnknown     Role = ""
	RoleTeacher     Role = "teacher"
	RoleCoordinator Role = "coordonator"
	RoleReviewer    Role = "reviewer"
)

// ParseRole maps a stored profile role to a Role. Profiles were written
// with the "coordonator" spelling; the corrected spelling is accepted too.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "teacher", "enseignant":
		return RoleTeacher
	case "coordonator", "coordinator", "coordonnateur":
		return RoleCoordinator
	case "reviewer":
		return RoleReviewer
	}
	return RoleUnknown
}

// CanReview reports whether the role may act on the review queue.
// Coordinators review the plans filed against the templates they manage.
func (r Role) CanReview() bool {
	return r == RoleReviewer || r == RoleCoordinator
}

// Actor is the identity an operation runs under.
type Actor struct {
	UserID string
	Role   Role
}

// User is a stored profile.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DisplayName is "First Last", or empty when neither is set.
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
