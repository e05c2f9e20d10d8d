package models

import (
	"strings"
	"time"
)

// Role identifies what a profile is allowed to do.
type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleAdmin   Role = "admin"
)

// ParseRole normalises free-form role text into a Role. Unknown values yield "".
func ParseRole(value string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleStudent:
		return RoleStudent
	case RoleFaculty, "teacher":
		return RoleFaculty
	case RoleAdmin:
		return RoleAdmin
	default:
		return ""
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleFaculty || r == RoleAdmin
}

// IsReviewer reports whether the role may review student work.
func (r Role) IsReviewer() bool {
	return r == RoleFaculty || r == RoleAdmin
}

// Profile represents a user of the platform. Role is fixed at creation.
type Profile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Role      Role      `gorm:"size:16;not null;index" json:"role"`
	AvatarURL string    `gorm:"size:512" json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
