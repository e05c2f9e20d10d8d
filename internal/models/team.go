package models

import "time"

// TeamRole is a member's role inside a team.
type TeamRole string

const (
	TeamRoleLeader TeamRole = "leader"
	TeamRoleMember TeamRole = "member"
)

// InviteStatus tracks a team invitation.
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusRejected InviteStatus = "rejected"
)

// Team groups students working on shared projects.
type Team struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"size:128;not null" json:"name"`
	Description string       `gorm:"type:text" json:"description"`
	CreatedBy   uint         `gorm:"not null" json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Members     []TeamMember `gorm:"constraint:OnDelete:CASCADE" json:"members,omitempty"`
}

// TeamMember links a student to a team. A student belongs to at most one team.
type TeamMember struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	TeamID   uint      `gorm:"not null;index" json:"team_id"`
	UserID   uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Role     TeamRole  `gorm:"size:16;not null;default:member" json:"role"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
	Profile  Profile   `gorm:"foreignKey:UserID" json:"profile"`
}

// TeamInvite is an invitation from a team leader to a student.
type TeamInvite struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	TeamID    uint         `gorm:"not null;index" json:"team_id"`
	InviteeID uint         `gorm:"not null;index" json:"invitee_id"`
	InvitedBy uint         `gorm:"not null" json:"invited_by"`
	Status    InviteStatus `gorm:"size:16;not null;default:pending" json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Team      Team         `gorm:"constraint:OnDelete:CASCADE" json:"team"`
}
