package dto

import (
	"time"

	"github.com/noah-isme/projtrack-api/internal/models"
)

// TeamCreateRequest creates a team led by the caller.
type TeamCreateRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=128"`
	Description string `json:"description" validate:"omitempty,max=2000"`
}

// TeamInviteRequest invites a student by email.
type TeamInviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// InviteRespondRequest answers a pending invitation.
type InviteRespondRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted rejected"`
}

// TeamMemberResponse describes a team member.
type TeamMemberResponse struct {
	ID       uint      `json:"id"`
	UserID   uint      `json:"user_id"`
	Role     string    `json:"role"`
	Name     string    `json:"name,omitempty"`
	Email    string    `json:"email,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

// TeamResponse describes a team and its members.
type TeamResponse struct {
	ID          uint                 `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	CreatedBy   uint                 `json:"created_by"`
	Members     []TeamMemberResponse `json:"members"`
	CreatedAt   time.Time            `json:"created_at"`
}

// TeamInviteResponse describes an invitation.
type TeamInviteResponse struct {
	ID        uint      `json:"id"`
	TeamID    uint      `json:"team_id"`
	TeamName  string    `json:"team_name,omitempty"`
	InviteeID uint      `json:"invitee_id"`
	InvitedBy uint      `json:"invited_by"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TeamLeaveResponse reports the outcome of leaving a team.
type TeamLeaveResponse struct {
	TeamID    uint `json:"team_id"`
	Disbanded bool `json:"disbanded"`
}

// NewTeamMemberResponse converts a membership into a DTO.
func NewTeamMemberResponse(model models.TeamMember) TeamMemberResponse {
	return TeamMemberResponse{
		ID:       model.ID,
		UserID:   model.UserID,
		Role:     string(model.Role),
		Name:     model.Profile.Name,
		Email:    model.Profile.Email,
		JoinedAt: model.JoinedAt,
	}
}

// NewTeamResponse converts a team model into a DTO.
func NewTeamResponse(model models.Team) TeamResponse {
	members := make([]TeamMemberResponse, 0, len(model.Members))
	for _, member := range model.Members {
		members = append(members, NewTeamMemberResponse(member))
	}
	return TeamResponse{
		ID:          model.ID,
		Name:        model.Name,
		Description: model.Description,
		CreatedBy:   model.CreatedBy,
		Members:     members,
		CreatedAt:   model.CreatedAt,
	}
}

// NewTeamInviteResponse converts an invite model into a DTO.
func NewTeamInviteResponse(model models.TeamInvite) TeamInviteResponse {
	return TeamInviteResponse{
		ID:        model.ID,
		TeamID:    model.TeamID,
		TeamName:  model.Team.Name,
		InviteeID: model.InviteeID,
		InvitedBy: model.InvitedBy,
		Status:    string(model.Status),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// NewTeamInviteResponseSlice converts invites into DTOs.
func NewTeamInviteResponseSlice(items []models.TeamInvite) []TeamInviteResponse {
	responses := make([]TeamInviteResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewTeamInviteResponse(item))
	}
	return responses
}
