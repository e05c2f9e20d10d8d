package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/lifecycle"
	"github.com/noah-isme/projtrack-api/internal/models"
	"github.com/noah-isme/projtrack-api/internal/repository"
)

var (
	// ErrTeamNotFound indicates the team does not exist.
	ErrTeamNotFound = errors.New("team not found")
	// ErrNotInTeam indicates the caller belongs to no team.
	ErrNotInTeam = errors.New("user is not in a team")
	// ErrNotTeamLeader indicates the caller does not lead the team.
	ErrNotTeamLeader = errors.New("only the team leader can do this")
	// ErrAlreadyInTeam indicates the student already belongs to a team.
	ErrAlreadyInTeam = errors.New("student already belongs to a team")
	// ErrInviteeNotStudent indicates only students can be invited.
	ErrInviteeNotStudent = errors.New("only students can be invited")
	// ErrInviteExists indicates a pending invite to the same team already exists.
	ErrInviteExists = errors.New("a pending invite already exists")
	// ErrInviteNotFound indicates the invitation does not exist.
	ErrInviteNotFound = errors.New("invite not found")
	// ErrTeamHasProjects indicates the team still owns projects and cannot be disbanded.
	ErrTeamHasProjects = errors.New("team still owns projects")
)

// TeamService manages teams, membership and invitations.
type TeamService interface {
	Create(ctx context.Context, actor Actor, payload dto.TeamCreateRequest) (dto.TeamResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.TeamResponse, error)
	Mine(ctx context.Context, actor Actor) (dto.TeamResponse, error)
	Invite(ctx context.Context, actor Actor, teamID uint, payload dto.TeamInviteRequest) (dto.TeamInviteResponse, error)
	Respond(ctx context.Context, actor Actor, inviteID uint, payload dto.InviteRespondRequest) (dto.TeamInviteResponse, error)
	Leave(ctx context.Context, actor Actor) (dto.TeamLeaveResponse, error)
	ListInvites(ctx context.Context, actor Actor, status string) ([]dto.TeamInviteResponse, error)
}

type teamService struct {
	teams     repository.TeamRepository
	profiles  repository.ProfileRepository
	projects  repository.ProjectRepository
	notifier  Notifier
	activity  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewTeamService constructs the team service.
func NewTeamService(teams repository.TeamRepository, profiles repository.ProfileRepository, projects repository.ProjectRepository, notifier Notifier, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) TeamService {
	return &teamService{
		teams:     teams,
		profiles:  profiles,
		projects:  projects,
		notifier:  notifier,
		activity:  activity,
		validator: validate,
		logger:    logger.With().Str("component", "team_service").Logger(),
	}
}

func (s *teamService) Create(ctx context.Context, actor Actor, payload dto.TeamCreateRequest) (dto.TeamResponse, error) {
	if err := s.requireStudent(actor); err != nil {
		return dto.TeamResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.TeamResponse{}, err
	}

	if _, found, err := s.membership(ctx, actor.ID); err != nil {
		return dto.TeamResponse{}, err
	} else if found {
		return dto.TeamResponse{}, ErrAlreadyInTeam
	}

	team := models.Team{
		Name:        strings.TrimSpace(payload.Name),
		Description: strings.TrimSpace(payload.Description),
	}
	if err := s.teams.CreateWithLeader(ctx, &team, actor.ID); err != nil {
		return dto.TeamResponse{}, err
	}

	audit(ctx, s.activity, s.logger, actor, "team.created", "team", team.ID, map[string]interface{}{
		"name": team.Name,
	})
	return s.load(ctx, team.ID)
}

func (s *teamService) Get(ctx context.Context, actor Actor, id uint) (dto.TeamResponse, error) {
	if err := actor.authenticated(); err != nil {
		return dto.TeamResponse{}, err
	}
	if !actor.Role.IsReviewer() {
		member, found, err := s.membership(ctx, actor.ID)
		if err != nil {
			return dto.TeamResponse{}, err
		}
		if !found || member.TeamID != id {
			return dto.TeamResponse{}, ErrForbidden
		}
	}
	return s.load(ctx, id)
}

func (s *teamService) Mine(ctx context.Context, actor Actor) (dto.TeamResponse, error) {
	if err := actor.authenticated(); err != nil {
		return dto.TeamResponse{}, err
	}
	member, found, err := s.membership(ctx, actor.ID)
	if err != nil {
		return dto.TeamResponse{}, err
	}
	if !found {
		return dto.TeamResponse{}, ErrNotInTeam
	}
	return s.load(ctx, member.TeamID)
}

// Invite runs every check before writing so a refused invite leaves no rows behind.
func (s *teamService) Invite(ctx context.Context, actor Actor, teamID uint, payload dto.TeamInviteRequest) (dto.TeamInviteResponse, error) {
	if err := s.requireStudent(actor); err != nil {
		return dto.TeamInviteResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.TeamInviteResponse{}, err
	}

	leader, found, err := s.membership(ctx, actor.ID)
	if err != nil {
		return dto.TeamInviteResponse{}, err
	}
	if !found || leader.TeamID != teamID || leader.Role != models.TeamRoleLeader {
		return dto.TeamInviteResponse{}, ErrNotTeamLeader
	}

	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TeamInviteResponse{}, ErrTeamNotFound
		}
		return dto.TeamInviteResponse{}, err
	}

	invitee, err := s.profiles.GetByEmail(ctx, payload.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TeamInviteResponse{}, ErrProfileNotFound
		}
		return dto.TeamInviteResponse{}, err
	}
	if invitee.Role != models.RoleStudent {
		return dto.TeamInviteResponse{}, ErrInviteeNotStudent
	}
	if _, inTeam, err := s.membership(ctx, invitee.ID); err != nil {
		return dto.TeamInviteResponse{}, err
	} else if inTeam {
		return dto.TeamInviteResponse{}, ErrAlreadyInTeam
	}
	if _, err := s.teams.FindPendingInvite(ctx, team.ID, invitee.ID); err == nil {
		return dto.TeamInviteResponse{}, ErrInviteExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.TeamInviteResponse{}, err
	}

	invite := models.TeamInvite{
		TeamID:    team.ID,
		InviteeID: invitee.ID,
		InvitedBy: actor.ID,
		Status:    models.InviteStatusPending,
	}
	if err := s.teams.CreateInvite(ctx, &invite); err != nil {
		return dto.TeamInviteResponse{}, err
	}
	invite.Team = team

	notify(ctx, s.notifier, s.logger, dto.NotificationCreateRequest{
		UserID:    invitee.ID,
		Title:     "Team invitation",
		Message:   fmt.Sprintf(`You have been invited to join "%s".`, team.Name),
		Type:      models.NotificationTypeTeamInvite,
		RelatedID: uintPtr(invite.ID),
	})
	audit(ctx, s.activity, s.logger, actor, "team.invited", "team_invite", invite.ID, map[string]interface{}{
		"team_id":    team.ID,
		"invitee_id": invitee.ID,
	})
	return dto.NewTeamInviteResponse(invite), nil
}

func (s *teamService) Respond(ctx context.Context, actor Actor, inviteID uint, payload dto.InviteRespondRequest) (dto.TeamInviteResponse, error) {
	if err := actor.authenticated(); err != nil {
		return dto.TeamInviteResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.TeamInviteResponse{}, err
	}

	invite, err := s.teams.GetInvite(ctx, inviteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TeamInviteResponse{}, ErrInviteNotFound
		}
		return dto.TeamInviteResponse{}, err
	}
	if invite.InviteeID != actor.ID {
		return dto.TeamInviteResponse{}, ErrForbidden
	}

	answer := models.InviteStatus(payload.Status)
	if err := lifecycle.InviteResponse(invite.Status, answer); err != nil {
		return dto.TeamInviteResponse{}, err
	}

	if answer == models.InviteStatusRejected {
		if err := s.teams.RejectInvite(ctx, &invite); err != nil {
			return dto.TeamInviteResponse{}, err
		}
		audit(ctx, s.activity, s.logger, actor, "team.invite_rejected", "team_invite", invite.ID, nil)
		return dto.NewTeamInviteResponse(invite), nil
	}

	if _, inTeam, err := s.membership(ctx, actor.ID); err != nil {
		return dto.TeamInviteResponse{}, err
	} else if inTeam {
		return dto.TeamInviteResponse{}, ErrAlreadyInTeam
	}

	if _, err := s.teams.AcceptInvite(ctx, &invite); err != nil {
		return dto.TeamInviteResponse{}, err
	}

	notify(ctx, s.notifier, s.logger, dto.NotificationCreateRequest{
		UserID:    invite.Team.CreatedBy,
		Title:     "Invitation accepted",
		Message:   fmt.Sprintf(`A student joined "%s".`, invite.Team.Name),
		Type:      models.NotificationTypeTeamUpdate,
		RelatedID: uintPtr(invite.TeamID),
	})
	audit(ctx, s.activity, s.logger, actor, "team.invite_accepted", "team_invite", invite.ID, map[string]interface{}{
		"team_id": invite.TeamID,
	})
	return dto.NewTeamInviteResponse(invite), nil
}

func (s *teamService) Leave(ctx context.Context, actor Actor) (dto.TeamLeaveResponse, error) {
	if err := actor.authenticated(); err != nil {
		return dto.TeamLeaveResponse{}, err
	}
	member, found, err := s.membership(ctx, actor.ID)
	if err != nil {
		return dto.TeamLeaveResponse{}, err
	}
	if !found {
		return dto.TeamLeaveResponse{}, ErrNotInTeam
	}

	if member.Role != models.TeamRoleLeader {
		if err := s.teams.RemoveMember(ctx, member.ID); err != nil {
			return dto.TeamLeaveResponse{}, err
		}
		audit(ctx, s.activity, s.logger, actor, "team.left", "team", member.TeamID, nil)
		return dto.TeamLeaveResponse{TeamID: member.TeamID}, nil
	}

	owned, err := s.projects.CountByTeam(ctx, member.TeamID)
	if err != nil {
		return dto.TeamLeaveResponse{}, err
	}
	if owned > 0 {
		return dto.TeamLeaveResponse{}, ErrTeamHasProjects
	}

	if err := s.teams.Disband(ctx, member.TeamID); err != nil {
		return dto.TeamLeaveResponse{}, err
	}
	audit(ctx, s.activity, s.logger, actor, "team.disbanded", "team", member.TeamID, nil)
	return dto.TeamLeaveResponse{TeamID: member.TeamID, Disbanded: true}, nil
}

func (s *teamService) ListInvites(ctx context.Context, actor Actor, status string) ([]dto.TeamInviteResponse, error) {
	if err := actor.authenticated(); err != nil {
		return nil, err
	}
	var filter *models.InviteStatus
	if trimmed := strings.ToLower(strings.TrimSpace(status)); trimmed != "" {
		value := models.InviteStatus(trimmed)
		filter = &value
	}
	invites, err := s.teams.ListInvites(ctx, actor.ID, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewTeamInviteResponseSlice(invites), nil
}

func (s *teamService) requireStudent(actor Actor) error {
	if err := actor.authenticated(); err != nil {
		return err
	}
	if actor.Role != models.RoleStudent {
		return ErrForbidden
	}
	return nil
}

func (s *teamService) membership(ctx context.Context, userID uint) (models.TeamMember, bool, error) {
	member, err := s.teams.FindMembership(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.TeamMember{}, false, nil
		}
		return models.TeamMember{}, false, err
	}
	return member, true, nil
}

func (s *teamService) load(ctx context.Context, id uint) (dto.TeamResponse, error) {
	team, err := s.teams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TeamResponse{}, ErrTeamNotFound
		}
		return dto.TeamResponse{}, err
	}
	return dto.NewTeamResponse(team), nil
}
