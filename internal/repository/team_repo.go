package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/projtrack-api/internal/models"
)

// TeamRepository handles teams, memberships and invitations.
type TeamRepository interface {
	CreateWithLeader(ctx context.Context, team *models.Team, leaderID uint) error
	GetByID(ctx context.Context, id uint) (models.Team, error)
	FindMembership(ctx context.Context, userID uint) (models.TeamMember, error)
	RemoveMember(ctx context.Context, memberID uint) error
	Disband(ctx context.Context, teamID uint) error

	CreateInvite(ctx context.Context, invite *models.TeamInvite) error
	GetInvite(ctx context.Context, id uint) (models.TeamInvite, error)
	FindPendingInvite(ctx context.Context, teamID, inviteeID uint) (models.TeamInvite, error)
	ListInvites(ctx context.Context, inviteeID uint, status *models.InviteStatus) ([]models.TeamInvite, error)
	RejectInvite(ctx context.Context, invite *models.TeamInvite) error
	AcceptInvite(ctx context.Context, invite *models.TeamInvite) (models.TeamMember, error)
}

type teamRepository struct {
	db *gorm.DB
}

// NewTeamRepository instantiates a GORM-backed repository.
func NewTeamRepository(db *gorm.DB) TeamRepository {
	return &teamRepository{db: db}
}

// CreateWithLeader inserts the team and its leader membership atomically.
func (r *teamRepository) CreateWithLeader(ctx context.Context, team *models.Team, leaderID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		team.CreatedBy = leaderID
		if err := tx.Omit("Members").Create(team).Error; err != nil {
			return err
		}

		leader := models.TeamMember{
			TeamID: team.ID,
			UserID: leaderID,
			Role:   models.TeamRoleLeader,
		}
		if err := tx.Omit("Profile").Create(&leader).Error; err != nil {
			return err
		}
		team.Members = []models.TeamMember{leader}
		return nil
	})
}

func (r *teamRepository) GetByID(ctx context.Context, id uint) (models.Team, error) {
	var team models.Team
	if err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Members.Profile").
		First(&team, id).Error; err != nil {
		return models.Team{}, err
	}
	return team, nil
}

func (r *teamRepository) FindMembership(ctx context.Context, userID uint) (models.TeamMember, error) {
	var member models.TeamMember
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&member).Error; err != nil {
		return models.TeamMember{}, err
	}
	return member, nil
}

func (r *teamRepository) RemoveMember(ctx context.Context, memberID uint) error {
	result := r.db.WithContext(ctx).Delete(&models.TeamMember{}, memberID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Disband deletes the team together with its members and invitations.
func (r *teamRepository) Disband(ctx context.Context, teamID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("team_id = ?", teamID).Delete(&models.TeamInvite{}).Error; err != nil {
			return err
		}
		if err := tx.Where("team_id = ?", teamID).Delete(&models.TeamMember{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Team{}, teamID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *teamRepository) CreateInvite(ctx context.Context, invite *models.TeamInvite) error {
	return r.db.WithContext(ctx).Omit("Team").Create(invite).Error
}

func (r *teamRepository) GetInvite(ctx context.Context, id uint) (models.TeamInvite, error) {
	var invite models.TeamInvite
	if err := r.db.WithContext(ctx).Preload("Team").First(&invite, id).Error; err != nil {
		return models.TeamInvite{}, err
	}
	return invite, nil
}

func (r *teamRepository) FindPendingInvite(ctx context.Context, teamID, inviteeID uint) (models.TeamInvite, error) {
	var invite models.TeamInvite
	if err := r.db.WithContext(ctx).
		Where("team_id = ? AND invitee_id = ? AND status = ?", teamID, inviteeID, models.InviteStatusPending).
		First(&invite).Error; err != nil {
		return models.TeamInvite{}, err
	}
	return invite, nil
}

func (r *teamRepository) ListInvites(ctx context.Context, inviteeID uint, status *models.InviteStatus) ([]models.TeamInvite, error) {
	query := r.db.WithContext(ctx).Preload("Team").Where("invitee_id = ?", inviteeID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var invites []models.TeamInvite
	if err := query.Order("created_at DESC").Find(&invites).Error; err != nil {
		return nil, err
	}
	return invites, nil
}

func (r *teamRepository) RejectInvite(ctx context.Context, invite *models.TeamInvite) error {
	invite.Status = models.InviteStatusRejected
	return r.db.WithContext(ctx).Model(invite).Update("status", invite.Status).Error
}

// AcceptInvite marks the invite accepted and inserts the membership in one transaction.
func (r *teamRepository) AcceptInvite(ctx context.Context, invite *models.TeamInvite) (models.TeamMember, error) {
	member := models.TeamMember{
		TeamID: invite.TeamID,
		UserID: invite.InviteeID,
		Role:   models.TeamRoleMember,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(invite).Update("status", models.InviteStatusAccepted).Error; err != nil {
			return err
		}
		return tx.Omit("Profile").Create(&member).Error
	})
	if err != nil {
		return models.TeamMember{}, err
	}

	invite.Status = models.InviteStatusAccepted
	return member, nil
}
