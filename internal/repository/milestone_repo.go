package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/projtrack-api/internal/models"
)

// MilestoneRepository defines persistence operations for project milestones.
type MilestoneRepository interface {
	ListByProject(ctx context.Context, projectID uint) ([]models.Milestone, error)
	GetByID(ctx context.Context, id uint) (models.Milestone, error)
	Create(ctx context.Context, milestone *models.Milestone) error
	Update(ctx context.Context, milestone *models.Milestone, columns ...string) error
	Delete(ctx context.Context, id uint) error
}

type milestoneRepository struct {
	db *gorm.DB
}

// NewMilestoneRepository instantiates a GORM-backed repository.
func NewMilestoneRepository(db *gorm.DB) MilestoneRepository {
	return &milestoneRepository{db: db}
}

func (r *milestoneRepository) ListByProject(ctx context.Context, projectID uint) ([]models.Milestone, error) {
	var milestones []models.Milestone
	if err := r.db.WithContext(ctx).
		Preload("Document").
		Where("project_id = ?", projectID).
		Order("due_date ASC").
		Order("id ASC").
		Find(&milestones).Error; err != nil {
		return nil, err
	}
	return milestones, nil
}

func (r *milestoneRepository) GetByID(ctx context.Context, id uint) (models.Milestone, error) {
	var milestone models.Milestone
	if err := r.db.WithContext(ctx).Preload("Document").First(&milestone, id).Error; err != nil {
		return models.Milestone{}, err
	}
	return milestone, nil
}

func (r *milestoneRepository) Create(ctx context.Context, milestone *models.Milestone) error {
	return r.db.WithContext(ctx).Omit("Document").Create(milestone).Error
}

// Update writes only the named columns, leaving the rest to whoever changed them
// last. Named columns are written even when zero, so a nil CompletedAt clears the
// completion.
func (r *milestoneRepository) Update(ctx context.Context, milestone *models.Milestone, columns ...string) error {
	if len(columns) == 0 {
		return errNoColumns
	}
	result := r.db.WithContext(ctx).Model(milestone).Select(columns).Updates(milestone)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *milestoneRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Milestone{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
