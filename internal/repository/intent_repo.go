package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/projtrack-api/internal/models"
)

// IntentRepository persists workflow intents for multi-step writes.
type IntentRepository interface {
	Create(ctx context.Context, intent *models.WorkflowIntent) error
	Update(ctx context.Context, intent *models.WorkflowIntent) error
	GetByID(ctx context.Context, id uint) (models.WorkflowIntent, error)
	ListPending(ctx context.Context, limit int) ([]models.WorkflowIntent, error)
}

type intentRepository struct {
	db *gorm.DB
}

// NewIntentRepository instantiates a GORM-backed repository.
func NewIntentRepository(db *gorm.DB) IntentRepository {
	return &intentRepository{db: db}
}

func (r *intentRepository) Create(ctx context.Context, intent *models.WorkflowIntent) error {
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *intentRepository) Update(ctx context.Context, intent *models.WorkflowIntent) error {
	return r.db.WithContext(ctx).Save(intent).Error
}

func (r *intentRepository) GetByID(ctx context.Context, id uint) (models.WorkflowIntent, error) {
	var intent models.WorkflowIntent
	if err := r.db.WithContext(ctx).First(&intent, id).Error; err != nil {
		return models.WorkflowIntent{}, err
	}
	return intent, nil
}

// ListPending returns the oldest pending intents first.
func (r *intentRepository) ListPending(ctx context.Context, limit int) ([]models.WorkflowIntent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var intents []models.WorkflowIntent
	if err := r.db.WithContext(ctx).
		Where("state = ?", models.IntentStatePending).
		Order("updated_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&intents).Error; err != nil {
		return nil, err
	}
	return intents, nil
}
