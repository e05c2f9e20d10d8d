package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/projtrack-api/internal/models"
)

// FeedbackRepository persists append-only faculty feedback.
type FeedbackRepository interface {
	Create(ctx context.Context, feedback *models.Feedback) error
	ListByProject(ctx context.Context, projectID uint, taskID *uint) ([]models.Feedback, error)
}

type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository instantiates a GORM-backed repository.
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) Create(ctx context.Context, feedback *models.Feedback) error {
	return r.db.WithContext(ctx).Omit("Faculty").Create(feedback).Error
}

func (r *feedbackRepository) ListByProject(ctx context.Context, projectID uint, taskID *uint) ([]models.Feedback, error) {
	query := r.db.WithContext(ctx).Preload("Faculty").Where("project_id = ?", projectID)
	if taskID != nil {
		query = query.Where("task_id = ?", *taskID)
	}

	var entries []models.Feedback
	if err := query.Order("created_at DESC").Order("id DESC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
