package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/projtrack-api/internal/models"
)

// ReviewAssignmentRepository persists faculty review queues.
type ReviewAssignmentRepository interface {
	Create(ctx context.Context, assignment *models.FacultyReviewAssignment) error
	ListByFaculty(ctx context.Context, facultyID uint, status *models.ReviewAssignmentStatus) ([]models.FacultyReviewAssignment, error)
	FindOpen(ctx context.Context, projectID, facultyID uint) (models.FacultyReviewAssignment, error)
	Update(ctx context.Context, assignment *models.FacultyReviewAssignment) error
}

type reviewAssignmentRepository struct {
	db *gorm.DB
}

// NewReviewAssignmentRepository instantiates a GORM-backed repository.
func NewReviewAssignmentRepository(db *gorm.DB) ReviewAssignmentRepository {
	return &reviewAssignmentRepository{db: db}
}

func (r *reviewAssignmentRepository) Create(ctx context.Context, assignment *models.FacultyReviewAssignment) error {
	return r.db.WithContext(ctx).Omit("Project").Create(assignment).Error
}

func (r *reviewAssignmentRepository) ListByFaculty(ctx context.Context, facultyID uint, status *models.ReviewAssignmentStatus) ([]models.FacultyReviewAssignment, error) {
	query := r.db.WithContext(ctx).Preload("Project").Where("faculty_id = ?", facultyID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var assignments []models.FacultyReviewAssignment
	if err := query.Order("created_at ASC").Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *reviewAssignmentRepository) FindOpen(ctx context.Context, projectID, facultyID uint) (models.FacultyReviewAssignment, error) {
	var assignment models.FacultyReviewAssignment
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND faculty_id = ? AND status = ?", projectID, facultyID, models.ReviewAssignmentAssigned).
		First(&assignment).Error; err != nil {
		return models.FacultyReviewAssignment{}, err
	}
	return assignment, nil
}

func (r *reviewAssignmentRepository) Update(ctx context.Context, assignment *models.FacultyReviewAssignment) error {
	return r.db.WithContext(ctx).Omit("Project").Save(assignment).Error
}
