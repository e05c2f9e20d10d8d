package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/projtrack-api/internal/models"
)

// errNoColumns guards partial updates that were given nothing to write.
var errNoColumns = errors.New("update requires at least one column")

// ProjectFilter narrows project listings.
type ProjectFilter struct {
	// VisibleTo restricts results to projects owned by the student or by their team.
	VisibleTo *uint
	StudentID *uint
	TeamID    *uint
	Status    *models.ProjectStatus
	Search    string
	Page      int
	PageSize  int
}

// ProjectRepository defines persistence operations for projects.
type ProjectRepository interface {
	List(ctx context.Context, filter ProjectFilter) ([]models.Project, int64, error)
	GetByID(ctx context.Context, id uint) (models.Project, error)
	Create(ctx context.Context, project *models.Project) error
	Update(ctx context.Context, project *models.Project, columns ...string) error
	Delete(ctx context.Context, id uint) error
	CountByTeam(ctx context.Context, teamID uint) (int64, error)
}

type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository instantiates a GORM-backed repository.
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) List(ctx context.Context, filter ProjectFilter) ([]models.Project, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Project{})

	if filter.VisibleTo != nil {
		memberTeams := r.db.Model(&models.TeamMember{}).Select("team_id").Where("user_id = ?", *filter.VisibleTo)
		query = query.Where("student_id = ? OR team_id IN (?)", *filter.VisibleTo, memberTeams)
	}
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.TeamID != nil {
		query = query.Where("team_id = ?", *filter.TeamID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(strings.TrimSpace(filter.Search)) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var projects []models.Project
	if err := query.Preload("Student").Order("updated_at DESC").Find(&projects).Error; err != nil {
		return nil, 0, err
	}

	return projects, total, nil
}

func (r *projectRepository) GetByID(ctx context.Context, id uint) (models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).Preload("Student").First(&project, id).Error; err != nil {
		return models.Project{}, err
	}
	return project, nil
}

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Omit("Student", "Milestones").Create(project).Error
}

// Update writes only the named columns.
func (r *projectRepository) Update(ctx context.Context, project *models.Project, columns ...string) error {
	if len(columns) == 0 {
		return errNoColumns
	}
	result := r.db.WithContext(ctx).Model(project).Select(columns).Updates(project)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the project and its children in one transaction.
func (r *projectRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		children := []interface{}{
			&models.Milestone{},
			&models.Task{},
			&models.Feedback{},
			&models.FacultyReviewAssignment{},
			&models.Document{},
		}
		for _, child := range children {
			if err := tx.Where("project_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}

		result := tx.Delete(&models.Project{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *projectRepository) CountByTeam(ctx context.Context, teamID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Project{}).Where("team_id = ?", teamID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
