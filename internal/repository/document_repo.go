package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/projtrack-api/internal/models"
)

// DocumentFilter narrows document listings.
type DocumentFilter struct {
	ProjectID *uint
	Status    *models.DocumentStatus
}

// DocumentRepository defines persistence operations for documents.
type DocumentRepository interface {
	List(ctx context.Context, filter DocumentFilter) ([]models.Document, error)
	GetByID(ctx context.Context, id uint) (models.Document, error)
	FindByFilePath(ctx context.Context, path string) (models.Document, error)
	Create(ctx context.Context, document *models.Document) error
	Update(ctx context.Context, document *models.Document) error
	Delete(ctx context.Context, id uint) error
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository instantiates a GORM-backed repository.
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) List(ctx context.Context, filter DocumentFilter) ([]models.Document, error) {
	query := r.db.WithContext(ctx).Model(&models.Document{})
	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var documents []models.Document
	if err := query.Order("created_at DESC").Find(&documents).Error; err != nil {
		return nil, err
	}
	return documents, nil
}

func (r *documentRepository) GetByID(ctx context.Context, id uint) (models.Document, error) {
	var document models.Document
	if err := r.db.WithContext(ctx).First(&document, id).Error; err != nil {
		return models.Document{}, err
	}
	return document, nil
}

// FindByFilePath locates the row referencing a stored object.
func (r *documentRepository) FindByFilePath(ctx context.Context, path string) (models.Document, error) {
	var document models.Document
	if err := r.db.WithContext(ctx).Where("file_path = ?", path).First(&document).Error; err != nil {
		return models.Document{}, err
	}
	return document, nil
}

func (r *documentRepository) Create(ctx context.Context, document *models.Document) error {
	return r.db.WithContext(ctx).Omit("Project").Create(document).Error
}

func (r *documentRepository) Update(ctx context.Context, document *models.Document) error {
	return r.db.WithContext(ctx).Omit("Project").Save(document).Error
}

// Delete removes the document row and clears milestone links pointing at it.
func (r *documentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Milestone{}).Where("document_id = ?", id).Update("document_id", nil).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Document{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
