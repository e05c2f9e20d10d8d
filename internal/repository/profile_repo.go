package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/projtrack-api/internal/models"
)

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	GetByID(ctx context.Context, id uint) (models.Profile, error)
	GetByEmail(ctx context.Context, email string) (models.Profile, error)
	List(ctx context.Context, role models.Role) ([]models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository instantiates a GORM-backed repository.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByID(ctx context.Context, id uint) (models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).First(&profile, id).Error; err != nil {
		return models.Profile{}, err
	}
	return profile, nil
}

func (r *profileRepository) GetByEmail(ctx context.Context, email string) (models.Profile, error) {
	var profile models.Profile
	normalized := strings.ToLower(strings.TrimSpace(email))
	if err := r.db.WithContext(ctx).Where("LOWER(email) = ?", normalized).First(&profile).Error; err != nil {
		return models.Profile{}, err
	}
	return profile, nil
}

func (r *profileRepository) List(ctx context.Context, role models.Role) ([]models.Profile, error) {
	query := r.db.WithContext(ctx).Model(&models.Profile{})
	if role != "" {
		query = query.Where("role = ?", role)
	}

	var profiles []models.Profile
	if err := query.Order("name ASC").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}
