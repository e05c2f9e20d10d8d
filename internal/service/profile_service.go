package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/models"
	"github.com/noah-isme/projtrack-api/internal/repository"
)

var (
	// ErrProfileNotFound indicates no profile matches the lookup.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProfileExists indicates the email is already registered.
	ErrProfileExists = errors.New("profile already exists")
	// ErrInvalidRole indicates an unknown role filter.
	ErrInvalidRole = errors.New("invalid role")
)

// ProfileService exposes user profiles. Identity itself is owned by the token issuer.
type ProfileService interface {
	Create(ctx context.Context, actor Actor, payload dto.ProfileCreateRequest) (dto.ProfileResponse, error)
	Me(ctx context.Context, actor Actor) (dto.ProfileResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.ProfileResponse, error)
	List(ctx context.Context, actor Actor, role string) ([]dto.ProfileResponse, error)
}

type profileService struct {
	profiles  repository.ProfileRepository
	activity  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewProfileService constructs the profile service.
func NewProfileService(profiles repository.ProfileRepository, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) ProfileService {
	return &profileService{
		profiles:  profiles,
		activity:  activity,
		validator: validate,
		logger:    logger.With().Str("component", "profile_service").Logger(),
	}
}

func (s *profileService) Create(ctx context.Context, actor Actor, payload dto.ProfileCreateRequest) (dto.ProfileResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return dto.ProfileResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProfileResponse{}, err
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if _, err := s.profiles.GetByEmail(ctx, email); err == nil {
		return dto.ProfileResponse{}, ErrProfileExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.ProfileResponse{}, err
	}

	profile := models.Profile{
		Email:     email,
		Name:      strings.TrimSpace(payload.Name),
		Role:      models.ParseRole(payload.Role),
		AvatarURL: strings.TrimSpace(payload.AvatarURL),
	}
	if err := s.profiles.Create(ctx, &profile); err != nil {
		return dto.ProfileResponse{}, err
	}

	audit(ctx, s.activity, s.logger, actor, "profile.created", "profile", profile.ID, map[string]interface{}{
		"role": string(profile.Role),
	})
	return dto.NewProfileResponse(profile), nil
}

func (s *profileService) Me(ctx context.Context, actor Actor) (dto.ProfileResponse, error) {
	if err := actor.authenticated(); err != nil {
		return dto.ProfileResponse{}, err
	}
	return s.load(ctx, actor.ID)
}

func (s *profileService) Get(ctx context.Context, actor Actor, id uint) (dto.ProfileResponse, error) {
	if err := actor.authenticated(); err != nil {
		return dto.ProfileResponse{}, err
	}
	if actor.ID != id && !actor.Role.IsReviewer() {
		return dto.ProfileResponse{}, ErrForbidden
	}
	return s.load(ctx, id)
}

func (s *profileService) List(ctx context.Context, actor Actor, role string) ([]dto.ProfileResponse, error) {
	if err := actor.requireReviewer(); err != nil {
		return nil, err
	}
	var filter models.Role
	if strings.TrimSpace(role) != "" {
		filter = models.ParseRole(role)
		if !filter.Valid() {
			return nil, ErrInvalidRole
		}
	}

	profiles, err := s.profiles.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ProfileResponse, 0, len(profiles))
	for _, profile := range profiles {
		out = append(out, dto.NewProfileResponse(profile))
	}
	return out, nil
}

func (s *profileService) load(ctx context.Context, id uint) (dto.ProfileResponse, error) {
	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProfileResponse{}, ErrProfileNotFound
		}
		return dto.ProfileResponse{}, err
	}
	return dto.NewProfileResponse(profile), nil
}
