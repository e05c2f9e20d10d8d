package dto

import (
	"time"

	"github.com/noah-isme/projtrack-api/internal/models"
)

// ProfileCreateRequest registers a profile. Credentials are managed by the identity provider.
type ProfileCreateRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Name      string `json:"name" validate:"required,min=1,max=255"`
	Role      string `json:"role" validate:"required,oneof=student faculty admin"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url,max=512"`
}

// ProfileResponse is the public representation of a profile.
type ProfileResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

// ProfileLite summarizes a profile inside other payloads.
type ProfileLite struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewProfileResponse converts a profile model into a DTO.
func NewProfileResponse(model models.Profile) ProfileResponse {
	return ProfileResponse{
		ID:        model.ID,
		Email:     model.Email,
		Name:      model.Name,
		Role:      string(model.Role),
		AvatarURL: model.AvatarURL,
		CreatedAt: model.CreatedAt,
	}
}

func newProfileLite(model models.Profile) *ProfileLite {
	if model.ID == 0 {
		return nil
	}
	return &ProfileLite{ID: model.ID, Name: model.Name, Email: model.Email}
}
