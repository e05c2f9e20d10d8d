package dto

import (
	"time"

	"github.com/noah-isme/projtrack-api/internal/models"
)

// FeedbackCreateRequest is a faculty comment on a project or task.
type FeedbackCreateRequest struct {
	Comment string `json:"comment" validate:"required,min=1,max=4000"`
	TaskID  *uint  `json:"task_id" validate:"omitempty,gt=0"`
}

// FeedbackResponse serializes a feedback entry.
type FeedbackResponse struct {
	ID        uint         `json:"id"`
	ProjectID uint         `json:"project_id"`
	FacultyID uint         `json:"faculty_id"`
	TaskID    *uint        `json:"task_id"`
	Comment   string       `json:"comment"`
	Faculty   *ProfileLite `json:"faculty,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewFeedbackResponse converts a feedback model into a DTO.
func NewFeedbackResponse(model models.Feedback) FeedbackResponse {
	return FeedbackResponse{
		ID:        model.ID,
		ProjectID: model.ProjectID,
		FacultyID: model.FacultyID,
		TaskID:    model.TaskID,
		Comment:   model.Comment,
		Faculty:   newProfileLite(model.Faculty),
		CreatedAt: model.CreatedAt,
	}
}

// NewFeedbackResponseSlice converts feedback models into DTOs.
func NewFeedbackResponseSlice(items []models.Feedback) []FeedbackResponse {
	responses := make([]FeedbackResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewFeedbackResponse(item))
	}
	return responses
}
