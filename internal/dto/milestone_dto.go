package dto

import (
	"time"

	"github.com/noah-isme/projtrack-api/internal/models"
)

// MilestoneCreateRequest defines a new milestone.
type MilestoneCreateRequest struct {
	Title       string    `json:"title" validate:"required,min=1,max=255"`
	Description string    `json:"description" validate:"omitempty,max=5000"`
	DueDate     time.Time `json:"due_date" validate:"required"`
}

// MilestoneUpdateRequest edits an existing milestone.
type MilestoneUpdateRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	DueDate     *time.Time `json:"due_date"`
}

// MilestoneResponse includes the derived state and overdue flag.
type MilestoneResponse struct {
	ID          uint              `json:"id"`
	ProjectID   uint              `json:"project_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	DueDate     time.Time         `json:"due_date"`
	CompletedAt *time.Time        `json:"completed_at"`
	DocumentID  *uint             `json:"document_id"`
	State       string            `json:"state"`
	Overdue     bool              `json:"overdue"`
	Document    *DocumentResponse `json:"document,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewMilestoneResponse converts a milestone model into a DTO evaluated at reference.
func NewMilestoneResponse(model models.Milestone, reference time.Time) MilestoneResponse {
	response := MilestoneResponse{
		ID:          model.ID,
		ProjectID:   model.ProjectID,
		Title:       model.Title,
		Description: model.Description,
		DueDate:     model.DueDate,
		CompletedAt: model.CompletedAt,
		DocumentID:  model.DocumentID,
		State:       string(model.State()),
		Overdue:     model.IsOverdue(reference),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
	if model.Document != nil && model.Document.ID != 0 {
		document := NewDocumentResponse(*model.Document)
		response.Document = &document
	}
	return response
}

// NewMilestoneResponseSlice converts milestone models into DTOs.
func NewMilestoneResponseSlice(items []models.Milestone, reference time.Time) []MilestoneResponse {
	responses := make([]MilestoneResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewMilestoneResponse(item, reference))
	}
	return responses
}
